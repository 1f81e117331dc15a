package graphstore

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"netmapper/internal/crawler"
	"netmapper/internal/probe"
)

func requireTestDatabaseURL(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration test")
	}
	return dsn
}

func newStoreForTest(t *testing.T) *Store {
	t.Helper()
	dsn := requireTestDatabaseURL(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return New(pool)
}

func TestIntegrationDeviceUpsertMergeRules(t *testing.T) {
	store := newStoreForTest(t)
	ctx := context.Background()

	m, err := store.CreateMap(ctx, fmt.Sprintf("t-%d", time.Now().UnixNano()), "10.0.0.0/24", []string{"public"})
	if err != nil {
		t.Fatalf("CreateMap: %v", err)
	}
	t.Cleanup(func() { _ = store.DeleteMap(ctx, m.ID) })

	// Real identity first, classified as a switch by a neighboring probe.
	if err := store.UpsertDevice(ctx, m.ID, probe.Device{IP: "10.0.0.1", SysName: "sw1", SysDescr: "Cisco IOS", DeviceType: "switch"}); err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}

	// A later stub write (e.g. from a different neighbor's probe) with
	// sysName="Unknown" and the default device-type must not clobber either.
	if err := store.UpsertDevice(ctx, m.ID, probe.Device{IP: "10.0.0.1", SysName: "Unknown", DeviceType: "router"}); err != nil {
		t.Fatalf("UpsertDevice (stub): %v", err)
	}

	devices, err := store.ListDevices(ctx, m.ID)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("devices = %+v, want 1", devices)
	}
	if devices[0].SysName != "sw1" || devices[0].DeviceType != "switch" {
		t.Fatalf("devices[0] = %+v, want sysName=sw1 device_type=switch preserved", devices[0])
	}
}

func TestIntegrationLinkUpsertCanonicalizesAndMerges(t *testing.T) {
	store := newStoreForTest(t)
	ctx := context.Background()

	m, err := store.CreateMap(ctx, fmt.Sprintf("t-%d", time.Now().UnixNano()), "10.0.0.0/24", []string{"public"})
	if err != nil {
		t.Fatalf("CreateMap: %v", err)
	}
	t.Cleanup(func() { _ = store.DeleteMap(ctx, m.ID) })

	err = store.UpsertLink(ctx, m.ID, "10.0.0.2", "10.0.0.1", crawler.LinkAttrs{
		Protocol: "LLDP", SourcePort: "Gi0/2", TargetPort: "Gi0/1", Speed: "1.0 Gbps", Status: "Up",
	})
	if err != nil {
		t.Fatalf("UpsertLink: %v", err)
	}

	// Mirrored write from the other endpoint's own probe; only VLAN info is
	// new this time and status reads "Unknown" (must not clobber "Up").
	err = store.UpsertLink(ctx, m.ID, "10.0.0.1", "10.0.0.2", crawler.LinkAttrs{
		Protocol: "LLDP", SourcePort: "Gi0/1", TargetPort: "Gi0/2", Status: "Unknown", SourceVLAN: "U:10",
	})
	if err != nil {
		t.Fatalf("UpsertLink (mirror): %v", err)
	}

	links, err := store.ListLinks(ctx, m.ID)
	if err != nil {
		t.Fatalf("ListLinks: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("links = %+v, want exactly 1 row", links)
	}
	l := links[0]
	if l.SourceIP != "10.0.0.1" || l.TargetIP != "10.0.0.2" {
		t.Fatalf("expected canonicalized source=10.0.0.1, got %+v", l)
	}
	if l.SourcePort != "Gi0/1" || l.TargetPort != "Gi0/2" {
		t.Fatalf("ports = %+v", l)
	}
	if l.Status != "Up" {
		t.Fatalf("status = %q, want Up preserved (incoming mirror write was Unknown)", l.Status)
	}
	if l.SourceVLAN != "U:10" {
		t.Fatalf("source_vlan = %q, want U:10 merged in from mirror write", l.SourceVLAN)
	}
	if l.Speed != "1.0 Gbps" {
		t.Fatalf("speed = %q, want preserved from first write", l.Speed)
	}
}

func TestIntegrationMapCRUDCascadesDelete(t *testing.T) {
	store := newStoreForTest(t)
	ctx := context.Background()

	m, err := store.CreateMap(ctx, fmt.Sprintf("t-%d", time.Now().UnixNano()), "", nil)
	if err != nil {
		t.Fatalf("CreateMap: %v", err)
	}
	if err := store.UpsertDevice(ctx, m.ID, probe.Device{IP: "10.0.0.1", SysName: "host1"}); err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}

	if err := store.DeleteMap(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMap: %v", err)
	}

	if _, err := store.GetMap(ctx, m.ID); err != pgx.ErrNoRows && err != ErrNotFound {
		t.Fatalf("GetMap after delete: got %v, want ErrNotFound", err)
	}
}
