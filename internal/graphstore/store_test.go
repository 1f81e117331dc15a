package graphstore

import (
	"testing"

	"netmapper/internal/crawler"
)

func TestCanonicalizeLinkAlreadyOrdered(t *testing.T) {
	l := crawler.LinkAttrs{SourcePort: "Gi0/1", TargetPort: "Gi0/2", SourceIsRoot: true}
	src, dst, out := canonicalizeLink("10.0.0.1", "10.0.0.2", l)
	if src != "10.0.0.1" || dst != "10.0.0.2" {
		t.Fatalf("src/dst = %q/%q", src, dst)
	}
	if out.SourcePort != "Gi0/1" || out.TargetPort != "Gi0/2" || !out.SourceIsRoot {
		t.Fatalf("out = %+v", out)
	}
}

func TestCanonicalizeLinkSwaps(t *testing.T) {
	l := crawler.LinkAttrs{SourcePort: "Gi0/2", TargetPort: "Gi0/1", SourceVLAN: "U:10", SourceIsRoot: true}
	src, dst, out := canonicalizeLink("10.0.0.2", "10.0.0.1", l)
	if src != "10.0.0.1" || dst != "10.0.0.2" {
		t.Fatalf("expected canonicalized min-ip-first ordering, got src=%q dst=%q", src, dst)
	}
	if out.SourcePort != "Gi0/1" || out.TargetPort != "Gi0/2" {
		t.Fatalf("ports did not swap together: %+v", out)
	}
	if out.TargetVLAN != "U:10" || out.SourceVLAN != "" {
		t.Fatalf("vlan did not swap together: %+v", out)
	}
	if out.TargetIsRoot != true || out.SourceIsRoot != false {
		t.Fatalf("is-root flags did not swap together: %+v", out)
	}
}

func TestMergeableLinkFieldsDropsEmptyAndUnknown(t *testing.T) {
	fields := mergeableLinkFields("LLDP", "", "Gi0/2", "1.0 Gbps", "Unknown", "U:10", "")
	want := map[string]string{
		"protocol":    "LLDP",
		"target_port": "Gi0/2",
		"speed":       "1.0 Gbps",
		"source_vlan": "U:10",
	}
	if len(fields) != len(want) {
		t.Fatalf("fields = %+v, want %d entries", fields, len(want))
	}
	for _, f := range fields {
		if want[f.column] != f.value {
			t.Errorf("field %s = %q, want %q", f.column, f.value, want[f.column])
		}
	}
}
