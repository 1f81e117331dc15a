// Package graphstore persists per-map devices and links to PostgreSQL with
// the merge-on-conflict semantics required by §4.5: a device upsert never
// lets a stub/"Unknown" write clobber a previously learned identity or
// classification, and a link upsert only overwrites fields the incoming
// write actually knows something about.
package graphstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"netmapper/internal/crawler"
	"netmapper/internal/probe"
)

// Map is a discovery workspace record.
type Map struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	Network   string
	Community string
}

// DeviceRecord is a stored device row, including the scan-local tags.
type DeviceRecord struct {
	MapID       int64
	IP          string
	SysName     string
	SysDescr    string
	SysObjectID string
	DeviceType  string
	LastSeen    time.Time
	Tags        []string
}

// LinkRecord is a stored, already-canonicalized link row.
type LinkRecord struct {
	ID           int64
	MapID        int64
	SourceIP     string
	TargetIP     string
	Protocol     string
	SourcePort   string
	TargetPort   string
	Speed        string
	Status       string
	SourceVLAN   string
	TargetVLAN   string
	SourceIsRoot bool
	TargetIsRoot bool
}

// Store is the Graph Store. Writes are serialized under writeMu so the
// read-modify-write sequence behind every upsert commutes across workers,
// per §5; reads run unlocked against Postgres's own snapshot isolation.
type Store struct {
	pool    *pgxpool.Pool
	writeMu sync.Mutex
}

// New wraps an already-connected pool. Callers should run EnsureSchema once
// at startup before using the returned Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateMap inserts a new map and returns its assigned id.
func (s *Store) CreateMap(ctx context.Context, name, network string, communities []string) (Map, error) {
	var m Map
	row := s.pool.QueryRow(ctx,
		`INSERT INTO maps (name, network, community) VALUES ($1, $2, $3)
		 RETURNING id, name, created_at, COALESCE(network, ''), COALESCE(community, '')`,
		name, network, strings.Join(communities, ","))
	if err := row.Scan(&m.ID, &m.Name, &m.CreatedAt, &m.Network, &m.Community); err != nil {
		return Map{}, fmt.Errorf("graphstore: create map: %w", err)
	}
	return m, nil
}

// ListMaps returns every map, most recently created first.
func (s *Store) ListMaps(ctx context.Context) ([]Map, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at, COALESCE(network, ''), COALESCE(community, '')
		 FROM maps ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("graphstore: list maps: %w", err)
	}
	defer rows.Close()

	var out []Map
	for rows.Next() {
		var m Map
		if err := rows.Scan(&m.ID, &m.Name, &m.CreatedAt, &m.Network, &m.Community); err != nil {
			return nil, fmt.Errorf("graphstore: scan map: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMap returns a single map by id.
func (s *Store) GetMap(ctx context.Context, id int64) (Map, error) {
	var m Map
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, COALESCE(network, ''), COALESCE(community, '')
		 FROM maps WHERE id = $1`, id)
	if err := row.Scan(&m.ID, &m.Name, &m.CreatedAt, &m.Network, &m.Community); err != nil {
		if err == pgx.ErrNoRows {
			return Map{}, ErrNotFound
		}
		return Map{}, fmt.Errorf("graphstore: get map: %w", err)
	}
	return m, nil
}

// UpdateMap renames a map and replaces its stored network/community with the
// given values.
func (s *Store) UpdateMap(ctx context.Context, id int64, name, network string, communities []string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE maps SET name = $2, network = $3, community = $4 WHERE id = $1`,
		id, name, network, strings.Join(communities, ","))
	if err != nil {
		return fmt.Errorf("graphstore: update map: %w", err)
	}
	return nil
}

// DeleteMap removes a map and, via ON DELETE CASCADE, its devices and links.
func (s *Store) DeleteMap(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM maps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("graphstore: delete map: %w", err)
	}
	return nil
}

// SetMapScanParams persists the (network, community) pair a scan was
// started with, so a later rescan can reuse it.
func (s *Store) SetMapScanParams(ctx context.Context, id int64, network string, communities []string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE maps SET network = $2, community = $3 WHERE id = $1`,
		id, network, strings.Join(communities, ","))
	if err != nil {
		return fmt.Errorf("graphstore: set scan params: %w", err)
	}
	return nil
}

// ErrNotFound is returned by reads for a missing map id.
var ErrNotFound = fmt.Errorf("graphstore: not found")

const defaultDeviceType = "router"

// UpsertDevice implements §4.5's device merge rule. It satisfies
// crawler.GraphWriter.
func (s *Store) UpsertDevice(ctx context.Context, mapID int64, d probe.Device) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sysName := strings.TrimSpace(d.SysName)
	hasIdentity := sysName != "" && sysName != "Unknown"
	deviceType := d.DeviceType
	if deviceType == "" {
		deviceType = defaultDeviceType
	}

	if hasIdentity {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO devices (map_id, ip, sys_name, sys_descr, sys_object_id, device_type, last_seen)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (map_id, ip) DO UPDATE SET
				sys_name = EXCLUDED.sys_name,
				sys_descr = EXCLUDED.sys_descr,
				sys_object_id = EXCLUDED.sys_object_id,
				device_type = CASE WHEN EXCLUDED.device_type <> $7 THEN EXCLUDED.device_type ELSE devices.device_type END,
				last_seen = EXCLUDED.last_seen
		`, mapID, d.IP, d.SysName, d.SysDescr, d.SysObjectID, deviceType, defaultDeviceType)
		if err != nil {
			return fmt.Errorf("graphstore: upsert device: %w", err)
		}
		return nil
	}

	// sysName empty/"Unknown": preserve existing identity, only bump
	// last_seen, and still let a non-default device-type (e.g. learned from
	// this IP appearing as someone else's LLDP neighbor) through —
	// never let it fall back to "router" if nothing better is known yet.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO devices (map_id, ip, sys_name, sys_descr, sys_object_id, device_type, last_seen)
		VALUES ($1, $2, '', '', '', $3, now())
		ON CONFLICT (map_id, ip) DO UPDATE SET
			device_type = CASE WHEN EXCLUDED.device_type <> $4 THEN EXCLUDED.device_type ELSE devices.device_type END,
			last_seen = EXCLUDED.last_seen
	`, mapID, d.IP, deviceType, defaultDeviceType)
	if err != nil {
		return fmt.Errorf("graphstore: upsert device (stub): %w", err)
	}
	return nil
}

// UpsertLink implements §4.5's link merge rule. It satisfies
// crawler.GraphWriter.
func (s *Store) UpsertLink(ctx context.Context, mapID int64, source, target string, l crawler.LinkAttrs) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	source, target, l = canonicalizeLink(source, target, l)
	sourcePort, targetPort := l.SourcePort, l.TargetPort
	sourceVLAN, targetVLAN := l.SourceVLAN, l.TargetVLAN
	sourceIsRoot, targetIsRoot := l.SourceIsRoot, l.TargetIsRoot

	var existingID int64
	row := s.pool.QueryRow(ctx,
		`SELECT id FROM links WHERE map_id = $1 AND source_ip = $2 AND target_ip = $3`,
		mapID, source, target)
	err := row.Scan(&existingID)

	switch {
	case err == pgx.ErrNoRows:
		_, err := s.pool.Exec(ctx, `
			INSERT INTO links (map_id, source_ip, target_ip, protocol, source_port, target_port,
				speed, status, source_vlan, target_vlan, source_is_root, target_is_root)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, mapID, source, target, l.Protocol, sourcePort, targetPort, l.Speed, l.Status,
			sourceVLAN, targetVLAN, sourceIsRoot, targetIsRoot)
		if err != nil {
			return fmt.Errorf("graphstore: insert link: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("graphstore: lookup link: %w", err)
	}

	updates := mergeableLinkFields(l.Protocol, sourcePort, targetPort, l.Speed, l.Status, sourceVLAN, targetVLAN)
	set := []string{"source_is_root = $2", "target_is_root = $3"}
	args := []any{existingID, sourceIsRoot, targetIsRoot}
	for _, f := range updates {
		args = append(args, f.value)
		set = append(set, fmt.Sprintf("%s = $%d", f.column, len(args)))
	}

	query := fmt.Sprintf(`UPDATE links SET %s WHERE id = $1`, strings.Join(set, ", "))
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("graphstore: update link: %w", err)
	}
	return nil
}

// canonicalizeLink swaps (source, target) and their per-endpoint attributes
// together so that the lexicographically smaller IP always occupies
// "source", per §4.5's link-key canonicalization invariant.
func canonicalizeLink(source, target string, l crawler.LinkAttrs) (string, string, crawler.LinkAttrs) {
	if source <= target {
		return source, target, l
	}
	l.SourcePort, l.TargetPort = l.TargetPort, l.SourcePort
	l.SourceVLAN, l.TargetVLAN = l.TargetVLAN, l.SourceVLAN
	l.SourceIsRoot, l.TargetIsRoot = l.TargetIsRoot, l.SourceIsRoot
	return target, source, l
}

type linkFieldUpdate struct {
	column string
	value  string
}

// mergeableLinkFields returns the (column, value) pairs whose incoming value
// is non-empty and not the literal "Unknown", per §4.5's link merge rule:
// only fields the latest probe actually learned something about overwrite
// the stored row.
func mergeableLinkFields(protocol, sourcePort, targetPort, speed, status, sourceVLAN, targetVLAN string) []linkFieldUpdate {
	candidates := []linkFieldUpdate{
		{"protocol", protocol},
		{"source_port", sourcePort},
		{"target_port", targetPort},
		{"speed", speed},
		{"status", status},
		{"source_vlan", sourceVLAN},
		{"target_vlan", targetVLAN},
	}
	out := make([]linkFieldUpdate, 0, len(candidates))
	for _, c := range candidates {
		if c.value == "" || c.value == "Unknown" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ListDevices returns every device row for a map.
func (s *Store) ListDevices(ctx context.Context, mapID int64) ([]DeviceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT map_id, ip, sys_name, sys_descr, sys_object_id, device_type, last_seen, COALESCE(tags, '')
		FROM devices WHERE map_id = $1 ORDER BY ip`, mapID)
	if err != nil {
		return nil, fmt.Errorf("graphstore: list devices: %w", err)
	}
	defer rows.Close()

	var out []DeviceRecord
	for rows.Next() {
		var d DeviceRecord
		var tags string
		if err := rows.Scan(&d.MapID, &d.IP, &d.SysName, &d.SysDescr, &d.SysObjectID, &d.DeviceType, &d.LastSeen, &tags); err != nil {
			return nil, fmt.Errorf("graphstore: scan device: %w", err)
		}
		if tags != "" {
			d.Tags = strings.Split(tags, ",")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListLinks returns every link row for a map.
func (s *Store) ListLinks(ctx context.Context, mapID int64) ([]LinkRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, map_id, source_ip, target_ip, protocol, source_port, target_port,
			speed, status, source_vlan, target_vlan, source_is_root, target_is_root
		FROM links WHERE map_id = $1 ORDER BY source_ip, target_ip`, mapID)
	if err != nil {
		return nil, fmt.Errorf("graphstore: list links: %w", err)
	}
	defer rows.Close()

	var out []LinkRecord
	for rows.Next() {
		var l LinkRecord
		if err := rows.Scan(&l.ID, &l.MapID, &l.SourceIP, &l.TargetIP, &l.Protocol, &l.SourcePort, &l.TargetPort,
			&l.Speed, &l.Status, &l.SourceVLAN, &l.TargetVLAN, &l.SourceIsRoot, &l.TargetIsRoot); err != nil {
			return nil, fmt.Errorf("graphstore: scan link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SetDeviceTags overwrites the supplemental tag list for one device (§3,
// §4.8). It does not participate in the core upsert merge rules above.
func (s *Store) SetDeviceTags(ctx context.Context, mapID int64, ip string, tags []string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.pool.Exec(ctx,
		`UPDATE devices SET tags = $3 WHERE map_id = $1 AND ip = $2`,
		mapID, ip, strings.Join(tags, ","))
	if err != nil {
		return fmt.Errorf("graphstore: set device tags: %w", err)
	}
	return nil
}
