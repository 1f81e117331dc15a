package graphstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the maps/devices/links tables if absent and adds any
// columns a prior deployment's tables might be missing, via native
// `ADD COLUMN IF NOT EXISTS` — Postgres's idempotent equivalent of the
// SQLite prototype's `PRAGMA table_info` + conditional `ALTER TABLE` dance.
// There is no migration-versioning table; every step is safe to re-run.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS maps (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`ALTER TABLE maps ADD COLUMN IF NOT EXISTS network TEXT`,
		`ALTER TABLE maps ADD COLUMN IF NOT EXISTS community TEXT`,

		`CREATE TABLE IF NOT EXISTS devices (
			map_id BIGINT NOT NULL REFERENCES maps(id) ON DELETE CASCADE,
			ip TEXT NOT NULL,
			sys_name TEXT NOT NULL DEFAULT '',
			sys_descr TEXT NOT NULL DEFAULT '',
			sys_object_id TEXT NOT NULL DEFAULT '',
			device_type TEXT NOT NULL DEFAULT 'router',
			last_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (map_id, ip)
		)`,
		`ALTER TABLE devices ADD COLUMN IF NOT EXISTS tags TEXT`,

		`CREATE TABLE IF NOT EXISTS links (
			id BIGSERIAL PRIMARY KEY,
			map_id BIGINT NOT NULL REFERENCES maps(id) ON DELETE CASCADE,
			source_ip TEXT NOT NULL,
			target_ip TEXT NOT NULL,
			protocol TEXT NOT NULL DEFAULT '',
			source_port TEXT NOT NULL DEFAULT '',
			target_port TEXT NOT NULL DEFAULT '',
			speed TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			source_vlan TEXT NOT NULL DEFAULT '',
			target_vlan TEXT NOT NULL DEFAULT '',
			source_is_root BOOLEAN NOT NULL DEFAULT false,
			target_is_root BOOLEAN NOT NULL DEFAULT false,
			UNIQUE (map_id, source_ip, target_ip)
		)`,
		`ALTER TABLE links ADD COLUMN IF NOT EXISTS protocol TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE links ADD COLUMN IF NOT EXISTS source_port TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE links ADD COLUMN IF NOT EXISTS target_port TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE links ADD COLUMN IF NOT EXISTS speed TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE links ADD COLUMN IF NOT EXISTS status TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE links ADD COLUMN IF NOT EXISTS source_vlan TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE links ADD COLUMN IF NOT EXISTS target_vlan TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE links ADD COLUMN IF NOT EXISTS source_is_root BOOLEAN NOT NULL DEFAULT false`,
		`ALTER TABLE links ADD COLUMN IF NOT EXISTS target_is_root BOOLEAN NOT NULL DEFAULT false`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("graphstore: migrate: %w", err)
		}
	}
	return nil
}
