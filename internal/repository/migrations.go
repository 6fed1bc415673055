package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

type migration struct {
	version int
	sql     string
}

// migrations is rendered once per dialect: {{timestamp}} becomes TIMESTAMPTZ on
// Postgres and DATETIME on SQLite (the sqlite driver only parses DATETIME columns
// back into time.Time).
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS drives (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	serial_number TEXT NOT NULL UNIQUE,
	location      TEXT NOT NULL DEFAULT '',
	manufacturer  TEXT NOT NULL DEFAULT '',
	model         TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'active',
	notes         TEXT NOT NULL DEFAULT '',
	created_at    {{timestamp}} NOT NULL,
	updated_at    {{timestamp}} NOT NULL
);

CREATE TABLE IF NOT EXISTS parts (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	part_number  TEXT NOT NULL UNIQUE,
	manufacturer TEXT NOT NULL DEFAULT '',
	drive_id     TEXT REFERENCES drives(id) ON DELETE SET NULL,
	notes        TEXT NOT NULL DEFAULT '',
	created_at   {{timestamp}} NOT NULL,
	updated_at   {{timestamp}} NOT NULL
);

CREATE TABLE IF NOT EXISTS part_attachments (
	id          TEXT PRIMARY KEY,
	part_id     TEXT NOT NULL REFERENCES parts(id) ON DELETE CASCADE,
	drive_id    TEXT NOT NULL REFERENCES drives(id) ON DELETE CASCADE,
	attached_at {{timestamp}} NOT NULL,
	attached_by TEXT NOT NULL DEFAULT '',
	detached_at {{timestamp}},
	detached_by TEXT,
	notes       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_part_attachments_part ON part_attachments(part_id);
CREATE INDEX IF NOT EXISTS idx_part_attachments_drive ON part_attachments(drive_id);

CREATE TABLE IF NOT EXISTS inspections (
	id           TEXT PRIMARY KEY,
	drive_id     TEXT NOT NULL REFERENCES drives(id) ON DELETE CASCADE,
	inspector    TEXT NOT NULL,
	inspected_at {{timestamp}} NOT NULL,
	result       TEXT NOT NULL,
	notes        TEXT NOT NULL DEFAULT '',
	created_at   {{timestamp}} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inspections_drive ON inspections(drive_id);

CREATE TABLE IF NOT EXISTS maintenance_records (
	id             TEXT PRIMARY KEY,
	drive_id       TEXT REFERENCES drives(id) ON DELETE SET NULL,
	part_id        TEXT REFERENCES parts(id) ON DELETE SET NULL,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	priority       TEXT NOT NULL DEFAULT 'medium',
	scheduled_date {{timestamp}},
	completed_at   {{timestamp}},
	checklist_json TEXT NOT NULL DEFAULT '[]',
	sort_order     INTEGER NOT NULL DEFAULT 0,
	created_by     TEXT NOT NULL DEFAULT '',
	updated_by     TEXT NOT NULL DEFAULT '',
	created_at     {{timestamp}} NOT NULL,
	updated_at     {{timestamp}} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_maintenance_records_status ON maintenance_records(status, sort_order);
CREATE INDEX IF NOT EXISTS idx_maintenance_records_drive ON maintenance_records(drive_id);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS record_documents (
	id           TEXT PRIMARY KEY,
	record_id    TEXT NOT NULL REFERENCES maintenance_records(id) ON DELETE CASCADE,
	file_name    TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	size         BIGINT NOT NULL DEFAULT 0,
	object_key   TEXT NOT NULL,
	uploaded_by  TEXT NOT NULL DEFAULT '',
	uploaded_at  {{timestamp}} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_record_documents_record ON record_documents(record_id);
`,
	},
}

// renderMigration substitutes dialect-specific column types.
func renderMigration(driver, sql string) string {
	ts := "DATETIME"
	if driver == "postgres" {
		ts = "TIMESTAMPTZ"
	}
	return strings.ReplaceAll(sql, "{{timestamp}}", ts)
}

// Migrate applies every migration newer than the recorded schema version.
// Each migration runs in its own transaction together with its version row.
func Migrate(ctx context.Context, db *sqlx.DB) (applied int, err error) {
	createVersion := renderMigration(db.DriverName(), `
CREATE TABLE IF NOT EXISTS schema_version (
	version    INTEGER PRIMARY KEY,
	applied_at {{timestamp}} NOT NULL
)`)
	if _, err := db.ExecContext(ctx, createVersion); err != nil {
		return 0, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	if err := db.GetContext(ctx, &current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := withTx(ctx, db, func(tx *sqlx.Tx) error {
			for _, stmt := range splitStatements(renderMigration(db.DriverName(), m.sql)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				tx.Rebind("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)"),
				m.version, nowUTC())
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("failed to apply migration v%d: %w", m.version, err)
		}
		applied++
	}
	return applied, nil
}

// splitStatements breaks a migration into single statements; not every driver
// accepts several statements per Exec.
func splitStatements(sql string) []string {
	var out []string
	for _, stmt := range strings.Split(sql, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
