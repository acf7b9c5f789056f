package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migration is one forward-only schema step.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations are applied in order; never edit a released step, append a new one.
var migrations = []migration{
	{
		version: 1,
		name:    "plan_set",
		stmts: []string{`
		CREATE TABLE IF NOT EXISTS plan_set (
			profile_id TEXT PRIMARY KEY,
			members_json TEXT NOT NULL,
			source_name TEXT NOT NULL DEFAULT '',
			fallback INTEGER NOT NULL DEFAULT 0,
			warning TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)`},
	},
	{
		version: 2,
		name:    "pipeline_run",
		stmts: []string{`
		CREATE TABLE IF NOT EXISTS pipeline_run (
			id TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL,
			source_name TEXT NOT NULL DEFAULT '',
			stage TEXT NOT NULL,
			member_count INTEGER NOT NULL DEFAULT 0,
			plans_count INTEGER NOT NULL DEFAULT 0,
			warning TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,
			`CREATE INDEX IF NOT EXISTS idx_pipeline_run_profile ON pipeline_run(profile_id, started_at)`,
		},
	},
}

// LatestSchemaVersion returns the version MigrateDB brings a database to.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion returns the applied schema version, 0 for a fresh database.
// PRE: db is a valid database connection
func SchemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("create schema_version: %w", err)
	}
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return int(v.Int64), nil
}

// InitDB enables WAL and foreign keys, then migrates the schema.
// PRE: db is a valid database connection
// POST: All tables are created, WAL mode enabled
func InitDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return MigrateDB(db)
}

// MigrateDB applies every migration newer than the recorded version, each
// in its own transaction.
// PRE: db is a valid database connection
// POST: SchemaVersion(db) == LatestSchemaVersion()
// INVARIANT: already-applied migrations are never re-run
func MigrateDB(db *sql.DB) error {
	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: record version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		slog.Info("schema_migrated", "version", m.version, "name", m.name)
	}
	return nil
}
