package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.1.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
	{
		Version: "1.1.0",
		Up:      migrationV11Up,
		Down:    migrationV11Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Runs table: one chunking of one repository
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    root_path TEXT NOT NULL,
    corpus_hash TEXT NOT NULL,
    strategy TEXT NOT NULL,
    model TEXT NOT NULL,
    max_tokens_per_chunk INTEGER NOT NULL,
    overlap INTEGER DEFAULT 0,
    total_files INTEGER DEFAULT 0,
    total_chunks INTEGER DEFAULT 0,
    total_tokens INTEGER DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_hash ON runs(corpus_hash);
CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root_path);

-- Chunks table. Chunk ids are deterministic, so the same id can appear in
-- several runs.
CREATE TABLE IF NOT EXISTS chunks (
    run_id TEXT NOT NULL,
    chunk_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    title TEXT NOT NULL,
    token_count INTEGER NOT NULL,
    metadata TEXT NOT NULL,
    context_info TEXT NOT NULL,
    previous_chunk_id TEXT,
    next_chunk_id TEXT,
    related_files TEXT NOT NULL,
    summary TEXT,
    PRIMARY KEY (run_id, chunk_id),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_position ON chunks(run_id, position);
CREATE INDEX IF NOT EXISTS idx_chunks_chunk ON chunks(chunk_id);

-- Files and fragments of each chunk
CREATE TABLE IF NOT EXISTS chunk_files (
    run_id TEXT NOT NULL,
    chunk_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    path TEXT NOT NULL,
    extension TEXT,
    content TEXT NOT NULL,
    size_bytes INTEGER,
    lines INTEGER,
    tokens INTEGER NOT NULL,
    is_partial BOOLEAN DEFAULT 0,
    original_path TEXT,
    part_index INTEGER,
    total_parts INTEGER,
    PRIMARY KEY (run_id, chunk_id, position),
    FOREIGN KEY (run_id, chunk_id) REFERENCES chunks(run_id, chunk_id) ON DELETE CASCADE
);

-- Dependencies that cross chunk boundaries
CREATE TABLE IF NOT EXISTS cross_references (
    run_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    from_chunk TEXT NOT NULL,
    to_chunk TEXT NOT NULL,
    file TEXT NOT NULL,
    referenced_file TEXT NOT NULL,
    PRIMARY KEY (run_id, position),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS cross_references;
DROP TABLE IF EXISTS chunk_files;
DROP TABLE IF EXISTS chunks;
DROP TABLE IF EXISTS runs;
DROP TABLE IF EXISTS schema_version;
`

const migrationV11Up = `
ALTER TABLE runs ADD COLUMN duration_ms INTEGER DEFAULT 0;
CREATE INDEX IF NOT EXISTS idx_chunk_files_path ON chunk_files(run_id, path);
`

const migrationV11Down = `
DROP INDEX IF EXISTS idx_chunk_files_path;
ALTER TABLE runs DROP COLUMN duration_ms;
`

// SchemaVersion returns the highest applied migration version, or 0.0.0 for
// an empty database.
func SchemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	current := semver.MustParse("0.0.0")

	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return current, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// applied_at has second resolution, so versions are compared, not times.
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(s)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", s, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	currentVersion, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return errors.New("no migrations to rollback")
	}

	var migration *Migration
	for i := range AllMigrations {
		v, err := semver.NewVersion(AllMigrations[i].Version)
		if err == nil && v.Equal(current) {
			migration = &AllMigrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	// The first migration drops schema_version itself.
	if migration.Version == AllMigrations[0].Version {
		return nil
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}

	return nil
}
