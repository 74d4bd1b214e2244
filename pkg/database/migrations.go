package database

import (
	"database/sql"
	"fmt"
)

// Migration is one schema step, applied transactionally and recorded in
// schema_migrations.
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// Migrations are compiled in rather than loaded from a directory so the
// binary carries its own schema.
var Migrations = []Migration{
	{
		Version:     "001",
		Description: "create messages table",
		SQL: `
			CREATE TABLE IF NOT EXISTS messages (
				id          TEXT PRIMARY KEY,
				room_code   TEXT NOT NULL,
				sender_id   TEXT NOT NULL,
				sender_name TEXT NOT NULL,
				text        TEXT NOT NULL DEFAULT '',
				image_url   TEXT NOT NULL DEFAULT '',
				timestamp   DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_messages_room_time
				ON messages(room_code, timestamp);
		`,
	},
	{
		Version:     "002",
		Description: "create questions table",
		SQL: `
			CREATE TABLE IF NOT EXISTS questions (
				id         TEXT PRIMARY KEY,
				level      TEXT NOT NULL,
				content    TEXT NOT NULL,
				difficulty INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_questions_level
				ON questions(level);
		`,
	},
}

// MigrationManager applies pending migrations and tracks applied versions.
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a migration manager for an open pool.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// ApplyMigrations applies every built-in migration that has not been
// recorded yet. Each migration runs in its own transaction.
func (m *MigrationManager) ApplyMigrations() error {
	if err := m.createMigrationTable(); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, migration := range Migrations {
		if applied[migration.Version] {
			continue
		}
		if err := m.apply(migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
	}

	return nil
}

func (m *MigrationManager) createMigrationTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (m *MigrationManager) appliedVersions() (map[string]bool, error) {
	rows, err := m.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (m *MigrationManager) apply(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return fmt.Errorf("migration SQL failed: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`,
		migration.Version, migration.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
