package database

import (
	"database/sql"
	"fmt"
)

// SchemaValidator verifies a migrated database has the structures the
// manager relies on. Used at startup and in deployment checks.
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a schema validator for an open pool.
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// ValidateTablesExist verifies all required tables are present.
func (v *SchemaValidator) ValidateTablesExist() error {
	requiredTables := map[string]string{
		"messages":          "chat history storage",
		"questions":         "question bank",
		"schema_migrations": "migration tracking",
	}

	for table, description := range requiredTables {
		exists, err := v.tableExists(table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}

	return nil
}

// ValidateIndexes verifies the query-path indexes exist.
func (v *SchemaValidator) ValidateIndexes() error {
	requiredIndexes := map[string]string{
		"idx_messages_room_time": "history backfill and purge",
		"idx_questions_level":    "question bank load",
	}

	for index, purpose := range requiredIndexes {
		exists, err := v.indexExists(index)
		if err != nil {
			return fmt.Errorf("error checking index %s (%s): %w", index, purpose, err)
		}
		if !exists {
			return fmt.Errorf("required index %s (%s) does not exist", index, purpose)
		}
	}

	return nil
}

func (v *SchemaValidator) tableExists(name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&count)
	return count > 0, err
}

func (v *SchemaValidator) indexExists(name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`, name,
	).Scan(&count)
	return count > 0, err
}
