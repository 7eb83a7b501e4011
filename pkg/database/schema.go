package database

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaValidator checks that a database has the structure its caller expects.
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// RequireTables verifies that every named table exists.
func (v *SchemaValidator) RequireTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		exists, err := v.exists(ctx, "table", table)
		if err != nil {
			return fmt.Errorf("error checking table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("required table %s does not exist", table)
		}
	}
	return nil
}

// RequireIndexes verifies that every named index exists.
func (v *SchemaValidator) RequireIndexes(ctx context.Context, indexes ...string) error {
	for _, index := range indexes {
		exists, err := v.exists(ctx, "index", index)
		if err != nil {
			return fmt.Errorf("error checking index %s: %w", index, err)
		}
		if !exists {
			return fmt.Errorf("required index %s does not exist", index)
		}
	}
	return nil
}

// RequireColumns checks that a table has the expected columns with the
// declared types.
func (v *SchemaValidator) RequireColumns(ctx context.Context, table string, expected map[string]string) error {
	// TECHNICAL DISCOVERY: PRAGMA arguments cannot be bound, so the table name
	// is checked against sqlite_master before it is interpolated
	if err := v.RequireTables(ctx, table); err != nil {
		return err
	}

	rows, err := v.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]string)
	for rows.Next() {
		var (
			cid          int
			name         string
			dataType     string
			notNull      int
			defaultValue interface{}
			pk           int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		found[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for column, wantType := range expected {
		gotType, ok := found[column]
		if !ok {
			return fmt.Errorf("%s: column %s not found", table, column)
		}
		if gotType != wantType {
			return fmt.Errorf("%s: column %s has type %s, expected %s", table, column, gotType, wantType)
		}
	}
	return nil
}

func (v *SchemaValidator) exists(ctx context.Context, kind, name string) (bool, error) {
	var count int
	err := v.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
