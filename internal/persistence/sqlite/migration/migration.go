// Package migration applies the embedded schema migrations in sequential
// order, tracking applied versions in a schema_migrations table.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Migration represents one schema change with its metadata and SQL content.
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// Apply executes all pending migrations against the database. Each migration
// runs inside its own transaction; a failure stops the sequence and leaves
// earlier migrations applied.
func Apply(ctx context.Context, db *sql.DB) error {
	if err := initializeVersionTable(ctx, db); err != nil {
		return fmt.Errorf("failed to initialize version table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read applied versions: %w", err)
	}

	for _, m := range Migrations() {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if err := executeMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %s (%s): %w", m.Version, m.Description, err)
		}
	}

	return nil
}

// AppliedVersions returns the ordered list of migration versions recorded in
// the version table.
func AppliedVersions(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

func initializeVersionTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]struct{}, error) {
	versions, err := AppliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}
	applied := make(map[string]struct{}, len(versions))
	for _, version := range versions {
		applied[version] = struct{}{}
	}
	return applied, nil
}

func executeMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	for i, stmt := range splitStatements(m.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute statement %d: %w", i+1, err)
		}
	}

	appliedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Description, appliedAt,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func splitStatements(script string) []string {
	parts := strings.Split(script, ";")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		if stmt := strings.TrimSpace(part); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
