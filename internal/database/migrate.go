package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"github.com/iliyamo/guesthouse-admin/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Statements splits the embedded schema into individual statements.
func Statements() []string {
	parts := strings.Split(schemaSQL, ";\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Migrate creates missing tables and seeds the permission catalogue. Every
// statement is idempotent, so it is safe to run on each start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range Statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	for _, p := range model.PermissionCatalogue {
		if _, err := db.ExecContext(ctx,
			`INSERT IGNORE INTO m_permission (permission_name, description) VALUES (?, ?)`,
			p.Name, p.Description); err != nil {
			return fmt.Errorf("seed permission %s: %w", p.Name, err)
		}
	}
	return nil
}
