// Package migrations embeds the SQL schema and applies it to PostgreSQL.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed *.sql
var files embed.FS

const (
	dropAllFile      = "000_drop_all.sql"
	consolidatedFile = "000_consolidated.sql"
)

// upFiles returns the *.up.sql names in apply order.
func upFiles() ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func ensureSchemaMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	return err
}

// Up applies every migration not yet recorded in schema_migrations and
// returns how many ran.
func Up(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	if err := ensureSchemaMigrations(ctx, pool); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	names, err := upFiles()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, filename := range names {
		name := strings.TrimSuffix(filename, ".up.sql")

		var exists bool
		if err := pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE name=$1)", name).Scan(&exists); err != nil {
			return applied, fmt.Errorf("check migration %s: %w", name, err)
		}
		if exists {
			continue
		}

		sql, err := files.ReadFile(filename)
		if err != nil {
			return applied, err
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, "INSERT INTO schema_migrations (name) VALUES ($1)", name); err != nil {
			return applied, fmt.Errorf("record migration %s: %w", name, err)
		}
		applied++
		slog.Info("migration completed", "migration", name)
	}
	return applied, nil
}

// DropAll drops every table owned by the schema.
func DropAll(ctx context.Context, pool *pgxpool.Pool) error {
	return execFile(ctx, pool, dropAllFile)
}

// Consolidated applies the single-file schema and marks every migration applied.
func Consolidated(ctx context.Context, pool *pgxpool.Pool) error {
	if err := execFile(ctx, pool, consolidatedFile); err != nil {
		return err
	}
	if err := ensureSchemaMigrations(ctx, pool); err != nil {
		return err
	}
	names, err := upFiles()
	if err != nil {
		return err
	}
	for _, filename := range names {
		name := strings.TrimSuffix(filename, ".up.sql")
		if _, err := pool.Exec(ctx, "INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT DO NOTHING", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

func execFile(ctx context.Context, pool *pgxpool.Pool, name string) error {
	sql, err := files.ReadFile(name)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("exec %s: %w", name, err)
	}
	return nil
}
