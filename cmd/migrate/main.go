package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/folio/backend/internal/config"
	"github.com/folio/backend/internal/logging"
	"github.com/folio/backend/internal/repository"
	"github.com/folio/backend/migrations"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate [command]

Commands:
  (default)   apply pending migrations
  reset       drop all tables and recreate from the consolidated schema
  fresh       drop all tables and apply every migration in order`)
	os.Exit(1)
}

func main() {
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, "contact-migrate")

	ctx := context.Background()
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("connect failed", "error", err)
	}
	defer pool.Close()

	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "":
		up(ctx, pool)
	case "reset":
		dropAll(ctx, pool)
		if err := migrations.Consolidated(ctx, pool); err != nil {
			logging.Fatal("consolidated apply failed", "error", err)
		}
		slog.Info("consolidated schema applied")
	case "fresh":
		dropAll(ctx, pool)
		up(ctx, pool)
	default:
		usage()
	}
}

func up(ctx context.Context, pool *pgxpool.Pool) {
	n, err := migrations.Up(ctx, pool)
	if err != nil {
		logging.Fatal("migration failed", "error", err)
	}
	if n == 0 {
		slog.Info("all migrations already applied")
		return
	}
	slog.Info("migrations completed", "count", n)
}

func dropAll(ctx context.Context, pool *pgxpool.Pool) {
	slog.Info("dropping all tables")
	if err := migrations.DropAll(ctx, pool); err != nil {
		logging.Fatal("drop all failed", "error", err)
	}
	slog.Info("all tables dropped")
}
