package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"tyres_bot/migrations"
)

type migrateEnv struct {
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/bot.db"`
}

const usage = `Usage: migrate [-db path] <command> [args]

Commands:
  up                 Migrate to the latest version
  up-by-one          Migrate one version up
  up-to VERSION      Migrate up to VERSION
  down               Roll back one version
  down-to VERSION    Roll back to VERSION
  redo               Re-run the latest migration
  reset              Roll back all migrations
  status             Show migration status
  version            Show current version
`

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var e migrateEnv
	if err := env.Parse(&e); err != nil {
		log.Error("parse env", "error", err)
		os.Exit(1)
	}

	dbPath := flag.String("db", e.DatabasePath, "path to sqlite database")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Error("open database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(migrations.Dialect); err != nil {
		log.Error("set dialect", "error", err)
		os.Exit(1)
	}

	cmd := args[0]
	if err := goose.RunContext(ctx, cmd, db, ".", args[1:]...); err != nil {
		log.Error("run migration command", "command", cmd, "path", *dbPath, "error", err)
		os.Exit(1)
	}
}
