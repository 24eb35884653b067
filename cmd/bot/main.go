package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"tyres_bot/internal/api"
	"tyres_bot/internal/bot"
	"tyres_bot/internal/config"
	"tyres_bot/internal/scheduler"
	"tyres_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	db, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Preferences and tokens may live elsewhere. Watches always stay in SQLite.
	var store storage.Storage = db
	switch cfg.PrefsDriver {
	case config.DriverPostgres:
		pg, err := storage.NewPostgres(ctx, cfg.PrefsDatabaseURL)
		if err != nil {
			log.Error("open preference store", "driver", cfg.PrefsDriver, "error", err)
			os.Exit(1)
		}
		defer func() { _ = pg.Close() }()
		store = storage.Combine(pg, db)
	case config.DriverMemory:
		store = storage.Combine(storage.NewMem(), db)
	}

	client := api.New(cfg.APIBaseURL, http.DefaultClient, log)
	client.SetTimeout(cfg.HTTPTimeout)

	b, err := bot.New(cfg.TelegramBotToken, client, store, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(db, client, b, cfg.WatchInterval, log)
	sched.SetImageBaseURL(cfg.ImageBaseURL)

	log.Info("starting bot", "api", cfg.APIBaseURL, "prefs", cfg.PrefsDriver)

	go sched.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
