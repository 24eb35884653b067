// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Preference store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Startup policies for a shared link that carries no filters.
const (
	BareURLKeep  = "keep"
	BareURLReset = "reset"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	APIBaseURL       string
	SiteURL          string
	ImageBaseURL     string
	DatabasePath     string
	PrefsDriver      string
	PrefsDatabaseURL string
	LogLevel         string
	AllowedUsers     []int64
	AdminUsers       []int64
	PageSize         int
	Debounce         time.Duration
	HTTPTimeout      time.Duration
	WatchInterval    time.Duration
	BareURLPolicy    string
}

type rawConfig struct {
	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	APIBaseURL       string        `env:"API_BASE_URL,required,notEmpty"`
	SiteURL          string        `env:"SITE_URL" envDefault:"https://omega-auto.vercel.app"`
	ImageBaseURL     string        `env:"IMAGE_BASE_URL"`
	DatabasePath     string        `env:"DATABASE_PATH" envDefault:"./data/bot.db"`
	PrefsDriver      string        `env:"PREFS_DRIVER" envDefault:"sqlite"`
	PrefsDatabaseURL string        `env:"PREFS_DATABASE_URL"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	AllowedUsers     string        `env:"ALLOWED_USERS"`
	AdminUsers       string        `env:"ADMIN_USERS"`
	PageSize         int           `env:"PAGE_SIZE" envDefault:"6"`
	Debounce         time.Duration `env:"DEBOUNCE" envDefault:"500ms"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	WatchInterval    time.Duration `env:"WATCH_INTERVAL" envDefault:"15m"`
	BareURLPolicy    string        `env:"BARE_URL_POLICY" envDefault:"keep"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return load(env.ToMap(os.Environ()))
}

// load parses vars, treating empty values as unset.
func load(vars map[string]string) (*Config, error) {
	set := make(map[string]string, len(vars))
	for k, v := range vars {
		if v != "" {
			set[k] = v
		}
	}

	var raw rawConfig
	if err := env.ParseWithOptions(&raw, env.Options{Environment: set}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	allowed, err := parseUserIDs("ALLOWED_USERS", raw.AllowedUsers)
	if err != nil {
		return nil, err
	}
	admins, err := parseUserIDs("ADMIN_USERS", raw.AdminUsers)
	if err != nil {
		return nil, err
	}

	switch raw.PrefsDriver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if raw.PrefsDatabaseURL == "" {
			return nil, fmt.Errorf("PREFS_DATABASE_URL is required for the %s driver", DriverPostgres)
		}
	default:
		return nil, fmt.Errorf("invalid PREFS_DRIVER %q", raw.PrefsDriver)
	}

	switch raw.BareURLPolicy {
	case BareURLKeep, BareURLReset:
	default:
		return nil, fmt.Errorf("invalid BARE_URL_POLICY %q", raw.BareURLPolicy)
	}

	if raw.PageSize < 1 {
		return nil, fmt.Errorf("PAGE_SIZE must be positive, got %d", raw.PageSize)
	}

	return &Config{
		TelegramBotToken: raw.TelegramBotToken,
		APIBaseURL:       strings.TrimRight(raw.APIBaseURL, "/"),
		SiteURL:          strings.TrimRight(raw.SiteURL, "/"),
		ImageBaseURL:     raw.ImageBaseURL,
		DatabasePath:     raw.DatabasePath,
		PrefsDriver:      raw.PrefsDriver,
		PrefsDatabaseURL: raw.PrefsDatabaseURL,
		LogLevel:         raw.LogLevel,
		AllowedUsers:     allowed,
		AdminUsers:       admins,
		PageSize:         raw.PageSize,
		Debounce:         raw.Debounce,
		HTTPTimeout:      raw.HTTPTimeout,
		WatchInterval:    raw.WatchInterval,
		BareURLPolicy:    raw.BareURLPolicy,
	}, nil
}

func parseUserIDs(name, raw string) ([]int64, error) {
	var ids []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in %s: %w", s, name, err)
		}
		ids = append(ids, uid)
	}
	return ids, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	return contains(c.AllowedUsers, userID)
}

// IsAdmin checks whether a user ID may view the admin dashboard.
// An empty admin list grants nobody access.
func (c *Config) IsAdmin(userID int64) bool {
	return contains(c.AdminUsers, userID)
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
