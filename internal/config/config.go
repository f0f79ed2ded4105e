package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultAppID    = "default-app-id"
	DefaultRingtone = "Default Beep"
)

// StoreConfig selects the document store backend. It arrives as one JSON blob
// in STORE_CONFIG, e.g. {"driver":"postgres","dsn":"postgres://..."}.
type StoreConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken   string
	DatabaseURL     string
	ReportInterval  time.Duration
	DailyReportTime string

	Store StoreConfig
	AppID string

	// InitialAuthToken signs the owner in with a custom token instead of an
	// anonymous identity.
	InitialAuthToken string
	OwnerTelegramID  int64
	AuthSecret       string

	Ringtone         string
	TranscribeURL    string
	TranscribeAPIKey string
	LogLevel         string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken:    env("TELEGRAM_TOKEN"),
		DatabaseURL:      env("DATABASE_URL"),
		ReportInterval:   parseInterval(env("REPORT_INTERVAL_HOURS")),
		DailyReportTime:  env("DAILY_REPORT_TIME"),
		AppID:            env("APP_ID"),
		InitialAuthToken: env("INITIAL_AUTH_TOKEN"),
		AuthSecret:       env("AUTH_SECRET"),
		Ringtone:         env("RINGTONE"),
		TranscribeURL:    env("TRANSCRIBE_URL"),
		TranscribeAPIKey: env("TRANSCRIBE_API_KEY"),
		LogLevel:         env("LOG_LEVEL"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "daily_tracker.db"
	}

	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = 5 * time.Hour
	}

	if cfg.AppID == "" {
		cfg.AppID = DefaultAppID
	}

	if cfg.Ringtone == "" {
		cfg.Ringtone = DefaultRingtone
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	store, err := parseStoreConfig(env("STORE_CONFIG"), cfg.DatabaseURL)
	if err != nil {
		return cfg, err
	}
	cfg.Store = store

	if raw := env("OWNER_TELEGRAM_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("OWNER_TELEGRAM_ID must be a number: %w", err)
		}
		cfg.OwnerTelegramID = id
	}

	if cfg.InitialAuthToken != "" && cfg.OwnerTelegramID == 0 {
		return cfg, fmt.Errorf("OWNER_TELEGRAM_ID is required with INITIAL_AUTH_TOKEN")
	}

	if cfg.AuthSecret == "" {
		if cfg.InitialAuthToken != "" {
			return cfg, fmt.Errorf("AUTH_SECRET is required with INITIAL_AUTH_TOKEN")
		}
		// Issued tokens stop verifying after a restart.
		cfg.AuthSecret = uuid.NewString()
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseStoreConfig(raw, fallbackDSN string) (StoreConfig, error) {
	sc := StoreConfig{Driver: DriverSQLite}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &sc); err != nil {
			return sc, fmt.Errorf("STORE_CONFIG is not valid JSON: %w", err)
		}
	}

	sc.Driver = strings.ToLower(strings.TrimSpace(sc.Driver))
	switch sc.Driver {
	case "", DriverSQLite:
		sc.Driver = DriverSQLite
		if sc.DSN == "" {
			sc.DSN = fallbackDSN
		}
	case DriverPostgres:
		if sc.DSN == "" {
			return sc, fmt.Errorf("STORE_CONFIG: postgres requires a dsn")
		}
	default:
		return sc, fmt.Errorf("STORE_CONFIG: unknown driver %q", sc.Driver)
	}
	return sc, nil
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
