// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the process-wide runtime configuration.
type Config struct {
	// Addr is the gateway listen address.
	Addr string
	// DBPath is the sqlite database file.
	DBPath string
	// CORSOrigins are the allowed browser origins.
	CORSOrigins []string
	// SinkMode is "dev" (local only) or "prod" (forward upstream).
	SinkMode string
	// LatticeEndpoint is the upstream base URL, required in prod mode.
	LatticeEndpoint string
}

// Default returns the local-development configuration.
func Default() Config {
	return Config{
		Addr:        ":8000",
		DBPath:      "ghost_sentry.db",
		CORSOrigins: []string{"*"},
		SinkMode:    "dev",
	}
}

// Load reads configuration from the environment on top of the defaults. A
// .env file in the working directory is folded in first; its absence is not
// an error.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	cfg := Default()
	if v := os.Getenv("GS_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("GS_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	if v := os.Getenv("GS_SINK_MODE"); v != "" {
		cfg.SinkMode = v
	}
	cfg.LatticeEndpoint = os.Getenv("LATTICE_ENDPOINT")
	return cfg
}
