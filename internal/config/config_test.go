package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"GS_ADDR", "GS_DB_PATH", "CORS_ORIGINS", "GS_SINK_MODE", "LATTICE_ENDPOINT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, "ghost_sentry.db", cfg.DBPath)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "dev", cfg.SinkMode)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("GS_ADDR", ":9000")
	t.Setenv("GS_DB_PATH", "/tmp/test.db")
	t.Setenv("GS_SINK_MODE", "prod")
	t.Setenv("LATTICE_ENDPOINT", "https://lattice.example.com")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "prod", cfg.SinkMode)
	assert.Equal(t, "https://lattice.example.com", cfg.LatticeEndpoint)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
}
