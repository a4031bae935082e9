package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("SWEEP_INTERVAL", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("PORT", "")
	t.Setenv("SEED_DATA", "")
	t.Setenv("DB_NAME", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 24*time.Hour, cfg.SweepInterval)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.SeedData)
	assert.Contains(t, cfg.DatabaseURL, "host=db.internal")
	assert.Contains(t, cfg.DatabaseURL, "dbname=rentals")
}

func TestLoadDatabaseURLOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/x?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/x?sslmode=disable", cfg.DatabaseURL)
}

func TestLoadCORSOrigins(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadInvalidSweepInterval(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "daily")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SWEEP_INTERVAL", "-1h")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadInvalidSeedFlag(t *testing.T) {
	t.Setenv("SEED_DATA", "maybe")
	_, err := Load()
	assert.Error(t, err)
}
