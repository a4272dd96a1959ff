package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/campusgig")
	t.Setenv("JWT_SECRET", "secret")

	cfg := Load()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, 10080, cfg.JWTExpiresMin)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 4, cfg.NotifyWorkers)
	assert.Equal(t, 5*time.Second, cfg.NotifyTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/campusgig")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("NOTIFY_WORKERS", "9")
	t.Setenv("JWT_EXPIRES_MIN", "not-a-number")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9, cfg.NotifyWorkers)
	assert.Equal(t, 10080, cfg.JWTExpiresMin)
}

func TestLoad_MissingRequiredPanics(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_SECRET", "secret")

	require.PanicsWithValue(t, "missing env: DB_DSN", func() { Load() })
}
