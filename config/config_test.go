package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "equilibrio-engine", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, "America/Bogota", cfg.App.Timezone)
	assert.NotNil(t, cfg.App.Location)

	assert.Equal(t, 10, cfg.Database.MaxConns)
	assert.True(t, cfg.Database.Migrate)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.False(t, cfg.Profile.Enabled())

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Empty(t, cfg.HTTP.ServiceTokenHashes)

	assert.Equal(t, 10*time.Minute, cfg.Engine.TemplateCacheTTL)
	assert.Equal(t, 10, cfg.Engine.EventWorkers)

	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("PROFILE_API_URL", "https://perfiles.internal")
	t.Setenv("ENGINE_EVENT_WORKERS", "4")
	t.Setenv("HTTP_SERVICE_TOKEN_HASHES", " hash-a , hash-b ,,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.App.Environment)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.True(t, cfg.Profile.Enabled())
	assert.Equal(t, 4, cfg.Engine.EventWorkers)
	assert.Equal(t, []string{"hash-a", "hash-b"}, cfg.HTTP.ServiceTokenHashes)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-number")
	t.Setenv("APP_DEBUG", "maybe")
	t.Setenv("DATABASE_CONN_MAX_LIFETIME", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.False(t, cfg.App.Debug)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Marte/Olympus")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timezone")
}

func TestValidate_ProductionRequirements(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required in production")
	assert.Contains(t, err.Error(), "HTTP_SERVICE_TOKEN_HASHES is required in production")

	t.Setenv("DATABASE_URL", "postgres://app:secreto@db:5432/equilibrio")
	t.Setenv("HTTP_SERVICE_TOKEN_HASHES", "hash-a")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestValidate_PortBounds(t *testing.T) {
	t.Setenv("HTTP_PORT", "70000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_PORT must be 1-65535")
}

func TestValidate_EventWorkers(t *testing.T) {
	t.Setenv("ENGINE_EVENT_WORKERS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENGINE_EVENT_WORKERS must be at least 1")
}
