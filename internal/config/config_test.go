package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, time.Hour, cfg.Scheduler.ExpiryInterval)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.ReminderOffset)
	assert.False(t, cfg.Invites.RequireEmailMatch)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file:test.db")
	t.Setenv("AUTH_TOKEN_TTL", "2h")
	t.Setenv("INVITES_REQUIRE_EMAIL_MATCH", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:test.db", cfg.Database.DSN)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Invites.RequireEmailMatch)
}

func TestLoad_RejectsPlaceholderSecretInRelease(t *testing.T) {
	t.Setenv("SERVER_GIN_MODE", "release")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
}
