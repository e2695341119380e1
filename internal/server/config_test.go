package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lox/voterps/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voterps.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, game.DefaultConfig(), cfg.Rules())
	assert.Equal(t, "localhost:8080", cfg.Server.Addr)
	assert.Equal(t, AuthModeNone, cfg.Auth.Mode)
	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigMergesBlocks(t *testing.T) {
	path := writeConfig(t, `
server {
  addr = ":9000"
  seed = 42
}

game {
  initial_credits = 50
  hand_size       = 2
  retain_voters_on_disconnect = true
}

auth {
  mode   = "jwt"
  secret = "s3cret"
}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, int64(42), cfg.Server.Seed)

	rules := cfg.Rules()
	assert.Equal(t, 50, rules.InitialCredits)
	assert.Equal(t, 2, rules.HandSize)
	assert.Equal(t, 30, rules.MinDeckSize)
	assert.Equal(t, 20, rules.MaxVoters)
	assert.True(t, rules.RetainPlayersOnDisconnect)
	assert.True(t, rules.RetainVotersOnDisconnect)

	assert.Equal(t, AuthModeJWT, cfg.Auth.Mode)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
}

func TestLoadConfigRejectsBadHCL(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `server { addr = `))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `server { port = 8080 }`))
	assert.Error(t, err)
}

func TestApplyEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server { addr = ":9000" }
storage { driver = "memory" }
`)
	t.Setenv("VOTERPS_ADDR", ":7000")
	t.Setenv("VOTERPS_MAX_VOTERS", "3")
	t.Setenv("VOTERPS_RETAIN_PLAYERS_ON_DISCONNECT", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver, "unset variables keep file values")
	assert.Equal(t, 3, cfg.Rules().MaxVoters)
	assert.False(t, cfg.Rules().RetainPlayersOnDisconnect)
}

func TestApplyEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("VOTERPS_HAND_SIZE", "three")
	assert.Error(t, DefaultConfig().ApplyEnv())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = " " }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }},
		{"zero credits", func(c *Config) { c.Game.InitialCredits = 0 }},
		{"deck too small", func(c *Config) { c.Game.MinDeckSize = 5 }},
		{"jwt without secret", func(c *Config) { c.Auth.Mode = AuthModeJWT }},
		{"http without url", func(c *Config) { c.Auth.Mode = AuthModeHTTP }},
		{"unknown auth mode", func(c *Config) { c.Auth.Mode = "ldap" }},
		{"sqlite without path", func(c *Config) { c.Storage.Path = "" }},
		{"http storage without url", func(c *Config) { c.Storage.Driver = StorageHTTP }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"zero queue", func(c *Config) { c.Storage.QueueSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
