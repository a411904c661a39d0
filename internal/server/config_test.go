package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.Addr())
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "doko.db", cfg.Server.DatabasePath)
	assert.Equal(t, 200*time.Millisecond, cfg.Game.AfterPlayDelay())
	assert.Equal(t, 1500*time.Millisecond, cfg.Game.AfterTrickDelay())
}

func TestLoadConfigParsesHCL(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "doko.hcl")
	content := `
server {
  address       = "0.0.0.0"
  port          = 9000
  log_level     = "debug"
  database_path = "/var/lib/doko/doko.db"
}

game {
  after_play_delay_ms  = 50
  after_trick_delay_ms = 300
  seed                 = 42
}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "/var/lib/doko/doko.db", cfg.Server.DatabasePath)
	assert.Equal(t, 50*time.Millisecond, cfg.Game.AfterPlayDelay())
	assert.Equal(t, 300*time.Millisecond, cfg.Game.AfterTrickDelay())
	assert.Equal(t, int64(42), cfg.Game.Seed)
}

func TestLoadConfigFillsMissingFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "doko.hcl")
	content := `
server {
  port = 7000
}

game {}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:7000", cfg.Addr())
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, time.Duration(0), cfg.Game.AfterPlayDelay())
}

func TestLoadConfigRejectsBadHCL(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "doko.hcl")
	require.NoError(t, os.WriteFile(path, []byte("server {"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
