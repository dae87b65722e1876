package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Run.CancelWait)
	assert.Equal(t, 10, cfg.Run.HistoryThreshold)
	assert.Equal(t, 6, cfg.Run.HistoryKeep)
	assert.Equal(t, 8, cfg.Run.MaxSteps)
}

func TestLoadYamlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
run:
  history_threshold: 20
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Run.HistoryThreshold)
	// Untouched fields keep their defaults.
	assert.Equal(t, 2*time.Second, cfg.Run.CancelWait)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "7001")
	t.Setenv("CANCEL_WAIT_MS", "500")
	t.Setenv("LLM_MODEL", "gpt-4o")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Run.CancelWait)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
