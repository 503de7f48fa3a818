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
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 1000, cfg.Preview.Limit)
	assert.Equal(t, 12*time.Hour, cfg.GetSessionTTL())
	assert.Equal(t, 5*time.Second, cfg.GetReadHeaderTimeout())
	assert.False(t, cfg.Optimizer.Enabled())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetplan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
optimizer:
  url: http://file-optimizer/optimize
  timeout: 10s
preview:
  limit: 50
logging:
  format: console
`), 0o644))

	t.Setenv("OPTIMIZER_URL", "http://env-optimizer/optimize")
	t.Setenv("RATE_RPS", "2.5")
	t.Setenv("PREVIEW_LIMIT", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "http://env-optimizer/optimize", cfg.Optimizer.URL)
	assert.Equal(t, 10*time.Second, cfg.Optimizer.GetTimeout())
	assert.Equal(t, 50, cfg.Preview.Limit)
	assert.Equal(t, 2.5, cfg.Server.RateRPS)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "fleetplan:session-events", cfg.Redis.Channel, "unset keys keep defaults")
}

func TestLoadBadValues(t *testing.T) {
	t.Setenv("RATE_BURST", "many")
	_, err := Load("")
	assert.ErrorContains(t, err, "RATE_BURST")

	t.Setenv("RATE_BURST", "")
	t.Setenv("PREVIEW_LIMIT", "0")
	_, err = Load("")
	assert.ErrorContains(t, err, "preview limit")
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestPublicMasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.Optimizer.Secret = "s3cret"
	pub := cfg.Public()
	assert.Equal(t, true, pub["HAS_OPTIMIZER_SECRET"])
	for _, v := range pub {
		assert.NotEqual(t, "s3cret", v)
	}
}
