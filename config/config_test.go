package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
environment: production
database:
  dsn: postgresql://portal@db:5432/portal
worker:
  batch_size: 25
elastic:
  prefix: acme
`), 0o600))

	SetConfigFile(file)
	t.Cleanup(func() { SetConfigFile("") })

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "postgresql://portal@db:5432/portal", cfg.DB.DSN)
	assert.Equal(t, 25, cfg.Worker.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Worker.ProcessingInterval)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address)
	assert.Equal(t, "acme-contents", FormatIndex(cfg, "contents"))
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("environment: production\n"), 0o600))

	SetConfigFile(file)
	t.Cleanup(func() { SetConfigFile("") })
	t.Setenv("PORTAL_WORKER_PARALLELISM", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Worker.Parallelism)
}
