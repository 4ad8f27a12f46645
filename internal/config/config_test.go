package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "primary", cfg.Processing.Pipeline)
	assert.Equal(t, 3, cfg.Processing.MaxRetries)
	assert.Equal(t, 300, cfg.Processing.PipelineTimeout)
	assert.False(t, cfg.Processing.AutoRollback)
	assert.Equal(t, 30, cfg.Retention.CleanupAfterDays)
	assert.True(t, cfg.Retention.AutoCleanup)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := []byte(`processing:
  pipeline: alternate
  max_retries: 5
  auto_rollback: true
`)
	require.NoError(t, os.WriteFile(configPath, content, 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "alternate", cfg.Processing.Pipeline)
	assert.Equal(t, 5, cfg.Processing.MaxRetries)
	assert.True(t, cfg.Processing.AutoRollback)
	// Defaults preserved for unset fields
	assert.Equal(t, 300, cfg.Processing.PipelineTimeout)
	assert.Equal(t, 30, cfg.Retention.CleanupAfterDays)
}

func TestLoadConfigFileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err, "missing config file should return defaults, not error")
	assert.Equal(t, "primary", cfg.Processing.Pipeline)
}

func TestPaths(t *testing.T) {
	cfg := Default()
	cfg.BaseDir = "/tmp/dbtest"

	assert.Equal(t, filepath.Join("/tmp/dbtest", "docbatch.db"), cfg.DBPath())
	assert.Equal(t, filepath.Join("/tmp/dbtest", "backups"), cfg.BackupDir())
	assert.Equal(t, filepath.Join("/tmp/dbtest", "documents"), cfg.DocumentsDir())
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.BaseDir = dir

	require.NoError(t, cfg.EnsureDirs())

	assert.DirExists(t, filepath.Join(dir, "backups"))
	assert.DirExists(t, filepath.Join(dir, "documents"))
}
