package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type ProcessingConfig struct {
	Pipeline        string `yaml:"pipeline"`
	MaxRetries      int    `yaml:"max_retries"`
	PipelineTimeout int    `yaml:"pipeline_timeout"`
	AutoRollback    bool   `yaml:"auto_rollback"`
}

type RetentionConfig struct {
	CleanupAfterDays int  `yaml:"cleanup_after_days"`
	AutoCleanup      bool `yaml:"auto_cleanup"`
}

type Config struct {
	Processing ProcessingConfig `yaml:"processing"`
	Retention  RetentionConfig  `yaml:"retention"`
	BaseDir    string           `yaml:"-"`
}

func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Processing: ProcessingConfig{
			Pipeline:        "primary",
			MaxRetries:      3,
			PipelineTimeout: 300,
		},
		Retention: RetentionConfig{
			CleanupAfterDays: 30,
			AutoCleanup:      true,
		},
		BaseDir: filepath.Join(home, ".docbatch"),
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Ensure defaults for zero values
	if cfg.Processing.Pipeline == "" {
		cfg.Processing.Pipeline = "primary"
	}
	if cfg.Processing.MaxRetries == 0 {
		cfg.Processing.MaxRetries = 3
	}
	if cfg.Processing.PipelineTimeout == 0 {
		cfg.Processing.PipelineTimeout = 300
	}
	if cfg.Retention.CleanupAfterDays == 0 {
		cfg.Retention.CleanupAfterDays = 30
	}
	if cfg.BaseDir == "" {
		home, _ := os.UserHomeDir()
		cfg.BaseDir = filepath.Join(home, ".docbatch")
	}

	return cfg, nil
}

// DBPath returns the path of the SQLite state database.
func (c *Config) DBPath() string {
	return filepath.Join(c.BaseDir, "docbatch.db")
}

// BackupDir returns the root of the snapshot backup tree. Each snapshot
// owns a subdirectory named by its snapshot id.
func (c *Config) BackupDir() string {
	return filepath.Join(c.BaseDir, "backups")
}

// DocumentsDir returns the managed directory processed documents are
// persisted into.
func (c *Config) DocumentsDir() string {
	return filepath.Join(c.BaseDir, "documents")
}

func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.BackupDir(),
		c.DocumentsDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}
