package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/avandermeer/docbatch/internal/config"
	"github.com/avandermeer/docbatch/internal/orchestrator"
	"github.com/avandermeer/docbatch/internal/store"
)

// env holds the wired-up runtime every command works against.
type env struct {
	cfg   *config.Config
	store *store.Store
	orch  *orchestrator.Orchestrator
	log   zerolog.Logger
}

func openEnv() (*env, error) {
	cfgPath := flagConfig
	if cfgPath == "" {
		home, err := homeDir()
		if err != nil {
			return nil, err
		}
		cfgPath = filepath.Join(home, ".docbatch", "config.yaml")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to prepare data directories: %w", err)
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	log := zerolog.Nop()
	if flagVerbose {
		log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	}

	orch := orchestrator.New(st, orchestrator.Options{
		BackupDir:        cfg.BackupDir(),
		DocumentsDir:     cfg.DocumentsDir(),
		PipelineTimeout:  time.Duration(cfg.Processing.PipelineTimeout) * time.Second,
		AutoCleanup:      cfg.Retention.AutoCleanup,
		CleanupAfterDays: cfg.Retention.CleanupAfterDays,
		Logger:           log,
	})

	return &env{cfg: cfg, store: st, orch: orch, log: log}, nil
}

func (e *env) close() {
	e.store.Close()
}
