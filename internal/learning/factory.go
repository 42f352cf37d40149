package learning

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orbd/internal/config"
)

// NewStore creates a learning store from configuration.
//
// Backends:
//   - "memory": no durability, for tests and ephemeral runs
//   - "file" (default): JSONL journal at cfg.Path
//   - "sqlite": relational store at cfg.Path
func NewStore(cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil

	case "file", "":
		store, err := NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("learning journal opened", zap.String("path", cfg.Path))
		return store, nil

	case "sqlite":
		store, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("learning database opened", zap.String("path", cfg.Path))
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported learning store backend: %s (supported: memory, file, sqlite)", cfg.Backend)
	}
}
