package eventstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orbd/internal/config"
	"github.com/fyrsmithlabs/orbd/internal/event"
)

// NewStore creates an event store from configuration.
//
// Backends:
//   - "memory": no durability, for tests and ephemeral runs
//   - "file" (default): JSONL journal at cfg.Path
//   - "sqlite": relational store at cfg.Path
func NewStore(cfg config.StoreConfig, logger *zap.Logger) (event.Store, error) {
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
		logger.Info("event journal opened", zap.String("path", cfg.Path))
		return store, nil

	case "sqlite":
		store, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("event database opened", zap.String("path", cfg.Path))
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported event store backend: %s (supported: memory, file, sqlite)", cfg.Backend)
	}
}
