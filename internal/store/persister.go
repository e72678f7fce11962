package store

import (
	"context"

	"github.com/rs/zerolog"
)

// Persister is durable key/value storage for the persisted record
type Persister interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// NoopPersister is used when persistence is disabled
type NoopPersister struct{}

func NewNoopPersister() *NoopPersister { return &NoopPersister{} }

func (p *NoopPersister) Load(_ context.Context, _ string) ([]byte, bool, error) { return nil, false, nil }
func (p *NoopPersister) Save(_ context.Context, _ string, _ []byte) error       { return nil }
func (p *NoopPersister) Close() error                                           { return nil }

// NewPersister creates the persister selected by configuration
func NewPersister(ctx context.Context, cfg PersistConfig, logger zerolog.Logger) (Persister, error) {
	switch cfg.Mode {
	case ModeFile:
		logger.Info().Str("dir", cfg.Dir).Msg("persisting view state to file")
		return NewFilePersister(cfg.Dir), nil
	case ModeSQLite:
		logger.Info().Str("path", cfg.SQLitePath).Msg("persisting view state to sqlite")
		return OpenSQLite(ctx, cfg.SQLitePath)
	case ModeDynamo:
		return NewDynamoPersister(ctx, cfg.Dynamo, logger)
	default:
		logger.Info().Msg("view state persistence disabled (STORAGE_MODE=none)")
		return NewNoopPersister(), nil
	}
}
