package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/telekom/exception-subscriptions/pkg/config"
)

// ErrNotFound is returned when no value is stored for a project/key pair.
var ErrNotFound = errors.New("option not found")

// OptionStore is a key/value store scoped by project.
type OptionStore interface {
	Get(ctx context.Context, project, key string) ([]byte, error)
	Set(ctx context.Context, project, key string, value []byte) error
	Delete(ctx context.Context, project, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// New opens the backend selected by cfg.Type.
func New(ctx context.Context, cfg config.Store, log *zap.SugaredLogger) (OptionStore, error) {
	log = log.Named("store")
	switch cfg.Type {
	case "", config.StoreMemory:
		log.Infow("Using in-memory option store")
		return NewMemoryStore(), nil
	case config.StoreSQLite:
		log.Infow("Using SQLite option store", "path", cfg.Path)
		return NewSQLiteStore(ctx, cfg.Path)
	case config.StoreRedis:
		log.Infow("Using Redis option store", "keyPrefix", cfg.KeyPrefix)
		return NewRedisStore(ctx, cfg.RedisURL, cfg.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

func validateKey(project, key string) error {
	if project == "" {
		return errors.New("project is required")
	}
	if key == "" {
		return errors.New("option key is required")
	}
	return nil
}
