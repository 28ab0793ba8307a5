// Package app assembles the store and its optional Redis layer from config.
// It is shared by the server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/folio/backend/internal/config"
	"github.com/folio/backend/internal/maintenance"
	"github.com/folio/backend/internal/repository"
)

const (
	purgeLockKey = "contacts:purge"
	purgeLockTTL = 10 * time.Minute
)

// Store is an opened contact store and the connections behind it.
type Store struct {
	Contacts repository.ContactRepository
	// DB is the liveness check for the health endpoint.
	DB repository.DB

	pool  *pgxpool.Pool
	redis *redis.Client
}

// OpenStore connects the configured driver. With REDIS_URL set, creates are
// wrapped by the Redis dedupe window.
func OpenStore(ctx context.Context, cfg config.Config) (*Store, error) {
	s := &Store{}

	switch cfg.StoreDriver {
	case config.StoreMemory:
		mem := repository.NewMemoryContactRepository()
		s.Contacts, s.DB = mem, mem
		slog.Warn("using in-memory contact store: data is lost on restart")
	default:
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.pool = pool
		s.Contacts, s.DB = repository.NewPgContactRepository(pool), pool
	}

	if cfg.RedisURL != "" {
		client, err := repository.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.redis = client
		s.Contacts = repository.NewDedupeContactRepository(s.Contacts, client, cfg.DedupeWindow)
		slog.Info("submission dedupe enabled", "window", cfg.DedupeWindow.String())
	}
	return s, nil
}

// PurgeLock returns the cross-replica purge lock, or nil without Redis.
func (s *Store) PurgeLock() maintenance.Lock {
	if s.redis == nil {
		return nil
	}
	return maintenance.NewRedisLock(s.redis, purgeLockKey, purgeLockTTL)
}

// Close releases every connection.
func (s *Store) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
