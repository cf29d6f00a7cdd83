package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/desertthunder/anilistx/internal/shared"
)

// Store is a TTL key/value store of encoded responses.
type Store interface {
	// Get returns the value for key and whether it was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Purge(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// Sharer is implemented by stores whose entries outlive the process.
type Sharer interface {
	Shared() bool
}

// Shared reports whether entries written to s are visible to other processes.
func Shared(s Store) bool {
	sh, ok := s.(Sharer)
	return ok && sh.Shared()
}

// FromConfig builds a [RedisStore] when a redis URL is configured, otherwise a [MemoryStore].
func FromConfig(cfg shared.CacheConfig) (Store, error) {
	if cfg.RedisURL == "" {
		return NewMemoryStore(cfg.MaxEntries, cfg.TTL.Duration), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %v", shared.ErrInvalidConfig, err)
	}
	return NewRedisStore(redis.NewClient(opts), cfg.KeyPrefix), nil
}
