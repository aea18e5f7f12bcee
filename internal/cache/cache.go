// Package cache stores marketplace responses so repeated lookups within the
// TTL skip the network and the shared rate limiter.
//
// Redis is used when cache.redis_url is configured; otherwise an in-process
// map with the same TTL semantics backs the cache.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"marketscout/internal/config"
	"marketscout/internal/logging"
)

const keyPrefix = "marketscout:"

// Cache is a byte-oriented response cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// New builds the configured cache. A configured but unreachable Redis is an
// error so the daemon fails fast instead of silently hammering the marketplace.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Cache, error) {
	if cfg == nil {
		return NewMemory(time.Hour), nil
	}
	ttl := cfg.CacheTTL()
	url := strings.TrimSpace(cfg.Cache.RedisURL)
	if url == "" {
		return NewMemory(ttl), nil
	}
	rc, err := NewRedis(ctx, url, ttl)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("marketplace cache connected",
			logging.String(logging.FieldEventType, "cache_connected"),
			logging.Duration("ttl", ttl),
		)
	}
	return rc, nil
}

// Redis stores entries in Redis with a fixed TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis parses redisURL and verifies connectivity.
func NewRedis(ctx context.Context, redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

// Get returns the cached value for key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

// Set stores value under key with the cache TTL.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, keyPrefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process TTL cache.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty in-process cache. A non-positive ttl disables caching.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

// Get returns a live entry for key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

// Set stores value and sweeps expired entries.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	if m.ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, entry := range m.entries {
		if !now.Before(entry.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = memoryEntry{value: append([]byte(nil), value...), expires: now.Add(m.ttl)}
	return nil
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
