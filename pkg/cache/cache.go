// Package cache provides a Redis-backed result cache. The pipeline
// uses it to skip re-ingesting documents whose content and chunking
// settings have not changed.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ingest-worker/config"
	perrors "ingest-worker/pkg/errors"
)

// ErrCacheMiss is returned when a key is not in the cache.
var ErrCacheMiss = perrors.New(perrors.NotFoundError, "CACHE_MISS", "cache miss")

// Stats tracks cache effectiveness since startup
type Stats struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	Sets        int64     `json:"sets"`
	Errors      int64     `json:"errors"`
	LastUpdated time.Time `json:"last_updated"`
}

// Cache stores serialized ingest results in Redis with a TTL
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
	mu     sync.RWMutex
	stats  Stats
}

// New creates a cache on its own Redis connection
func New(redisConfig *config.RedisConfig, cacheConfig *config.CacheConfig, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisConfig.Host + ":" + redisConfig.Port,
		Password: redisConfig.Password,
		DB:       redisConfig.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, perrors.Wrap(err, perrors.NetworkError, "CACHE_CONNECTION_FAILED", "Failed to connect to Redis cache")
	}

	cache := &Cache{
		client: client,
		prefix: cacheConfig.KeyPrefix,
		ttl:    cacheConfig.TTL,
		logger: logger.With().Str("component", "cache").Logger(),
		stats:  Stats{LastUpdated: time.Now()},
	}

	cache.logger.Info().
		Str("prefix", cache.prefix).
		Dur("ttl", cache.ttl).
		Msg("Result cache initialized")

	return cache, nil
}

// Key joins parts into a namespaced cache key
func (c *Cache) Key(parts ...string) string {
	return c.prefix + ":" + strings.Join(parts, ":")
}

// Get returns the cached value for key, or ErrCacheMiss
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.update(func(s *Stats) { s.Misses++ })
		return nil, ErrCacheMiss
	}
	if err != nil {
		c.update(func(s *Stats) { s.Errors++ })
		return nil, perrors.Wrap(err, perrors.NetworkError, "CACHE_GET_FAILED", "Failed to read from cache")
	}

	c.update(func(s *Stats) { s.Hits++ })
	return value, nil
}

// Set stores value under key with the configured TTL
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.update(func(s *Stats) { s.Errors++ })
		return perrors.Wrap(err, perrors.NetworkError, "CACHE_SET_FAILED", "Failed to write to cache")
	}

	c.update(func(s *Stats) { s.Sets++ })
	return nil
}

// Delete removes a key from the cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.update(func(s *Stats) { s.Errors++ })
		return perrors.Wrap(err, perrors.NetworkError, "CACHE_DELETE_FAILED", "Failed to delete from cache")
	}
	return nil
}

// Exists reports whether key is cached
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, perrors.Wrap(err, perrors.NetworkError, "CACHE_EXISTS_FAILED", "Failed to check cache key")
	}
	return n > 0, nil
}

// Stats returns a snapshot of the cache counters
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Close releases the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) update(fn func(*Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.stats)
	c.stats.LastUpdated = time.Now()
}
