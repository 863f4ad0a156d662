package external

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/caregraph/caregraph-server/internal/domain"
)

const (
	defaultCacheTTL = 24 * time.Hour
	defaultLRUSize  = 512
)

// ResponseCache stores interpreter responses keyed by request content. It is
// two-level: a small in-process expirable LRU in front of an optional Redis
// backend shared across instances. Interpreter output for identical input is
// stable enough to cache aggressively.
type ResponseCache struct {
	lru    *expirable.LRU[string, string]
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewResponseCache creates the cache. Redis is attached only when enabled in
// the config and reachable; otherwise the cache runs in-process only.
func NewResponseCache(config domain.CacheConfig, logger *logrus.Logger) (*ResponseCache, error) {
	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	lruSize := config.LRUSize
	if lruSize <= 0 {
		lruSize = defaultLRUSize
	}
	lruTTL := config.LRUTTL
	if lruTTL <= 0 {
		lruTTL = ttl
	}

	cache := &ResponseCache{
		lru:    expirable.NewLRU[string, string](lruSize, nil, lruTTL),
		ttl:    ttl,
		logger: logger,
	}

	if config.RedisEnabled {
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opts.PoolSize = config.PoolSize
		opts.PoolTimeout = config.PoolTimeout
		opts.MaxRetries = config.MaxRetries

		client := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		cache.redis = client
	}

	return cache, nil
}

func cacheKey(raw string) string {
	return fmt.Sprintf("caregraph:interpreter:%x", sha256.Sum256([]byte(raw)))
}

// Get returns a cached response for the raw request key.
func (c *ResponseCache) Get(ctx context.Context, raw string) (string, bool) {
	key := cacheKey(raw)

	if val, ok := c.lru.Get(key); ok {
		return val, true
	}
	if c.redis == nil {
		return "", false
	}

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.WithError(err).Debug("Redis cache read failed")
		return "", false
	}
	c.lru.Add(key, val)
	return val, true
}

// Set stores a response. Redis write failures are logged and ignored; the
// in-process entry still serves this instance.
func (c *ResponseCache) Set(ctx context.Context, raw, value string) {
	key := cacheKey(raw)
	c.lru.Add(key, value)

	if c.redis == nil {
		return
	}
	if err := c.redis.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Debug("Redis cache write failed")
	}
}

// Close releases the Redis connection if one is attached.
func (c *ResponseCache) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
