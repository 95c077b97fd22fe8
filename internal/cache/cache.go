// Package cache implements the cache-aside layer in front of the source
// adapters. A missing or unreachable store degrades reads to "always
// compute"; it never fails the read path.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketmux/marketmux/internal/metrics"
)

// Store abstracts the backing key-value store. In production this is Redis;
// in tests an in-memory fake. Get reports (value, found, error); a missing
// key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Cache wraps a Store with JSON serialization and error absorption. Store
// failures are logged and treated as a miss (Get) or a no-op (Set), so cache
// unavailability never surfaces to callers.
type Cache struct {
	store      Store
	defaultTTL time.Duration
	log        zerolog.Logger
}

// New creates a Cache. defaultTTL applies when a call site passes ttl <= 0.
func New(store Store, defaultTTL time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		store:      store,
		defaultTTL: defaultTTL,
		log:        log.With().Str("component", "cache").Logger(),
	}
}

// Get unmarshals the value under key into dest and reports whether it was
// found. Store errors and stale/corrupt entries both count as a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("cache get failed")
		metrics.CacheOps.WithLabelValues("get", "error").Inc()
		return false
	}
	if !found {
		metrics.CacheOps.WithLabelValues("get", "miss").Inc()
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("cache entry unmarshal failed")
		metrics.CacheOps.WithLabelValues("get", "error").Inc()
		return false
	}
	metrics.CacheOps.WithLabelValues("get", "hit").Inc()
	return true
}

// Set stores value under key with the given TTL. Failures are logged and
// swallowed.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("cache value marshal failed")
		return
	}
	if err := c.store.Set(ctx, key, string(raw), ttl); err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("cache set failed")
		metrics.CacheOps.WithLabelValues("set", "error").Inc()
		return
	}
	metrics.CacheOps.WithLabelValues("set", "ok").Inc()
}

// GetOrSet returns the cached value under key if present, otherwise invokes
// compute, stores the result under key with the given TTL, and returns it.
// There is no single-flight protection: concurrent callers racing on the same
// key during a miss window each compute independently. Computations here are
// idempotent reads, so the overwrites are equivalent.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}

	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.Set(ctx, key, value, ttl)
	return value, nil
}
