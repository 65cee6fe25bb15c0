package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching computed metric values.
// Supports two-phase caching: local LRU plus Redis for multi-node
// deployments.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetResult retrieves a cached metric evaluation result.
	GetResult(ctx context.Context, key string) (*CachedResult, error)

	// SetResult caches a metric evaluation result. Staleness beyond
	// the TTL always triggers recomputation.
	SetResult(ctx context.Context, key string, result *CachedResult, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CachedResult is a serialized metric value. Defined distinguishes a
// legitimate zero from an undefined result (zero denominator, empty
// aggregate); the two must never be conflated.
type CachedResult struct {
	MetricCode string  `json:"metricCode"`
	Value      float64 `json:"value"`
	Defined    bool    `json:"defined"`
	ComputedAt string  `json:"computedAt"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
