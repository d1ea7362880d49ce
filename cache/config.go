package cache

import "time"

// GraphCacheConfig configures a Coordinator. Field names and types match
// the planner's external interface exactly: InferenceTTL and
// EnableCompression are required, MaxCacheSize is optional, and RedisURL
// is additive — empty means bbolt-only. MaxCacheSize is stored but not read
// by Coordinator: no size limit is enforced on the cache.
type GraphCacheConfig struct {
	InferenceTTL      time.Duration
	MaxCacheSize      *int64
	EnableCompression bool
	RedisURL          string
}
