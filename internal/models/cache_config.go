package models

// CacheConfig holds configuration for the Redis-backed credits summary
// cache (optional).
type CacheConfig struct {
	Enabled    bool   `json:"enabled,omitzero" yaml:"enabled"`
	RedisURL   string `json:"redis_url,omitzero" yaml:"redis_url"`
	TTLSeconds int    `json:"ttl_seconds,omitzero" yaml:"ttl_seconds"`
}
