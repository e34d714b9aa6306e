package builder

import "github.com/geoinfer/metering/internal/models"

// WithSummaryCache enables the Redis-backed credits summary cache.
func (b *Builder) WithSummaryCache(redisURL string, ttlSeconds int) *Builder {
	b.cfg.Cache = models.CacheConfig{
		Enabled:    true,
		RedisURL:   redisURL,
		TTLSeconds: ttlSeconds,
	}
	return b
}
