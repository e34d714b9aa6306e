package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/geoinfer/metering/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const defaultSummaryTTL = 30 * time.Second

// SummaryCache is a short-TTL Redis cache for the credits summary read
// path. Best effort: cache failures are logged and treated as misses, and
// every write to the ledger invalidates the organization's entry.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSummaryCache(cfg models.CacheConfig) (*SummaryCache, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	ttl := defaultSummaryTTL
	if cfg.TTLSeconds > 0 {
		ttl = time.Duration(cfg.TTLSeconds) * time.Second
	}

	return &SummaryCache{
		client: redis.NewClient(opt),
		ttl:    ttl,
	}, nil
}

// Client exposes the underlying Redis client for health checks.
func (c *SummaryCache) Client() *redis.Client {
	return c.client
}

func summaryKey(organizationID string) string {
	return "credits:summary:" + organizationID
}

// Get returns the cached summary for the organization, or false on a miss.
func (c *SummaryCache) Get(ctx context.Context, organizationID string) (*models.CreditsSummary, bool) {
	data, err := c.client.Get(ctx, summaryKey(organizationID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		fiberlog.Warnf("summary cache read failed for organization %s: %v", organizationID, err)
		return nil, false
	}

	var summary models.CreditsSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		fiberlog.Warnf("summary cache entry corrupt for organization %s: %v", organizationID, err)
		return nil, false
	}
	return &summary, true
}

func (c *SummaryCache) Set(ctx context.Context, organizationID string, summary *models.CreditsSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		fiberlog.Warnf("summary cache marshal failed for organization %s: %v", organizationID, err)
		return
	}
	if err := c.client.Set(ctx, summaryKey(organizationID), data, c.ttl).Err(); err != nil {
		fiberlog.Warnf("summary cache write failed for organization %s: %v", organizationID, err)
	}
}

// Invalidate drops the organization's cached summary after a ledger write.
func (c *SummaryCache) Invalidate(ctx context.Context, organizationID string) {
	if err := c.client.Del(ctx, summaryKey(organizationID)).Err(); err != nil {
		fiberlog.Warnf("summary cache invalidation failed for organization %s: %v", organizationID, err)
	}
}

func (c *SummaryCache) Close() error {
	return c.client.Close()
}
