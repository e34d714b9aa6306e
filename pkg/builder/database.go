package builder

import "github.com/geoinfer/metering/internal/models"

// WithDatabase sets the relational ledger store.
func (b *Builder) WithDatabase(cfg models.DatabaseConfig) *Builder {
	b.cfg.Database = cfg
	return b
}

// WithAnalyticsDatabase sets the analytics mirror store (typically
// ClickHouse). Optional: without it the server skips usage mirroring.
func (b *Builder) WithAnalyticsDatabase(cfg models.DatabaseConfig) *Builder {
	b.cfg.Analytics = &cfg
	return b
}
