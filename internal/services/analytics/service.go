package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/geoinfer/metering/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service answers usage reporting queries from the analytics store, a
// mirror of the ledger's usage records kept in ClickHouse in production.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&models.UsageRecord{})
}

// MirrorRecords copies committed usage records into the analytics store.
// Conflicting IDs are ignored so replays stay idempotent.
func (s *Service) MirrorRecords(ctx context.Context, records []models.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&records).Error
	if err != nil {
		return fmt.Errorf("failed to mirror usage records: %w", err)
	}
	return nil
}

// TimeseriesPoint is one day of consumption for an organization.
type TimeseriesPoint struct {
	Date     string `json:"date"`
	Credits  int64  `json:"credits"`
	Requests int64  `json:"requests"`
}

// UsageTimeseries returns per-day consumption over the trailing window.
func (s *Service) UsageTimeseries(ctx context.Context, organizationID string, days int) ([]TimeseriesPoint, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	var points []TimeseriesPoint
	err := s.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Select("DATE(created_at) AS date, SUM(credits_consumed) AS credits, COUNT(*) AS requests").
		Where("organization_id = ? AND operation_type = ? AND created_at >= ?",
			organizationID, models.OperationConsumption, since).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query usage timeseries: %w", err)
	}
	return points, nil
}

// UsageByType breaks the trailing window's consumption down by usage type.
func (s *Service) UsageByType(ctx context.Context, organizationID string, days int) (map[models.UsageType]int64, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	type typeSum struct {
		UsageType models.UsageType
		Credits   int64
	}
	var sums []typeSum
	err := s.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Select("usage_type, SUM(credits_consumed) AS credits").
		Where("organization_id = ? AND operation_type = ? AND created_at >= ?",
			organizationID, models.OperationConsumption, since).
		Group("usage_type").
		Scan(&sums).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query usage by type: %w", err)
	}

	breakdown := make(map[models.UsageType]int64, len(sums))
	for _, row := range sums {
		breakdown[row.UsageType] = row.Credits
	}
	return breakdown, nil
}
