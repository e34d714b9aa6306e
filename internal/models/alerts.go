package models

import (
	"strconv"
	"strings"
	"time"
)

// AlertSettings holds per-subscription usage alert thresholds as a comma
// separated list of fractions, e.g. "0.5,0.8,1.0".
type AlertSettings struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	SubscriptionID string    `gorm:"type:uuid;not null;uniqueIndex" json:"subscription_id"`
	Thresholds     string    `gorm:"type:text;not null;default:''" json:"thresholds"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// ThresholdList parses Thresholds, silently skipping malformed entries.
func (s *AlertSettings) ThresholdList() []float64 {
	if s == nil || s.Thresholds == "" {
		return nil
	}
	parts := strings.Split(s.Thresholds, ",")
	thresholds := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			continue
		}
		thresholds = append(thresholds, v)
	}
	return thresholds
}

// Alert records a usage threshold that has already fired, one alert per
// threshold per organization.
type Alert struct {
	ID                  string    `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID      string    `gorm:"type:uuid;not null;index" json:"organization_id"`
	SubscriptionID      string    `gorm:"type:uuid;not null;index" json:"subscription_id"`
	ThresholdPercentage float64   `gorm:"not null" json:"threshold_percentage"`
	Message             string    `gorm:"not null" json:"message"`
	Severity            string    `gorm:"size:32;not null;default:'warning'" json:"severity"`
	TriggeredAt         time.Time `gorm:"not null" json:"triggered_at"`
	CreatedAt           time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
