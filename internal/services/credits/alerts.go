package credits

import (
	"fmt"
	"time"

	"github.com/geoinfer/metering/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// shouldAlert returns the configured thresholds the usage fraction has
// reached or passed.
func shouldAlert(usage float64, thresholds []float64) []float64 {
	var triggered []float64
	for _, threshold := range thresholds {
		if usage >= threshold {
			triggered = append(triggered, threshold)
		}
	}
	return triggered
}

// checkUsageAlerts records newly crossed allowance thresholds for the
// organization's active subscription, at most one alert per threshold.
// Runs inside the consumption transaction.
func (s *Service) checkUsageAlerts(tx *gorm.DB, organizationID string) error {
	var subscription models.Subscription
	err := tx.Where("organization_id = ? AND status = ?", organizationID, models.SubscriptionActive).
		First(&subscription).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}
	if subscription.MonthlyAllowance <= 0 {
		return nil
	}

	var settings models.AlertSettings
	err = tx.Where("subscription_id = ?", subscription.ID).First(&settings).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load alert settings: %w", err)
	}
	thresholds := settings.ThresholdList()
	if len(thresholds) == 0 {
		return nil
	}

	var remaining int64
	err = tx.Model(&models.CreditGrant{}).
		Select("COALESCE(SUM(remaining_amount), 0)").
		Where("subscription_id = ? AND grant_type = ? AND expires_at > ?",
			subscription.ID, models.GrantTypeSubscription, time.Now().UTC()).
		Scan(&remaining).Error
	if err != nil {
		return fmt.Errorf("failed to sum remaining subscription credits: %w", err)
	}

	used := subscription.MonthlyAllowance - remaining
	usage := float64(used) / float64(subscription.MonthlyAllowance)

	var sent []models.Alert
	if err := tx.Where("organization_id = ?", organizationID).Find(&sent).Error; err != nil {
		return fmt.Errorf("failed to load sent alerts: %w", err)
	}
	alerted := make(map[float64]bool, len(sent))
	for _, alert := range sent {
		alerted[alert.ThresholdPercentage] = true
	}

	for _, threshold := range shouldAlert(usage, thresholds) {
		if alerted[threshold] {
			continue
		}
		alert := models.Alert{
			ID:                  newID(),
			OrganizationID:      organizationID,
			SubscriptionID:      subscription.ID,
			ThresholdPercentage: threshold,
			Message:             fmt.Sprintf("Usage at %.1f%% threshold reached", threshold*100),
			Severity:            "warning",
			TriggeredAt:         time.Now().UTC(),
		}
		if err := tx.Create(&alert).Error; err != nil {
			return fmt.Errorf("failed to record alert: %w", err)
		}
		fiberlog.Warnf("usage alert for organization %s: subscription %s at %.1f%% of allowance",
			organizationID, subscription.ID, usage*100)
	}

	return nil
}
