package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/geoinfer/metering/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service owns the subscription and usage-period lifecycle: renewals seed
// the period's credit grant, and the external billing pipeline records
// overage through AddOverageUsage.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// AutoMigrate runs database migrations for subscription tables
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.Subscription{},
		&models.UsagePeriod{},
	)
}

// GetActiveSubscription returns the organization's active subscription, or
// nil when it has none.
func (s *Service) GetActiveSubscription(ctx context.Context, organizationID string) (*models.Subscription, error) {
	var subscription models.Subscription
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND status = ?", organizationID, models.SubscriptionActive).
		First(&subscription).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active subscription: %w", err)
	}
	return &subscription, nil
}

// RenewPeriod rolls a subscription into its next billing period: the open
// usage period is closed, a fresh one is opened, and a subscription grant
// of the monthly allowance is seeded, expiring at period end. Grant seeding
// is skipped while access is paused for payment issues.
func (s *Service) RenewPeriod(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subscription models.Subscription
		if err := tx.Where("id = ?", subscriptionID).First(&subscription).Error; err != nil {
			return fmt.Errorf("failed to load subscription: %w", err)
		}

		err := tx.Model(&models.UsagePeriod{}).
			Where("subscription_id = ? AND closed = ?", subscriptionID, false).
			Update("closed", true).Error
		if err != nil {
			return fmt.Errorf("failed to close usage period: %w", err)
		}

		period := models.UsagePeriod{
			ID:             uuid.NewString(),
			SubscriptionID: subscriptionID,
			PeriodStart:    periodStart,
			PeriodEnd:      periodEnd,
		}
		if err := tx.Create(&period).Error; err != nil {
			return fmt.Errorf("failed to create usage period: %w", err)
		}

		if subscription.PauseAccess {
			fiberlog.Warnf("skipped credit grant for subscription %s - access paused due to payment issues", subscriptionID)
		} else {
			grant := models.CreditGrant{
				ID:              uuid.NewString(),
				OrganizationID:  subscription.OrganizationID,
				SubscriptionID:  &subscription.ID,
				GrantType:       models.GrantTypeSubscription,
				Description:     fmt.Sprintf("Monthly Subscription Credits - %s", periodStart.Format("January 2006")),
				Amount:          subscription.MonthlyAllowance,
				RemainingAmount: subscription.MonthlyAllowance,
				ExpiresAt:       &periodEnd,
			}
			if err := tx.Create(&grant).Error; err != nil {
				return fmt.Errorf("failed to seed subscription grant: %w", err)
			}
			fiberlog.Infof("seeded %d subscription credits for subscription %s", subscription.MonthlyAllowance, subscriptionID)
		}

		err = tx.Model(&models.Subscription{}).
			Where("id = ?", subscriptionID).
			Updates(map[string]any{
				"current_period_start": periodStart,
				"current_period_end":   periodEnd,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to advance subscription period: %w", err)
		}

		return nil
	})
}

// AddOverageUsage records consumption beyond the subscription allowance
// against the open usage period. Returns false without mutation when
// overage is disabled or the cap would be exceeded. This is the write path
// used by the external billing pipeline once the allocator has exhausted
// the organization's grants.
func (s *Service) AddOverageUsage(ctx context.Context, subscriptionID string, credits int64) (bool, error) {
	if credits <= 0 {
		return false, nil
	}

	var allowed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subscription models.Subscription
		if err := tx.Where("id = ?", subscriptionID).First(&subscription).Error; err != nil {
			return fmt.Errorf("failed to load subscription: %w", err)
		}
		if !subscription.OverageEnabled {
			return nil
		}

		var period models.UsagePeriod
		err := tx.Where("subscription_id = ? AND closed = ?", subscriptionID, false).
			Order("created_at DESC").
			First(&period).Error
		if err != nil {
			return fmt.Errorf("failed to load open usage period: %w", err)
		}

		if subscription.UserExtraCap != nil && period.OverageUsed+credits > *subscription.UserExtraCap {
			fiberlog.Warnf("overage cap of %d credits exceeded for subscription %s", *subscription.UserExtraCap, subscriptionID)
			return nil
		}

		res := tx.Model(&models.UsagePeriod{}).
			Where("id = ?", period.ID).
			UpdateColumn("overage_used", gorm.Expr("overage_used + ?", credits))
		if res.Error != nil {
			return fmt.Errorf("failed to add overage usage: %w", res.Error)
		}

		allowed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return allowed, nil
}

// CloseExpiredPeriods closes open usage periods belonging to subscriptions
// that are no longer active. Scheduler hook; renewal handles the normal
// period rollover.
func (s *Service) CloseExpiredPeriods(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.UsagePeriod{}).
		Where("closed = ? AND subscription_id IN (?)", false,
			s.db.Model(&models.Subscription{}).Select("id").Where("status <> ?", models.SubscriptionActive)).
		Update("closed", true)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to close expired usage periods: %w", res.Error)
	}
	return res.RowsAffected, nil
}
