package credits

import (
	"context"
	"fmt"
	"time"

	"github.com/geoinfer/metering/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

const (
	defaultTrialCreditAmount = 15
	trialDescription         = "Geoinfer Trial Credits"
)

// GrantTrialCredits grants the one-time signup bonus to a newly onboarded
// organization. Idempotent: an existing trial top-up (a TopUp with no Stripe
// payment behind it) short-circuits to success without creating a duplicate.
// Trial expiry follows billing config: trial_expiry_days, zero meaning the
// credits never expire.
func (s *Service) GrantTrialCredits(ctx context.Context, organizationID, userID string) (bool, error) {
	if organizationID == "" {
		fiberlog.Errorf("grant trial credits: organization_id must be provided")
		return false, nil
	}

	var existing int64
	err := s.db.WithContext(ctx).
		Model(&models.TopUp{}).
		Where("organization_id = ? AND stripe_payment_intent_id IS NULL AND package_type = ?",
			organizationID, models.GrantTypeTrial).
		Count(&existing).Error
	if err != nil {
		return false, fmt.Errorf("failed to check existing trial credits: %w", err)
	}
	if existing > 0 {
		fiberlog.Infof("organization %s already has trial credits", organizationID)
		return true, nil
	}

	amount := s.billing.TrialCreditAmount
	if amount <= 0 {
		amount = defaultTrialCreditAmount
	}

	var expiresAt *time.Time
	if s.billing.TrialExpiryDays > 0 {
		expiry := time.Now().UTC().AddDate(0, 0, s.billing.TrialExpiryDays)
		expiresAt = &expiry
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		topup := models.TopUp{
			ID:               newID(),
			OrganizationID:   organizationID,
			Description:      trialDescription,
			PricePaid:        0,
			CreditsPurchased: amount,
			PackageType:      models.GrantTypeTrial,
			ExpiresAt:        expiresAt,
		}
		if err := tx.Create(&topup).Error; err != nil {
			return fmt.Errorf("failed to create trial top-up: %w", err)
		}

		grant := models.CreditGrant{
			ID:              newID(),
			OrganizationID:  organizationID,
			TopUpID:         &topup.ID,
			GrantType:       models.GrantTypeTrial,
			Description:     trialDescription,
			Amount:          amount,
			RemainingAmount: amount,
			ExpiresAt:       expiresAt,
		}
		if err := tx.Create(&grant).Error; err != nil {
			return fmt.Errorf("failed to create trial credit grant: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	fiberlog.Infof("granted %d trial credits to user %s (organization %s)", amount, userID, organizationID)
	return true, nil
}
