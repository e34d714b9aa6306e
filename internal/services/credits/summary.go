package credits

import (
	"context"
	"fmt"
	"time"

	"github.com/geoinfer/metering/internal/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// GetCreditsSummary builds the full user-facing credits breakdown: the
// active subscription's current period, overage against its cap, live
// top-up and trial grants soonest-expiring first, and overall totals.
// Pure read; no side effects.
func (s *Service) GetCreditsSummary(ctx context.Context, organizationID string) (*models.CreditsSummary, error) {
	var (
		subscriptionSummary *models.SubscriptionCreditsSummary
		overageSummary      *models.OverageSummary
		subscriptionCredits int64

		topups       []models.TopupCreditSummary
		topupCredits int64
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		subscriptionSummary, overageSummary, subscriptionCredits, err = s.subscriptionSummary(gctx, organizationID)
		return err
	})

	g.Go(func() error {
		var err error
		topups, topupCredits, err = s.topupSummaries(gctx, organizationID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var overageCredits int64
	if overageSummary != nil {
		overageCredits = overageSummary.Used
	}

	return &models.CreditsSummary{
		Subscription: subscriptionSummary,
		Overage:      overageSummary,
		TopUps:       topups,
		Summary: models.CreditsSummaryTotals{
			TotalAvailable:      subscriptionCredits + topupCredits,
			SubscriptionCredits: subscriptionCredits,
			TopupCredits:        topupCredits,
			OverageCredits:      overageCredits,
		},
	}, nil
}

func (s *Service) subscriptionSummary(ctx context.Context, organizationID string) (*models.SubscriptionCreditsSummary, *models.OverageSummary, int64, error) {
	var subscription models.Subscription
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND status = ?", organizationID, models.SubscriptionActive).
		First(&subscription).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil, 0, nil
	}
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to load active subscription: %w", err)
	}

	type grantTotals struct {
		Granted   int64
		Remaining int64
	}
	var totals grantTotals
	err = s.db.WithContext(ctx).
		Model(&models.CreditGrant{}).
		Select("COALESCE(SUM(amount), 0) AS granted, COALESCE(SUM(remaining_amount), 0) AS remaining").
		Where("subscription_id = ? AND grant_type = ? AND expires_at > ?",
			subscription.ID, models.GrantTypeSubscription, time.Now().UTC()).
		Scan(&totals).Error
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to sum subscription grants: %w", err)
	}

	billingInterval := "monthly"
	if subscription.StripePriceBaseID != nil {
		billingInterval = s.catalog.IntervalForPriceID(*subscription.StripePriceBaseID)
	}

	subscriptionSummary := &models.SubscriptionCreditsSummary{
		ID:                subscription.ID,
		MonthlyAllowance:  subscription.MonthlyAllowance,
		GrantedThisPeriod: totals.Granted,
		UsedThisPeriod:    totals.Granted - totals.Remaining,
		Remaining:         totals.Remaining,
		PeriodStart:       subscription.CurrentPeriodStart,
		PeriodEnd:         subscription.CurrentPeriodEnd,
		Status:            subscription.Status,
		BillingInterval:   billingInterval,
		PricePaid:         subscription.PricePaid,
		OverageUnitPrice:  subscription.OverageUnitPrice,
		CancelAtPeriodEnd: subscription.CancelAtPeriodEnd,
		PauseAccess:       subscription.PauseAccess,
	}

	var period models.UsagePeriod
	err = s.db.WithContext(ctx).
		Where("subscription_id = ? AND closed = ?", subscription.ID, false).
		Order("created_at DESC").
		First(&period).Error
	if err == gorm.ErrRecordNotFound {
		return subscriptionSummary, nil, totals.Remaining, nil
	}
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to load open usage period: %w", err)
	}

	overageSummary := &models.OverageSummary{
		Enabled:          subscription.OverageEnabled,
		Used:             period.OverageUsed,
		ReportedToStripe: period.OverageReported,
		UnitPrice:        subscription.OverageUnitPrice,
	}
	if !subscription.OverageEnabled {
		// Overage disabled means a hard cap of zero.
		zero := int64(0)
		overageSummary.Cap = &zero
		overageSummary.RemainingUntilCap = &zero
	} else if subscription.UserExtraCap != nil {
		cap := *subscription.UserExtraCap
		remainingUntilCap := cap - period.OverageUsed
		overageSummary.Cap = &cap
		overageSummary.RemainingUntilCap = &remainingUntilCap
	}

	return subscriptionSummary, overageSummary, totals.Remaining, nil
}

func (s *Service) topupSummaries(ctx context.Context, organizationID string) ([]models.TopupCreditSummary, int64, error) {
	type topupGrantRow struct {
		ID              string
		Description     string
		Amount          int64
		RemainingAmount int64
		ExpiresAt       *time.Time
		PurchasedAt     time.Time
	}

	var rows []topupGrantRow
	err := s.db.WithContext(ctx).
		Model(&models.CreditGrant{}).
		Select("credit_grants.id, credit_grants.description, credit_grants.amount, credit_grants.remaining_amount, credit_grants.expires_at, top_ups.created_at AS purchased_at").
		Joins("JOIN top_ups ON credit_grants.top_up_id = top_ups.id").
		Where("credit_grants.organization_id = ? AND credit_grants.grant_type IN ? AND credit_grants.remaining_amount > 0",
			organizationID, []models.GrantType{models.GrantTypeTopup, models.GrantTypeTrial}).
		Where("credit_grants.expires_at IS NULL OR credit_grants.expires_at > ?", time.Now().UTC()).
		Order("CASE WHEN credit_grants.expires_at IS NULL THEN 1 ELSE 0 END, credit_grants.expires_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load top-up grants: %w", err)
	}

	topups := make([]models.TopupCreditSummary, 0, len(rows))
	var total int64
	for _, row := range rows {
		total += row.RemainingAmount
		topups = append(topups, models.TopupCreditSummary{
			ID:          row.ID,
			Name:        row.Description,
			Granted:     row.Amount,
			Used:        row.Amount - row.RemainingAmount,
			Remaining:   row.RemainingAmount,
			ExpiresAt:   row.ExpiresAt,
			PurchasedAt: row.PurchasedAt,
		})
	}
	return topups, total, nil
}
