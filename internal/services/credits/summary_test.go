package credits

import (
	"context"
	"testing"
	"time"

	"github.com/geoinfer/metering/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedTopupWithGrant(t *testing.T, db *gorm.DB, orgID string, name string, amount, remaining int64, expiresAt *time.Time) {
	t.Helper()

	topup := models.TopUp{
		ID:               uuid.NewString(),
		OrganizationID:   orgID,
		Description:      name,
		CreditsPurchased: amount,
		PackageType:      models.GrantTypeTopup,
		ExpiresAt:        expiresAt,
	}
	require.NoError(t, db.Create(&topup).Error)

	grant := models.CreditGrant{
		ID:              uuid.NewString(),
		OrganizationID:  orgID,
		TopUpID:         &topup.ID,
		GrantType:       models.GrantTypeTopup,
		Description:     name,
		Amount:          amount,
		RemainingAmount: remaining,
		ExpiresAt:       expiresAt,
	}
	require.NoError(t, db.Create(&grant).Error)
}

func TestGetCreditsSummaryWithoutSubscription(t *testing.T) {
	svc, db := newTestService(t)
	orgID := uuid.NewString()
	future := time.Now().UTC().AddDate(0, 0, 30)

	seedTopupWithGrant(t, db, orgID, "Starter Wallet", 200, 150, &future)

	summary, err := svc.GetCreditsSummary(context.Background(), orgID)
	require.NoError(t, err)

	assert.Nil(t, summary.Subscription)
	assert.Nil(t, summary.Overage)
	require.Len(t, summary.TopUps, 1)
	assert.Equal(t, "Starter Wallet", summary.TopUps[0].Name)
	assert.Equal(t, int64(150), summary.TopUps[0].Remaining)
	assert.Equal(t, int64(50), summary.TopUps[0].Used)
	assert.Equal(t, int64(150), summary.Summary.TotalAvailable)
	assert.Zero(t, summary.Summary.SubscriptionCredits)
}

func TestGetCreditsSummaryTopupOrdering(t *testing.T) {
	svc, db := newTestService(t)
	orgID := uuid.NewString()
	now := time.Now().UTC()
	soon := now.AddDate(0, 0, 7)
	later := now.AddDate(0, 0, 60)

	seedTopupWithGrant(t, db, orgID, "never-expiring", 50, 50, nil)
	seedTopupWithGrant(t, db, orgID, "later", 100, 100, &later)
	seedTopupWithGrant(t, db, orgID, "soon", 200, 200, &soon)

	summary, err := svc.GetCreditsSummary(context.Background(), orgID)
	require.NoError(t, err)

	// Soonest expiry first, never-expiring last.
	require.Len(t, summary.TopUps, 3)
	assert.Equal(t, "soon", summary.TopUps[0].Name)
	assert.Equal(t, "later", summary.TopUps[1].Name)
	assert.Equal(t, "never-expiring", summary.TopUps[2].Name)
}

func TestGetCreditsSummaryExcludesExpiredAndExhausted(t *testing.T) {
	svc, db := newTestService(t)
	orgID := uuid.NewString()
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().AddDate(0, 0, 30)

	seedTopupWithGrant(t, db, orgID, "expired", 100, 100, &past)
	seedTopupWithGrant(t, db, orgID, "exhausted", 100, 0, &future)
	seedTopupWithGrant(t, db, orgID, "live", 100, 40, &future)

	summary, err := svc.GetCreditsSummary(context.Background(), orgID)
	require.NoError(t, err)

	require.Len(t, summary.TopUps, 1)
	assert.Equal(t, "live", summary.TopUps[0].Name)
	assert.Equal(t, int64(40), summary.Summary.TopupCredits)
}

func TestGetCreditsSummaryWithSubscription(t *testing.T) {
	svc, db := newTestService(t)
	orgID := uuid.NewString()
	now := time.Now().UTC()
	periodEnd := now.AddDate(0, 1, 0)
	cap := int64(500)

	subscription := models.Subscription{
		ID:                 uuid.NewString(),
		OrganizationID:     orgID,
		Description:        "Monthly Subscription",
		PricePaid:          60,
		MonthlyAllowance:   1000,
		OverageUnitPrice:   0.06,
		Status:             models.SubscriptionActive,
		OverageEnabled:     true,
		UserExtraCap:       &cap,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd,
	}
	require.NoError(t, db.Create(&subscription).Error)

	grant := models.CreditGrant{
		ID:              uuid.NewString(),
		OrganizationID:  orgID,
		SubscriptionID:  &subscription.ID,
		GrantType:       models.GrantTypeSubscription,
		Description:     "Monthly Subscription Credits",
		Amount:          1000,
		RemainingAmount: 700,
		ExpiresAt:       &periodEnd,
	}
	require.NoError(t, db.Create(&grant).Error)

	period := models.UsagePeriod{
		ID:             uuid.NewString(),
		SubscriptionID: subscription.ID,
		PeriodStart:    now,
		PeriodEnd:      periodEnd,
		OverageUsed:    120,
	}
	require.NoError(t, db.Create(&period).Error)

	summary, err := svc.GetCreditsSummary(context.Background(), orgID)
	require.NoError(t, err)

	require.NotNil(t, summary.Subscription)
	assert.Equal(t, int64(1000), summary.Subscription.GrantedThisPeriod)
	assert.Equal(t, int64(300), summary.Subscription.UsedThisPeriod)
	assert.Equal(t, int64(700), summary.Subscription.Remaining)
	assert.Equal(t, "monthly", summary.Subscription.BillingInterval)

	require.NotNil(t, summary.Overage)
	assert.True(t, summary.Overage.Enabled)
	assert.Equal(t, int64(120), summary.Overage.Used)
	require.NotNil(t, summary.Overage.Cap)
	assert.Equal(t, int64(500), *summary.Overage.Cap)
	require.NotNil(t, summary.Overage.RemainingUntilCap)
	assert.Equal(t, int64(380), *summary.Overage.RemainingUntilCap)

	assert.Equal(t, int64(700), summary.Summary.SubscriptionCredits)
	assert.Equal(t, int64(120), summary.Summary.OverageCredits)
}

func TestGetCreditsSummaryOverageDisabledCapsAtZero(t *testing.T) {
	svc, db := newTestService(t)
	orgID := uuid.NewString()
	now := time.Now().UTC()
	periodEnd := now.AddDate(0, 1, 0)

	subscription := models.Subscription{
		ID:                 uuid.NewString(),
		OrganizationID:     orgID,
		Description:        "Monthly Subscription",
		MonthlyAllowance:   1000,
		Status:             models.SubscriptionActive,
		OverageEnabled:     false,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd,
	}
	require.NoError(t, db.Create(&subscription).Error)

	period := models.UsagePeriod{
		ID:             uuid.NewString(),
		SubscriptionID: subscription.ID,
		PeriodStart:    now,
		PeriodEnd:      periodEnd,
	}
	require.NoError(t, db.Create(&period).Error)

	summary, err := svc.GetCreditsSummary(context.Background(), orgID)
	require.NoError(t, err)

	require.NotNil(t, summary.Overage)
	assert.False(t, summary.Overage.Enabled)
	require.NotNil(t, summary.Overage.Cap)
	assert.Zero(t, *summary.Overage.Cap)
	require.NotNil(t, summary.Overage.RemainingUntilCap)
	assert.Zero(t, *summary.Overage.RemainingUntilCap)
}
