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

func TestShouldAlert(t *testing.T) {
	thresholds := []float64{0.5, 0.8, 1.0}

	assert.Empty(t, shouldAlert(0.2, thresholds))
	assert.Equal(t, []float64{0.5}, shouldAlert(0.5, thresholds))
	assert.Equal(t, []float64{0.5, 0.8}, shouldAlert(0.9, thresholds))
	assert.Equal(t, []float64{0.5, 0.8, 1.0}, shouldAlert(1.0, thresholds))
	assert.Empty(t, shouldAlert(0.9, nil))
}

func seedAlertingSubscription(t *testing.T, db *gorm.DB, orgID string, allowance int64, thresholds string) models.Subscription {
	t.Helper()

	now := time.Now().UTC()
	periodEnd := now.AddDate(0, 1, 0)
	subscription := models.Subscription{
		ID:                 uuid.NewString(),
		OrganizationID:     orgID,
		Description:        "Monthly Subscription",
		MonthlyAllowance:   allowance,
		Status:             models.SubscriptionActive,
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
		Amount:          allowance,
		RemainingAmount: allowance,
		ExpiresAt:       &periodEnd,
	}
	require.NoError(t, db.Create(&grant).Error)

	settings := models.AlertSettings{
		ID:             uuid.NewString(),
		SubscriptionID: subscription.ID,
		Thresholds:     thresholds,
	}
	require.NoError(t, db.Create(&settings).Error)

	return subscription
}

func TestConsumeCreditsFiresAlertsOnce(t *testing.T) {
	svc, db := newTestService(t)
	orgID := uuid.NewString()
	seedAlertingSubscription(t, db, orgID, 10, "0.5,0.8")

	// 5 of 10 used: crosses the 0.5 threshold.
	ok, err := svc.ConsumeCredits(context.Background(), models.ConsumeCreditsParams{
		OrganizationID: orgID,
		Credits:        5,
	})
	require.NoError(t, err)
	require.True(t, ok)

	var alerts []models.Alert
	require.NoError(t, db.Where("organization_id = ?", orgID).Find(&alerts).Error)
	require.Len(t, alerts, 1)
	assert.Equal(t, 0.5, alerts[0].ThresholdPercentage)

	// 8 of 10 used: fires 0.8 but must not duplicate 0.5.
	ok, err = svc.ConsumeCredits(context.Background(), models.ConsumeCreditsParams{
		OrganizationID: orgID,
		Credits:        3,
	})
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Where("organization_id = ?", orgID).Order("threshold_percentage ASC").Find(&alerts).Error)
	require.Len(t, alerts, 2)
	assert.Equal(t, 0.5, alerts[0].ThresholdPercentage)
	assert.Equal(t, 0.8, alerts[1].ThresholdPercentage)

	// Another draw below the next threshold adds nothing.
	ok, err = svc.ConsumeCredits(context.Background(), models.ConsumeCreditsParams{
		OrganizationID: orgID,
		Credits:        1,
	})
	require.NoError(t, err)
	require.True(t, ok)

	var count int64
	require.NoError(t, db.Model(&models.Alert{}).Where("organization_id = ?", orgID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestConsumeCreditsNoAlertsWithoutSettings(t *testing.T) {
	svc, db := newTestService(t)
	orgID := uuid.NewString()
	seedGrant(t, db, orgID, models.GrantTypeTopup, 100, time.Now().UTC(), nil)

	ok, err := svc.ConsumeCredits(context.Background(), models.ConsumeCreditsParams{
		OrganizationID: orgID,
		Credits:        90,
	})
	require.NoError(t, err)
	require.True(t, ok)

	var count int64
	require.NoError(t, db.Model(&models.Alert{}).Where("organization_id = ?", orgID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestThresholdListParsing(t *testing.T) {
	settings := &models.AlertSettings{Thresholds: "0.5, 0.8,bogus,1.0"}
	assert.Equal(t, []float64{0.5, 0.8, 1.0}, settings.ThresholdList())

	empty := &models.AlertSettings{}
	assert.Nil(t, empty.ThresholdList())
}
