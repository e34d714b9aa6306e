package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/geoinfer/metering/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type meterEventRecorder struct {
	events []postedEvent
	err    error
}

type postedEvent struct {
	customerID string
	delta      int64
}

func (r *meterEventRecorder) post(customerID string, delta int64) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, postedEvent{customerID: customerID, delta: delta})
	return nil
}

func newReporterFixture(t *testing.T) (*OverageReporter, *meterEventRecorder, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Subscription{}, &models.UsagePeriod{}))

	reporter := NewOverageReporter(db, models.StripeConfig{MeterEventName: "inference_overage"}, time.Hour)
	recorder := &meterEventRecorder{}
	reporter.postEvent = recorder.post

	return reporter, recorder, db
}

func seedOveragePeriod(t *testing.T, db *gorm.DB, used, reported int64) (models.Subscription, models.UsagePeriod) {
	t.Helper()

	customerID := "cus_" + uuid.NewString()
	overageItemID := "si_" + uuid.NewString()
	now := time.Now().UTC()

	subscription := models.Subscription{
		ID:                  uuid.NewString(),
		OrganizationID:      uuid.NewString(),
		StripeCustomerID:    &customerID,
		StripeItemOverageID: &overageItemID,
		Description:         "Monthly Subscription",
		MonthlyAllowance:    1000,
		Status:              models.SubscriptionActive,
		OverageEnabled:      true,
		CurrentPeriodStart:  now.AddDate(0, -1, 0),
		CurrentPeriodEnd:    now,
	}
	require.NoError(t, db.Create(&subscription).Error)

	period := models.UsagePeriod{
		ID:              uuid.NewString(),
		SubscriptionID:  subscription.ID,
		PeriodStart:     subscription.CurrentPeriodStart,
		PeriodEnd:       subscription.CurrentPeriodEnd,
		OverageUsed:     used,
		OverageReported: reported,
	}
	require.NoError(t, db.Create(&period).Error)

	return subscription, period
}

func TestReportUsagePostsDeltaAndAdvancesWatermark(t *testing.T) {
	reporter, recorder, db := newReporterFixture(t)
	subscription, period := seedOveragePeriod(t, db, 120, 50)

	require.NoError(t, reporter.ReportUsage(context.Background()))

	require.Len(t, recorder.events, 1)
	assert.Equal(t, *subscription.StripeCustomerID, recorder.events[0].customerID)
	assert.Equal(t, int64(70), recorder.events[0].delta)

	var reloaded models.UsagePeriod
	require.NoError(t, db.Where("id = ?", period.ID).First(&reloaded).Error)
	assert.Equal(t, int64(120), reloaded.OverageReported)

	// A second run with nothing new posts nothing.
	require.NoError(t, reporter.ReportUsage(context.Background()))
	assert.Len(t, recorder.events, 1)
}

func TestReportUsageSkipsClosedAndUnlinkedPeriods(t *testing.T) {
	reporter, recorder, db := newReporterFixture(t)

	_, closed := seedOveragePeriod(t, db, 80, 0)
	require.NoError(t, db.Model(&models.UsagePeriod{}).
		Where("id = ?", closed.ID).
		Update("closed", true).Error)

	// A subscription without Stripe identifiers has nowhere to report to.
	now := time.Now().UTC()
	unlinked := models.Subscription{
		ID:                 uuid.NewString(),
		OrganizationID:     uuid.NewString(),
		Description:        "Monthly Subscription",
		MonthlyAllowance:   1000,
		Status:             models.SubscriptionActive,
		OverageEnabled:     true,
		CurrentPeriodStart: now.AddDate(0, -1, 0),
		CurrentPeriodEnd:   now,
	}
	require.NoError(t, db.Create(&unlinked).Error)
	period := models.UsagePeriod{
		ID:             uuid.NewString(),
		SubscriptionID: unlinked.ID,
		PeriodStart:    unlinked.CurrentPeriodStart,
		PeriodEnd:      unlinked.CurrentPeriodEnd,
		OverageUsed:    40,
	}
	require.NoError(t, db.Create(&period).Error)

	require.NoError(t, reporter.ReportUsage(context.Background()))
	assert.Empty(t, recorder.events)
}

func TestReportUsagePostFailureKeepsWatermark(t *testing.T) {
	reporter, recorder, db := newReporterFixture(t)
	recorder.err = fmt.Errorf("stripe unavailable")
	_, period := seedOveragePeriod(t, db, 90, 0)

	// One failing period must not fail the sweep.
	require.NoError(t, reporter.ReportUsage(context.Background()))

	var reloaded models.UsagePeriod
	require.NoError(t, db.Where("id = ?", period.ID).First(&reloaded).Error)
	assert.Zero(t, reloaded.OverageReported)

	// Recovery reports the full accumulated delta.
	recorder.err = nil
	require.NoError(t, reporter.ReportUsage(context.Background()))
	require.Len(t, recorder.events, 1)
	assert.Equal(t, int64(90), recorder.events[0].delta)
}
