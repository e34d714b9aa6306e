package billing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/geoinfer/metering/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/billing/meterevent"
	"gorm.io/gorm"
)

// OverageReporter periodically reports accumulated overage deltas for open
// usage periods to Stripe as billing meter events, advancing each period's
// overage_reported watermark.
type OverageReporter struct {
	db             *gorm.DB
	meterEventName string
	interval       time.Duration
	stopChan       chan struct{}

	// postEvent is swapped out in tests.
	postEvent func(customerID string, delta int64) error
}

func NewOverageReporter(db *gorm.DB, cfg models.StripeConfig, interval time.Duration) *OverageReporter {
	if interval == 0 {
		interval = 1 * time.Hour
	}
	r := &OverageReporter{
		db:             db,
		meterEventName: cfg.MeterEventName,
		interval:       interval,
		stopChan:       make(chan struct{}),
	}
	r.postEvent = r.postMeterEvent
	return r
}

func (r *OverageReporter) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("Overage reporter started, running every %s", r.interval)

	for {
		select {
		case <-ticker.C:
			if err := r.ReportUsage(ctx); err != nil {
				log.Printf("Error reporting overage usage: %v", err)
			}
		case <-r.stopChan:
			log.Println("Overage reporter stopped")
			return
		case <-ctx.Done():
			log.Println("Overage reporter stopped due to context cancellation")
			return
		}
	}
}

func (r *OverageReporter) Stop() {
	close(r.stopChan)
}

// ReportUsage reports the unreported overage of every open usage period.
// One period failing does not block the others.
func (r *OverageReporter) ReportUsage(ctx context.Context) error {
	var periods []models.UsagePeriod
	err := r.db.WithContext(ctx).
		Where("closed = ?", false).
		Find(&periods).Error
	if err != nil {
		return fmt.Errorf("failed to load open usage periods: %w", err)
	}

	for i := range periods {
		if err := r.reportPeriod(ctx, &periods[i]); err != nil {
			fiberlog.Errorf("failed to report overage for period %s: %v", periods[i].ID, err)
		}
	}
	return nil
}

func (r *OverageReporter) reportPeriod(ctx context.Context, period *models.UsagePeriod) error {
	delta := period.OverageUsed - period.OverageReported
	if delta <= 0 {
		return nil
	}

	var subscription models.Subscription
	err := r.db.WithContext(ctx).
		Where("id = ?", period.SubscriptionID).
		First(&subscription).Error
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}
	if subscription.StripeCustomerID == nil || subscription.StripeItemOverageID == nil {
		return nil
	}

	if err := r.postEvent(*subscription.StripeCustomerID, delta); err != nil {
		return fmt.Errorf("failed to post meter event: %w", err)
	}

	res := r.db.WithContext(ctx).
		Model(&models.UsagePeriod{}).
		Where("id = ?", period.ID).
		UpdateColumn("overage_reported", gorm.Expr("overage_reported + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("failed to advance reported watermark: %w", res.Error)
	}

	fiberlog.Infof("reported %d overage credits for subscription %s", delta, subscription.ID)
	return nil
}

func (r *OverageReporter) postMeterEvent(customerID string, delta int64) error {
	_, err := meterevent.New(&stripe.BillingMeterEventParams{
		EventName: stripe.String(r.meterEventName),
		Payload: map[string]string{
			"stripe_customer_id": customerID,
			"value":              fmt.Sprintf("%d", delta),
		},
		Timestamp: stripe.Int64(time.Now().Unix()),
	})
	return err
}
