package builder

import "github.com/geoinfer/metering/internal/models"

// WithStripe configures the Stripe secret key and the billing meter used for
// overage reporting.
func (b *Builder) WithStripe(secretKey, meterEventName string) *Builder {
	b.cfg.Billing.Stripe = models.StripeConfig{
		SecretKey:      secretKey,
		MeterEventName: meterEventName,
	}
	return b
}

// WithTrialPolicy overrides the trial credit amount and expiry.
// expiryDays of zero means trial credits never expire.
func (b *Builder) WithTrialPolicy(creditAmount int64, expiryDays int) *Builder {
	b.cfg.Billing.TrialCreditAmount = creditAmount
	b.cfg.Billing.TrialExpiryDays = expiryDays
	return b
}

// WithOverageReportInterval sets how often the overage reporter posts meter
// events, in seconds.
func (b *Builder) WithOverageReportInterval(seconds int) *Builder {
	b.cfg.Billing.OverageReportInterval = seconds
	return b
}
