package models

type StripeConfig struct {
	SecretKey      string `json:"secret_key" yaml:"secret_key"`
	MeterEventName string `json:"meter_event_name,omitzero" yaml:"meter_event_name"`
}

// BillingConfig holds the ledger's billing policy knobs. TrialExpiryDays of
// zero means trial credits never expire.
type BillingConfig struct {
	Stripe                StripeConfig `json:"stripe" yaml:"stripe"`
	TrialCreditAmount     int64        `json:"trial_credit_amount,omitzero" yaml:"trial_credit_amount"`
	TrialExpiryDays       int          `json:"trial_expiry_days,omitzero" yaml:"trial_expiry_days"`
	OverageReportInterval int          `json:"overage_report_interval_seconds,omitzero" yaml:"overage_report_interval_seconds"`
}
