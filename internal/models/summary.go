package models

import "time"

// CreditsSummary is the full user-facing credits breakdown for one
// organization. Subscription and Overage are nil when the organization has
// no active subscription.
type CreditsSummary struct {
	Subscription *SubscriptionCreditsSummary `json:"subscription"`
	Overage      *OverageSummary             `json:"overage"`
	TopUps       []TopupCreditSummary        `json:"topups"`
	Summary      CreditsSummaryTotals        `json:"summary"`
}

type SubscriptionCreditsSummary struct {
	ID                string             `json:"id"`
	MonthlyAllowance  int64              `json:"monthly_allowance"`
	GrantedThisPeriod int64              `json:"granted_this_period"`
	UsedThisPeriod    int64              `json:"used_this_period"`
	Remaining         int64              `json:"remaining"`
	PeriodStart       time.Time          `json:"period_start"`
	PeriodEnd         time.Time          `json:"period_end"`
	Status            SubscriptionStatus `json:"status"`
	BillingInterval   string             `json:"billing_interval"`
	PricePaid         float64            `json:"price_paid"`
	OverageUnitPrice  float64            `json:"overage_unit_price"`
	CancelAtPeriodEnd bool               `json:"cancel_at_period_end"`
	PauseAccess       bool               `json:"pause_access"`
}

// OverageSummary reports overage usage against the effective cap. Cap and
// RemainingUntilCap are nil when overage is enabled without a user cap
// (unbounded), and zero when overage is disabled.
type OverageSummary struct {
	Enabled          bool    `json:"enabled"`
	Used             int64   `json:"used"`
	ReportedToStripe int64   `json:"reported_to_stripe"`
	Cap              *int64  `json:"cap"`
	RemainingUntilCap *int64 `json:"remaining_until_cap"`
	UnitPrice        float64 `json:"unit_price"`
}

type TopupCreditSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Granted     int64      `json:"granted"`
	Used        int64      `json:"used"`
	Remaining   int64      `json:"remaining"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	PurchasedAt time.Time  `json:"purchased_at"`
}

type CreditsSummaryTotals struct {
	TotalAvailable      int64 `json:"total_available"`
	SubscriptionCredits int64 `json:"subscription_credits"`
	TopupCredits        int64 `json:"topup_credits"`
	OverageCredits      int64 `json:"overage_credits"`
}
