package models

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
)

// Subscription is an organization's recurring plan. At most one active
// subscription exists per organization; each renewal period seeds a fresh
// subscription-type CreditGrant expiring at period end.
type Subscription struct {
	ID                   string             `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID       string             `gorm:"type:uuid;not null;index" json:"organization_id"`
	StripeSubscriptionID *string            `gorm:"uniqueIndex" json:"stripe_subscription_id,omitempty"`
	StripeCustomerID     *string            `json:"stripe_customer_id,omitempty"`
	StripeItemBaseID     *string            `json:"stripe_item_base_id,omitempty"`
	StripeItemOverageID  *string            `json:"stripe_item_overage_id,omitempty"`
	StripePriceBaseID    *string            `json:"stripe_price_base_id,omitempty"`
	StripePriceOverageID *string            `json:"stripe_price_overage_id,omitempty"`
	Description          string             `gorm:"not null" json:"description"`
	PricePaid            float64            `gorm:"not null" json:"price_paid"`
	MonthlyAllowance     int64              `gorm:"not null" json:"monthly_allowance"`
	OverageUnitPrice     float64            `gorm:"not null;default:0" json:"overage_unit_price"`
	Status               SubscriptionStatus `gorm:"size:32;not null;index" json:"status"`
	OverageEnabled       bool               `gorm:"not null;default:false" json:"overage_enabled"`
	UserExtraCap         *int64             `json:"user_extra_cap,omitempty"`
	PauseAccess          bool               `gorm:"not null;default:false" json:"pause_access"`
	CancelAtPeriodEnd    bool               `gorm:"not null;default:false" json:"cancel_at_period_end"`
	CurrentPeriodStart   time.Time          `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd     time.Time          `gorm:"not null" json:"current_period_end"`
	CreatedAt            time.Time          `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time          `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// UsagePeriod tracks overage within one billing period of a subscription.
// Exactly one open (closed=false) period exists per active subscription.
type UsagePeriod struct {
	ID              string    `gorm:"type:uuid;primaryKey" json:"id"`
	SubscriptionID  string    `gorm:"type:uuid;not null;index" json:"subscription_id"`
	PeriodStart     time.Time `gorm:"not null" json:"period_start"`
	PeriodEnd       time.Time `gorm:"not null" json:"period_end"`
	OverageUsed     int64     `gorm:"not null;default:0" json:"overage_used"`
	OverageReported int64     `gorm:"not null;default:0" json:"overage_reported"`
	Closed          bool      `gorm:"not null;default:false;index" json:"closed"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
