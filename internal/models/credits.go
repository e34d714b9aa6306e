package models

import "time"

type GrantType string

const (
	GrantTypeSubscription GrantType = "subscription"
	GrantTypeTopup        GrantType = "topup"
	GrantTypeTrial        GrantType = "trial"
	GrantTypeManual       GrantType = "manual"
)

// CreditGrant is a bounded quantity of credits made available to an
// organization from one provenance. RemainingAmount only ever decreases;
// exhausted grants are kept for the audit trail, never deleted.
type CreditGrant struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID  string     `gorm:"type:uuid;not null;index" json:"organization_id"`
	SubscriptionID  *string    `gorm:"type:uuid;index" json:"subscription_id,omitempty"`
	TopUpID         *string    `gorm:"type:uuid;index" json:"topup_id,omitempty"`
	GrantType       GrantType  `gorm:"size:32;not null;index" json:"grant_type"`
	Description     string     `gorm:"not null" json:"description"`
	Amount          int64      `gorm:"not null" json:"amount"`
	RemainingAmount int64      `gorm:"not null" json:"remaining_amount"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedAt       time.Time  `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

// Expired reports whether the grant can no longer be drawn from.
// A nil ExpiresAt means the grant never expires.
func (g *CreditGrant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !g.ExpiresAt.After(now)
}

// TopUp is a purchased or trial-granted credit package. One TopUp yields
// exactly one CreditGrant. A nil StripePaymentIntentID marks a manual or
// trial grant with no payment behind it.
type TopUp struct {
	ID                    string     `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID        string     `gorm:"type:uuid;not null;index" json:"organization_id"`
	StripePaymentIntentID *string    `gorm:"uniqueIndex" json:"stripe_payment_intent_id,omitempty"`
	Description           string     `gorm:"not null" json:"description"`
	PricePaid             float64    `gorm:"not null" json:"price_paid"`
	CreditsPurchased      int64      `gorm:"not null" json:"credits_purchased"`
	PackageType           GrantType  `gorm:"size:32;not null;default:'topup'" json:"package_type"`
	ExpiresAt             *time.Time `json:"expires_at,omitempty"`
	CreatedAt             time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// ConsumeCreditsParams describes one logical consumption request.
type ConsumeCreditsParams struct {
	OrganizationID string
	Credits        int64
	UserID         *string
	APIKeyID       *string
	UsageType      UsageType
}

// CreateGrantParams covers grant creation for renewals, top-ups and manual
// adjustments.
type CreateGrantParams struct {
	OrganizationID string
	SubscriptionID *string
	TopUpID        *string
	GrantType      GrantType
	Description    string
	Amount         int64
	ExpiresAt      *time.Time
}
