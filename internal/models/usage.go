package models

import "time"

// UsageType identifies which billable inference model a consumption paid for.
type UsageType string

const (
	UsageTypeGlobal   UsageType = "global"
	UsageTypeAccuracy UsageType = "accuracy"
	UsageTypeProperty UsageType = "property"
	UsageTypeCars     UsageType = "cars"
)

type OperationType string

const (
	OperationConsumption OperationType = "consumed"
	OperationGrant       OperationType = "granted"
)

// UsageRecord is an immutable receipt of one draw against one grant. A
// single logical consumption produces one record per grant it was funded
// from, so CreditsConsumed is the amount drawn from that grant, not
// necessarily the whole request.
type UsageRecord struct {
	ID              string        `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID  string        `gorm:"type:uuid;not null;index" json:"organization_id"`
	UserID          *string       `gorm:"type:uuid;index" json:"user_id,omitempty"`
	APIKeyID        *string       `gorm:"type:uuid;index" json:"api_key_id,omitempty"`
	CreditsConsumed int64         `gorm:"not null" json:"credits_consumed"`
	UsageType       UsageType     `gorm:"size:32;not null;default:'global'" json:"usage_type"`
	OperationType   OperationType `gorm:"size:32;not null;default:'consumed'" json:"operation_type"`
	SubscriptionID  *string       `gorm:"type:uuid;index" json:"subscription_id,omitempty"`
	TopUpID         *string       `gorm:"type:uuid;index" json:"topup_id,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

// UsageHistoryEntry is one row of the consumption history read path, with
// the funding grant's description joined in.
type UsageHistoryEntry struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"organization_id"`
	APIKeyID        *string   `json:"api_key_id,omitempty"`
	SubscriptionID  *string   `json:"subscription_id,omitempty"`
	TopUpID         *string   `json:"topup_id,omitempty"`
	CreditsConsumed int64     `json:"credits_consumed"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
}
