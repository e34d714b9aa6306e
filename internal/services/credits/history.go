package credits

import (
	"context"
	"fmt"

	"github.com/geoinfer/metering/internal/models"
)

// GetUsageHistory returns the organization's consumption history, newest
// first, with the funding grant's description joined in. Returns the page
// and the total record count.
func (s *Service) GetUsageHistory(ctx context.Context, organizationID string, limit, offset int) ([]models.UsageHistoryEntry, int64, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("organization_id = ?", organizationID).
		Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count usage records: %w", err)
	}

	var entries []models.UsageHistoryEntry
	err = s.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Select("usage_records.id, usage_records.organization_id, usage_records.api_key_id, usage_records.subscription_id, usage_records.top_up_id, usage_records.credits_consumed, COALESCE(top_ups.description, subscriptions.description, '') AS description, usage_records.created_at").
		Joins("LEFT JOIN subscriptions ON usage_records.subscription_id = subscriptions.id").
		Joins("LEFT JOIN top_ups ON usage_records.top_up_id = top_ups.id").
		Where("usage_records.organization_id = ?", organizationID).
		Order("usage_records.created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load usage history: %w", err)
	}

	return entries, total, nil
}

// GetGrantHistory returns all of the organization's grants, newest first,
// exhausted ones included.
func (s *Service) GetGrantHistory(ctx context.Context, organizationID string, limit, offset int) ([]models.CreditGrant, int64, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.CreditGrant{}).
		Where("organization_id = ?", organizationID).
		Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count credit grants: %w", err)
	}

	var grants []models.CreditGrant
	err = s.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&grants).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load grant history: %w", err)
	}

	return grants, total, nil
}
