package credits

import (
	"context"
	"fmt"
	"time"

	"github.com/geoinfer/metering/internal/models"
	"github.com/geoinfer/metering/internal/services/analytics"
	"github.com/geoinfer/metering/internal/services/billing"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service owns the credit ledger: grant balances, consumption allocation and
// the usage record audit trail. Only this service ever decrements a grant's
// remaining amount.
type Service struct {
	db      *gorm.DB
	billing models.BillingConfig
	catalog billing.Catalog
	mirror  *analytics.Worker
}

func NewService(db *gorm.DB, billingCfg models.BillingConfig, catalog billing.Catalog) *Service {
	return &Service{
		db:      db,
		billing: billingCfg,
		catalog: catalog,
	}
}

// WithMirror attaches the analytics mirror worker; committed usage records
// are submitted to it after each successful consumption.
func (s *Service) WithMirror(w *analytics.Worker) *Service {
	s.mirror = w
	return s
}

// AutoMigrate runs database migrations for ledger tables
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.CreditGrant{},
		&models.TopUp{},
		&models.UsageRecord{},
		&models.AlertSettings{},
		&models.Alert{},
	)
}

// GetOrganizationCredits returns the organization's available credits split
// into subscription remainder and everything else (top-up, trial, manual
// combined). Expiry is deliberately not filtered here; it is enforced at
// allocation time.
func (s *Service) GetOrganizationCredits(ctx context.Context, organizationID string) (int64, int64, error) {
	type grantSum struct {
		GrantType models.GrantType
		Total     int64
	}

	var sums []grantSum
	err := s.db.WithContext(ctx).
		Model(&models.CreditGrant{}).
		Select("grant_type, SUM(remaining_amount) AS total").
		Where("organization_id = ? AND remaining_amount > 0", organizationID).
		Group("grant_type").
		Scan(&sums).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum credit grants: %w", err)
	}

	var subscriptionCredits, topupCredits int64
	for _, row := range sums {
		if row.GrantType == models.GrantTypeSubscription {
			subscriptionCredits = row.Total
		} else {
			topupCredits += row.Total
		}
	}

	return subscriptionCredits, topupCredits, nil
}

// allocation is one planned draw against one grant.
type allocation struct {
	grant  *models.CreditGrant
	amount int64
}

// planAllocation selects FIFO draws covering the requested amount, skipping
// expired grants. Returns nil when the eligible grants cannot cover it in
// full: allocation is all-or-nothing.
func planAllocation(grants []models.CreditGrant, credits int64, now time.Time) []allocation {
	var plan []allocation
	remaining := credits
	for i := range grants {
		grant := &grants[i]
		if grant.Expired(now) || grant.RemainingAmount <= 0 {
			continue
		}
		draw := min(remaining, grant.RemainingAmount)
		plan = append(plan, allocation{grant: grant, amount: draw})
		remaining -= draw
		if remaining == 0 {
			return plan
		}
	}
	return nil
}

// ConsumeCredits draws the requested amount from the organization's grants,
// oldest first, and records one UsageRecord per grant drawn from. The first
// return value is the business outcome: false means the request is
// ineligible (insufficient credits, unknown organization, invalid amount)
// and nothing was mutated. Errors are reserved for infrastructure failures.
func (s *Service) ConsumeCredits(ctx context.Context, params models.ConsumeCreditsParams) (bool, error) {
	if params.OrganizationID == "" {
		fiberlog.Errorf("consume credits: organization_id must be provided")
		return false, nil
	}
	if params.Credits < 0 {
		fiberlog.Warnf("consume credits: rejected negative amount %d for organization %s", params.Credits, params.OrganizationID)
		return false, nil
	}
	if params.Credits == 0 {
		return true, nil
	}
	if params.UsageType == "" {
		params.UsageType = models.UsageTypeGlobal
	}

	subscriptionCredits, topupCredits, err := s.GetOrganizationCredits(ctx, params.OrganizationID)
	if err != nil {
		return false, err
	}
	if subscriptionCredits+topupCredits < params.Credits {
		return false, nil
	}

	var (
		consumed bool
		records  []models.UsageRecord
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("organization_id = ? AND remaining_amount > 0", params.OrganizationID).
			Order("created_at ASC")
		if tx.Dialector.Name() != "sqlite" {
			// Row locks serialize concurrent consumers for the same
			// organization; SQLite has no FOR UPDATE and serializes writers
			// at the database level anyway.
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var grants []models.CreditGrant
		if err := query.Find(&grants).Error; err != nil {
			return fmt.Errorf("failed to lock credit grants: %w", err)
		}

		plan := planAllocation(grants, params.Credits, time.Now().UTC())
		if plan == nil {
			// Grants expired between the availability check and the locked
			// read. Nothing has been mutated; fail the whole request rather
			// than committing a partial draw.
			fiberlog.Warnf("consume credits: eligible grants cannot cover %d credits for organization %s", params.Credits, params.OrganizationID)
			return nil
		}

		records = records[:0]
		for _, draw := range plan {
			// The guarded decrement keeps each grant non-negative even if a
			// concurrent writer slipped past the row lock.
			res := tx.Model(&models.CreditGrant{}).
				Where("id = ? AND remaining_amount >= ?", draw.grant.ID, draw.amount).
				UpdateColumn("remaining_amount", gorm.Expr("remaining_amount - ?", draw.amount))
			if res.Error != nil {
				return fmt.Errorf("failed to decrement grant %s: %w", draw.grant.ID, res.Error)
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("concurrent modification of grant %s", draw.grant.ID)
			}

			record := models.UsageRecord{
				ID:              newID(),
				OrganizationID:  params.OrganizationID,
				UserID:          params.UserID,
				APIKeyID:        params.APIKeyID,
				CreditsConsumed: draw.amount,
				UsageType:       params.UsageType,
				OperationType:   models.OperationConsumption,
				SubscriptionID:  draw.grant.SubscriptionID,
				TopUpID:         draw.grant.TopUpID,
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("failed to create usage record: %w", err)
			}
			records = append(records, record)
		}

		if err := s.checkUsageAlerts(tx, params.OrganizationID); err != nil {
			// Alerting must never fail a consumption.
			fiberlog.Warnf("consume credits: alert check failed for organization %s: %v", params.OrganizationID, err)
		}

		consumed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !consumed {
		return false, nil
	}

	if s.mirror != nil {
		s.mirror.Submit(records)
	}

	if params.UserID != nil {
		fiberlog.Infof("consumed %d credits for user %s (organization %s)", params.Credits, *params.UserID, params.OrganizationID)
	} else {
		fiberlog.Infof("consumed %d credits for organization %s via API key", params.Credits, params.OrganizationID)
	}
	return true, nil
}

// CreateGrant inserts a manual-adjustment grant. Subscription renewals and
// top-up purchases create their grants through their own services.
func (s *Service) CreateGrant(ctx context.Context, params models.CreateGrantParams) (*models.CreditGrant, error) {
	if params.Amount <= 0 {
		return nil, models.NewValidationError("grant amount must be positive", nil)
	}

	grant := models.CreditGrant{
		ID:              newID(),
		OrganizationID:  params.OrganizationID,
		SubscriptionID:  params.SubscriptionID,
		TopUpID:         params.TopUpID,
		GrantType:       params.GrantType,
		Description:     params.Description,
		Amount:          params.Amount,
		RemainingAmount: params.Amount,
		ExpiresAt:       params.ExpiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&grant).Error; err != nil {
		return nil, fmt.Errorf("failed to create credit grant: %w", err)
	}
	return &grant, nil
}

func newID() string {
	return uuid.NewString()
}
