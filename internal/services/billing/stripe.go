package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/geoinfer/metering/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"gorm.io/gorm"
)

// StripeService creates top-up checkout sessions and records completed
// purchases as TopUp + CreditGrant pairs. Webhook delivery and signature
// verification live in the surrounding API layer; by the time
// RecordTopUpPurchase runs, the event is already trusted.
type StripeService struct {
	db      *gorm.DB
	catalog Catalog
}

func NewStripeService(cfg models.StripeConfig, db *gorm.DB, catalog Catalog) *StripeService {
	stripe.Key = cfg.SecretKey

	return &StripeService{
		db:      db,
		catalog: catalog,
	}
}

// Package returns the catalog entry for a top-up package key.
func (s *StripeService) Package(key TopupPackage) (TopupPackageConfig, bool) {
	pkg, ok := s.catalog.Topups[key]
	return pkg, ok
}

// CreateCheckoutParams contains parameters for creating a top-up checkout session
type CreateCheckoutParams struct {
	OrganizationID string
	UserID         string
	Package        TopupPackage
	SuccessURL     string
	CancelURL      string
	CustomerEmail  string
}

// CreateTopUpCheckout creates a Stripe checkout session for purchasing a
// top-up package.
func (s *StripeService) CreateTopUpCheckout(ctx context.Context, params CreateCheckoutParams) (*stripe.CheckoutSession, error) {
	pkg, ok := s.catalog.Topups[params.Package]
	if !ok {
		return nil, models.NewValidationError(fmt.Sprintf("unknown top-up package %q", params.Package), nil)
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(pkg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata: map[string]string{
			"organization_id": params.OrganizationID,
			"user_id":         params.UserID,
			"package":         string(params.Package),
		},
	}
	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}

	sess, err := session.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess, nil
}

// RecordTopUpParams identifies a completed top-up checkout.
type RecordTopUpParams struct {
	OrganizationID  string
	Package         TopupPackage
	PaymentIntentID string
}

// RecordTopUpPurchase persists a completed purchase as one TopUp and its
// matching grant. Idempotent on the payment intent: replayed webhook
// deliveries return the already-recorded top-up.
func (s *StripeService) RecordTopUpPurchase(ctx context.Context, params RecordTopUpParams) (*models.TopUp, error) {
	if params.OrganizationID == "" || params.PaymentIntentID == "" {
		return nil, models.NewValidationError("organization_id and payment_intent_id are required", nil)
	}

	pkg, ok := s.catalog.Topups[params.Package]
	if !ok {
		return nil, models.NewValidationError(fmt.Sprintf("unknown top-up package %q", params.Package), nil)
	}

	var existing models.TopUp
	err := s.db.WithContext(ctx).
		Where("stripe_payment_intent_id = ?", params.PaymentIntentID).
		First(&existing).Error
	if err == nil {
		fiberlog.Infof("top-up for payment intent %s already recorded", params.PaymentIntentID)
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to check existing top-up: %w", err)
	}

	expiresAt := time.Now().UTC().AddDate(0, 0, pkg.ExpiryDays)

	topup := models.TopUp{
		ID:                    uuid.NewString(),
		OrganizationID:        params.OrganizationID,
		StripePaymentIntentID: &params.PaymentIntentID,
		Description:           pkg.Name,
		PricePaid:             pkg.Price,
		CreditsPurchased:      pkg.Credits,
		PackageType:           models.GrantTypeTopup,
		ExpiresAt:             &expiresAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&topup).Error; err != nil {
			return fmt.Errorf("failed to create top-up: %w", err)
		}

		grant := models.CreditGrant{
			ID:              uuid.NewString(),
			OrganizationID:  params.OrganizationID,
			TopUpID:         &topup.ID,
			GrantType:       models.GrantTypeTopup,
			Description:     pkg.Name,
			Amount:          pkg.Credits,
			RemainingAmount: pkg.Credits,
			ExpiresAt:       &expiresAt,
		}
		if err := tx.Create(&grant).Error; err != nil {
			return fmt.Errorf("failed to create top-up credit grant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fiberlog.Infof("recorded top-up %s for organization %s: %s (%d credits)",
		topup.ID, params.OrganizationID, pkg.Name, pkg.Credits)
	return &topup, nil
}
