package api

import (
	"github.com/geoinfer/metering/internal/services/billing"
	"github.com/geoinfer/metering/internal/services/cache"

	"github.com/gofiber/fiber/v2"
)

type BillingHandler struct {
	stripeService *billing.StripeService
	summaryCache  *cache.SummaryCache
}

func NewBillingHandler(stripeService *billing.StripeService, summaryCache *cache.SummaryCache) *BillingHandler {
	return &BillingHandler{
		stripeService: stripeService,
		summaryCache:  summaryCache,
	}
}

// CreateTopUpCheckoutRequest represents the request body for creating a
// top-up checkout session
type CreateTopUpCheckoutRequest struct {
	OrganizationID string `json:"organization_id" binding:"required"`
	UserID         string `json:"user_id" binding:"required"`
	Package        string `json:"package" binding:"required"`
	SuccessURL     string `json:"success_url" binding:"required"`
	CancelURL      string `json:"cancel_url" binding:"required"`
	CustomerEmail  string `json:"customer_email,omitempty"`
}

// CreateTopUpCheckoutResponse represents the response for checkout session creation
type CreateTopUpCheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	Credits     int64  `json:"credits"`
}

// CreateTopUpCheckout creates a Stripe checkout session for a top-up package
func (h *BillingHandler) CreateTopUpCheckout(c *fiber.Ctx) error {
	var req CreateTopUpCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.OrganizationID == "" || req.Package == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "organization_id and package are required",
		})
	}

	if req.SuccessURL == "" || req.CancelURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "success_url and cancel_url are required",
		})
	}

	pkg := billing.TopupPackage(req.Package)
	session, err := h.stripeService.CreateTopUpCheckout(c.UserContext(), billing.CreateCheckoutParams{
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		Package:        pkg,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		CustomerEmail:  req.CustomerEmail,
	})
	if err != nil {
		return errorResponse(c, err, "Failed to create checkout session")
	}

	var credits int64
	if pkgCfg, ok := h.stripeService.Package(pkg); ok {
		credits = pkgCfg.Credits
	}

	return c.JSON(CreateTopUpCheckoutResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		Credits:     credits,
	})
}

// CompleteTopUpRequest represents a verified payment completion notification
type CompleteTopUpRequest struct {
	OrganizationID  string `json:"organization_id" binding:"required"`
	Package         string `json:"package" binding:"required"`
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

// CompleteTopUp records a completed top-up purchase. The caller is expected
// to have already verified the payment; replayed deliveries of the same
// payment intent return the existing top-up.
func (h *BillingHandler) CompleteTopUp(c *fiber.Ctx) error {
	var req CompleteTopUpRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.OrganizationID == "" || req.PaymentIntentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "organization_id and payment_intent_id are required",
		})
	}

	topUp, err := h.stripeService.RecordTopUpPurchase(c.UserContext(), billing.RecordTopUpParams{
		OrganizationID:  req.OrganizationID,
		Package:         billing.TopupPackage(req.Package),
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		return errorResponse(c, err, "Failed to record top-up purchase")
	}

	if h.summaryCache != nil {
		h.summaryCache.Invalidate(c.UserContext(), req.OrganizationID)
	}

	return c.JSON(fiber.Map{
		"top_up_id":       topUp.ID,
		"organization_id": topUp.OrganizationID,
		"credits":         topUp.CreditsPurchased,
	})
}
