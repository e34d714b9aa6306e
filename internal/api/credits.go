package api

import (
	"errors"
	"strconv"

	"github.com/geoinfer/metering/internal/models"
	"github.com/geoinfer/metering/internal/services/cache"
	"github.com/geoinfer/metering/internal/services/credits"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

type CreditsHandler struct {
	creditsService *credits.Service
	summaryCache   *cache.SummaryCache
}

func NewCreditsHandler(creditsService *credits.Service, summaryCache *cache.SummaryCache) *CreditsHandler {
	return &CreditsHandler{
		creditsService: creditsService,
		summaryCache:   summaryCache,
	}
}

// ConsumeCreditsRequest represents the request body for consuming credits
type ConsumeCreditsRequest struct {
	OrganizationID string  `json:"organization_id" binding:"required"`
	Credits        int64   `json:"credits" binding:"required,min=0"`
	UserID         *string `json:"user_id,omitempty"`
	APIKeyID       *string `json:"api_key_id,omitempty"`
	UsageType      string  `json:"usage_type,omitempty"`
}

// ConsumeCreditsResponse represents the response for a consumption attempt
type ConsumeCreditsResponse struct {
	Consumed       bool   `json:"consumed"`
	OrganizationID string `json:"organization_id"`
	Credits        int64  `json:"credits"`
}

// ConsumeCredits draws credits from an organization's active grants.
// Insufficient funds is not an error: it returns 402 with consumed=false.
func (h *CreditsHandler) ConsumeCredits(c *fiber.Ctx) error {
	var req ConsumeCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.OrganizationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "organization_id is required",
		})
	}

	ok, err := h.creditsService.ConsumeCredits(c.UserContext(), models.ConsumeCreditsParams{
		OrganizationID: req.OrganizationID,
		Credits:        req.Credits,
		UserID:         req.UserID,
		APIKeyID:       req.APIKeyID,
		UsageType:      models.UsageType(req.UsageType),
	})
	if err != nil {
		return errorResponse(c, err, "Failed to consume credits")
	}

	status := fiber.StatusOK
	if !ok {
		status = fiber.StatusPaymentRequired
	} else if h.summaryCache != nil {
		h.summaryCache.Invalidate(c.UserContext(), req.OrganizationID)
	}

	return c.Status(status).JSON(ConsumeCreditsResponse{
		Consumed:       ok,
		OrganizationID: req.OrganizationID,
		Credits:        req.Credits,
	})
}

// GetBalanceResponse represents the response for balance queries
type GetBalanceResponse struct {
	OrganizationID      string `json:"organization_id"`
	SubscriptionCredits int64  `json:"subscription_credits"`
	TopupCredits        int64  `json:"topup_credits"`
	TotalCredits        int64  `json:"total_credits"`
}

// GetBalance retrieves the current credit balance for an organization,
// split into subscription remainder and purchased/trial credits
func (h *CreditsHandler) GetBalance(c *fiber.Ctx) error {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "organization_id is required",
		})
	}

	subscription, topup, err := h.creditsService.GetOrganizationCredits(c.UserContext(), organizationID)
	if err != nil {
		return errorResponse(c, err, "Failed to get credit balance")
	}

	return c.JSON(GetBalanceResponse{
		OrganizationID:      organizationID,
		SubscriptionCredits: subscription,
		TopupCredits:        topup,
		TotalCredits:        subscription + topup,
	})
}

// GetSummary returns the full billing-page summary, served from the Redis
// cache when a fresh copy exists.
func (h *CreditsHandler) GetSummary(c *fiber.Ctx) error {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "organization_id is required",
		})
	}

	if h.summaryCache != nil {
		if summary, ok := h.summaryCache.Get(c.UserContext(), organizationID); ok {
			return c.JSON(summary)
		}
	}

	summary, err := h.creditsService.GetCreditsSummary(c.UserContext(), organizationID)
	if err != nil {
		return errorResponse(c, err, "Failed to get credits summary")
	}

	if h.summaryCache != nil {
		h.summaryCache.Set(c.UserContext(), organizationID, summary)
	}

	return c.JSON(summary)
}

// GetUsageHistoryResponse represents paginated usage history
type GetUsageHistoryResponse struct {
	Entries []models.UsageHistoryEntry `json:"entries"`
	Total   int64                      `json:"total"`
	Limit   int                        `json:"limit"`
	Offset  int                        `json:"offset"`
}

// GetUsageHistory retrieves paginated consumption history for an organization
func (h *CreditsHandler) GetUsageHistory(c *fiber.Ctx) error {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "organization_id is required",
		})
	}

	limit, offset := paginationParams(c)

	entries, total, err := h.creditsService.GetUsageHistory(c.UserContext(), organizationID, limit, offset)
	if err != nil {
		return errorResponse(c, err, "Failed to get usage history")
	}

	return c.JSON(GetUsageHistoryResponse{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// GetGrantHistoryResponse represents paginated grant history
type GetGrantHistoryResponse struct {
	Grants []models.CreditGrant `json:"grants"`
	Total  int64                `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// GetGrantHistory retrieves paginated grant history for an organization
func (h *CreditsHandler) GetGrantHistory(c *fiber.Ctx) error {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "organization_id is required",
		})
	}

	limit, offset := paginationParams(c)

	grants, total, err := h.creditsService.GetGrantHistory(c.UserContext(), organizationID, limit, offset)
	if err != nil {
		return errorResponse(c, err, "Failed to get grant history")
	}

	return c.JSON(GetGrantHistoryResponse{
		Grants: grants,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GrantTrialRequest represents the request body for granting trial credits
type GrantTrialRequest struct {
	OrganizationID string `json:"organization_id" binding:"required"`
	UserID         string `json:"user_id,omitempty"`
}

// GrantTrial grants the one-time trial credits to an organization.
// Replayed requests succeed without granting twice.
func (h *CreditsHandler) GrantTrial(c *fiber.Ctx) error {
	var req GrantTrialRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.OrganizationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "organization_id is required",
		})
	}

	granted, err := h.creditsService.GrantTrialCredits(c.UserContext(), req.OrganizationID, req.UserID)
	if err != nil {
		return errorResponse(c, err, "Failed to grant trial credits")
	}

	if granted && h.summaryCache != nil {
		h.summaryCache.Invalidate(c.UserContext(), req.OrganizationID)
	}

	return c.JSON(fiber.Map{
		"granted":         granted,
		"organization_id": req.OrganizationID,
	})
}

func paginationParams(c *fiber.Ctx) (limit, offset int) {
	limit = 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	offset = 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}

// errorResponse maps service errors onto HTTP responses, keeping the
// taxonomy's status codes for AppErrors and hiding internals otherwise.
func errorResponse(c *fiber.Ctx, err error, fallback string) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{
			"error": appErr.Message,
		})
	}

	fiberlog.Errorf("%s: %v", fallback, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fallback,
	})
}
