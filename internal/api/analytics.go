package api

import (
	"strconv"

	"github.com/geoinfer/metering/internal/services/analytics"

	"github.com/gofiber/fiber/v2"
)

type AnalyticsHandler struct {
	analyticsService *analytics.Service
}

func NewAnalyticsHandler(analyticsService *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
	}
}

// GetUsageTimeseries returns per-day consumption over the trailing window
func (h *AnalyticsHandler) GetUsageTimeseries(c *fiber.Ctx) error {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "organization_id is required",
		})
	}

	points, err := h.analyticsService.UsageTimeseries(c.UserContext(), organizationID, daysParam(c))
	if err != nil {
		return errorResponse(c, err, "Failed to query usage timeseries")
	}

	return c.JSON(fiber.Map{
		"organization_id": organizationID,
		"points":          points,
	})
}

// GetUsageByType returns the trailing window's consumption broken down by
// usage type
func (h *AnalyticsHandler) GetUsageByType(c *fiber.Ctx) error {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "organization_id is required",
		})
	}

	breakdown, err := h.analyticsService.UsageByType(c.UserContext(), organizationID, daysParam(c))
	if err != nil {
		return errorResponse(c, err, "Failed to query usage breakdown")
	}

	return c.JSON(fiber.Map{
		"organization_id": organizationID,
		"by_type":         breakdown,
	})
}

func daysParam(c *fiber.Ctx) int {
	days := 30
	if daysStr := c.Query("days"); daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 && d <= 365 {
			days = d
		}
	}
	return days
}
