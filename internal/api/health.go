package api

import (
	"context"
	"time"

	"github.com/geoinfer/metering/internal/services/database"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db          *database.DB
	analyticsDB *database.DB
	redisClient *redis.Client
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(db, analyticsDB *database.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{
		db:          db,
		analyticsDB: analyticsDB,
		redisClient: redisClient,
	}
}

// HealthCheck returns the health status of the service and its dependencies
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	dbStatus := h.checkDatabase(h.db)

	checks := fiber.Map{
		"database": dbStatus,
	}

	overallStatus := "healthy"
	statusCode := fiber.StatusOK
	if dbStatus != "healthy" {
		overallStatus = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	// Optional dependencies degrade the report but not the status code.
	if h.analyticsDB != nil {
		checks["analytics"] = h.checkDatabase(h.analyticsDB)
	}
	if h.redisClient != nil {
		checks["redis"] = h.checkRedis()
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (h *HealthHandler) checkDatabase(db *database.DB) string {
	if db == nil {
		return "unknown"
	}

	if err := db.Ping(); err != nil {
		return "unhealthy"
	}

	return "healthy"
}

// checkRedis verifies Redis connectivity
func (h *HealthHandler) checkRedis() string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		return "unhealthy"
	}

	return "healthy"
}
