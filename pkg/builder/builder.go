package builder

import (
	"github.com/geoinfer/metering/internal/config"
	"github.com/geoinfer/metering/internal/models"
	"github.com/gofiber/fiber/v2"
)

// Builder assembles a metering server configuration programmatically, as an
// alternative to loading config.yaml.
type Builder struct {
	cfg         *config.Config
	middlewares []fiber.Handler
}

func New() *Builder {
	return &Builder{
		cfg: &config.Config{
			Server: models.ServerConfig{
				Port:           "8080",
				AllowedOrigins: "*",
				Environment:    "development",
				LogLevel:       "info",
			},
			Billing: models.BillingConfig{
				TrialCreditAmount:     15,
				TrialExpiryDays:       15,
				OverageReportInterval: 3600,
			},
		},
		middlewares: []fiber.Handler{},
	}
}

func (b *Builder) Build() *config.Config {
	return b.cfg
}

// Use appends a custom Fiber middleware, applied after the built-in stack.
func (b *Builder) Use(middleware fiber.Handler) *Builder {
	b.middlewares = append(b.middlewares, middleware)
	return b
}

func (b *Builder) GetMiddlewares() []fiber.Handler {
	return b.middlewares
}

func (b *Builder) Port(port string) *Builder {
	b.cfg.Server.Port = port
	return b
}

func (b *Builder) AllowedOrigins(origins string) *Builder {
	b.cfg.Server.AllowedOrigins = origins
	return b
}

func (b *Builder) Environment(env string) *Builder {
	b.cfg.Server.Environment = env
	return b
}

func (b *Builder) LogLevel(level string) *Builder {
	b.cfg.Server.LogLevel = level
	return b
}
