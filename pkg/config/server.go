package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/geoinfer/metering/internal/api"
	"github.com/geoinfer/metering/internal/config"
	"github.com/geoinfer/metering/internal/services/analytics"
	"github.com/geoinfer/metering/internal/services/billing"
	"github.com/geoinfer/metering/internal/services/cache"
	"github.com/geoinfer/metering/internal/services/credits"
	"github.com/geoinfer/metering/internal/services/database"
	"github.com/geoinfer/metering/internal/services/subscriptions"
	"github.com/geoinfer/metering/pkg/builder"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

// Server represents a metering server instance.
type Server struct {
	config  *config.Config
	app     *fiber.App
	builder *builder.Builder

	db          *database.DB
	analyticsDB *database.DB

	summaryCache    *cache.SummaryCache
	mirror          *analytics.Worker
	overageReporter *billing.OverageReporter
}

type meteringServices struct {
	credits       *credits.Service
	subscriptions *subscriptions.Service
	analytics     *analytics.Service
	stripe        *billing.StripeService
}

// NewServer creates a new Server instance with the given configuration.
// The cfg parameter is required and must not be nil.
func NewServer(cfg *config.Config) *Server {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() or the builder to create config")
	}

	return &Server{config: cfg}
}

// NewServerWithBuilder creates a new Server instance from a configuration
// builder, allowing custom middleware.
func NewServerWithBuilder(b *builder.Builder) *Server {
	return &Server{
		config:  b.Build(),
		builder: b,
	}
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(s.config)

	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	s.app = createFiberApp(s.config)

	// === Infrastructure Setup ===
	if err := s.initializeInfrastructure(); err != nil {
		return err
	}

	defer func() {
		if s.summaryCache != nil {
			if err := s.summaryCache.Close(); err != nil {
				fiberlog.Errorf("Failed to close Redis client: %v", err)
			}
		}
		if s.analyticsDB != nil {
			if err := s.analyticsDB.Close(); err != nil {
				fiberlog.Errorf("Failed to close analytics database: %v", err)
			}
		}
		if s.db != nil {
			if err := s.db.Close(); err != nil {
				fiberlog.Errorf("Failed to close database connection: %v", err)
			}
		}
	}()

	// === Services Initialization ===
	services := s.initializeServices()

	// === Middleware Setup ===
	s.setupMiddleware()

	// === Routes Setup ===
	s.setupRoutes(services)

	// Welcome endpoint
	s.app.Get("/", welcomeHandler())

	// === Background Workers ===
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if s.overageReporter != nil {
		go s.overageReporter.Start(ctx)
		defer s.overageReporter.Stop()
	}
	go periodCloser(ctx, services.subscriptions)
	if s.mirror != nil {
		defer s.mirror.Stop()
	}

	// Print startup info
	fmt.Printf("Geoinfer metering starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", s.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())
	fmt.Printf("   GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))

	// Graceful shutdown handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		fiberlog.Info("Context cancelled, starting shutdown...")
	}

	fiberlog.Info("Server shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	shutdownErrChan := make(chan error, 1)
	go func() {
		shutdownErrChan <- s.app.ShutdownWithTimeout(30 * time.Second)
	}()

	select {
	case err := <-shutdownErrChan:
		if err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		fiberlog.Info("Server shutdown completed successfully")
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}

	return nil
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:           "Geoinfer Metering v1.0",
		EnablePrintRoutes: !isProd,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		CaseSensitive:     true,
		StrictRouting:     false,
		Network:           "tcp",
		ServerHeader:      "GeoinferMetering",
	})
}

func (s *Server) setupMiddleware() {
	isProd := s.config.IsProduction()

	// Recover middleware (must be first)
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	// Rate limiter
	s.app.Use(limiter.New(limiter.Config{
		Max:               1000,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fmt.Errorf("1000 requests per minute")
		},
	}))

	// Compression
	s.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Logging
	if isProd {
		s.app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		s.app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, User-Agent",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
	}))

	// Custom middlewares from builder
	if s.builder != nil {
		for _, middleware := range s.builder.GetMiddlewares() {
			s.app.Use(middleware)
		}
	}

	// Profiler (dev only)
	if !isProd {
		s.app.Use(pprof.New())
	}
}

func setupLogLevel(cfg *config.Config) {
	logLevel := cfg.GetNormalizedLogLevel()

	switch logLevel {
	case "trace":
		fiberlog.SetLevel(fiberlog.LevelTrace)
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "info":
		fiberlog.SetLevel(fiberlog.LevelInfo)
	case "warn", "warning":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	case "fatal":
		fiberlog.SetLevel(fiberlog.LevelFatal)
	case "panic":
		fiberlog.SetLevel(fiberlog.LevelPanic)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
		fiberlog.Warnf("Unknown log level '%s', defaulting to 'info'", logLevel)
	}

	fiberlog.Infof("Log level set to: %s", logLevel)
}

func (s *Server) initializeInfrastructure() error {
	db, err := database.New(s.config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	s.db = db
	fiberlog.Infof("Database (%s) initialized successfully", db.DriverName())

	if err := runDatabaseMigrations(db, s.config); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	fiberlog.Info("Database migrations completed successfully")

	if s.config.Analytics != nil {
		analyticsDB, err := database.New(*s.config.Analytics)
		if err != nil {
			return fmt.Errorf("failed to create analytics database connection: %w", err)
		}
		s.analyticsDB = analyticsDB
		fiberlog.Infof("Analytics database (%s) initialized successfully", analyticsDB.DriverName())
	} else {
		fiberlog.Info("Analytics database not configured - usage mirroring disabled")
	}

	if s.config.Cache.Enabled {
		summaryCache, err := cache.NewSummaryCache(s.config.Cache)
		if err != nil {
			return fmt.Errorf("failed to create summary cache: %w", err)
		}
		s.summaryCache = summaryCache
		fiberlog.Info("Summary cache initialized successfully")
	} else {
		fiberlog.Info("Summary cache not configured - serving summaries from the database")
	}

	return nil
}

func runDatabaseMigrations(db *database.DB, cfg *config.Config) error {
	catalog := billing.DefaultCatalog()

	creditsSvc := credits.NewService(db.DB, cfg.Billing, catalog)
	if err := creditsSvc.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate ledger tables: %w", err)
	}

	subscriptionsSvc := subscriptions.NewService(db.DB)
	if err := subscriptionsSvc.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate subscription tables: %w", err)
	}

	return nil
}

func (s *Server) initializeServices() *meteringServices {
	catalog := billing.DefaultCatalog()

	var analyticsSvc *analytics.Service
	if s.analyticsDB != nil {
		analyticsSvc = analytics.NewService(s.analyticsDB.DB)
		if err := analyticsSvc.AutoMigrate(); err != nil {
			fiberlog.Errorf("Failed to migrate analytics store: %v", err)
		}
		s.mirror = analytics.NewWorker(analyticsSvc, 2, 256)
	}

	creditsSvc := credits.NewService(s.db.DB, s.config.Billing, catalog)
	if s.mirror != nil {
		creditsSvc = creditsSvc.WithMirror(s.mirror)
	}

	subscriptionsSvc := subscriptions.NewService(s.db.DB)

	var stripeSvc *billing.StripeService
	if s.config.Billing.Stripe.SecretKey != "" {
		stripeSvc = billing.NewStripeService(s.config.Billing.Stripe, s.db.DB, catalog)

		if s.config.Billing.Stripe.MeterEventName != "" {
			interval := time.Duration(s.config.Billing.OverageReportInterval) * time.Second
			s.overageReporter = billing.NewOverageReporter(s.db.DB, s.config.Billing.Stripe, interval)
		}
	} else {
		fiberlog.Info("Stripe not configured - checkout and overage reporting disabled")
	}

	return &meteringServices{
		credits:       creditsSvc,
		subscriptions: subscriptionsSvc,
		analytics:     analyticsSvc,
		stripe:        stripeSvc,
	}
}

func (s *Server) setupRoutes(services *meteringServices) {
	healthHandler := api.NewHealthHandler(s.db, s.analyticsDB, s.redisClient())
	s.app.Get("/health", healthHandler.HealthCheck)

	creditsHandler := api.NewCreditsHandler(services.credits, s.summaryCache)

	v1Group := s.app.Group("/v1")

	creditsGroup := v1Group.Group("/credits")
	creditsGroup.Get("/", creditsHandler.GetBalance)
	creditsGroup.Get("/summary", creditsHandler.GetSummary)
	creditsGroup.Get("/history", creditsHandler.GetUsageHistory)
	creditsGroup.Get("/grants", creditsHandler.GetGrantHistory)
	creditsGroup.Post("/consume", creditsHandler.ConsumeCredits)
	creditsGroup.Post("/trial", creditsHandler.GrantTrial)

	if services.stripe != nil {
		billingHandler := api.NewBillingHandler(services.stripe, s.summaryCache)
		billingGroup := v1Group.Group("/billing")
		billingGroup.Post("/topup/checkout", billingHandler.CreateTopUpCheckout)
		billingGroup.Post("/topup/complete", billingHandler.CompleteTopUp)
	}

	if services.analytics != nil {
		analyticsHandler := api.NewAnalyticsHandler(services.analytics)
		usageGroup := v1Group.Group("/usage")
		usageGroup.Get("/timeseries", analyticsHandler.GetUsageTimeseries)
		usageGroup.Get("/by-type", analyticsHandler.GetUsageByType)
	}
}

func (s *Server) redisClient() *redis.Client {
	if s.summaryCache == nil {
		return nil
	}
	return s.summaryCache.Client()
}

// periodCloser marks usage periods of lapsed subscriptions closed once an
// hour so the overage reporter stops looking at them.
func periodCloser(ctx context.Context, subscriptionsSvc *subscriptions.Service) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			closed, err := subscriptionsSvc.CloseExpiredPeriods(ctx)
			if err != nil {
				fiberlog.Errorf("Failed to close expired usage periods: %v", err)
			} else if closed > 0 {
				fiberlog.Infof("Closed %d expired usage periods", closed)
			}
		case <-ctx.Done():
			return
		}
	}
}

func welcomeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":    "Welcome to Geoinfer Metering!",
			"version":    "1.0.0",
			"go_version": runtime.Version(),
			"status":     "running",
			"endpoints": fiber.Map{
				"consume": "/v1/credits/consume",
				"balance": "/v1/credits",
				"summary": "/v1/credits/summary",
				"history": "/v1/credits/history",
				"health":  "/health",
			},
		})
	}
}
