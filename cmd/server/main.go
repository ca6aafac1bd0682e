package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/apps"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/apps/gamification"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/apps/tracking"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/uploads"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout, optional rotated file)
	baseHandler := logging.Setup(cfg)

	if !cfg.IsDevelopment() && cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	// Migrate shared models
	if err := database.MigrateShared(database.DB); err != nil {
		slog.Error("shared migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(baseHandler, pgLogHandler)))

	// Log cleanup
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, cleanupDone)

	metrics.Init()

	// Stats cache
	var statsCache cache.Cache = cache.Noop{}
	var redisCache *cache.RedisCache
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rc, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		cancel()
		if err != nil {
			slog.Warn("redis unavailable, stats cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			redisCache = rc
			statsCache = rc
			slog.Info("redis connected", "addr", cfg.RedisAddr)
		}
	}

	// Upload storage
	var files uploads.Store
	if cfg.S3Bucket != "" {
		s3Store, err := uploads.NewS3Store(context.Background(), cfg.S3Bucket, cfg.S3Region, cfg.S3PublicURL)
		if err != nil {
			slog.Error("s3 init failed", "bucket", cfg.S3Bucket, "error", err)
			os.Exit(1)
		}
		files = s3Store
	} else {
		diskStore, err := uploads.NewDiskStore(cfg.UploadDir, cfg.UploadURLPrefix)
		if err != nil {
			slog.Error("upload dir init failed", "dir", cfg.UploadDir, "error", err)
			os.Exit(1)
		}
		files = diskStore
	}

	plugins := []apps.Plugin{
		gamification.New(statsCache),
		tracking.New(statsCache, files),
	}

	// Migrate plugin models
	for _, p := range plugins {
		if models := p.Models(); len(models) > 0 {
			if err := database.MigrateModels(database.DB, models); err != nil {
				slog.Error("plugin migration failed", "plugin", p.ID(), "error", err)
				os.Exit(1)
			}
			slog.Info("plugin migrated", "plugin", p.ID(), "models", len(models))
		}
	}

	// Services and handlers
	userService := services.NewUserService(database.DB)
	authHandler := handlers.NewAuthHandler(userService)
	healthHandler := handlers.NewHealthHandler(database.DB, statsCache)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app. Multipart bodies carry a photo plus form fields.
	app := fiber.New(fiber.Config{
		BodyLimit:    int(cfg.UploadMaxBytes) + 1024*1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Routes
	routes.Setup(app, cfg, database.DB, userService, authHandler, healthHandler, plugins)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
