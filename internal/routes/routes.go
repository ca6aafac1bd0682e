package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/apps"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	userService *services.UserService,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	plugins []apps.Plugin,
) {
	// Uploaded photos are public by URL.
	app.Static(cfg.UploadURLPrefix, cfg.UploadDir, fiber.Static{
		MaxAge: 86400,
	})

	api := app.Group("/api")

	// General API rate limiter, per IP
	api.Use(limiter.New(limiter.Config{
		Max:               cfg.RateLimitPerMinute,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	// Health (public)
	api.Get("/health", healthHandler.Check)

	// Admin routes go first so the user auth chain below never runs for them.
	admin := api.Group("/admin", middleware.AdminRequired(cfg))
	for _, p := range plugins {
		if ap, ok := p.(apps.AdminPlugin); ok {
			ap.RegisterAdminRoutes(admin, db, cfg)
		}
	}

	// Everything else requires an authenticated user.
	var protected fiber.Router
	if cfg.IsDevelopment() {
		protected = api.Group("", middleware.DevIdentity(userService, cfg.DevUserID))
	} else {
		protected = api.Group("", middleware.JWTProtected(cfg), middleware.Identity(userService))
	}

	protected.Get("/auth/user", authHandler.GetUser)

	for _, p := range plugins {
		p.RegisterRoutes(protected, db, cfg)
	}
}
