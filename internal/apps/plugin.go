package apps

import (
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Plugin is a feature area that owns its models and routes.
type Plugin interface {
	ID() string

	// Models returns the list of GORM model pointers for AutoMigrate.
	Models() []interface{}

	// RegisterRoutes mounts routes on the given group. The group is already
	// prefixed with /api and resolves the authenticated user.
	RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config)
}

// AdminPlugin extends Plugin with admin-only route registration.
type AdminPlugin interface {
	Plugin

	// RegisterAdminRoutes mounts routes on the /api/admin group, which is
	// guarded by the admin token middleware.
	RegisterAdminRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config)
}
