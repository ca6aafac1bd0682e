package gamification

import (
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type GamificationPlugin struct {
	cache cache.Cache
}

func New(c cache.Cache) *GamificationPlugin {
	return &GamificationPlugin{cache: c}
}

func (p *GamificationPlugin) ID() string { return "gamification" }

func (p *GamificationPlugin) Models() []interface{} {
	return []interface{}{
		&Achievement{},
	}
}

func (p *GamificationPlugin) RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	handler := NewAchievementHandler(NewService(db, p.cache))

	router.Get("/achievements", handler.List)
	router.Post("/achievements", handler.Create)
}

func (p *GamificationPlugin) RegisterAdminRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	handler := NewAchievementHandler(NewService(db, p.cache))

	router.Post("/users/:id/achievements", handler.Award)
}
