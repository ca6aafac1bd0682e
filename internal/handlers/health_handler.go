package handlers

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db    *gorm.DB
	cache cache.Cache
}

func NewHealthHandler(db *gorm.DB, c cache.Cache) *HealthHandler {
	if c == nil {
		c = cache.Noop{}
	}
	return &HealthHandler{db: db, cache: c}
}

// Check always answers 200 so the process counts as live; dependency state is
// reported in the body.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if err := database.Ping(h.db); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	cacheStatus := "ok"
	if err := h.cache.Ping(ctx); err != nil {
		cacheStatus = "unhealthy: " + err.Error()
	}

	return c.JSON(dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Cache:     cacheStatus,
	})
}
