package middleware

import (
	"crypto/subtle"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// AdminRequired guards operator routes with the shared X-Admin-Token header.
// Without a configured token the admin routes are closed.
func AdminRequired(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.AdminToken == "" {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Admin access disabled",
			})
		}

		token := c.Get("X-Admin-Token")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.AdminToken)) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Admin access required",
			})
		}
		return c.Next()
	}
}
