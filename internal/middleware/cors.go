package middleware

import (
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS allows the web client to call the API and read the request id of
// failed calls. Uploads are multipart, so no extra content types are needed.
func CORS(cfg *config.Config) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Authorization, Accept, X-Admin-Token",
		AllowMethods:     "GET, POST, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: false,
		MaxAge:           3600,
	})
}
