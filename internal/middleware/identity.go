package middleware

import (
	"context"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

// UserEnsurer creates or refreshes the user row for a set of claims.
type UserEnsurer interface {
	EnsureUser(ctx context.Context, claims identity.Claims) (*models.User, error)
}

// Identity runs after JWTProtected. It mirrors the token's profile claims into
// the users table and exposes the subject as the request's user id.
func Identity(users UserEnsurer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := identity.ClaimsFromToken(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		if _, err := users.EnsureUser(c.UserContext(), claims); err != nil {
			slog.Error("failed to sync user", "user_id", claims.Subject, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to load user",
			})
		}

		identity.SetUserID(c, claims.Subject)
		return c.Next()
	}
}

// DevIdentity replaces token verification in development: every request acts
// as the configured dev user, which is created on first use.
func DevIdentity(users UserEnsurer, userID string) fiber.Handler {
	claims := identity.Claims{
		Subject:   userID,
		Email:     "dev@example.com",
		FirstName: "Dev",
		LastName:  "User",
	}

	return func(c *fiber.Ctx) error {
		if _, err := users.EnsureUser(c.UserContext(), claims); err != nil {
			slog.Error("failed to create dev user", "user_id", userID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to load user",
			})
		}

		identity.SetUserID(c, userID)
		return c.Next()
	}
}
