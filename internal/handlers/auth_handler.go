package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler exposes the authenticated user's record. Sign-in itself is
// handled by the identity provider.
type AuthHandler struct {
	users *services.UserService
}

func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

func (h *AuthHandler) GetUser(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	user, err := h.users.GetUser(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "User not found",
			})
		}
		slog.Error("failed to fetch user", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch user",
		})
	}

	return c.JSON(user)
}
