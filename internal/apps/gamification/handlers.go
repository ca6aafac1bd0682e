package gamification

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/validation"
	"github.com/gofiber/fiber/v2"
)

type CreateAchievementRequest struct {
	AchievementType string            `json:"achievementType" validate:"required,max=100"`
	AchievementName string            `json:"achievementName" validate:"required,max=255"`
	Description     *string           `json:"description"`
	IconURL         *string           `json:"iconUrl"`
	XPReward        validation.Number `json:"xpReward" validate:"omitempty,integer,min=0"`
}

func (r *CreateAchievementRequest) toAchievement(userID string) *Achievement {
	return &Achievement{
		UserID:          userID,
		AchievementType: r.AchievementType,
		AchievementName: r.AchievementName,
		Description:     r.Description,
		IconURL:         r.IconURL,
		XPReward:        r.XPReward.Int(),
	}
}

type AchievementHandler struct {
	service *Service
}

func NewAchievementHandler(service *Service) *AchievementHandler {
	return &AchievementHandler{service: service}
}

// List handles GET /achievements.
func (h *AchievementHandler) List(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	achievements, err := h.service.ListAchievements(c.UserContext(), userID)
	if err != nil {
		slog.Error("list achievements failed", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch achievements",
		})
	}
	return c.JSON(achievements)
}

// Create handles POST /achievements for the authenticated user.
func (h *AchievementHandler) Create(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	return h.create(c, userID)
}

// Award handles POST /admin/users/:id/achievements.
func (h *AchievementHandler) Award(c *fiber.Ctx) error {
	return h.create(c, c.Params("id"))
}

func (h *AchievementHandler) create(c *fiber.Ctx, userID string) error {
	var req CreateAchievementRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if err := validation.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	achievement, err := h.service.CreateAchievement(c.UserContext(), req.toAchievement(userID))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, ErrNegativeXP):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		slog.Error("create achievement failed", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to create achievement",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(achievement)
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}
