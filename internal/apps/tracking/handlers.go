package tracking

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/uploads"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/validation"
	"github.com/gofiber/fiber/v2"
)

type TrackingHandler struct {
	store     Store
	files     uploads.Store
	maxUpload int64
}

func NewTrackingHandler(store Store, files uploads.Store, maxUpload int64) *TrackingHandler {
	return &TrackingHandler{store: store, files: files, maxUpload: maxUpload}
}

// --- Dashboard ---

func (h *TrackingHandler) GetStats(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	stats, err := h.store.Stats(c.UserContext(), userID)
	if err != nil {
		return writeError(c, err, "Failed to fetch stats")
	}
	return c.JSON(stats)
}

func (h *TrackingHandler) GetActivity(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	items, err := h.store.Activity(c.UserContext(), userID)
	if err != nil {
		return writeError(c, err, "Failed to fetch activity")
	}
	return c.JSON(items)
}

// --- Courses ---

func (h *TrackingHandler) ListCourses(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	courses, err := h.store.ListCourses(c.UserContext(), userID)
	if err != nil {
		return writeError(c, err, "Failed to fetch courses")
	}
	return c.JSON(courses)
}

func (h *TrackingHandler) CreateCourse(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req CreateCourseRequest
	if err := decodePayload(c, &req); err != nil {
		return writeError(c, err, "Failed to create course")
	}

	course, err := h.store.CreateCourse(c.UserContext(), req.toCourse(userID))
	if err != nil {
		return writeError(c, err, "Failed to create course")
	}
	return c.Status(fiber.StatusCreated).JSON(course)
}

func (h *TrackingHandler) GetCourse(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := courseID(c)
	if err != nil {
		return writeError(c, err, "")
	}

	course, err := h.store.GetCourse(c.UserContext(), userID, id)
	if err != nil {
		return writeError(c, err, "Failed to fetch course")
	}
	return c.JSON(course)
}

func (h *TrackingHandler) UpdateCourse(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := courseID(c)
	if err != nil {
		return writeError(c, err, "")
	}

	var req UpdateCourseRequest
	if err := decodePayload(c, &req); err != nil {
		return writeError(c, err, "Failed to update course")
	}

	course, err := h.store.UpdateCourse(c.UserContext(), userID, id, req.toUpdate())
	if err != nil {
		return writeError(c, err, "Failed to update course")
	}
	return c.JSON(course)
}

func (h *TrackingHandler) DeleteCourse(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := courseID(c)
	if err != nil {
		return writeError(c, err, "")
	}

	if err := h.store.DeleteCourse(c.UserContext(), userID, id); err != nil {
		return writeError(c, err, "Failed to delete course")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *TrackingHandler) ListCompounds(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := courseID(c)
	if err != nil {
		return writeError(c, err, "")
	}

	compounds, err := h.store.ListCompounds(c.UserContext(), userID, id)
	if err != nil {
		return writeError(c, err, "Failed to fetch compounds")
	}
	return c.JSON(compounds)
}

func (h *TrackingHandler) CreateCompound(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := courseID(c)
	if err != nil {
		return writeError(c, err, "")
	}

	var req CreateCompoundRequest
	if err := decodePayload(c, &req); err != nil {
		return writeError(c, err, "Failed to create compound")
	}

	compound, err := h.store.CreateCompound(c.UserContext(), userID, req.toCompound(id))
	if err != nil {
		return writeError(c, err, "Failed to create compound")
	}
	return c.Status(fiber.StatusCreated).JSON(compound)
}

// --- Events ---

func (h *TrackingHandler) ListInjections(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	injections, err := h.store.ListInjections(c.UserContext(), userID, c.QueryInt("limit", DefaultInjectionLimit))
	if err != nil {
		return writeError(c, err, "Failed to fetch injections")
	}
	return c.JSON(injections)
}

// CreateInjection accepts JSON, or multipart with a "data" JSON field and an
// optional "photo" file.
func (h *TrackingHandler) CreateInjection(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req CreateInjectionRequest
	if err := decodePayload(c, &req); err != nil {
		return writeError(c, err, "Failed to create injection")
	}
	injection := req.toInjection(userID)

	photoURL, err := h.savePhoto(c, formFile(c, "photo"))
	if err != nil {
		return writeError(c, err, "Failed to save photo")
	}
	if photoURL != "" {
		injection.PhotoURL = &photoURL
	}

	created, err := h.store.CreateInjection(c.UserContext(), injection)
	if err != nil {
		h.discard(c.UserContext(), photoURL)
		return writeError(c, err, "Failed to create injection")
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *TrackingHandler) ListBloodTests(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	tests, err := h.store.ListBloodTests(c.UserContext(), userID, c.QueryInt("limit", 0))
	if err != nil {
		return writeError(c, err, "Failed to fetch blood tests")
	}
	return c.JSON(tests)
}

// CreateBloodTest accepts the same payload shapes as injections. A scan
// attached as "photo" is not stored.
func (h *TrackingHandler) CreateBloodTest(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req CreateBloodTestRequest
	if err := decodePayload(c, &req); err != nil {
		return writeError(c, err, "Failed to create blood test")
	}

	test, err := h.store.CreateBloodTest(c.UserContext(), req.toBloodTest(userID))
	if err != nil {
		return writeError(c, err, "Failed to create blood test")
	}
	return c.Status(fiber.StatusCreated).JSON(test)
}

func (h *TrackingHandler) ListProgressPhotos(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	photos, err := h.store.ListProgressPhotos(c.UserContext(), userID, c.QueryInt("limit", 0))
	if err != nil {
		return writeError(c, err, "Failed to fetch progress photos")
	}
	return c.JSON(photos)
}

// CreateProgressPhoto requires a multipart "photo" file.
func (h *TrackingHandler) CreateProgressPhoto(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	fh := formFile(c, "photo")
	if fh == nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Photo file is required",
		})
	}

	var req CreateProgressPhotoRequest
	if err := decodePayload(c, &req); err != nil {
		return writeError(c, err, "Failed to create progress photo")
	}

	photoURL, err := h.savePhoto(c, fh)
	if err != nil {
		return writeError(c, err, "Failed to save photo")
	}

	photo, err := h.store.CreateProgressPhoto(c.UserContext(), req.toProgressPhoto(userID, photoURL))
	if err != nil {
		h.discard(c.UserContext(), photoURL)
		return writeError(c, err, "Failed to create progress photo")
	}
	return c.Status(fiber.StatusCreated).JSON(photo)
}

// savePhoto stores fh and returns its URL, or "" when fh is nil.
func (h *TrackingHandler) savePhoto(c *fiber.Ctx, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", nil
	}
	if err := uploads.CheckImage(fh, h.maxUpload); err != nil {
		return "", validation.New("photo", "%s", err.Error())
	}
	return h.files.Save(c.UserContext(), fh, "photo")
}

func (h *TrackingHandler) discard(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := h.files.Remove(ctx, url); err != nil {
		slog.Warn("failed to remove orphaned upload", "url", url, "error", err)
	}
}

// --- helpers ---

func courseID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, validation.New("id", "Invalid course id")
	}
	return uint(id), nil
}

// writeError maps service errors onto status codes. Validation failures carry
// their own message; anything unexpected is logged and reported as fallback.
func writeError(c *fiber.Ctx, err error, fallback string) error {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: verr.Message,
		})
	case errors.Is(err, ErrCourseNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Course not found",
		})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "User not found",
		})
	}

	slog.Error(fallback, "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: fallback,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}
