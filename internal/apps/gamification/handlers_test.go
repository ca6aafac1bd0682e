package gamification

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/identity"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	_, svc := setup(t)
	handler := NewAchievementHandler(svc)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if id := c.Get("X-Test-User"); id != "" {
			identity.SetUserID(c, id)
		}
		return c.Next()
	})
	app.Get("/achievements", handler.List)
	app.Post("/achievements", handler.Create)
	app.Post("/admin/users/:id/achievements", handler.Award)
	return app
}

func TestCreateAndListAchievementsHTTP(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("POST", "/achievements", strings.NewReader(
		`{"achievementType":"first_course","achievementName":"Planner","xpReward":"50"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", "u1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created Achievement
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "Planner", created.AchievementName)
	assert.Equal(t, 50, created.XPReward)
	assert.NotZero(t, created.ID)

	req = httptest.NewRequest("GET", "/achievements", nil)
	req.Header.Set("X-Test-User", "u1")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var list []Achievement
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestCreateAchievementValidationHTTP(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("POST", "/achievements", strings.NewReader(`{"achievementType":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", "u1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body dto.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Error)
	assert.Equal(t, "achievementName is required", body.Message)
}

func TestAwardUnknownUserHTTP(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("POST", "/admin/users/ghost/achievements", strings.NewReader(
		`{"achievementType":"x","achievementName":"y"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestListAchievementsRequiresUser(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/achievements", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
