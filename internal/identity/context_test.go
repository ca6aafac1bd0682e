package identity

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimsFromToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{
			"sub":        "user-42",
			"email":      "a@b.c",
			"first_name": "Ann",
		}})
		claims, err := ClaimsFromToken(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).SendString(err.Error())
		}
		SetUserID(c, claims.Subject)
		id, err := GetUserID(c)
		if err != nil {
			return err
		}
		return c.SendString(id + "|" + claims.Email + "|" + claims.FirstName + "|" + claims.LastName)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "user-42|a@b.c|Ann|", string(body))
}

func TestClaimsFromTokenMissingSubject(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{"email": "a@b.c"}})
		if _, err := ClaimsFromToken(c); err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestGetUserIDWithoutMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		_, err := GetUserID(c)
		assert.ErrorIs(t, err, ErrNoIdentity)
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
