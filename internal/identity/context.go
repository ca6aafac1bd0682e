package identity

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "user_id"

var ErrNoIdentity = errors.New("no authenticated user in context")

// SetUserID stores the resolved user id for downstream handlers.
func SetUserID(c *fiber.Ctx, userID string) {
	c.Locals(userIDKey, userID)
}

// GetUserID returns the user id resolved by the identity middleware.
func GetUserID(c *fiber.Ctx) (string, error) {
	if id, ok := c.Locals(userIDKey).(string); ok && id != "" {
		return id, nil
	}
	return "", ErrNoIdentity
}

// Claims is the subset of identity provider claims we persist on the user row.
type Claims struct {
	Subject         string
	Email           string
	FirstName       string
	LastName        string
	ProfileImageURL string
}

// ClaimsFromToken extracts the profile claims from the verified JWT stored by
// the jwt middleware.
func ClaimsFromToken(c *fiber.Ctx) (Claims, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return Claims{}, errors.New("invalid token in context")
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}

	sub, _ := mc["sub"].(string)
	if sub == "" {
		return Claims{}, errors.New("missing sub claim")
	}

	return Claims{
		Subject:         sub,
		Email:           stringClaim(mc, "email"),
		FirstName:       stringClaim(mc, "first_name"),
		LastName:        stringClaim(mc, "last_name"),
		ProfileImageURL: stringClaim(mc, "profile_image_url"),
	}, nil
}

func stringClaim(mc jwt.MapClaims, key string) string {
	v, _ := mc[key].(string)
	return v
}
