package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/campusgig/campusgig-backend/internal/utils"
)

const CookieName = "cg_token"

// tokenFrom looks for a token in the cookie, then the bearer header, then the
// token query parameter (browsers cannot set headers on websocket upgrades).
func tokenFrom(c *fiber.Ctx) string {
	if tok := c.Cookies(CookieName); tok != "" {
		return tok
	}
	if h := c.Get(fiber.HeaderAuthorization); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return c.Query("token")
}

// JWT verifies the request token and stores its claims under the "user" local.
func JWT(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := tokenFrom(c)
		if tokenStr == "" {
			return fiber.ErrUnauthorized
		}

		claims, err := utils.ParseJWT(secret, tokenStr)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		c.Locals("user", claims)
		return c.Next()
	}
}
