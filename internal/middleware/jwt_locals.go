package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/campusgig/campusgig-backend/internal/utils"
)

func claimsOf(c *fiber.Ctx) (*utils.Claims, bool) {
	claims, ok := c.Locals("user").(*utils.Claims)
	return claims, ok && claims != nil
}

// AttachJWTLocals copies the verified claims into the userId and role locals.
func AttachJWTLocals() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := claimsOf(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		uid, err := uuid.Parse(strings.TrimSpace(claims.UserID))
		if err != nil {
			return fiber.ErrUnauthorized
		}

		c.Locals("userId", uid)
		c.Locals("role", strings.ToLower(strings.TrimSpace(claims.Role)))
		return c.Next()
	}
}
