package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/campusgig/campusgig-backend/internal/models"
)

// RequireRoles lets the request through only when the token's role is one of
// allowed. Role names compare case-insensitively.
func RequireRoles(allowed ...models.Role) fiber.Handler {
	set := make(map[models.Role]struct{}, len(allowed))
	for _, r := range allowed {
		set[models.Role(strings.ToLower(string(r)))] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		claims, ok := claimsOf(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		if _, ok := set[models.Role(strings.ToLower(strings.TrimSpace(claims.Role)))]; !ok {
			return fiber.NewError(fiber.StatusForbidden, "forbidden: insufficient role")
		}
		return c.Next()
	}
}
