package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/bounty-chat/internal/models"
	"github.com/noah-isme/bounty-chat/internal/utils"
)

// RequireRole ensures that the authenticated caller possesses one of the allowed roles.
func RequireRole(roles ...models.Role) fiber.Handler {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		if normalized, ok := models.ParseRole(string(role)); ok {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		caller, ok := CallerFromLocals(c.Locals(LocalCaller))
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if _, ok := allowed[caller.Role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
