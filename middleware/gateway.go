package middleware

import (
	"crypto/subtle"

	"storra-backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ServiceTokenMiddleware guards internal routes with a shared bearer token.
// With no token configured every request is refused.
func ServiceTokenMiddleware(expected string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if expected == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin routes are disabled",
			})
		}

		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Get("X-Service-Token")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			utils.Logger.Warn("rejected service token", zap.String("path", c.Path()), zap.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid service token",
			})
		}
		return c.Next()
	}
}
