package middleware

import (
	"strings"

	"storra-backend/services"

	"github.com/gofiber/fiber/v2"
)

// QueryTokenAuth authenticates from the `token` query parameter.
// EventSource clients cannot set an Authorization header.
func QueryTokenAuth(verifier services.IdentityVerifier, users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Query("token"))
		return authenticate(c, verifier, users, token)
	}
}
