package middleware

import (
	"errors"
	"strings"

	"storra-backend/services"
	"storra-backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UserIDKey is the Locals key holding the verified external user id.
const UserIDKey = "user_id"

// RequireUser verifies the bearer token, mirrors the user locally and exposes the id to handlers.
func RequireUser(verifier services.IdentityVerifier, users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		return authenticate(c, verifier, users, token)
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func authenticate(c *fiber.Ctx, verifier services.IdentityVerifier, users *services.UserService, token string) error {
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
			"kind":  services.KindAuthenticationRequired,
		})
	}

	identity, err := verifier.Verify(c.UserContext(), token)
	if err != nil {
		if errors.Is(err, services.ErrAuthenticationRequired) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
				"kind":  services.KindAuthenticationRequired,
			})
		}
		utils.Logger.Warn("identity verification unavailable", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "identity provider unavailable",
		})
	}

	if _, err := users.EnsureUser(c.UserContext(), identity); err != nil {
		utils.Logger.Error("failed to mirror user", zap.String("user_id", identity.UserID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	c.Locals(UserIDKey, identity.UserID)
	return c.Next()
}
