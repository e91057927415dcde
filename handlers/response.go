package handlers

import (
	"errors"

	"storra-backend/middleware"
	"storra-backend/services"
	"storra-backend/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindAuthenticationRequired:
		return fiber.StatusUnauthorized
	case services.KindAlreadyClaimedToday, services.KindConflict:
		return fiber.StatusConflict
	case services.KindAllowanceExhausted,
		services.KindAchievementNotClaimable,
		services.KindUnknownQuestionReference,
		services.KindInvalidInput:
		return fiber.StatusBadRequest
	case services.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError renders domain rejections with their kind; anything else is logged and hidden.
func respondError(c *fiber.Ctx, err error) error {
	var domainErr *services.Error
	if errors.As(err, &domainErr) {
		return c.Status(statusForKind(domainErr.Kind)).JSON(fiber.Map{
			"error": domainErr.Message,
			"kind":  domainErr.Kind,
		})
	}
	utils.Logger.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

func respond(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(fiber.Map{"message": message, "data": data})
}

// parseBody decodes and validates a JSON body.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return services.NewError(services.KindInvalidInput, "Invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return services.NewError(services.KindInvalidInput, "Field %s failed %s validation", verrs[0].Field(), verrs[0].Tag())
		}
		return services.NewError(services.KindInvalidInput, "Invalid request body")
	}
	return nil
}

func currentUser(c *fiber.Ctx) string {
	userID, _ := c.Locals(middleware.UserIDKey).(string)
	return userID
}
