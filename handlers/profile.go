package handlers

import (
	"storra-backend/services"
	"storra-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type selectClassRequest struct {
	ClassID string `json:"classId" validate:"required"`
}

func SetupProfileRoutes(router fiber.Router, svc *Services) {
	router.Get("/user/profile", func(c *fiber.Ctx) error {
		user, err := svc.Users.Get(c.UserContext(), currentUser(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Profile fetched", user)
	})

	router.Put("/user/profile/class", func(c *fiber.Ctx) error {
		var req selectClassRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		user, err := svc.Users.SelectClass(c.UserContext(), currentUser(c), req.ClassID)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Class updated", user)
	})

	router.Post("/user/profile/picture", func(c *fiber.Ctx) error {
		if svc.Storage == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "file storage is not configured"})
		}
		fileHeader, err := c.FormFile("image")
		if err != nil {
			return respondError(c, services.NewError(services.KindInvalidInput, "An image file is required"))
		}
		ext, err := utils.AvatarExtension(fileHeader)
		if err != nil {
			return respondError(c, services.NewError(services.KindInvalidInput, "%s", err.Error()))
		}

		userID := currentUser(c)
		url, err := svc.Storage.UploadFile(c.UserContext(), fileHeader, utils.AvatarObjectKey(userID, fileHeader.Filename, ext))
		if err != nil {
			return respondError(c, err)
		}
		user, err := svc.Users.UpdateProfilePicture(c.UserContext(), userID, url)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Profile picture updated", user)
	})
}
