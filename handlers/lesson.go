package handlers

import (
	"github.com/gofiber/fiber/v2"
)

type lessonRequest struct {
	CourseID string `json:"courseId" validate:"required"`
}

type notesRequest struct {
	CourseID string `json:"courseId" validate:"required"`
	Notes    string `json:"notes" validate:"max=20000"`
}

func SetupLessonRoutes(router fiber.Router, svc *Services) {
	router.Get("/lessons/bookmarks", func(c *fiber.Ctx) error {
		bookmarks, err := svc.Lessons.Bookmarks(c.UserContext(), currentUser(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Bookmarks fetched", bookmarks)
	})

	router.Post("/lessons/:lessonId/complete", func(c *fiber.Ctx) error {
		var req lessonRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		result, err := svc.Lessons.Complete(c.UserContext(), currentUser(c), req.CourseID, c.Params("lessonId"))
		if err != nil {
			return respondError(c, err)
		}
		message := "Lesson completed"
		if result.AlreadyCompleted {
			message = "Lesson already completed"
		}
		return respond(c, message, result)
	})

	router.Post("/lessons/:lessonId/bookmark", func(c *fiber.Ctx) error {
		var req lessonRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		progress, err := svc.Lessons.ToggleBookmark(c.UserContext(), currentUser(c), req.CourseID, c.Params("lessonId"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Bookmark updated", progress)
	})

	router.Put("/lessons/:lessonId/notes", func(c *fiber.Ctx) error {
		var req notesRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		progress, err := svc.Lessons.UpdateNotes(c.UserContext(), currentUser(c), req.CourseID, c.Params("lessonId"), req.Notes)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Notes saved", progress)
	})
}
