package handlers

import (
	"storra-backend/services"

	"github.com/gofiber/fiber/v2"
)

type submitQuizRequest struct {
	Answers   []services.SubmittedAnswer `json:"answers" validate:"required,min=1,dive"`
	TimeSpent int                        `json:"timeSpent" validate:"gte=0"`
}

func SetupQuizRoutes(router fiber.Router, svc *Services, limiter fiber.Handler) {
	router.Get("/classes", func(c *fiber.Ctx) error {
		classes, err := svc.Curriculum.ListClasses(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Classes fetched", classes)
	})

	// Registered before /quizzes/:courseId/:quizId so "stats" is not read as a course id.
	router.Get("/quizzes/stats", func(c *fiber.Ctx) error {
		stats, err := svc.Quizzes.Stats(c.UserContext(), currentUser(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Quiz stats fetched", stats)
	})

	router.Get("/quizzes/:courseId/progress", func(c *fiber.Ctx) error {
		progress, err := svc.Quizzes.CourseProgress(c.UserContext(), currentUser(c), c.Params("courseId"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Course quiz progress fetched", progress)
	})

	router.Get("/quizzes/:courseId/:quizId", func(c *fiber.Ctx) error {
		view, err := svc.Quizzes.GetQuiz(c.UserContext(), currentUser(c), c.Params("courseId"), c.Params("quizId"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Quiz fetched", view)
	})

	router.Get("/quizzes/:courseId/:quizId/attempts", func(c *fiber.Ctx) error {
		attempts, err := svc.Quizzes.Attempts(c.UserContext(), currentUser(c), c.Params("quizId"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Quiz attempts fetched", attempts)
	})

	router.Post("/quizzes/:courseId/:quizId/submit", limiter, func(c *fiber.Ctx) error {
		var req submitQuizRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		result, err := svc.Quizzes.Submit(c.UserContext(), currentUser(c), c.Params("courseId"), c.Params("quizId"), req.Answers, req.TimeSpent)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, result.Message, result)
	})
}
