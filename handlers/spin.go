package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func SetupSpinRoutes(router fiber.Router, svc *Services, limiter fiber.Handler) {
	router.Post("/spin", limiter, func(c *fiber.Ctx) error {
		result, err := svc.Spin.Spin(c.UserContext(), currentUser(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "You won "+result.Reward.Name+"!", result)
	})

	router.Get("/spin/preview", func(c *fiber.Ctx) error {
		return respond(c, "Spin wheel preview", svc.Spin.Preview())
	})

	router.Get("/spin/status", func(c *fiber.Ctx) error {
		status, err := svc.Spin.Status(c.UserContext(), currentUser(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Spin status fetched", status)
	})
}
