package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func SetupRewardRoutes(router fiber.Router, svc *Services, limiter fiber.Handler) {
	router.Get("/rewards", func(c *fiber.Ctx) error {
		dashboard, err := svc.Ledger.Dashboard(c.UserContext(), currentUser(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Rewards fetched successfully", dashboard)
	})

	router.Get("/rewards/transactions", func(c *fiber.Ctx) error {
		page, err := svc.Ledger.Transactions(c.UserContext(), currentUser(c), c.QueryInt("page", 1), c.QueryInt("limit", 20))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Transactions fetched", page)
	})

	router.Post("/rewards/daily/claim", limiter, func(c *fiber.Ctx) error {
		result, err := svc.Daily.Claim(c.UserContext(), currentUser(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Daily reward claimed successfully", result)
	})

	router.Get("/rewards/daily/info", func(c *fiber.Ctx) error {
		info, err := svc.Daily.Info(c.UserContext(), currentUser(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Daily reward info fetched", info)
	})

	router.Get("/rewards/daily/calendar", func(c *fiber.Ctx) error {
		calendar, err := svc.Daily.Calendar(c.UserContext(), currentUser(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Daily rewards calendar fetched", calendar)
	})

	router.Get("/rewards/achievements", func(c *fiber.Ctx) error {
		achievements, err := svc.Achievements.List(c.UserContext(), currentUser(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Achievements fetched", achievements)
	})

	router.Post("/rewards/achievements/:achievementId/claim", limiter, func(c *fiber.Ctx) error {
		result, err := svc.Achievements.Claim(c.UserContext(), currentUser(c), c.Params("achievementId"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Achievement reward claimed", result)
	})
}
