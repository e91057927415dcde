package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(router fiber.Router, svc *Services) {
	router.Get("/leaderboard", func(c *fiber.Ctx) error {
		page, err := svc.Leaderboard.Get(c.UserContext(), currentUser(c),
			c.QueryInt("page", 1), c.QueryInt("limit", 50), c.Query("classId"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Leaderboard fetched", page)
	})
}
