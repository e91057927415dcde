package handlers

import (
	"bytes"

	"github.com/gofiber/fiber/v2"
)

func SetupAdminRoutes(router fiber.Router, svc *Services) {
	router.Post("/curriculum/import", func(c *fiber.Ctx) error {
		n, err := svc.Curriculum.Import(c.UserContext(), bytes.NewReader(c.Body()))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Curriculum imported", fiber.Map{"classes": n})
	})

	router.Get("/ledger/:userId/audit", func(c *fiber.Ctx) error {
		audit, err := svc.Ledger.Audit(c.UserContext(), c.Params("userId"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, "Ledger audit", audit)
	})
}
