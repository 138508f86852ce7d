package routes

import (
	"time"

	"github.com/anjiri1684/exam_center/handlers"
	"github.com/anjiri1684/exam_center/middleware"
	"github.com/gofiber/fiber/v2"
)

func PublicRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	api.Post("/tickets/verify", middleware.LoginRateLimiter(60, time.Minute), handlers.VerifyTicket)
}
