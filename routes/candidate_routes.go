package routes

import (
	"github.com/anjiri1684/exam_center/handlers"
	"github.com/anjiri1684/exam_center/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func CandidateRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	candidate := api.Group("/candidate", middleware.CandidateProtected(), middleware.CandidateSessionRequired())

	candidate.Get("/attempt", handlers.GetMyAttempt)
	candidate.Put("/attempt/answers", handlers.SaveAnswer)
	candidate.Post("/attempt/submit", handlers.SubmitMyAttempt)

	candidate.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	candidate.Get("/ws", websocket.New(handlers.ServeCandidateWs))
}
