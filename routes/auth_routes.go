package routes

import (
	"time"

	"github.com/anjiri1684/exam_center/handlers"
	"github.com/anjiri1684/exam_center/middleware"
	"github.com/gofiber/fiber/v2"
)

// AuthRoutes must be registered before the protected staff and candidate
// groups, which share their prefixes.
func AuthRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Post("/staff/login", middleware.LoginRateLimiter(10, time.Minute), handlers.StaffLogin)
	api.Post("/candidate/login", middleware.LoginRateLimiter(5, time.Minute), handlers.CandidateLogin)
}
