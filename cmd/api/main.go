package main

import (
	"log"
	"time"

	config "github.com/anjiri1684/exam_center/configs"
	"github.com/anjiri1684/exam_center/database"
	"github.com/anjiri1684/exam_center/jobs"
	"github.com/anjiri1684/exam_center/notifications"
	"github.com/anjiri1684/exam_center/routes"
	"github.com/anjiri1684/exam_center/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	if config.Config("JWT_SECRET") == "" || config.Config("TICKET_QR_SECRET") == "" {
		log.Fatal("🔥 JWT_SECRET and TICKET_QR_SECRET must be set")
	}

	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()
	notifications.InitEmailService()

	c := cron.New()
	c.AddFunc("* * * * *", jobs.ExpireOverdueAttempts)
	c.AddFunc("*/5 * * * *", jobs.SendVisitReminders)
	go c.Start()
	log.Println("✅ Cron jobs for attempt expiry and visit reminders scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "Exam Center",
		CaseSensitive:     true,
		StrictRouting:     true,
		EnablePrintRoutes: true,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  config.ConfigDefault("CORS_ORIGINS", "*"),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   config.ConfigDefault("LOG_TIMEZONE", "UTC"),
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to Exam Center API",
		})
	})

	routes.PublicRoutes(app)
	routes.AuthRoutes(app)
	routes.AdminRoutes(app)
	routes.StaffRoutes(app)
	routes.CandidateRoutes(app)

	go websocket.RunHub()

	port := config.ConfigDefault("PORT", "8080")
	log.Printf("✅ Server is running on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
