package routes

import (
	"github.com/anjiri1684/exam_center/handlers"
	"github.com/anjiri1684/exam_center/middleware"
	"github.com/anjiri1684/exam_center/models"
	"github.com/gofiber/fiber/v2"
)

func StaffRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	staff := api.Group("/staff", middleware.StaffProtected())

	proctors := middleware.StaffRolesRequired(models.RoleAdmin, models.RoleProctor)
	registrars := middleware.StaffRolesRequired(models.RoleAdmin, models.RoleRegistrar)
	anyStaff := middleware.StaffRolesRequired()

	attempts := staff.Group("/attempts")
	attempts.Post("/lock", proctors, handlers.LockAttempt)
	attempts.Post("/resume", proctors, handlers.ResumeAttempt)
	attempts.Get("", anyStaff, handlers.ListAttempts)
	attempts.Get("/:attemptId", anyStaff, handlers.GetAttempt)
	attempts.Post("/:attemptId/complete", proctors, handlers.CompleteAttempt)
	attempts.Post("/:attemptId/sessions", proctors, handlers.StartAttemptSession)
	attempts.Post("/:attemptId/revoke-sessions", proctors, handlers.RevokeAttemptSessions)

	tickets := staff.Group("/tickets")
	tickets.Post("/reissue", registrars, handlers.ReissueTicket)
	tickets.Post("", registrars, handlers.IssueTicket)
	tickets.Get("/:ticketCode", anyStaff, handlers.GetTicket)
	tickets.Get("/:ticketCode/qr", registrars, handlers.TicketQR)

	candidates := staff.Group("/candidates")
	candidates.Post("", registrars, handlers.CreateCandidate)
	candidates.Get("", anyStaff, handlers.ListCandidates)
	candidates.Get("/:candidateId", anyStaff, handlers.GetCandidate)

	devices := staff.Group("/devices")
	devices.Get("", anyStaff, handlers.ListDevices)
	devices.Post("", proctors, handlers.RegisterDevice)

	staff.Get("/exam-versions", anyStaff, handlers.ListExamVersions)
	staff.Get("/visit-slots", anyStaff, handlers.ListVisitSlots)
}
