package routes

import (
	"github.com/anjiri1684/exam_center/handlers"
	"github.com/anjiri1684/exam_center/middleware"
	"github.com/anjiri1684/exam_center/models"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.StaffProtected(), middleware.StaffRolesRequired(models.RoleAdmin))

	staff := admin.Group("/staff")
	staff.Get("", handlers.ListStaffUsers)
	staff.Post("", handlers.CreateStaffUser)
	staff.Put("/:staffId/status", handlers.ToggleStaffStatus)

	exams := admin.Group("/exam-versions")
	exams.Post("", handlers.CreateExamVersion)
	exams.Get("", handlers.ListExamVersions)
	exams.Get("/:examVersionId", handlers.GetExamVersion)
	exams.Put("/:examVersionId", handlers.UpdateExamVersion)

	slots := admin.Group("/visit-slots")
	slots.Post("", handlers.CreateVisitSlot)
	slots.Get("", handlers.ListVisitSlots)
	slots.Delete("/:slotId", handlers.DeleteVisitSlot)

	admin.Get("/audit-logs", handlers.ListAuditLogs)
}
