package handlers

import (
	"errors"
	"time"

	"github.com/anjiri1684/exam_center/database"
	"github.com/anjiri1684/exam_center/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ExamVersionRequest struct {
	Title           string `json:"title" validate:"required"`
	Version         string `json:"version" validate:"required,max=32"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,min=1,max=1440"`
	IsPublished     bool   `json:"isPublished"`
}

func CreateExamVersion(c *fiber.Ctx) error {
	var req ExamVersionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	exam := models.ExamVersion{
		Title:           req.Title,
		Version:         req.Version,
		DurationMinutes: req.DurationMinutes,
		IsPublished:     req.IsPublished,
	}
	if err := database.DB.Create(&exam).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create exam version"})
	}
	return c.Status(fiber.StatusCreated).JSON(exam)
}

func ListExamVersions(c *fiber.Ctx) error {
	var exams []models.ExamVersion
	if err := database.DB.Order("title asc, version asc").Find(&exams).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list exam versions"})
	}
	return c.JSON(exams)
}

func GetExamVersion(c *fiber.Ctx) error {
	var exam models.ExamVersion
	if err := database.DB.First(&exam, "id = ?", c.Params("examVersionId")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Exam version not found"})
	}
	return c.JSON(exam)
}

// UpdateExamVersion edits an exam version. Attempts already started keep
// the due time computed when they began.
func UpdateExamVersion(c *fiber.Ctx) error {
	var exam models.ExamVersion
	if err := database.DB.First(&exam, "id = ?", c.Params("examVersionId")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Exam version not found"})
	}

	var req ExamVersionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	exam.Title = req.Title
	exam.Version = req.Version
	exam.DurationMinutes = req.DurationMinutes
	exam.IsPublished = req.IsPublished
	if err := database.DB.Save(&exam).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update exam version"})
	}
	return c.JSON(exam)
}

type VisitSlotRequest struct {
	ExamVersionID string    `json:"examVersionId" validate:"required,uuid"`
	Room          string    `json:"room" validate:"required"`
	StartTime     time.Time `json:"startTime" validate:"required"`
	EndTime       time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
	Capacity      int       `json:"capacity" validate:"min=0"`
}

func CreateVisitSlot(c *fiber.Ctx) error {
	var req VisitSlotRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	examID := uuid.MustParse(req.ExamVersionID)
	var count int64
	if err := database.DB.Model(&models.ExamVersion{}).Where("id = ?", examID).Count(&count).Error; err != nil {
		return respondError(c, err, "Failed to load exam version")
	}
	if count == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Exam version not found"})
	}

	slot := models.VisitSlot{
		ExamVersionID: examID,
		Room:          req.Room,
		StartTime:     req.StartTime.UTC(),
		EndTime:       req.EndTime.UTC(),
		Capacity:      req.Capacity,
	}
	if err := database.DB.Create(&slot).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create visit slot"})
	}
	return c.Status(fiber.StatusCreated).JSON(slot)
}

func ListVisitSlots(c *fiber.Ctx) error {
	q := database.DB.Order("start_time asc")
	if examID := c.Query("exam_version_id"); examID != "" {
		q = q.Where("exam_version_id = ?", examID)
	}
	if c.QueryBool("upcoming") {
		q = q.Where("start_time > ?", time.Now().UTC())
	}

	var slots []models.VisitSlot
	if err := q.Find(&slots).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list visit slots"})
	}
	return c.JSON(slots)
}

var errSlotInUse = errors.New("visit slot has tickets assigned")

func DeleteVisitSlot(c *fiber.Ctx) error {
	slotID := c.Params("slotId")

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var inUse int64
		if err := tx.Model(&models.Ticket{}).Where("visit_slot_id = ?", slotID).Count(&inUse).Error; err != nil {
			return err
		}
		if inUse > 0 {
			return errSlotInUse
		}
		res := tx.Delete(&models.VisitSlot{}, "id = ?", slotID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	switch {
	case errors.Is(err, errSlotInUse):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Visit slot has tickets assigned"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Visit slot not found"})
	case err != nil:
		return respondError(c, err, "Failed to delete visit slot")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
