package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/anjiri1684/exam_center/database"
	"github.com/anjiri1684/exam_center/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CandidateRequest struct {
	FullName    string     `json:"fullName" validate:"required,min=3"`
	Email       string     `json:"email" validate:"omitempty,email"`
	NationalID  *string    `json:"nationalId"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
}

func CreateCandidate(c *fiber.Ctx) error {
	var req CandidateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.NationalID != nil && strings.TrimSpace(*req.NationalID) == "" {
		req.NationalID = nil
	}

	candidate := models.Candidate{
		FullName:    req.FullName,
		Email:       strings.ToLower(req.Email),
		NationalID:  req.NationalID,
		DateOfBirth: req.DateOfBirth,
	}
	if err := database.DB.Create(&candidate).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "A candidate with this national ID already exists"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create candidate"})
	}
	return c.Status(fiber.StatusCreated).JSON(candidate)
}

func ListCandidates(c *fiber.Ctx) error {
	p := resolvePaging(c, 20, 100)
	q := database.DB.Model(&models.Candidate{})
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to count candidates"})
	}
	var candidates []models.Candidate
	if err := q.Order("full_name asc").Limit(p.PerPage).Offset((p.Page - 1) * p.PerPage).Find(&candidates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list candidates"})
	}
	return c.JSON(fiber.Map{"data": candidates, "pagination": paginationMeta(p, total)})
}

func GetCandidate(c *fiber.Ctx) error {
	var candidate models.Candidate
	if err := database.DB.First(&candidate, "id = ?", c.Params("candidateId")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Candidate not found"})
	}
	var tickets []models.Ticket
	if err := database.DB.Where("candidate_id = ?", candidate.ID).Order("created_at desc").Find(&tickets).Error; err != nil {
		return respondError(c, err, "Failed to load candidate tickets")
	}
	return c.JSON(fiber.Map{"candidate": candidate, "tickets": tickets})
}

type DeviceRequest struct {
	Label  string `json:"label" validate:"required"`
	Serial string `json:"serial" validate:"required"`
	Room   string `json:"room"`
}

func RegisterDevice(c *fiber.Ctx) error {
	var req DeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	device := models.Device{Label: req.Label, Serial: req.Serial, Room: req.Room}
	if err := database.DB.Create(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Device serial already registered"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to register device"})
	}
	return c.Status(fiber.StatusCreated).JSON(device)
}

func ListDevices(c *fiber.Ctx) error {
	q := database.DB.Order("room asc, label asc")
	if room := c.Query("room"); room != "" {
		q = q.Where("room = ?", room)
	}
	var devices []models.Device
	if err := q.Find(&devices).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list devices"})
	}
	return c.JSON(devices)
}
