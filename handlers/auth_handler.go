package handlers

import (
	"errors"
	"strings"
	"time"

	config "github.com/anjiri1684/exam_center/configs"
	"github.com/anjiri1684/exam_center/database"
	"github.com/anjiri1684/exam_center/middleware"
	"github.com/anjiri1684/exam_center/models"
	"github.com/anjiri1684/exam_center/services"
	"github.com/anjiri1684/exam_center/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var validate = validator.New()

const (
	staffTokenTTL = 12 * time.Hour
	// candidateTokenGrace keeps a token usable a little past the due time so
	// a submit racing the deadline is rejected by state, not by token expiry.
	candidateTokenGrace = 15 * time.Minute
)

type StaffLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func staffToken(staff *models.StaffUser) (string, error) {
	claims := jwt.MapClaims{
		"user_id": staff.ID.String(),
		"role":    staff.Role,
		"kind":    "staff",
		"exp":     time.Now().Add(staffTokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(middleware.StaffSecret())
}

func candidateToken(attempt *models.Attempt, session *models.AttemptSession) (string, error) {
	exp := time.Now().Add(staffTokenTTL)
	if attempt.DueAt != nil {
		exp = attempt.DueAt.Add(candidateTokenGrace)
	}
	claims := jwt.MapClaims{
		"attempt_id": attempt.ID.String(),
		"session_id": session.ID.String(),
		"ticket_id":  attempt.TicketID.String(),
		"kind":       "candidate",
		"exp":        exp.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(middleware.CandidateSecret())
}

func StaffLogin(c *fiber.Ctx) error {
	var req StaffLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	var staff models.StaffUser
	if err := database.DB.Where("email = ?", strings.ToLower(req.Email)).First(&staff).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(staff.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}
	if !staff.IsActive {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Account is disabled", "code": services.CodeForbidden})
	}

	t, err := staffToken(&staff)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create token"})
	}
	return c.JSON(fiber.Map{"token": t, "role": staff.Role})
}

type CandidateLoginRequest struct {
	TicketCode string  `json:"ticketCode" validate:"required_without=QRPayload"`
	QRPayload  string  `json:"qrPayload" validate:"required_without=TicketCode"`
	PIN        string  `json:"pin" validate:"required,min=4,max=12"`
	DeviceID   *string `json:"deviceId"`
}

// CandidateLogin authenticates with a ticket code (typed or scanned) and PIN
// and hands back a token bound to the attempt's single live session.
func CandidateLogin(c *fiber.Ctx) error {
	var req CandidateLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	deviceID, err := parseOptionalUUID(req.DeviceID)
	if err != nil {
		return badRequest(c, "deviceId must be a UUID")
	}

	code := req.TicketCode
	if req.QRPayload != "" {
		secret, err := ticketSecret()
		if err != nil {
			return respondError(c, err, "Ticket signing is not configured")
		}
		verified, ok := services.VerifyTicketPayload(req.QRPayload, secret)
		if !ok {
			return respondError(c, services.ErrInvalidCredential, "Invalid ticket")
		}
		code = verified
	}

	db := database.DB.WithContext(c.UserContext())
	ticket, err := services.AuthenticateTicket(db, code, req.PIN)
	if err != nil {
		return respondError(c, err, "Failed to authenticate ticket")
	}

	attempt, session, err := services.BeginAttempt(db, ticket, deviceID)
	if err != nil {
		return respondError(c, err, "Failed to start attempt")
	}
	websocket.NotifyAttempt(websocket.Notice{AttemptID: attempt.ID, Status: string(attempt.Status), ActiveSessionID: &session.ID})

	t, err := candidateToken(attempt, session)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create token"})
	}

	return c.JSON(fiber.Map{
		"token":     t,
		"attemptId": attempt.ID,
		"sessionId": session.ID,
		"status":    attempt.Status,
		"dueAt":     attempt.DueAt,
	})
}

type CreateStaffRequest struct {
	FullName string `json:"fullName" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin proctor registrar"`
}

func CreateStaffUser(c *fiber.Ctx) error {
	var req CreateStaffRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	staff := models.StaffUser{
		FullName: req.FullName,
		Email:    strings.ToLower(req.Email),
		Password: string(hashedPassword),
		Role:     req.Role,
		IsActive: true,
	}
	if err := database.DB.Create(&staff).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already exists"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create staff user"})
	}
	return c.Status(fiber.StatusCreated).JSON(staff)
}

func ListStaffUsers(c *fiber.Ctx) error {
	var staff []models.StaffUser
	if err := database.DB.Order("full_name asc").Find(&staff).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list staff"})
	}
	return c.JSON(staff)
}

func ToggleStaffStatus(c *fiber.Ctx) error {
	staffID, err := uuid.Parse(c.Params("staffId"))
	if err != nil {
		return badRequest(c, "Invalid staff ID")
	}
	if current := middleware.CurrentStaff(c); current != nil && current.ID == staffID {
		return badRequest(c, "You cannot disable your own account")
	}

	var staff models.StaffUser
	if err := database.DB.First(&staff, "id = ?", staffID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Staff user not found", "code": services.CodeNotFound})
	}
	staff.IsActive = !staff.IsActive
	if err := database.DB.Model(&staff).Update("is_active", staff.IsActive).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update staff user"})
	}
	return c.JSON(staff)
}

func ticketSecret() ([]byte, error) {
	secret := config.Config("TICKET_QR_SECRET")
	if secret == "" {
		return nil, errors.New("TICKET_QR_SECRET is not set")
	}
	return []byte(secret), nil
}
