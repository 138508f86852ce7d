package handlers

import (
	"log"
	"strings"

	"github.com/anjiri1684/exam_center/database"
	"github.com/anjiri1684/exam_center/middleware"
	"github.com/anjiri1684/exam_center/models"
	"github.com/anjiri1684/exam_center/notifications"
	"github.com/anjiri1684/exam_center/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IssueTicketRequest struct {
	CandidateID   string  `json:"candidateId" validate:"required,uuid"`
	ExamVersionID string  `json:"examVersionId" validate:"required,uuid"`
	VisitSlotID   *string `json:"visitSlotId"`
	PIN           string  `json:"pin" validate:"omitempty,numeric,min=4,max=12"`
}

type ReissueTicketRequest struct {
	TicketCode string `json:"ticketCode" validate:"required"`
}

type VerifyTicketRequest struct {
	Payload string `json:"payload" validate:"required"`
}

func IssueTicket(c *fiber.Ctx) error {
	var req IssueTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	slotID, err := parseOptionalUUID(req.VisitSlotID)
	if err != nil {
		return badRequest(c, "visitSlotId must be a UUID")
	}
	secret, err := ticketSecret()
	if err != nil {
		return respondError(c, err, "Ticket signing is not configured")
	}
	staff := middleware.CurrentStaff(c)

	issued, err := services.IssueTicket(database.DB.WithContext(c.UserContext()), services.IssueTicketInput{
		CandidateID:   uuid.MustParse(req.CandidateID),
		ExamVersionID: uuid.MustParse(req.ExamVersionID),
		VisitSlotID:   slotID,
		PIN:           req.PIN,
	}, staff.ID)
	if err != nil {
		return respondError(c, err, "Failed to issue ticket")
	}

	payload := services.SignTicketCode(issued.Ticket.TicketCode, secret)
	go services.GenerateTicketSlip(database.DB, issued.Ticket.ID, payload)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ticket":    issued.Ticket,
		"pin":       issued.PIN,
		"qrPayload": payload,
	})
}

func GetTicket(c *fiber.Ctx) error {
	ticket, err := services.GetTicketByCode(database.DB, strings.ToUpper(c.Params("ticketCode")))
	if err != nil {
		return respondError(c, err, "Failed to load ticket")
	}
	chain, err := services.TicketChain(database.DB, ticket.ID)
	if err != nil {
		return respondError(c, err, "Failed to load ticket chain")
	}
	return c.JSON(fiber.Map{"ticket": ticket, "chain": chain})
}

// ReissueTicket is POST /staff/tickets/reissue.
func ReissueTicket(c *fiber.Ctx) error {
	var req ReissueTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	secret, err := ticketSecret()
	if err != nil {
		return respondError(c, err, "Ticket signing is not configured")
	}
	staff := middleware.CurrentStaff(c)

	result, err := services.ReissueTicket(database.DB.WithContext(c.UserContext()), strings.ToUpper(strings.TrimSpace(req.TicketCode)), staff.ID)
	if err != nil {
		return respondError(c, err, "Failed to reissue ticket")
	}

	payload := services.SignTicketCode(result.NewTicket.TicketCode, secret)
	go services.GenerateTicketSlip(database.DB, result.NewTicket.ID, payload)
	go notifyReissued(result.NewTicket)

	return c.JSON(fiber.Map{
		"oldTicketId":   result.OldTicket.ID,
		"newTicketId":   result.NewTicket.ID,
		"newTicketCode": result.NewTicket.TicketCode,
		"qrPayload":     payload,
	})
}

func notifyReissued(ticket *models.Ticket) {
	var candidate models.Candidate
	if err := database.DB.First(&candidate, "id = ?", ticket.CandidateID).Error; err != nil {
		log.Printf("Failed to load candidate %s for reissue notice: %v", ticket.CandidateID, err)
		return
	}
	if candidate.Email == "" {
		return
	}
	notifications.SendTicketReissued(candidate.FullName, candidate.Email, ticket.TicketCode)
}

// VerifyTicket lets a gate scanner check a QR payload without signing in as
// the candidate. It reveals only whether the ticket is current.
func VerifyTicket(c *fiber.Ctx) error {
	var req VerifyTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	secret, err := ticketSecret()
	if err != nil {
		return respondError(c, err, "Ticket signing is not configured")
	}

	code, ok := services.VerifyTicketPayload(req.Payload, secret)
	if !ok {
		return respondError(c, services.ErrInvalidCredential, "Invalid ticket")
	}
	ticket, err := services.GetTicketByCode(database.DB, code)
	if err != nil {
		return respondError(c, err, "Failed to load ticket")
	}
	return c.JSON(fiber.Map{
		"ticketCode": ticket.TicketCode,
		"status":     ticket.Status,
		"valid":      ticket.Status == models.TicketActive,
	})
}

// TicketQR serves the signed payload of an ACTIVE ticket as a PNG.
func TicketQR(c *fiber.Ctx) error {
	ticket, err := services.GetTicketByCode(database.DB, strings.ToUpper(c.Params("ticketCode")))
	if err != nil {
		return respondError(c, err, "Failed to load ticket")
	}
	if ticket.Status != models.TicketActive {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Ticket has been replaced", "code": services.CodeInvalidState})
	}
	size := c.QueryInt("size", 256)
	if size < services.MinQRSize || size > services.MaxQRSize {
		return badRequest(c, services.ErrQRSize.Error())
	}
	secret, err := ticketSecret()
	if err != nil {
		return respondError(c, err, "Ticket signing is not configured")
	}

	png, err := services.TicketQRCode(services.SignTicketCode(ticket.TicketCode, secret), size)
	if err != nil {
		return respondError(c, err, "Failed to render QR code")
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}
