package handlers

import (
	"strings"

	"github.com/anjiri1684/exam_center/database"
	"github.com/anjiri1684/exam_center/middleware"
	"github.com/anjiri1684/exam_center/models"
	"github.com/anjiri1684/exam_center/services"
	"github.com/anjiri1684/exam_center/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type LockAttemptRequest struct {
	AttemptID string `json:"attemptId" validate:"required,uuid"`
}

type ResumeAttemptRequest struct {
	AttemptID string  `json:"attemptId" validate:"required,uuid"`
	DeviceID  *string `json:"deviceId"`
}

// LockAttempt is POST /staff/attempts/lock.
func LockAttempt(c *fiber.Ctx) error {
	var req LockAttemptRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	staff := middleware.CurrentStaff(c)

	attempt, err := services.LockAttempt(database.DB.WithContext(c.UserContext()), uuid.MustParse(req.AttemptID), staff.ID)
	if err != nil {
		return respondError(c, err, "Failed to lock attempt")
	}
	websocket.NotifyAttempt(websocket.Notice{AttemptID: attempt.ID, Status: string(attempt.Status)})

	return c.JSON(fiber.Map{"attemptId": attempt.ID, "status": attempt.Status})
}

// ResumeAttempt is POST /staff/attempts/resume.
func ResumeAttempt(c *fiber.Ctx) error {
	var req ResumeAttemptRequest
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
	staff := middleware.CurrentStaff(c)

	attempt, session, err := services.ResumeAttempt(database.DB.WithContext(c.UserContext()), uuid.MustParse(req.AttemptID), staff.ID, deviceID)
	if err != nil {
		return respondError(c, err, "Failed to resume attempt")
	}
	websocket.NotifyAttempt(websocket.Notice{AttemptID: attempt.ID, Status: string(attempt.Status), ActiveSessionID: &session.ID})

	return c.JSON(fiber.Map{
		"attemptId": attempt.ID,
		"status":    attempt.Status,
		"sessionId": session.ID,
	})
}

func ListAttempts(c *fiber.Ctx) error {
	status := models.AttemptStatus(strings.ToUpper(c.Query("status")))
	p := resolvePaging(c, 20, 100)

	attempts, total, err := services.ListAttempts(database.DB, status, p.Page, p.PerPage)
	if err != nil {
		return respondError(c, err, "Failed to list attempts")
	}
	return c.JSON(fiber.Map{"data": attempts, "pagination": paginationMeta(p, total)})
}

func GetAttempt(c *fiber.Ctx) error {
	attemptID, err := uuid.Parse(c.Params("attemptId"))
	if err != nil {
		return badRequest(c, "Invalid attempt ID")
	}
	attempt, err := services.GetAttempt(database.DB, attemptID)
	if err != nil {
		return respondError(c, err, "Failed to load attempt")
	}

	var activeSessionID *uuid.UUID
	for i := range attempt.Sessions {
		if attempt.Sessions[i].Status == models.SessionActive {
			activeSessionID = &attempt.Sessions[i].ID
			break
		}
	}
	return c.JSON(fiber.Map{
		"attempt":          attempt,
		"activeSessionId":  activeSessionID,
		"connectedSockets": websocket.ConnectedCount(attempt.ID),
	})
}

func CompleteAttempt(c *fiber.Ctx) error {
	attemptID, err := uuid.Parse(c.Params("attemptId"))
	if err != nil {
		return badRequest(c, "Invalid attempt ID")
	}
	staff := middleware.CurrentStaff(c)

	attempt, err := services.CompleteAttempt(database.DB.WithContext(c.UserContext()), attemptID, staff.ID)
	if err != nil {
		return respondError(c, err, "Failed to complete attempt")
	}
	return c.JSON(fiber.Map{"attemptId": attempt.ID, "status": attempt.Status})
}

// RevokeAttemptSessions drops every live session without changing the
// attempt's status. The candidate signs in again to continue.
func RevokeAttemptSessions(c *fiber.Ctx) error {
	attemptID, err := uuid.Parse(c.Params("attemptId"))
	if err != nil {
		return badRequest(c, "Invalid attempt ID")
	}
	staff := middleware.CurrentStaff(c)

	revoked, err := services.RevokeAllSessions(database.DB.WithContext(c.UserContext()), attemptID, &staff.ID)
	if err != nil {
		return respondError(c, err, "Failed to revoke sessions")
	}
	if revoked > 0 {
		websocket.NotifyAttempt(websocket.Notice{AttemptID: attemptID})
	}
	return c.JSON(fiber.Map{"attemptId": attemptID, "revokedSessions": revoked})
}

type StartSessionRequest struct {
	DeviceID *string `json:"deviceId"`
}

// StartAttemptSession moves a running attempt to a new staff-created session,
// usually on another device. The candidate's next login claims it.
func StartAttemptSession(c *fiber.Ctx) error {
	attemptID, err := uuid.Parse(c.Params("attemptId"))
	if err != nil {
		return badRequest(c, "Invalid attempt ID")
	}
	var req StartSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Cannot parse JSON")
		}
	}
	deviceID, err := parseOptionalUUID(req.DeviceID)
	if err != nil {
		return badRequest(c, "deviceId must be a UUID")
	}
	staff := middleware.CurrentStaff(c)

	session, err := services.StartSession(database.DB.WithContext(c.UserContext()), attemptID, deviceID, &staff.ID)
	if err != nil {
		return respondError(c, err, "Failed to start session")
	}
	websocket.NotifyAttempt(websocket.Notice{AttemptID: attemptID, Status: string(models.AttemptInProgress), ActiveSessionID: &session.ID})

	return c.JSON(fiber.Map{"attemptId": attemptID, "sessionId": session.ID, "deviceId": session.DeviceID})
}
