package handlers

import (
	"log"

	"github.com/anjiri1684/exam_center/database"
	"github.com/anjiri1684/exam_center/middleware"
	"github.com/anjiri1684/exam_center/models"
	"github.com/anjiri1684/exam_center/services"
	"github.com/anjiri1684/exam_center/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func GetMyAttempt(c *fiber.Ctx) error {
	attemptID, sessionID := middleware.CandidateSession(c)

	var attempt models.Attempt
	if err := database.DB.First(&attempt, "id = ?", attemptID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Attempt not found", "code": services.CodeNotFound})
	}
	var exam models.ExamVersion
	if err := database.DB.First(&exam, "id = ?", attempt.ExamVersionID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Exam version not found", "code": services.CodeNotFound})
	}
	answers, err := services.ListAnswers(database.DB, attemptID)
	if err != nil {
		return respondError(c, err, "Failed to load answers")
	}

	return c.JSON(fiber.Map{
		"attemptId": attempt.ID,
		"sessionId": sessionID,
		"status":    attempt.Status,
		"startedAt": attempt.StartedAt,
		"dueAt":     attempt.DueAt,
		"exam":      exam,
		"answers":   answers,
	})
}

type SaveAnswerRequest struct {
	QuestionKey string `json:"questionKey" validate:"required,max=64"`
	Answer      string `json:"answer" validate:"max=20000"`
}

func SaveAnswer(c *fiber.Ctx) error {
	var req SaveAnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	attemptID, sessionID := middleware.CandidateSession(c)

	saved, err := services.SaveAnswer(database.DB.WithContext(c.UserContext()), attemptID, sessionID, req.QuestionKey, req.Answer)
	if err != nil {
		return respondError(c, err, "Failed to save answer")
	}
	return c.JSON(saved)
}

func SubmitMyAttempt(c *fiber.Ctx) error {
	attemptID, sessionID := middleware.CandidateSession(c)

	attempt, err := services.SubmitAttempt(database.DB.WithContext(c.UserContext()), attemptID, sessionID)
	if err != nil {
		return respondError(c, err, "Failed to submit attempt")
	}
	websocket.NotifyAttempt(websocket.Notice{AttemptID: attempt.ID, Status: string(attempt.Status)})

	return c.JSON(fiber.Map{
		"attemptId":   attempt.ID,
		"status":      attempt.Status,
		"submittedAt": attempt.SubmittedAt,
	})
}

// ServeCandidateWs keeps a socket open for the candidate's session so it can
// be told the moment a proctor locks the attempt or another sign-in takes over.
func ServeCandidateWs(c *websocketcontrib.Conn) {
	attemptID, _ := c.Locals(middleware.AttemptLocal).(uuid.UUID)
	sessionID, _ := c.Locals(middleware.SessionLocal).(uuid.UUID)
	if attemptID == uuid.Nil || sessionID == uuid.Nil {
		_ = c.WriteJSON(fiber.Map{"error": "Invalid candidate session"})
		c.Close()
		return
	}

	client := &websocket.Client{AttemptID: attemptID, SessionID: sessionID, Conn: c}
	websocket.Register <- client
	defer func() {
		websocket.Unregister <- client
		c.Close()
	}()

	// Inbound frames are ignored; reading only detects the close.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if !websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
				log.Printf("WebSocket read error for attempt %s: %v", attemptID, err)
			}
			return
		}
	}
}
