package middleware

import (
	config "github.com/anjiri1684/exam_center/configs"
	"github.com/anjiri1684/exam_center/database"
	"github.com/anjiri1684/exam_center/models"
	"github.com/anjiri1684/exam_center/services"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	staffTokenKey     = "user"
	candidateTokenKey = "candidate"
	staffLocal        = "staff"
	AttemptLocal      = "attemptId"
	SessionLocal      = "sessionId"
)

func StaffSecret() []byte { return []byte(config.Config("JWT_SECRET")) }

func CandidateSecret() []byte {
	return []byte(config.ConfigDefault("CANDIDATE_JWT_SECRET", config.Config("JWT_SECRET")+":candidate"))
}

func StaffProtected() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   StaffSecret(),
		ContextKey:   staffTokenKey,
		ErrorHandler: jwtError,
	})
}

// CandidateProtected also reads the token from ?token= so browsers can open
// the websocket, which cannot carry an Authorization header.
func CandidateProtected() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   CandidateSecret(),
		ContextKey:   candidateTokenKey,
		TokenLookup:  "header:Authorization,query:token",
		AuthScheme:   "Bearer",
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

func forbidden(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error": msg,
		"code":  services.CodeForbidden,
	})
}

// StaffRolesRequired is the authorization gate for staff routes.
func StaffRolesRequired(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals(staffTokenKey).(*jwt.Token)
		if !ok {
			return forbidden(c, "Forbidden: staff token required")
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || claims["kind"] != "staff" {
			return forbidden(c, "Forbidden: staff token required")
		}
		idStr, _ := claims["user_id"].(string)
		staffID, err := uuid.Parse(idStr)
		if err != nil {
			return forbidden(c, "Forbidden: invalid staff identity")
		}

		staff, err := services.AuthorizeStaff(database.DB, staffID, roles...)
		if err != nil {
			if svcErr, ok := services.AsError(err); ok {
				return forbidden(c, svcErr.Message)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve staff account"})
		}

		c.Locals(staffLocal, staff)
		return c.Next()
	}
}

// CandidateSessionRequired rejects tokens whose session has been revoked,
// for example by a proctor locking the attempt.
func CandidateSessionRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals(candidateTokenKey).(*jwt.Token)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Candidate token required"})
		}
		claims, _ := token.Claims.(jwt.MapClaims)
		attemptStr, _ := claims["attempt_id"].(string)
		sessionStr, _ := claims["session_id"].(string)
		attemptID, err1 := uuid.Parse(attemptStr)
		sessionID, err2 := uuid.Parse(sessionStr)
		if err1 != nil || err2 != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid candidate token"})
		}

		active, err := services.FindActiveSession(database.DB, attemptID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check session"})
		}
		if active == nil || active.ID != sessionID {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Session has been revoked, please sign in again",
				"code":  "SESSION_REVOKED",
			})
		}

		c.Locals(AttemptLocal, attemptID)
		c.Locals(SessionLocal, sessionID)
		return c.Next()
	}
}

func CurrentStaff(c *fiber.Ctx) *models.StaffUser {
	staff, _ := c.Locals(staffLocal).(*models.StaffUser)
	return staff
}

func CandidateSession(c *fiber.Ctx) (attemptID, sessionID uuid.UUID) {
	attemptID, _ = c.Locals(AttemptLocal).(uuid.UUID)
	sessionID, _ = c.Locals(SessionLocal).(uuid.UUID)
	return attemptID, sessionID
}
