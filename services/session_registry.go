package services

import (
	"errors"
	"time"

	"github.com/anjiri1684/exam_center/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActionSessionsRevoked records a staff force-logout that kept the attempt running.
const ActionSessionsRevoked = "SESSIONS_REVOKED"

// lockAttemptRow loads the attempt holding an exclusive row lock until tx ends.
func lockAttemptRow(tx *gorm.DB, attemptID uuid.UUID) (*models.Attempt, error) {
	var attempt models.Attempt
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&attempt, "id = ?", attemptID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("attempt not found")
		}
		return nil, err
	}
	return &attempt, nil
}

func revokeActiveSessions(tx *gorm.DB, attemptID uuid.UUID, at time.Time) (int64, error) {
	res := tx.Model(&models.AttemptSession{}).
		Where("attempt_id = ? AND status = ?", attemptID, models.SessionActive).
		Updates(map[string]interface{}{
			"status":     models.SessionRevoked,
			"revoked_at": at,
		})
	return res.RowsAffected, res.Error
}

// startSessionTx revokes whatever is ACTIVE for the attempt and then creates
// the replacement. The order matters: the partial unique index rejects a
// second ACTIVE row.
func startSessionTx(tx *gorm.DB, attemptID uuid.UUID, deviceID, staffID *uuid.UUID, at time.Time) (*models.AttemptSession, int64, error) {
	revoked, err := revokeActiveSessions(tx, attemptID, at)
	if err != nil {
		return nil, 0, err
	}

	session := models.AttemptSession{
		AttemptID:            attemptID,
		DeviceID:             deviceID,
		Status:               models.SessionActive,
		CreatedByStaffUserID: staffID,
		CreatedAt:            at,
	}
	if staffID == nil {
		session.ClaimedAt = &at
	}
	if err := tx.Create(&session).Error; err != nil {
		return nil, 0, err
	}
	return &session, revoked, nil
}

// StartSession makes a new ACTIVE session the only live one for an
// IN_PROGRESS attempt.
func StartSession(db *gorm.DB, attemptID uuid.UUID, deviceID, staffID *uuid.UUID) (*models.AttemptSession, error) {
	var session *models.AttemptSession
	err := db.Transaction(func(tx *gorm.DB) error {
		attempt, err := lockAttemptRow(tx, attemptID)
		if err != nil {
			return err
		}
		if attempt.Status != models.AttemptInProgress {
			return invalidState("sessions can only be started for an attempt in progress")
		}
		if deviceID != nil {
			ok, err := deviceExists(tx, *deviceID)
			if err != nil {
				return err
			}
			if !ok {
				return notFound("device not found")
			}
		}

		at := now()
		var revoked int64
		session, revoked, err = startSessionTx(tx, attempt.ID, deviceID, staffID, at)
		if err != nil {
			return err
		}

		meta := map[string]interface{}{
			"sessionId":       session.ID.String(),
			"revokedSessions": revoked,
		}
		if deviceID != nil {
			meta["deviceId"] = deviceID.String()
		}
		_, err = RecordAudit(tx, AuditRecord{
			Actor:      staffID,
			Action:     ActionSessionStarted,
			EntityType: EntityAttempt,
			EntityID:   attempt.ID.String(),
			Metadata:   meta,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// FindActiveSession returns the attempt's live session, or nil when there is none.
func FindActiveSession(db *gorm.DB, attemptID uuid.UUID) (*models.AttemptSession, error) {
	var session models.AttemptSession
	err := db.Where("attempt_id = ? AND status = ?", attemptID, models.SessionActive).
		Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// RevokeAllSessions revokes every ACTIVE session of the attempt. Revoking
// when nothing is active is a no-op and writes no audit entry.
func RevokeAllSessions(db *gorm.DB, attemptID uuid.UUID, staffID *uuid.UUID) (int64, error) {
	var revoked int64
	err := db.Transaction(func(tx *gorm.DB) error {
		attempt, err := lockAttemptRow(tx, attemptID)
		if err != nil {
			return err
		}

		revoked, err = revokeActiveSessions(tx, attempt.ID, now())
		if err != nil || revoked == 0 {
			return err
		}

		_, err = RecordAudit(tx, AuditRecord{
			Actor:      staffID,
			Action:     ActionSessionsRevoked,
			EntityType: EntityAttempt,
			EntityID:   attempt.ID.String(),
			Metadata:   map[string]interface{}{"revokedSessions": revoked, "status": string(attempt.Status)},
		})
		return err
	})
	return revoked, err
}
