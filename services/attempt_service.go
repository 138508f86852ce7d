package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/anjiri1684/exam_center/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// transitions lists every allowed status edge. LOCKED <-> IN_PROGRESS is the
// only pair that can be walked in both directions.
var transitions = map[models.AttemptStatus][]models.AttemptStatus{
	models.AttemptNotStarted: {models.AttemptInProgress},
	models.AttemptInProgress: {models.AttemptLocked, models.AttemptSubmitted, models.AttemptExpired},
	models.AttemptLocked:     {models.AttemptInProgress},
	models.AttemptSubmitted:  {models.AttemptCompleted},
	models.AttemptExpired:    {models.AttemptCompleted},
}

func CanTransition(from, to models.AttemptStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// applyTransition moves a row-locked attempt to the next status. lockedAt is
// written on every transition so it stays set exactly while LOCKED.
func applyTransition(tx *gorm.DB, attempt *models.Attempt, to models.AttemptStatus, at time.Time, extra map[string]interface{}) error {
	if !CanTransition(attempt.Status, to) {
		return invalidState(fmt.Sprintf("attempt cannot move from %s to %s", attempt.Status, to))
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
		"locked_at":  nil,
	}
	if to == models.AttemptLocked {
		updates["locked_at"] = at
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := tx.Model(&models.Attempt{}).
		Where("id = ? AND status = ?", attempt.ID, attempt.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return invalidState("attempt changed while the transition was in flight")
	}

	attempt.Status = to
	attempt.UpdatedAt = at
	attempt.LockedAt = nil
	if to == models.AttemptLocked {
		attempt.LockedAt = &at
	}
	return nil
}

func deviceExists(tx *gorm.DB, deviceID uuid.UUID) (bool, error) {
	var count int64
	if err := tx.Model(&models.Device{}).Where("id = ?", deviceID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// requireLiveSession confirms sessionID is the attempt's ACTIVE session.
func requireLiveSession(tx *gorm.DB, attemptID, sessionID uuid.UUID) error {
	active, err := FindActiveSession(tx, attemptID)
	if err != nil {
		return err
	}
	if active == nil || active.ID != sessionID {
		return &Error{Code: CodeForbidden, Message: "session is no longer active"}
	}
	return nil
}

// LockAttempt suspends an attempt in progress and revokes its live sessions.
func LockAttempt(db *gorm.DB, attemptID, staffID uuid.UUID) (*models.Attempt, error) {
	var attempt *models.Attempt
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		attempt, err = lockAttemptRow(tx, attemptID)
		if errors.Is(err, ErrNotFound) {
			return notFound("lock refused: attempt not found")
		}
		if err != nil {
			return err
		}
		if attempt.Status != models.AttemptInProgress {
			return invalidState(fmt.Sprintf("lock refused: attempt is %s", attempt.Status))
		}

		previous := attempt.Status
		at := now()
		if err := applyTransition(tx, attempt, models.AttemptLocked, at, nil); err != nil {
			return err
		}

		revoked, err := revokeActiveSessions(tx, attempt.ID, at)
		if err != nil {
			return err
		}

		_, err = RecordAudit(tx, AuditRecord{
			Actor:      &staffID,
			Action:     ActionAttemptLocked,
			EntityType: EntityAttempt,
			EntityID:   attempt.ID.String(),
			Metadata: map[string]interface{}{
				"previousStatus":  string(previous),
				"revokedSessions": revoked,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// ResumeAttempt hands a locked attempt back to the candidate through a fresh
// staff-created session, optionally bound to a device.
func ResumeAttempt(db *gorm.DB, attemptID, staffID uuid.UUID, deviceID *uuid.UUID) (*models.Attempt, *models.AttemptSession, error) {
	var (
		attempt *models.Attempt
		session *models.AttemptSession
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		attempt, err = lockAttemptRow(tx, attemptID)
		if err != nil {
			return err
		}
		if attempt.Status != models.AttemptLocked {
			return invalidState(fmt.Sprintf("resume refused: attempt is %s", attempt.Status))
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

		previous := attempt.Status
		at := now()

		// Sessions should already be revoked by the lock; a racing resume
		// may not have been.
		var revoked int64
		session, revoked, err = startSessionTx(tx, attempt.ID, deviceID, &staffID, at)
		if err != nil {
			return err
		}

		if err := applyTransition(tx, attempt, models.AttemptInProgress, at, nil); err != nil {
			return err
		}

		meta := map[string]interface{}{
			"previousStatus":  string(previous),
			"sessionId":       session.ID.String(),
			"revokedSessions": revoked,
		}
		if deviceID != nil {
			meta["deviceId"] = deviceID.String()
		}
		_, err = RecordAudit(tx, AuditRecord{
			Actor:      &staffID,
			Action:     ActionAttemptResumed,
			EntityType: EntityAttempt,
			EntityID:   attempt.ID.String(),
			Metadata:   meta,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return attempt, session, nil
}

// BeginAttempt runs at candidate login. It starts the attempt on first use,
// hands over a session created by a staff resume, or supersedes the previous
// candidate session.
func BeginAttempt(db *gorm.DB, ticket *models.Ticket, deviceID *uuid.UUID) (*models.Attempt, *models.AttemptSession, error) {
	var (
		attempt *models.Attempt
		session *models.AttemptSession
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		seed := models.Attempt{
			CandidateID:   ticket.CandidateID,
			ExamVersionID: ticket.ExamVersionID,
			TicketID:      ticket.ID,
			Status:        models.AttemptNotStarted,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		var current models.Attempt
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("candidate_id = ? AND exam_version_id = ?", ticket.CandidateID, ticket.ExamVersionID).
			First(&current).Error
		if err != nil {
			return err
		}
		attempt = &current

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
		switch attempt.Status {
		case models.AttemptNotStarted:
			var exam models.ExamVersion
			if err := tx.First(&exam, "id = ?", attempt.ExamVersionID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return notFound("exam version not found")
				}
				return err
			}
			due := at.Add(time.Duration(exam.DurationMinutes) * time.Minute)
			err := applyTransition(tx, attempt, models.AttemptInProgress, at, map[string]interface{}{
				"started_at": at,
				"due_at":     due,
				"ticket_id":  ticket.ID,
			})
			if err != nil {
				return err
			}
			attempt.StartedAt, attempt.DueAt, attempt.TicketID = &at, &due, ticket.ID

			session, _, err = startSessionTx(tx, attempt.ID, deviceID, nil, at)
			if err != nil {
				return err
			}
			return recordCandidateAudit(tx, ActionAttemptStarted, attempt, session, ticket, 0)

		case models.AttemptInProgress:
			if attempt.DueAt != nil && at.After(*attempt.DueAt) {
				return invalidState("attempt time is over")
			}

			active, err := FindActiveSession(tx, attempt.ID)
			if err != nil {
				return err
			}
			if active != nil && active.ClaimedAt == nil {
				if deviceID != nil && active.DeviceID != nil && *active.DeviceID != *deviceID {
					return invalidState("session is bound to another device")
				}
				updates := map[string]interface{}{"claimed_at": at}
				if deviceID != nil && active.DeviceID == nil {
					updates["device_id"] = *deviceID
				}
				res := tx.Model(&models.AttemptSession{}).
					Where("id = ? AND status = ? AND claimed_at IS NULL", active.ID, models.SessionActive).
					Updates(updates)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 1 {
					active.ClaimedAt = &at
					if active.DeviceID == nil {
						active.DeviceID = deviceID
					}
					session = active
					return recordCandidateAudit(tx, ActionSessionClaimed, attempt, session, ticket, 0)
				}
			}

			var revoked int64
			session, revoked, err = startSessionTx(tx, attempt.ID, deviceID, nil, at)
			if err != nil {
				return err
			}
			return recordCandidateAudit(tx, ActionSessionStarted, attempt, session, ticket, revoked)

		case models.AttemptLocked:
			return invalidState("attempt is locked by a proctor")
		}
		if attempt.Status.IsTerminal() {
			return invalidState(fmt.Sprintf("attempt is already %s", attempt.Status))
		}
		return fmt.Errorf("attempt %s has unknown status %q", attempt.ID, attempt.Status)
	})
	if err != nil {
		return nil, nil, err
	}
	return attempt, session, nil
}

func recordCandidateAudit(tx *gorm.DB, action string, attempt *models.Attempt, session *models.AttemptSession, ticket *models.Ticket, revoked int64) error {
	meta := map[string]interface{}{
		"sessionId": session.ID.String(),
		"ticketId":  ticket.ID.String(),
	}
	if revoked > 0 {
		meta["revokedSessions"] = revoked
	}
	if session.DeviceID != nil {
		meta["deviceId"] = session.DeviceID.String()
	}
	_, err := RecordAudit(tx, AuditRecord{
		Action:     action,
		EntityType: EntityAttempt,
		EntityID:   attempt.ID.String(),
		Metadata:   meta,
	})
	return err
}

// SubmitAttempt finalises a candidate's attempt from its live session.
func SubmitAttempt(db *gorm.DB, attemptID, sessionID uuid.UUID) (*models.Attempt, error) {
	var attempt *models.Attempt
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		attempt, err = lockAttemptRow(tx, attemptID)
		if err != nil {
			return err
		}
		if attempt.Status != models.AttemptInProgress {
			return invalidState(fmt.Sprintf("submit refused: attempt is %s", attempt.Status))
		}
		if err := requireLiveSession(tx, attempt.ID, sessionID); err != nil {
			return err
		}

		at := now()
		if err := applyTransition(tx, attempt, models.AttemptSubmitted, at, map[string]interface{}{"submitted_at": at}); err != nil {
			return err
		}
		attempt.SubmittedAt = &at

		if _, err := revokeActiveSessions(tx, attempt.ID, at); err != nil {
			return err
		}

		_, err = RecordAudit(tx, AuditRecord{
			Action:     ActionAttemptSubmitted,
			EntityType: EntityAttempt,
			EntityID:   attempt.ID.String(),
			Metadata: map[string]interface{}{
				"previousStatus": string(models.AttemptInProgress),
				"sessionId":      sessionID.String(),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// SaveAnswer stores the candidate's latest answer to one question. The row
// lock on the attempt orders it against a concurrent lock.
func SaveAnswer(db *gorm.DB, attemptID, sessionID uuid.UUID, questionKey, answer string) (*models.AttemptAnswer, error) {
	var saved models.AttemptAnswer
	err := db.Transaction(func(tx *gorm.DB) error {
		attempt, err := lockAttemptRow(tx, attemptID)
		if err != nil {
			return err
		}
		if attempt.Status != models.AttemptInProgress {
			return invalidState(fmt.Sprintf("answers are not accepted while attempt is %s", attempt.Status))
		}
		if err := requireLiveSession(tx, attempt.ID, sessionID); err != nil {
			return err
		}
		at := now()
		if attempt.DueAt != nil && at.After(*attempt.DueAt) {
			return invalidState("attempt time is over")
		}

		saved = models.AttemptAnswer{
			AttemptID:   attempt.ID,
			QuestionKey: questionKey,
			Answer:      answer,
			SessionID:   sessionID,
			UpdatedAt:   at,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer", "session_id", "updated_at"}),
		}).Create(&saved).Error
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func ListAnswers(db *gorm.DB, attemptID uuid.UUID) ([]models.AttemptAnswer, error) {
	var answers []models.AttemptAnswer
	err := db.Where("attempt_id = ?", attemptID).Order("question_key asc").Find(&answers).Error
	return answers, err
}

// ExpireOverdueAttempts moves every attempt past its due time to EXPIRED, one
// transaction per attempt, and returns the ids it expired.
func ExpireOverdueAttempts(db *gorm.DB, at time.Time) ([]uuid.UUID, error) {
	var candidates []uuid.UUID
	err := db.Model(&models.Attempt{}).
		Where("status = ? AND due_at < ?", models.AttemptInProgress, at).
		Pluck("id", &candidates).Error
	if err != nil {
		return nil, err
	}

	var expired []uuid.UUID
	for _, id := range candidates {
		done := false
		err := db.Transaction(func(tx *gorm.DB) error {
			attempt, err := lockAttemptRow(tx, id)
			if err != nil {
				return err
			}
			if attempt.Status != models.AttemptInProgress || attempt.DueAt == nil || !attempt.DueAt.Before(at) {
				return nil
			}

			stamp := now()
			if err := applyTransition(tx, attempt, models.AttemptExpired, stamp, nil); err != nil {
				return err
			}
			revoked, err := revokeActiveSessions(tx, attempt.ID, stamp)
			if err != nil {
				return err
			}
			_, err = RecordAudit(tx, AuditRecord{
				Action:     ActionAttemptExpired,
				EntityType: EntityAttempt,
				EntityID:   attempt.ID.String(),
				Metadata: map[string]interface{}{
					"previousStatus":  string(models.AttemptInProgress),
					"dueAt":           attempt.DueAt.UTC().Format(time.RFC3339),
					"revokedSessions": revoked,
				},
			})
			done = err == nil
			return err
		})
		if err != nil {
			return expired, fmt.Errorf("expire attempt %s: %w", id, err)
		}
		if done {
			expired = append(expired, id)
		}
	}
	return expired, nil
}

// CompleteAttempt closes a submitted or expired attempt.
func CompleteAttempt(db *gorm.DB, attemptID, staffID uuid.UUID) (*models.Attempt, error) {
	var attempt *models.Attempt
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		attempt, err = lockAttemptRow(tx, attemptID)
		if err != nil {
			return err
		}
		previous := attempt.Status
		if err := applyTransition(tx, attempt, models.AttemptCompleted, now(), nil); err != nil {
			return err
		}
		_, err = RecordAudit(tx, AuditRecord{
			Actor:      &staffID,
			Action:     ActionAttemptCompleted,
			EntityType: EntityAttempt,
			EntityID:   attempt.ID.String(),
			Metadata:   map[string]interface{}{"previousStatus": string(previous)},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

func GetAttempt(db *gorm.DB, attemptID uuid.UUID) (*models.Attempt, error) {
	var attempt models.Attempt
	err := db.Preload("Sessions", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("created_at desc")
	}).First(&attempt, "id = ?", attemptID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("attempt not found")
		}
		return nil, err
	}
	return &attempt, nil
}

func ListAttempts(db *gorm.DB, status models.AttemptStatus, page, perPage int) ([]models.Attempt, int64, error) {
	q := db.Model(&models.Attempt{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}

	var attempts []models.Attempt
	err := q.Order("updated_at desc").Limit(perPage).Offset((page - 1) * perPage).Find(&attempts).Error
	return attempts, total, err
}
