package services

import (
	"fmt"
	"time"

	"github.com/anjiri1684/exam_center/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionAttemptStarted   = "ATTEMPT_STARTED"
	ActionSessionStarted   = "SESSION_STARTED"
	ActionSessionClaimed   = "SESSION_CLAIMED"
	ActionAttemptLocked    = "ATTEMPT_LOCKED"
	ActionAttemptResumed   = "ATTEMPT_RESUMED"
	ActionAttemptSubmitted = "ATTEMPT_SUBMITTED"
	ActionAttemptExpired   = "ATTEMPT_EXPIRED"
	ActionAttemptCompleted = "ATTEMPT_COMPLETED"
	ActionTicketIssued     = "TICKET_ISSUED"
	ActionTicketReissued   = "TICKET_REISSUED"
)

const (
	EntityAttempt = "attempt"
	EntityTicket  = "ticket"
)

// now is swapped in tests that need a fixed clock.
var now = func() time.Time { return time.Now().UTC() }

type AuditRecord struct {
	Actor      *uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]interface{}
}

// RecordAudit appends one entry using tx. It must be given the transaction
// that performs the state change being recorded.
func RecordAudit(tx *gorm.DB, rec AuditRecord) (*models.AuditLog, error) {
	entry := models.AuditLog{
		ActorStaffUserID: rec.Actor,
		Action:           rec.Action,
		EntityType:       rec.EntityType,
		EntityID:         rec.EntityID,
		ServerTime:       now(),
	}
	if len(rec.Metadata) > 0 {
		entry.Metadata = datatypes.JSONMap(rec.Metadata)
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("record audit %s: %w", rec.Action, err)
	}
	return &entry, nil
}

type AuditFilter struct {
	Action     string
	EntityType string
	EntityID   string
	Actor      *uuid.UUID
	Since      *time.Time
}

func ListAuditLogs(db *gorm.DB, f AuditFilter, page, perPage int) ([]models.AuditLog, int64, error) {
	q := db.Model(&models.AuditLog{})
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.Actor != nil {
		q = q.Where("actor_staff_user_id = ?", *f.Actor)
	}
	if f.Since != nil {
		q = q.Where("server_time >= ?", *f.Since)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 50
	}

	var entries []models.AuditLog
	err := q.Order("server_time desc, id desc").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&entries).Error
	return entries, total, err
}
