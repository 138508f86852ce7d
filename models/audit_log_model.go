package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrAuditImmutable = errors.New("audit log entries are immutable")

type AuditLog struct {
	ID               uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorStaffUserID *uuid.UUID        `gorm:"type:uuid;index" json:"actorStaffUserId"`
	Action           string            `gorm:"size:64;not null;index" json:"action"`
	EntityType       string            `gorm:"size:64;index:idx_audit_logs_entity" json:"entityType,omitempty"`
	EntityID         string            `gorm:"size:64;index:idx_audit_logs_entity" json:"entityId,omitempty"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"`
	ServerTime       time.Time         `gorm:"not null;index" json:"serverTime"`
}

func (AuditLog) BeforeUpdate(tx *gorm.DB) error { return ErrAuditImmutable }
func (AuditLog) BeforeDelete(tx *gorm.DB) error { return ErrAuditImmutable }
