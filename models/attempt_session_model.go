package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionActive  SessionStatus = "ACTIVE"
	SessionRevoked SessionStatus = "REVOKED"
)

// AttemptSession is the login session a client presents to act on an attempt.
// The partial unique index keeps at most one ACTIVE row per attempt.
type AttemptSession struct {
	ID                   uuid.UUID     `gorm:"type:uuid;primary_key" json:"id"`
	AttemptID            uuid.UUID     `gorm:"type:uuid;not null;index;uniqueIndex:idx_attempt_sessions_one_active,where:status = 'ACTIVE'" json:"attemptId"`
	DeviceID             *uuid.UUID    `gorm:"type:uuid" json:"deviceId,omitempty"`
	Status               SessionStatus `gorm:"size:16;not null;default:'ACTIVE'" json:"status"`
	CreatedByStaffUserID *uuid.UUID    `gorm:"type:uuid" json:"createdByStaffUserId,omitempty"`
	ClaimedAt            *time.Time    `json:"claimedAt,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
	RevokedAt            *time.Time    `json:"revokedAt,omitempty"`
}
