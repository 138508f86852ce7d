package models

import (
	"time"

	"github.com/google/uuid"
)

type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "NOT_STARTED"
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptLocked     AttemptStatus = "LOCKED"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
	AttemptCompleted  AttemptStatus = "COMPLETED"
	AttemptExpired    AttemptStatus = "EXPIRED"
)

// IsTerminal reports whether no further candidate activity is possible.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptSubmitted || s == AttemptCompleted || s == AttemptExpired
}

type Attempt struct {
	ID            uuid.UUID     `gorm:"type:uuid;primary_key" json:"id"`
	CandidateID   uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_attempts_candidate_exam" json:"candidateId"`
	ExamVersionID uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_attempts_candidate_exam" json:"examVersionId"`
	TicketID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"ticketId"`
	Status        AttemptStatus `gorm:"size:16;not null;default:'NOT_STARTED';index" json:"status"`
	LockedAt      *time.Time    `json:"lockedAt"`
	StartedAt     *time.Time    `json:"startedAt,omitempty"`
	DueAt         *time.Time    `gorm:"index" json:"dueAt,omitempty"`
	SubmittedAt   *time.Time    `json:"submittedAt,omitempty"`

	Sessions []AttemptSession `gorm:"foreignkey:AttemptID" json:"sessions,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
