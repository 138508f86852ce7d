package models

import (
	"time"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	TicketActive  TicketStatus = "ACTIVE"
	TicketRevoked TicketStatus = "REVOKED"
)

type Ticket struct {
	ID                   uuid.UUID    `gorm:"type:uuid;primary_key" json:"id"`
	TicketCode           string       `gorm:"size:32;not null;unique" json:"ticketCode"`
	CandidateID          uuid.UUID    `gorm:"type:uuid;not null;index" json:"candidateId"`
	ExamVersionID        uuid.UUID    `gorm:"type:uuid;not null;index" json:"examVersionId"`
	VisitSlotID          *uuid.UUID   `gorm:"type:uuid" json:"visitSlotId,omitempty"`
	PinHash              string       `gorm:"not null" json:"-"`
	Status               TicketStatus `gorm:"size:16;not null;default:'ACTIVE';index" json:"status"`
	ReplacedByTicketID   *uuid.UUID   `gorm:"type:uuid;unique" json:"replacedByTicketId,omitempty"`
	CreatedByStaffUserID *uuid.UUID   `gorm:"type:uuid" json:"createdByStaffUserId,omitempty"`
	SlipURL              *string      `gorm:"size:512" json:"slipUrl,omitempty"`

	Candidate   Candidate   `gorm:"foreignkey:CandidateID" json:"-"`
	ExamVersion ExamVersion `gorm:"foreignkey:ExamVersionID" json:"-"`
	VisitSlot   *VisitSlot  `gorm:"foreignkey:VisitSlotID" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
