package models

import (
	"time"

	"github.com/google/uuid"
)

type VisitSlot struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ExamVersionID uuid.UUID `gorm:"type:uuid;not null;index" json:"examVersionId"`
	Room          string    `gorm:"size:100" json:"room"`
	StartTime     time.Time `gorm:"not null;index" json:"startTime"`
	EndTime       time.Time `gorm:"not null" json:"endTime"`
	Capacity      int       `gorm:"not null;default:0" json:"capacity"`

	ExamVersion ExamVersion `gorm:"foreignkey:ExamVersionID" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
