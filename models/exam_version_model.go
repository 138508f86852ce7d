package models

import (
	"time"

	"github.com/google/uuid"
)

type ExamVersion struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Title           string    `gorm:"size:255;not null" json:"title"`
	Version         string    `gorm:"size:32;not null" json:"version"`
	DurationMinutes int       `gorm:"not null" json:"durationMinutes"`
	IsPublished     bool      `gorm:"default:false" json:"isPublished"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
