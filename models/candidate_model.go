package models

import (
	"time"

	"github.com/google/uuid"
)

type Candidate struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	FullName    string     `gorm:"size:255;not null" json:"fullName"`
	Email       string     `gorm:"size:255" json:"email"`
	NationalID  *string    `gorm:"size:64;unique" json:"nationalId,omitempty"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
