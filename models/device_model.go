package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is a registered exam workstation or tablet.
type Device struct {
	ID     uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Label  string    `gorm:"size:100;not null" json:"label"`
	Serial string    `gorm:"size:100;unique" json:"serial"`
	Room   string    `gorm:"size:100" json:"room"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
