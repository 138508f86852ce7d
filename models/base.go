package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ensureID assigns a fresh UUID when the caller left the primary key empty.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (u *StaffUser) BeforeCreate(tx *gorm.DB) error      { ensureID(&u.ID); return nil }
func (c *Candidate) BeforeCreate(tx *gorm.DB) error      { ensureID(&c.ID); return nil }
func (e *ExamVersion) BeforeCreate(tx *gorm.DB) error    { ensureID(&e.ID); return nil }
func (v *VisitSlot) BeforeCreate(tx *gorm.DB) error      { ensureID(&v.ID); return nil }
func (d *Device) BeforeCreate(tx *gorm.DB) error         { ensureID(&d.ID); return nil }
func (t *Ticket) BeforeCreate(tx *gorm.DB) error         { ensureID(&t.ID); return nil }
func (a *Attempt) BeforeCreate(tx *gorm.DB) error        { ensureID(&a.ID); return nil }
func (s *AttemptSession) BeforeCreate(tx *gorm.DB) error { ensureID(&s.ID); return nil }
func (a *AttemptAnswer) BeforeCreate(tx *gorm.DB) error  { ensureID(&a.ID); return nil }
