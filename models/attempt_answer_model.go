package models

import (
	"time"

	"github.com/google/uuid"
)

type AttemptAnswer struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	AttemptID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_attempt_answers_question" json:"attemptId"`
	QuestionKey string    `gorm:"size:64;not null;uniqueIndex:idx_attempt_answers_question" json:"questionKey"`
	Answer      string    `gorm:"type:text;not null" json:"answer"`
	SessionID   uuid.UUID `gorm:"type:uuid;not null" json:"sessionId"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
