package jobs

import (
	"log"
	"time"

	"github.com/anjiri1684/exam_center/database"
	"github.com/anjiri1684/exam_center/services"
	"github.com/anjiri1684/exam_center/websocket"
	"gorm.io/gorm"
)

// ExpireOverdueAttempts is scheduled every minute.
func ExpireOverdueAttempts() {
	ExpireAttempts(database.DB, time.Now().UTC())
}

// ExpireAttempts expires attempts past their due time and tells their
// sockets. It returns how many were expired.
func ExpireAttempts(db *gorm.DB, at time.Time) int {
	expired, err := services.ExpireOverdueAttempts(db, at)
	if err != nil {
		log.Printf("Error expiring overdue attempts: %v", err)
	}
	for _, id := range expired {
		websocket.NotifyAttempt(websocket.Notice{AttemptID: id, Status: "EXPIRED"})
	}
	if len(expired) > 0 {
		log.Printf("Expired %d overdue attempt(s).", len(expired))
	}
	return len(expired)
}
