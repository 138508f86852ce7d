package jobs

import (
	"log"
	"time"

	"github.com/anjiri1684/exam_center/database"
	"github.com/anjiri1684/exam_center/models"
	"github.com/anjiri1684/exam_center/notifications"
	"gorm.io/gorm"
)

// SendVisitReminders runs every five minutes, so the window matches the
// schedule and each slot is reminded once.
func SendVisitReminders() {
	log.Println("Running job: SendVisitReminders...")

	tickets, err := ticketsStartingSoon(database.DB, time.Now().UTC())
	if err != nil {
		log.Printf("Error checking for upcoming visit slots: %v", err)
		return
	}

	for _, ticket := range tickets {
		if ticket.Candidate.Email == "" || ticket.VisitSlot == nil {
			continue
		}
		log.Printf("Sending visit reminder for ticket %s", ticket.TicketCode)
		go notifications.SendVisitReminder(
			ticket.Candidate.FullName,
			ticket.Candidate.Email,
			ticket.ExamVersion.Title,
			ticket.VisitSlot.StartTime,
			ticket.VisitSlot.Room,
		)
	}
}

// ticketsStartingSoon returns ACTIVE tickets whose visit slot starts between
// 60 and 65 minutes after now.
func ticketsStartingSoon(db *gorm.DB, now time.Time) ([]models.Ticket, error) {
	lowerBound := now.Add(60 * time.Minute)
	upperBound := now.Add(65 * time.Minute)

	var tickets []models.Ticket
	err := db.
		Preload("Candidate").
		Preload("ExamVersion").
		Preload("VisitSlot").
		Joins("JOIN visit_slots ON tickets.visit_slot_id = visit_slots.id").
		Where("tickets.status = ? AND visit_slots.start_time >= ? AND visit_slots.start_time < ?", models.TicketActive, lowerBound, upperBound).
		Find(&tickets).Error
	return tickets, err
}
