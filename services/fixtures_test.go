package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/exam_center/database/databasetest"
	"github.com/anjiri1684/exam_center/models"
	"gorm.io/gorm"
)

const testPIN = "482913"

type fixture struct {
	db        *gorm.DB
	proctor   models.StaffUser
	registrar models.StaffUser
	exam      models.ExamVersion
	candidate models.Candidate
	device    models.Device
	ticket    *models.Ticket
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: databasetest.New(t)}

	f.proctor = models.StaffUser{FullName: "Pat Proctor", Email: "pat@example.com", Password: "x", Role: models.RoleProctor, IsActive: true}
	f.registrar = models.StaffUser{FullName: "Rey Registrar", Email: "rey@example.com", Password: "x", Role: models.RoleRegistrar, IsActive: true}
	f.exam = models.ExamVersion{Title: "Driving Theory", Version: "2026.1", DurationMinutes: 60, IsPublished: true}
	f.candidate = models.Candidate{FullName: "Casey Candidate", Email: "casey@example.com"}
	f.device = models.Device{Label: "D1", Serial: "SN-0001", Room: "A"}
	for _, row := range []interface{}{&f.proctor, &f.registrar, &f.exam, &f.candidate, &f.device} {
		if err := f.db.Create(row).Error; err != nil {
			t.Fatalf("seed %T: %v", row, err)
		}
	}

	issued, err := IssueTicket(f.db, IssueTicketInput{
		CandidateID:   f.candidate.ID,
		ExamVersionID: f.exam.ID,
		PIN:           testPIN,
	}, f.registrar.ID)
	if err != nil {
		t.Fatalf("IssueTicket: %v", err)
	}
	f.ticket = issued.Ticket
	return f
}

// begin signs the candidate in and returns the started attempt.
func (f *fixture) begin(t *testing.T) (*models.Attempt, *models.AttemptSession) {
	t.Helper()
	attempt, session, err := BeginAttempt(f.db, f.ticket, nil)
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	return attempt, session
}

func (f *fixture) reload(t *testing.T, id interface{}) models.Attempt {
	t.Helper()
	var a models.Attempt
	if err := f.db.First(&a, "id = ?", id).Error; err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	return a
}

func (f *fixture) activeSessions(t *testing.T, attemptID interface{}) []models.AttemptSession {
	t.Helper()
	var sessions []models.AttemptSession
	if err := f.db.Where("attempt_id = ? AND status = ?", attemptID, models.SessionActive).Find(&sessions).Error; err != nil {
		t.Fatalf("load sessions: %v", err)
	}
	return sessions
}

func (f *fixture) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.AuditLog{}).Where("action = ?", action).Count(&n).Error; err != nil {
		t.Fatalf("count audit: %v", err)
	}
	return n
}

func (f *fixture) lastAudit(t *testing.T, action string) models.AuditLog {
	t.Helper()
	var entry models.AuditLog
	if err := f.db.Where("action = ?", action).Order("id desc").First(&entry).Error; err != nil {
		t.Fatalf("load %s audit: %v", action, err)
	}
	return entry
}

// freezeNow pins the service clock for the duration of a test.
func freezeNow(t *testing.T, at time.Time) {
	t.Helper()
	previous := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = previous })
}

// race runs fn from n goroutines at once and counts successes and
// INVALID_STATE refusals. Any other error fails the test.
func race(t *testing.T, n int, fn func() error) (successes, invalid int) {
	t.Helper()
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn()
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInvalidState):
				invalid++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	return successes, invalid
}
