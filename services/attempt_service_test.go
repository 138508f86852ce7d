package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/exam_center/models"
	"github.com/google/uuid"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.AttemptStatus
		want     bool
	}{
		{models.AttemptNotStarted, models.AttemptInProgress, true},
		{models.AttemptInProgress, models.AttemptLocked, true},
		{models.AttemptLocked, models.AttemptInProgress, true},
		{models.AttemptInProgress, models.AttemptSubmitted, true},
		{models.AttemptInProgress, models.AttemptExpired, true},
		{models.AttemptSubmitted, models.AttemptCompleted, true},
		{models.AttemptExpired, models.AttemptCompleted, true},
		{models.AttemptLocked, models.AttemptSubmitted, false},
		{models.AttemptNotStarted, models.AttemptLocked, false},
		{models.AttemptCompleted, models.AttemptInProgress, false},
		{models.AttemptSubmitted, models.AttemptInProgress, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestBeginAttemptStartsAttempt(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	freezeNow(t, start)

	attempt, session := f.begin(t)

	if attempt.Status != models.AttemptInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", attempt.Status)
	}
	if attempt.DueAt == nil || !attempt.DueAt.Equal(start.Add(60*time.Minute)) {
		t.Fatalf("dueAt = %v, want %v", attempt.DueAt, start.Add(60*time.Minute))
	}
	if session.Status != models.SessionActive || session.ClaimedAt == nil {
		t.Fatalf("session = %+v, want an ACTIVE claimed session", session)
	}
	if n := f.auditCount(t, ActionAttemptStarted); n != 1 {
		t.Fatalf("ATTEMPT_STARTED entries = %d, want 1", n)
	}
}

func TestBeginAttemptSupersedesPreviousSession(t *testing.T) {
	f := newFixture(t)
	attempt, first := f.begin(t)

	_, second, err := BeginAttempt(f.db, f.ticket, &f.device.ID)
	if err != nil {
		t.Fatalf("second BeginAttempt: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("second sign-in reused the first session")
	}

	active := f.activeSessions(t, attempt.ID)
	if len(active) != 1 || active[0].ID != second.ID {
		t.Fatalf("active sessions = %+v, want only %s", active, second.ID)
	}
	if active[0].DeviceID == nil || *active[0].DeviceID != f.device.ID {
		t.Fatalf("deviceId = %v, want %s", active[0].DeviceID, f.device.ID)
	}
	if n := f.auditCount(t, ActionSessionStarted); n != 1 {
		t.Fatalf("SESSION_STARTED entries = %d, want 1", n)
	}
}

func TestLockThenResumeOnDevice(t *testing.T) {
	f := newFixture(t)
	attempt, _ := f.begin(t)

	locked, err := LockAttempt(f.db, attempt.ID, f.proctor.ID)
	if err != nil {
		t.Fatalf("LockAttempt: %v", err)
	}
	if locked.Status != models.AttemptLocked {
		t.Fatalf("status = %s, want LOCKED", locked.Status)
	}

	stored := f.reload(t, attempt.ID)
	if stored.Status != models.AttemptLocked || stored.LockedAt == nil {
		t.Fatalf("stored attempt = %s lockedAt=%v, want LOCKED with lockedAt", stored.Status, stored.LockedAt)
	}
	if active := f.activeSessions(t, attempt.ID); len(active) != 0 {
		t.Fatalf("active sessions after lock = %d, want 0", len(active))
	}

	lockEntry := f.lastAudit(t, ActionAttemptLocked)
	if lockEntry.ActorStaffUserID == nil || *lockEntry.ActorStaffUserID != f.proctor.ID {
		t.Fatalf("lock actor = %v, want %s", lockEntry.ActorStaffUserID, f.proctor.ID)
	}
	if lockEntry.EntityType != EntityAttempt || lockEntry.EntityID != attempt.ID.String() {
		t.Fatalf("lock entity = %s:%s, want attempt:%s", lockEntry.EntityType, lockEntry.EntityID, attempt.ID)
	}
	if lockEntry.Metadata["previousStatus"] != string(models.AttemptInProgress) {
		t.Fatalf("previousStatus = %v, want IN_PROGRESS", lockEntry.Metadata["previousStatus"])
	}

	resumed, session, err := ResumeAttempt(f.db, attempt.ID, f.proctor.ID, &f.device.ID)
	if err != nil {
		t.Fatalf("ResumeAttempt: %v", err)
	}
	if resumed.Status != models.AttemptInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", resumed.Status)
	}

	stored = f.reload(t, attempt.ID)
	if stored.Status != models.AttemptInProgress || stored.LockedAt != nil {
		t.Fatalf("stored attempt = %s lockedAt=%v, want IN_PROGRESS without lockedAt", stored.Status, stored.LockedAt)
	}

	active := f.activeSessions(t, attempt.ID)
	if len(active) != 1 || active[0].ID != session.ID {
		t.Fatalf("active sessions = %+v, want only %s", active, session.ID)
	}
	if active[0].DeviceID == nil || *active[0].DeviceID != f.device.ID {
		t.Fatalf("deviceId = %v, want %s", active[0].DeviceID, f.device.ID)
	}
	if active[0].CreatedByStaffUserID == nil || *active[0].CreatedByStaffUserID != f.proctor.ID {
		t.Fatalf("createdBy = %v, want %s", active[0].CreatedByStaffUserID, f.proctor.ID)
	}

	resumeEntry := f.lastAudit(t, ActionAttemptResumed)
	if resumeEntry.ActorStaffUserID == nil || *resumeEntry.ActorStaffUserID != f.proctor.ID {
		t.Fatalf("resume actor = %v, want %s", resumeEntry.ActorStaffUserID, f.proctor.ID)
	}
	if resumeEntry.Metadata["previousStatus"] != string(models.AttemptLocked) {
		t.Fatalf("previousStatus = %v, want LOCKED", resumeEntry.Metadata["previousStatus"])
	}
	if resumeEntry.Metadata["deviceId"] != f.device.ID.String() {
		t.Fatalf("deviceId metadata = %v, want %s", resumeEntry.Metadata["deviceId"], f.device.ID)
	}
}

func TestCandidateClaimsResumedSession(t *testing.T) {
	f := newFixture(t)
	attempt, _ := f.begin(t)
	if _, err := LockAttempt(f.db, attempt.ID, f.proctor.ID); err != nil {
		t.Fatalf("LockAttempt: %v", err)
	}
	_, resumed, err := ResumeAttempt(f.db, attempt.ID, f.proctor.ID, &f.device.ID)
	if err != nil {
		t.Fatalf("ResumeAttempt: %v", err)
	}
	if resumed.ClaimedAt != nil {
		t.Fatal("a staff-created session should start unclaimed")
	}

	_, claimed, err := BeginAttempt(f.db, f.ticket, nil)
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	if claimed.ID != resumed.ID {
		t.Fatalf("candidate got session %s, want the resumed session %s", claimed.ID, resumed.ID)
	}
	if claimed.ClaimedAt == nil {
		t.Fatal("claimed session has no claimedAt")
	}
	if n := f.auditCount(t, ActionSessionClaimed); n != 1 {
		t.Fatalf("SESSION_CLAIMED entries = %d, want 1", n)
	}

	// A second sign-in cannot claim it again and takes over instead.
	_, next, err := BeginAttempt(f.db, f.ticket, nil)
	if err != nil {
		t.Fatalf("third BeginAttempt: %v", err)
	}
	if next.ID == resumed.ID {
		t.Fatal("a claimed session was handed out twice")
	}
}

func TestClaimRefusesOtherDevice(t *testing.T) {
	f := newFixture(t)
	attempt, _ := f.begin(t)
	if _, err := LockAttempt(f.db, attempt.ID, f.proctor.ID); err != nil {
		t.Fatalf("LockAttempt: %v", err)
	}
	_, resumed, err := ResumeAttempt(f.db, attempt.ID, f.proctor.ID, &f.device.ID)
	if err != nil {
		t.Fatalf("ResumeAttempt: %v", err)
	}
	other := models.Device{Label: "D2", Serial: "SN-0002", Room: "A"}
	if err := f.db.Create(&other).Error; err != nil {
		t.Fatalf("seed device: %v", err)
	}

	if _, _, err := BeginAttempt(f.db, f.ticket, &other.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("claim from D2: err = %v, want INVALID_STATE", err)
	}
	var stored models.AttemptSession
	if err := f.db.First(&stored, "id = ?", resumed.ID).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	if stored.Status != models.SessionActive || stored.ClaimedAt != nil {
		t.Fatalf("session = %s claimedAt=%v, want ACTIVE and unclaimed", stored.Status, stored.ClaimedAt)
	}

	_, session, err := BeginAttempt(f.db, f.ticket, &f.device.ID)
	if err != nil {
		t.Fatalf("claim from D1: %v", err)
	}
	if session.ID != resumed.ID {
		t.Fatalf("session = %s, want %s", session.ID, resumed.ID)
	}
}

func TestClaimBindsUnboundSession(t *testing.T) {
	f := newFixture(t)
	attempt, _ := f.begin(t)
	if _, err := LockAttempt(f.db, attempt.ID, f.proctor.ID); err != nil {
		t.Fatalf("LockAttempt: %v", err)
	}
	_, resumed, err := ResumeAttempt(f.db, attempt.ID, f.proctor.ID, nil)
	if err != nil {
		t.Fatalf("ResumeAttempt: %v", err)
	}

	_, session, err := BeginAttempt(f.db, f.ticket, &f.device.ID)
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	if session.ID != resumed.ID || session.DeviceID == nil || *session.DeviceID != f.device.ID {
		t.Fatalf("claimed session = %s device=%v, want %s on %s", session.ID, session.DeviceID, resumed.ID, f.device.ID)
	}
	entry := f.lastAudit(t, ActionSessionClaimed)
	if entry.Metadata["deviceId"] != f.device.ID.String() {
		t.Fatalf("SESSION_CLAIMED metadata = %v, want deviceId %s", entry.Metadata, f.device.ID)
	}
}

func TestBeginAttemptRefusedWhileLocked(t *testing.T) {
	f := newFixture(t)
	attempt, _ := f.begin(t)
	if _, err := LockAttempt(f.db, attempt.ID, f.proctor.ID); err != nil {
		t.Fatalf("LockAttempt: %v", err)
	}

	_, _, err := BeginAttempt(f.db, f.ticket, nil)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("BeginAttempt on locked attempt: err = %v, want INVALID_STATE", err)
	}
	if active := f.activeSessions(t, attempt.ID); len(active) != 0 {
		t.Fatalf("active sessions = %d, want 0", len(active))
	}
}

func TestLockAttemptNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := LockAttempt(f.db, uuid.New(), f.proctor.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
	if n := f.auditCount(t, ActionAttemptLocked); n != 0 {
		t.Fatalf("ATTEMPT_LOCKED entries = %d, want 0", n)
	}
}

func TestLockAttemptRejectsOtherStates(t *testing.T) {
	f := newFixture(t)

	notStarted := models.Attempt{
		CandidateID:   f.candidate.ID,
		ExamVersionID: f.exam.ID,
		TicketID:      f.ticket.ID,
		Status:        models.AttemptNotStarted,
	}
	if err := f.db.Create(&notStarted).Error; err != nil {
		t.Fatalf("seed attempt: %v", err)
	}
	_, err := LockAttempt(f.db, notStarted.ID, f.proctor.ID)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("lock NOT_STARTED: err = %v, want INVALID_STATE", err)
	}

	attempt, _ := f.begin(t)
	if _, err := LockAttempt(f.db, attempt.ID, f.proctor.ID); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	_, err = LockAttempt(f.db, attempt.ID, f.proctor.ID)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second lock: err = %v, want INVALID_STATE", err)
	}
	if n := f.auditCount(t, ActionAttemptLocked); n != 1 {
		t.Fatalf("ATTEMPT_LOCKED entries = %d, want 1", n)
	}
}

func TestConcurrentLocksSucceedOnce(t *testing.T) {
	f := newFixture(t)
	attempt, _ := f.begin(t)

	const callers = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		invalid   int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := LockAttempt(f.db, attempt.ID, f.proctor.ID)
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

	if successes != 1 || invalid != callers-1 {
		t.Fatalf("successes=%d invalid=%d, want 1 and %d", successes, invalid, callers-1)
	}
	if n := f.auditCount(t, ActionAttemptLocked); n != 1 {
		t.Fatalf("ATTEMPT_LOCKED entries = %d, want 1", n)
	}
}

func TestConcurrentResumesLeaveOneActiveSession(t *testing.T) {
	f := newFixture(t)
	attempt, _ := f.begin(t)
	if _, err := LockAttempt(f.db, attempt.ID, f.proctor.ID); err != nil {
		t.Fatalf("LockAttempt: %v", err)
	}

	const callers = 4
	successes, invalid := race(t, callers, func() error {
		_, _, err := ResumeAttempt(f.db, attempt.ID, f.proctor.ID, &f.device.ID)
		return err
	})

	if successes != 1 || invalid != callers-1 {
		t.Fatalf("successes=%d invalid=%d, want 1 and %d", successes, invalid, callers-1)
	}
	if active := f.activeSessions(t, attempt.ID); len(active) != 1 {
		t.Fatalf("active sessions = %d, want 1", len(active))
	}
	if n := f.auditCount(t, ActionAttemptResumed); n != 1 {
		t.Fatalf("ATTEMPT_RESUMED entries = %d, want 1", n)
	}
	if stored := f.reload(t, attempt.ID); stored.Status != models.AttemptInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", stored.Status)
	}
}

func TestConcurrentLocksAfterResume(t *testing.T) {
	f := newFixture(t)
	attempt, _ := f.begin(t)
	if _, err := LockAttempt(f.db, attempt.ID, f.proctor.ID); err != nil {
		t.Fatalf("LockAttempt: %v", err)
	}
	if _, _, err := ResumeAttempt(f.db, attempt.ID, f.proctor.ID, &f.device.ID); err != nil {
		t.Fatalf("ResumeAttempt: %v", err)
	}
	before := f.auditCount(t, ActionAttemptLocked)

	successes, invalid := race(t, 2, func() error {
		_, err := LockAttempt(f.db, attempt.ID, f.proctor.ID)
		return err
	})

	if successes != 1 || invalid != 1 {
		t.Fatalf("successes=%d invalid=%d, want 1 and 1", successes, invalid)
	}
	if n := f.auditCount(t, ActionAttemptLocked) - before; n != 1 {
		t.Fatalf("new ATTEMPT_LOCKED entries = %d, want 1", n)
	}
	if active := f.activeSessions(t, attempt.ID); len(active) != 0 {
		t.Fatalf("active sessions = %d, want 0", len(active))
	}
	if stored := f.reload(t, attempt.ID); stored.Status != models.AttemptLocked {
		t.Fatalf("status = %s, want LOCKED", stored.Status)
	}
}

func TestResumeWithUnknownDevice(t *testing.T) {
	f := newFixture(t)
	attempt, _ := f.begin(t)
	if _, err := LockAttempt(f.db, attempt.ID, f.proctor.ID); err != nil {
		t.Fatalf("LockAttempt: %v", err)
	}

	missing := uuid.New()
	_, _, err := ResumeAttempt(f.db, attempt.ID, f.proctor.ID, &missing)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}

	stored := f.reload(t, attempt.ID)
	if stored.Status != models.AttemptLocked {
		t.Fatalf("status = %s, want LOCKED", stored.Status)
	}
	if active := f.activeSessions(t, attempt.ID); len(active) != 0 {
		t.Fatalf("active sessions = %d, want 0", len(active))
	}
	if n := f.auditCount(t, ActionAttemptResumed); n != 0 {
		t.Fatalf("ATTEMPT_RESUMED entries = %d, want 0", n)
	}
}

func TestResumeRequiresLockedAttempt(t *testing.T) {
	f := newFixture(t)
	attempt, _ := f.begin(t)

	_, _, err := ResumeAttempt(f.db, attempt.ID, f.proctor.ID, nil)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("resume IN_PROGRESS: err = %v, want INVALID_STATE", err)
	}
	_, _, err = ResumeAttempt(f.db, uuid.New(), f.proctor.ID, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("resume unknown: err = %v, want NOT_FOUND", err)
	}
}

func TestSubmitAttempt(t *testing.T) {
	f := newFixture(t)
	attempt, first := f.begin(t)
	_, second, err := BeginAttempt(f.db, f.ticket, nil)
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}

	_, err = SubmitAttempt(f.db, attempt.ID, first.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("submit from superseded session: err = %v, want FORBIDDEN", err)
	}

	submitted, err := SubmitAttempt(f.db, attempt.ID, second.ID)
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if submitted.Status != models.AttemptSubmitted || submitted.SubmittedAt == nil {
		t.Fatalf("attempt = %s submittedAt=%v, want SUBMITTED", submitted.Status, submitted.SubmittedAt)
	}
	if active := f.activeSessions(t, attempt.ID); len(active) != 0 {
		t.Fatalf("active sessions after submit = %d, want 0", len(active))
	}

	_, _, err = BeginAttempt(f.db, f.ticket, nil)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("sign-in after submit: err = %v, want INVALID_STATE", err)
	}
}

func TestSaveAnswerKeepsLatest(t *testing.T) {
	f := newFixture(t)
	attempt, session := f.begin(t)

	if _, err := SaveAnswer(f.db, attempt.ID, session.ID, "q1", "A"); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if _, err := SaveAnswer(f.db, attempt.ID, session.ID, "q1", "C"); err != nil {
		t.Fatalf("SaveAnswer overwrite: %v", err)
	}
	if _, err := SaveAnswer(f.db, attempt.ID, session.ID, "q2", "B"); err != nil {
		t.Fatalf("SaveAnswer q2: %v", err)
	}

	answers, err := ListAnswers(f.db, attempt.ID)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 2 || answers[0].Answer != "C" || answers[1].Answer != "B" {
		t.Fatalf("answers = %+v, want q1=C q2=B", answers)
	}

	if _, err := LockAttempt(f.db, attempt.ID, f.proctor.ID); err != nil {
		t.Fatalf("LockAttempt: %v", err)
	}
	_, err = SaveAnswer(f.db, attempt.ID, session.ID, "q3", "D")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("save while locked: err = %v, want INVALID_STATE", err)
	}
}

func TestExpireOverdueAttempts(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	freezeNow(t, start)
	attempt, _ := f.begin(t)

	expired, err := ExpireOverdueAttempts(f.db, start.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("ExpireOverdueAttempts early: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expired %v before the due time", expired)
	}

	expired, err = ExpireOverdueAttempts(f.db, start.Add(61*time.Minute))
	if err != nil {
		t.Fatalf("ExpireOverdueAttempts: %v", err)
	}
	if len(expired) != 1 || expired[0] != attempt.ID {
		t.Fatalf("expired = %v, want [%s]", expired, attempt.ID)
	}
	if stored := f.reload(t, attempt.ID); stored.Status != models.AttemptExpired {
		t.Fatalf("status = %s, want EXPIRED", stored.Status)
	}
	if active := f.activeSessions(t, attempt.ID); len(active) != 0 {
		t.Fatalf("active sessions = %d, want 0", len(active))
	}

	again, err := ExpireOverdueAttempts(f.db, start.Add(90*time.Minute))
	if err != nil || len(again) != 0 {
		t.Fatalf("second sweep = %v, %v; want nothing", again, err)
	}
	if n := f.auditCount(t, ActionAttemptExpired); n != 1 {
		t.Fatalf("ATTEMPT_EXPIRED entries = %d, want 1", n)
	}
}

func TestLockedAttemptsDoNotExpire(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	freezeNow(t, start)
	attempt, _ := f.begin(t)
	if _, err := LockAttempt(f.db, attempt.ID, f.proctor.ID); err != nil {
		t.Fatalf("LockAttempt: %v", err)
	}

	expired, err := ExpireOverdueAttempts(f.db, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ExpireOverdueAttempts: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expired a locked attempt: %v", expired)
	}
}

func TestCompleteAttempt(t *testing.T) {
	f := newFixture(t)
	attempt, session := f.begin(t)

	_, err := CompleteAttempt(f.db, attempt.ID, f.proctor.ID)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("complete IN_PROGRESS: err = %v, want INVALID_STATE", err)
	}

	if _, err := SubmitAttempt(f.db, attempt.ID, session.ID); err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	completed, err := CompleteAttempt(f.db, attempt.ID, f.proctor.ID)
	if err != nil {
		t.Fatalf("CompleteAttempt: %v", err)
	}
	if completed.Status != models.AttemptCompleted {
		t.Fatalf("status = %s, want COMPLETED", completed.Status)
	}
}

func TestGetAttemptIncludesSessions(t *testing.T) {
	f := newFixture(t)
	attempt, _ := f.begin(t)
	if _, _, err := BeginAttempt(f.db, f.ticket, nil); err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}

	got, err := GetAttempt(f.db, attempt.ID)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if len(got.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(got.Sessions))
	}

	if _, err := GetAttempt(f.db, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetAttempt unknown: err = %v, want NOT_FOUND", err)
	}
}
