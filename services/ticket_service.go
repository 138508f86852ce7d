package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/anjiri1684/exam_center/models"
	"github.com/anjiri1684/exam_center/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IssueTicketInput struct {
	CandidateID   uuid.UUID
	ExamVersionID uuid.UUID
	VisitSlotID   *uuid.UUID
	// PIN is generated when empty.
	PIN string
}

type IssueResult struct {
	Ticket *models.Ticket
	PIN    string
}

// IssueTicket enrolls a candidate for an exam version.
func IssueTicket(db *gorm.DB, in IssueTicketInput, staffID uuid.UUID) (*IssueResult, error) {
	pin := in.PIN
	if pin == "" {
		var err error
		if pin, err = utils.GeneratePIN(); err != nil {
			return nil, err
		}
	}
	pinHash, err := bcrypt.GenerateFromPassword([]byte(pin), pinCost)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}

	var ticket models.Ticket
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.Candidate{}, in.CandidateID, "candidate not found"); err != nil {
			return err
		}
		if err := mustExist(tx, &models.ExamVersion{}, in.ExamVersionID, "exam version not found"); err != nil {
			return err
		}
		if in.VisitSlotID != nil {
			if err := mustExist(tx, &models.VisitSlot{}, *in.VisitSlotID, "visit slot not found"); err != nil {
				return err
			}
		}

		code, err := utils.GenerateUniqueTicketCode(tx)
		if err != nil {
			return err
		}
		ticket = models.Ticket{
			TicketCode:           code,
			CandidateID:          in.CandidateID,
			ExamVersionID:        in.ExamVersionID,
			VisitSlotID:          in.VisitSlotID,
			PinHash:              string(pinHash),
			Status:               models.TicketActive,
			CreatedByStaffUserID: &staffID,
		}
		if err := tx.Create(&ticket).Error; err != nil {
			return err
		}

		_, err = RecordAudit(tx, AuditRecord{
			Actor:      &staffID,
			Action:     ActionTicketIssued,
			EntityType: EntityTicket,
			EntityID:   ticket.ID.String(),
			Metadata: map[string]interface{}{
				"ticketCode":    ticket.TicketCode,
				"candidateId":   ticket.CandidateID.String(),
				"examVersionId": ticket.ExamVersionID.String(),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &IssueResult{Ticket: &ticket, PIN: pin}, nil
}

func mustExist(tx *gorm.DB, model interface{}, id uuid.UUID, msg string) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return notFound(msg)
	}
	return nil
}

type ReissueResult struct {
	OldTicket *models.Ticket
	NewTicket *models.Ticket
}

// ReissueTicket revokes an ACTIVE ticket and mints its successor with a new
// code. The caller signs the new code; this function never sees the secret.
func ReissueTicket(db *gorm.DB, ticketCode string, staffID uuid.UUID) (*ReissueResult, error) {
	var result ReissueResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var old models.Ticket
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("ticket_code = ?", ticketCode).
			First(&old).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("ticket not found")
			}
			return err
		}
		if old.Status != models.TicketActive {
			return invalidState("ticket has already been reissued")
		}

		code, err := utils.GenerateUniqueTicketCode(tx)
		if err != nil {
			return err
		}
		successor := models.Ticket{
			TicketCode:           code,
			CandidateID:          old.CandidateID,
			ExamVersionID:        old.ExamVersionID,
			VisitSlotID:          old.VisitSlotID,
			PinHash:              old.PinHash,
			Status:               models.TicketActive,
			CreatedByStaffUserID: &staffID,
		}
		if err := tx.Create(&successor).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Ticket{}).
			Where("id = ? AND status = ? AND replaced_by_ticket_id IS NULL", old.ID, models.TicketActive).
			Updates(map[string]interface{}{
				"status":                models.TicketRevoked,
				"replaced_by_ticket_id": successor.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return invalidState("ticket has already been reissued")
		}
		old.Status = models.TicketRevoked
		old.ReplacedByTicketID = &successor.ID

		_, err = RecordAudit(tx, AuditRecord{
			Actor:      &staffID,
			Action:     ActionTicketReissued,
			EntityType: EntityTicket,
			EntityID:   old.ID.String(),
			Metadata: map[string]interface{}{
				"oldTicketId":   old.ID.String(),
				"newTicketId":   successor.ID.String(),
				"newTicketCode": successor.TicketCode,
			},
		})
		if err != nil {
			return err
		}

		result = ReissueResult{OldTicket: &old, NewTicket: &successor}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

const pinCost = bcrypt.DefaultCost

var (
	unknownHashOnce sync.Once
	unknownHash     []byte
)

// unknownTicketHash is compared against when no ticket matches the code.
func unknownTicketHash() []byte {
	unknownHashOnce.Do(func() {
		var err error
		unknownHash, err = bcrypt.GenerateFromPassword([]byte("no-such-ticket"), pinCost)
		if err != nil {
			panic(err)
		}
	})
	return unknownHash
}

// AuthenticateTicket checks a candidate's code and PIN. Every failure is
// reported the same way so callers cannot tell which part was wrong.
func AuthenticateTicket(db *gorm.DB, ticketCode, pin string) (*models.Ticket, error) {
	code := strings.ToUpper(strings.TrimSpace(ticketCode))

	var ticket models.Ticket
	if err := db.Where("ticket_code = ?", code).First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Unknown codes pay the same bcrypt cost as known ones.
			_ = bcrypt.CompareHashAndPassword(unknownTicketHash(), []byte(pin))
			return nil, &Error{Code: CodeInvalidCredential, Message: "invalid ticket code or PIN"}
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(ticket.PinHash), []byte(pin)) != nil {
		return nil, &Error{Code: CodeInvalidCredential, Message: "invalid ticket code or PIN"}
	}
	if ticket.Status != models.TicketActive {
		return nil, &Error{Code: CodeInvalidCredential, Message: "ticket has been replaced"}
	}
	return &ticket, nil
}

func GetTicketByCode(db *gorm.DB, ticketCode string) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := db.Where("ticket_code = ?", ticketCode).First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("ticket not found")
		}
		return nil, err
	}
	return &ticket, nil
}

// maxChainLength bounds TicketChain against a corrupted cycle.
const maxChainLength = 64

// TicketChain follows replacedByTicketId from the given ticket to the current one.
func TicketChain(db *gorm.DB, ticketID uuid.UUID) ([]models.Ticket, error) {
	var chain []models.Ticket
	next := &ticketID
	for next != nil && len(chain) < maxChainLength {
		var t models.Ticket
		if err := db.First(&t, "id = ?", *next).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, notFound("ticket not found")
			}
			return nil, err
		}
		chain = append(chain, t)
		next = t.ReplacedByTicketID
	}
	return chain, nil
}

// SetSlipURL records where the printable admission slip was uploaded.
func SetSlipURL(db *gorm.DB, ticketID uuid.UUID, url string) error {
	return db.Model(&models.Ticket{}).Where("id = ?", ticketID).Update("slip_url", url).Error
}
