package utils

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/anjiri1684/exam_center/models"
	"gorm.io/gorm"
)

const (
	TicketCodePrefix = "TICKET-"
	ticketCodeLength = 8
	pinLength        = 6
	letterBytes      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	digitBytes       = "0123456789"
)

const maxCodeAttempts = 10

func randomString(alphabet string, n int) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}

// GenerateUniqueTicketCode returns a ticket code not yet used by any ticket
// visible to tx.
func GenerateUniqueTicketCode(tx *gorm.DB) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		suffix, err := randomString(letterBytes, ticketCodeLength)
		if err != nil {
			return "", err
		}
		code := TicketCodePrefix + suffix

		var count int64
		if err := tx.Model(&models.Ticket{}).Where("ticket_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique ticket code")
}

// GeneratePIN returns a numeric candidate PIN.
func GeneratePIN() (string, error) {
	return randomString(digitBytes, pinLength)
}
