package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// PayloadSeparator splits a QR payload into ticket code and tag. Ticket codes
// never contain it.
const PayloadSeparator = "."

func ticketTag(code string, secret []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(code))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}

// SignTicketCode returns "<code>.<base64url HMAC-SHA256 of code>".
func SignTicketCode(code string, secret []byte) string {
	return code + PayloadSeparator + ticketTag(code, secret)
}

// VerifyTicketPayload returns the ticket code carried by payload when its tag
// was produced with secret.
func VerifyTicketPayload(payload string, secret []byte) (string, bool) {
	parts := strings.Split(payload, PayloadSeparator)
	if len(parts) != 2 {
		return "", false
	}
	code, tag := parts[0], parts[1]
	if code == "" {
		return "", false
	}

	expected := ticketTag(code, secret)
	if len(expected) != len(tag) {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(tag)) != 1 {
		return "", false
	}
	return code, true
}
