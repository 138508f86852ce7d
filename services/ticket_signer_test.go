package services

import (
	"strings"
	"testing"
)

var testSecret = []byte("qr-signing-secret")

func TestSignAndVerifyTicketPayload(t *testing.T) {
	payload := SignTicketCode("TICKET-AB12CD34", testSecret)

	if !strings.HasPrefix(payload, "TICKET-AB12CD34.") {
		t.Fatalf("payload = %q, want code then separator", payload)
	}
	code, ok := VerifyTicketPayload(payload, testSecret)
	if !ok || code != "TICKET-AB12CD34" {
		t.Fatalf("VerifyTicketPayload = %q, %v; want TICKET-AB12CD34, true", code, ok)
	}
	// 32 bytes of HMAC in unpadded base64url.
	if tag := strings.SplitN(payload, PayloadSeparator, 2)[1]; len(tag) != 43 || strings.ContainsAny(tag, "+/=") {
		t.Fatalf("tag = %q, want 43 base64url characters", tag)
	}
}

func TestSignTicketCodeIsDeterministic(t *testing.T) {
	if SignTicketCode("TICKET-X", testSecret) != SignTicketCode("TICKET-X", testSecret) {
		t.Fatal("signing the same code twice gave different payloads")
	}
	if SignTicketCode("TICKET-X", testSecret) == SignTicketCode("TICKET-Y", testSecret) {
		t.Fatal("different codes share a payload")
	}
}

func TestVerifyTicketPayloadRejects(t *testing.T) {
	valid := SignTicketCode("TICKET-AB12CD34", testSecret)
	tag := strings.SplitN(valid, PayloadSeparator, 2)[1]

	flipped := []byte(tag)
	if flipped[0] == 'A' {
		flipped[0] = 'B'
	} else {
		flipped[0] = 'A'
	}

	tests := []struct {
		name    string
		payload string
		secret  []byte
	}{
		{"wrong secret", valid, []byte("another-secret")},
		{"no separator", "no-separator-here", testSecret},
		{"too many parts", "a.b.c", testSecret},
		{"empty code", "." + tag, testSecret},
		{"empty tag", "TICKET-AB12CD34.", testSecret},
		{"tampered tag", "TICKET-AB12CD34." + string(flipped), testSecret},
		{"tag for other code", "TICKET-ZZZZZZZZ." + tag, testSecret},
		{"truncated tag", valid[:len(valid)-1], testSecret},
		{"empty payload", "", testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, ok := VerifyTicketPayload(tt.payload, tt.secret); ok {
				t.Fatalf("VerifyTicketPayload(%q) accepted, code %q", tt.payload, code)
			}
		})
	}
}
