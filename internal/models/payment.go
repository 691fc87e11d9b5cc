package models

import (
	"fmt"
	"strings"

	"ms-reservation/internal/fault"
)

// Payment events travel as "{seatID}:{userID}" on the payment-completed
// topic. seat IDs never contain a colon, user IDs may.

func EncodePaymentMessage(seatID, userID string) string {
	return seatID + ":" + userID
}

func ParsePaymentMessage(payload string) (seatID, userID string, err error) {
	parts := strings.SplitN(payload, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fault.Validation(fmt.Sprintf("malformed payment message %q", payload))
	}
	return parts[0], parts[1], nil
}

// Ticket is the payload embedded in the post-sale QR artifact.
type Ticket struct {
	SeatID     string `json:"seat_id"`
	EventID    string `json:"event_id"`
	UserID     string `json:"user_id"`
	SeatNumber int    `json:"seat_number"`
	IssuedAt   int64  `json:"issued_at"`
}
