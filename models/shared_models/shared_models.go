package shared_models

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// Booking statuses. rejected, declined and cancelled all mean "denied or
// withdrawn"; different call sites write different ones.
const (
	BookingStatusPending   = "pending"
	BookingStatusActive    = "active"
	BookingStatusRejected  = "rejected"
	BookingStatusDeclined  = "declined"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

// BlockingStatuses are the statuses that occupy a facility's calendar.
var BlockingStatuses = []string{BookingStatusActive, BookingStatusPending}

// IsBlocking reports whether a booking in status occupies its interval.
func IsBlocking(status string) bool {
	return status == BookingStatusActive || status == BookingStatusPending
}

// Notification event types.
const (
	EventBookingCreated           = "booking_created"
	EventBookingStatusDecided     = "booking_status_decided"
	EventBookingCancelledByRenter = "booking_cancelled_by_renter"
)

// ValidEventType reports whether t is a known notification event type.
func ValidEventType(t string) bool {
	switch t {
	case EventBookingCreated, EventBookingStatusDecided, EventBookingCancelledByRenter:
		return true
	}
	return false
}

// Notification event processing statuses. succeeded and exhausted are terminal.
const (
	EventStatusQueued     = "queued"
	EventStatusProcessing = "processing"
	EventStatusFailed     = "failed"
	EventStatusSucceeded  = "succeeded"
	EventStatusExhausted  = "exhausted"
)

const DefaultMaxAttempts = 5

// GenerateUUIDv7 generates a new time-ordered UUID.
func GenerateUUIDv7() (uuid.UUID, error) {
	return uuid.NewV7()
}

const tokenCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// CancelTokenLength gives ~238 bits of entropy.
const CancelTokenLength = 40

// GenerateToken returns a random URL-safe string of the given length.
func GenerateToken(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	if length > 1000 {
		return "", fmt.Errorf("length too large")
	}
	max := big.NewInt(int64(len(tokenCharset)))
	result := make([]byte, length)
	for i := range result {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = tokenCharset[num.Int64()]
	}
	return string(result), nil
}

// GenerateCancelToken issues the bearer capability for self-service cancellation.
func GenerateCancelToken() (string, error) {
	return GenerateToken(CancelTokenLength)
}
