package shared_models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCancelToken(t *testing.T) {
	a, err := GenerateCancelToken()
	require.NoError(t, err)
	b, err := GenerateCancelToken()
	require.NoError(t, err)

	assert.Len(t, a, CancelTokenLength)
	assert.NotEqual(t, a, b)
	for _, r := range a {
		assert.Contains(t, tokenCharset, string(r))
	}
}

func TestGenerateTokenRejectsBadLength(t *testing.T) {
	_, err := GenerateToken(0)
	assert.Error(t, err)
	_, err = GenerateToken(1001)
	assert.Error(t, err)
}

func TestIsBlocking(t *testing.T) {
	assert.True(t, IsBlocking(BookingStatusPending))
	assert.True(t, IsBlocking(BookingStatusActive))
	for _, s := range []string{BookingStatusRejected, BookingStatusDeclined, BookingStatusCancelled, BookingStatusCompleted} {
		assert.False(t, IsBlocking(s), s)
	}
}

func TestValidEventType(t *testing.T) {
	assert.True(t, ValidEventType(EventBookingCreated))
	assert.True(t, ValidEventType(EventBookingStatusDecided))
	assert.True(t, ValidEventType(EventBookingCancelledByRenter))
	assert.False(t, ValidEventType("booking_deleted"))
}
