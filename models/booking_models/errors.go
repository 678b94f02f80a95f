package booking_models

import "errors"

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrOverlap         = errors.New("booking overlaps an existing reservation")
	ErrDuplicateID     = errors.New("booking id already exists")
	// ErrUnknownColumn means the comment column does not exist in this schema.
	ErrUnknownColumn = errors.New("comment column not present in schema")
	// ErrStatusRejected means the store refused the status value itself.
	ErrStatusRejected = errors.New("status value rejected by store")
	// ErrStatusChanged means the booking left the expected state concurrently.
	ErrStatusChanged = errors.New("booking status changed concurrently")
)
