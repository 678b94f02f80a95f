// Package booking_controller owns the booking lifecycle: public submission,
// caretaker decisions and blocks, and token based cancellation.
package booking_controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joy095/hallbooking/controllers/conflict_controller"
	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/models/booking_models"
	"github.com/joy095/hallbooking/models/facility_models"
	"github.com/joy095/hallbooking/models/notification_models"
	"github.com/joy095/hallbooking/models/shared_models"
	"github.com/joy095/hallbooking/utils/mail"
)

type BookingStore interface {
	conflict_controller.BookingLookup
	Create(ctx context.Context, b *booking_models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*booking_models.Booking, error)
	UpdateDecision(ctx context.Context, id uuid.UUID, fromStatuses []string, status, column, comment string) (*booking_models.Booking, error)
	CancelByToken(ctx context.Context, token string) (*booking_models.Booking, bool, error)
	CompletePast(ctx context.Context, now time.Time) (int64, error)
	CommentColumns(ctx context.Context) ([]string, error)
	LockFacility(ctx context.Context, facilityID uuid.UUID) error
}

type FacilityStore interface {
	GetFacility(ctx context.Context, id uuid.UUID) (*facility_models.Facility, error)
	CaretakersForFacility(ctx context.Context, facilityID uuid.UUID) ([]facility_models.Caretaker, error)
	CaretakerManagesFacility(ctx context.Context, caretakerID, facilityID uuid.UUID) (bool, error)
	EventTypeExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// TxRunner is implemented by *db.Runner.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	Savepoint(ctx context.Context, fn func(ctx context.Context) error) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, eventType string, ref notification_models.Ref, meta notification_models.Metadata)
}

type Service struct {
	bookings   BookingStore
	facilities FacilityStore
	conflicts  *conflict_controller.Resolver
	queue      Enqueuer
	tx         TxRunner
	columns    *commentColumns
	titles     TitleScreen
	now        func() time.Time
}

// TitleScreen is implemented by *badwords.Filter.
type TitleScreen interface {
	Contains(text string) bool
}

// WithTitleScreen rejects public submissions whose title or notes contain a
// blocked word.
func (s *Service) WithTitleScreen(ts TitleScreen) *Service {
	s.titles = ts
	return s
}

func NewService(bookings BookingStore, facilities FacilityStore, queue Enqueuer, tx TxRunner) *Service {
	return &Service{
		bookings:   bookings,
		facilities: facilities,
		conflicts:  conflict_controller.NewResolver(bookings),
		queue:      queue,
		tx:         tx,
		columns:    newCommentColumns(),
		now:        time.Now,
	}
}

// SubmitRequest is a public booking request.
type SubmitRequest struct {
	ID             *uuid.UUID `json:"id"`
	FacilityID     uuid.UUID  `json:"facility_id" binding:"required"`
	Title          string     `json:"title"`
	EventTypeID    *uuid.UUID `json:"event_type_id"`
	Start          time.Time  `json:"start" binding:"required"`
	End            time.Time  `json:"end" binding:"required"`
	SubmitterName  string     `json:"submitter_name"`
	SubmitterEmail string     `json:"submitter_email"`
	Notes          *string    `json:"notes"`
	IsPublic       bool       `json:"is_public"`
}

func (r *SubmitRequest) validate() error {
	v := &ValidationError{}
	r.SubmitterName = strings.TrimSpace(r.SubmitterName)
	r.SubmitterEmail = strings.TrimSpace(r.SubmitterEmail)
	r.Title = strings.TrimSpace(r.Title)

	if r.SubmitterName == "" {
		v.add("submitter_name", "is required")
	}
	switch {
	case r.SubmitterEmail == "":
		v.add("submitter_email", "is required")
	case !mail.UsableAddress(r.SubmitterEmail):
		v.add("submitter_email", "is not a valid email address")
	}
	if r.FacilityID == uuid.Nil {
		v.add("facility_id", "is required")
	}
	if r.Start.IsZero() || r.End.IsZero() {
		v.add("start", "start and end are required")
	} else if !r.End.After(r.Start) {
		v.add("end", "must be after start")
	}
	if r.ID != nil && *r.ID == uuid.Nil {
		v.add("id", "must not be the nil UUID")
	}
	return v.orNil()
}

func (s *Service) screen(req SubmitRequest) error {
	if s.titles == nil {
		return nil
	}
	v := &ValidationError{}
	if s.titles.Contains(req.Title) {
		v.add("title", "contains blocked words")
	}
	if req.Notes != nil && s.titles.Contains(*req.Notes) {
		v.add("notes", "contains blocked words")
	}
	return v.orNil()
}

// SubmitResult carries the created booking and, when it borders another
// reservation, the adjacency advisory.
type SubmitResult struct {
	Booking  *booking_models.Booking `json:"booking"`
	Advisory string                  `json:"advisory,omitempty"`
}

// Submit creates a pending booking and queues booking_created. The facility
// stays locked from the conflict check until the surrounding transaction
// commits.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := s.screen(req); err != nil {
		return nil, err
	}

	var res *SubmitResult
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.facilities.GetFacility(ctx, req.FacilityID); err != nil {
			return err
		}
		if req.EventTypeID != nil {
			ok, err := s.facilities.EventTypeExists(ctx, *req.EventTypeID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrEventTypeNotFound
			}
		}

		if err := s.bookings.LockFacility(ctx, req.FacilityID); err != nil {
			return err
		}
		check, err := s.conflicts.Require(ctx, req.FacilityID, conflict_controller.Interval{Start: req.Start, End: req.End})
		if err != nil {
			return err
		}

		b, err := s.newBooking(req.ID, req.FacilityID, shared_models.BookingStatusPending)
		if err != nil {
			return err
		}
		b.Title = req.Title
		b.EventTypeID = req.EventTypeID
		b.Start, b.End = req.Start, req.End
		b.SubmitterName, b.SubmitterEmail = req.SubmitterName, req.SubmitterEmail
		b.Notes = req.Notes
		b.IsPublic = req.IsPublic

		if err := s.create(ctx, b); err != nil {
			return err
		}

		id := b.ID
		s.queue.Enqueue(ctx, shared_models.EventBookingCreated,
			notification_models.Ref{BookingID: &id, CancelToken: b.CancelToken},
			notification_models.Metadata{Status: b.Status, Source: "public"})

		res = &SubmitResult{Booking: b}
		if check.Adjacent {
			res.Advisory = conflict_controller.AdjacencyAdvisory
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) newBooking(id *uuid.UUID, facilityID uuid.UUID, status string) (*booking_models.Booking, error) {
	token, err := shared_models.GenerateCancelToken()
	if err != nil {
		return nil, fmt.Errorf("generate cancel token: %w", err)
	}
	b := &booking_models.Booking{
		FacilityID:  facilityID,
		Status:      status,
		CancelToken: token,
	}
	if id != nil {
		b.ID = *id
	} else {
		b.ID, err = shared_models.GenerateUUIDv7()
		if err != nil {
			return nil, fmt.Errorf("generate booking id: %w", err)
		}
	}
	now := s.now()
	b.CreatedAt, b.UpdatedAt = now, now
	return b, nil
}

// create inserts b; an exclusion violation means a concurrent writer won the
// interval between check and insert.
func (s *Service) create(ctx context.Context, b *booking_models.Booking) error {
	err := s.bookings.Create(ctx, b)
	if errors.Is(err, booking_models.ErrOverlap) {
		return &conflict_controller.ConflictError{Candidate: conflict_controller.Interval{Start: b.Start, End: b.End}}
	}
	return err
}

// CancelResult reports whether a cancel call changed anything.
type CancelResult struct {
	Cancelled bool                    `json:"cancelled"`
	Message   string                  `json:"message"`
	Booking   *booking_models.Booking `json:"booking,omitempty"`
}

// Cancel withdraws the booking owning token. Unknown tokens and bookings that
// are no longer pending or active produce a no-op result, not an error.
func (s *Service) Cancel(ctx context.Context, token string) (*CancelResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &ValidationError{Fields: map[string]string{"token": "is required"}}
	}

	var res *CancelResult
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		b, cancelled, err := s.bookings.CancelByToken(ctx, token)
		if err != nil {
			return err
		}
		if !cancelled {
			res = &CancelResult{Message: "Booking not found or no longer cancellable"}
			return nil
		}

		id := b.ID
		s.queue.Enqueue(ctx, shared_models.EventBookingCancelledByRenter,
			notification_models.Ref{BookingID: &id, CancelToken: token},
			notification_models.Metadata{Status: b.Status, Source: "renter"})
		res = &CancelResult{Cancelled: true, Message: "Booking cancelled", Booking: b}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Cancelled {
		logger.InfoLogger.Infof("Booking %s cancelled by renter", res.Booking.ID)
	}
	return res, nil
}

// CompletePast moves active bookings of the tenant in ctx whose end has
// passed to completed. It queues no notifications.
func (s *Service) CompletePast(ctx context.Context) (int64, error) {
	var n int64
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.bookings.CompletePast(ctx, s.now())
		return err
	})
	return n, err
}
