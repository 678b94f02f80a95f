package booking_controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/models/booking_models"
	"github.com/joy095/hallbooking/models/notification_models"
	"github.com/joy095/hallbooking/models/shared_models"
)

const (
	OutcomeApprove = "approve"
	OutcomeReject  = "reject"
)

// RejectStatuses are tried in order until the store accepts one.
var RejectStatuses = []string{
	shared_models.BookingStatusCancelled,
	shared_models.BookingStatusRejected,
	shared_models.BookingStatusDeclined,
}

func outcomeStatuses(outcome string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case OutcomeApprove:
		return []string{shared_models.BookingStatusActive}, nil
	case OutcomeReject:
		return RejectStatuses, nil
	}
	return nil, ErrInvalidOutcome
}

// commentColumns remembers which comment column works. The schema-wide
// default comes from inspecting the table at startup; a per-facility choice
// is recorded once a write through it succeeded.
type commentColumns struct {
	mu         sync.RWMutex
	preferred  []string
	byFacility map[uuid.UUID]string
}

func newCommentColumns() *commentColumns {
	return &commentColumns{byFacility: map[uuid.UUID]string{}}
}

func (c *commentColumns) prime(present []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preferred = append([]string(nil), present...)
}

// order returns the columns to try for facility, best guess first.
func (c *commentColumns) order(facility uuid.UUID) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []string
	seen := map[string]bool{}
	push := func(col string) {
		if !seen[col] {
			seen[col] = true
			out = append(out, col)
		}
	}
	if col, ok := c.byFacility[facility]; ok {
		push(col)
	}
	for _, col := range c.preferred {
		push(col)
	}
	for _, col := range booking_models.CommentColumnCandidates {
		push(col)
	}
	return out
}

func (c *commentColumns) remember(facility uuid.UUID, col string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byFacility[facility] = col
}

func (c *commentColumns) forget(facility uuid.UUID, col string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byFacility[facility] == col {
		delete(c.byFacility, facility)
	}
	for i, p := range c.preferred {
		if p == col {
			c.preferred = append(c.preferred[:i:i], c.preferred[i+1:]...)
			break
		}
	}
}

// PrimeCommentColumns inspects the bookings table once so decisions can go
// straight to an existing comment column. When inspection fails or finds
// nothing, decisions fall back to probing the candidates.
func (s *Service) PrimeCommentColumns(ctx context.Context) {
	present, err := s.bookings.CommentColumns(ctx)
	if err != nil {
		logger.WarnLogger.Warnf("Comment column inspection failed, falling back to probing: %v", err)
		return
	}
	if len(present) == 0 {
		logger.WarnLogger.Warn("No known comment column found on bookings, falling back to probing")
		return
	}
	s.columns.prime(present)
	logger.InfoLogger.Infof("Decision comments will be written to %s", present[0])
}

// DecideRequest is a caretaker decision. A nil CaretakerID skips the
// assignment check and is meant for operator tooling.
type DecideRequest struct {
	BookingID   uuid.UUID
	CaretakerID uuid.UUID
	Outcome     string
	Comment     string
}

// Decide approves or rejects a pending or active booking and queues
// booking_status_decided. Every write attempt runs in its own savepoint so a
// rejected column or status leaves nothing behind.
func (s *Service) Decide(ctx context.Context, req DecideRequest) (*booking_models.Booking, error) {
	statuses, err := outcomeStatuses(req.Outcome)
	if err != nil {
		return nil, err
	}
	comment := strings.TrimSpace(req.Comment)

	var decided *booking_models.Booking
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.bookings.GetByID(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if req.CaretakerID != uuid.Nil {
			ok, err := s.facilities.CaretakerManagesFacility(ctx, req.CaretakerID, current.FacilityID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotCaretaker
			}
		}
		if !shared_models.IsBlocking(current.Status) {
			return ErrNotDecidable
		}

		decided, err = s.persistDecision(ctx, current.ID, current.FacilityID, statuses, comment)
		if err != nil {
			return err
		}

		id := decided.ID
		s.queue.Enqueue(ctx, shared_models.EventBookingStatusDecided,
			notification_models.Ref{BookingID: &id, CancelToken: decided.CancelToken},
			notification_models.Metadata{Status: decided.Status, Comment: comment, Source: "caretaker"})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoLogger.Infof("Booking %s decided as %s", decided.ID, decided.Status)
	return decided, nil
}

func (s *Service) persistDecision(ctx context.Context, id, facility uuid.UUID, statuses []string, comment string) (*booking_models.Booking, error) {
	columns := []string{""}
	if comment != "" {
		columns = s.columns.order(facility)
	}
	missing := map[string]bool{}

	var lastErr error
	for _, status := range statuses {
		for _, col := range columns {
			if missing[col] {
				continue
			}

			var b *booking_models.Booking
			err := s.tx.Savepoint(ctx, func(ctx context.Context) error {
				var err error
				b, err = s.bookings.UpdateDecision(ctx, id, shared_models.BlockingStatuses, status, col, comment)
				return err
			})
			switch {
			case err == nil:
				if col != "" {
					s.columns.remember(facility, col)
				}
				return b, nil
			case errors.Is(err, booking_models.ErrUnknownColumn):
				missing[col] = true
				s.columns.forget(facility, col)
				lastErr = err
				continue
			case errors.Is(err, booking_models.ErrStatusRejected):
				logger.WarnLogger.Warnf("Store rejected status %s for booking %s, trying next candidate", status, id)
				lastErr = err
			case errors.Is(err, booking_models.ErrStatusChanged):
				return nil, ErrNotDecidable
			default:
				return nil, err
			}
			break
		}
	}

	logger.ErrorLogger.Errorf("Every status and comment column candidate failed for booking %s: %v", id, lastErr)
	return nil, fmt.Errorf("%w: %v", ErrDecisionFailed, lastErr)
}
