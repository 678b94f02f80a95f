package booking_controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joy095/hallbooking/controllers/conflict_controller"
	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/models/booking_models"
	"github.com/joy095/hallbooking/models/facility_models"
	"github.com/joy095/hallbooking/models/shared_models"
)

// MaxBlockRanges bounds a single block request.
const MaxBlockRanges = 366

// Recurrence repeats one interval every EveryDays days, Count times.
type Recurrence struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	EveryDays int       `json:"every_days"`
	Count     int       `json:"count"`
}

// BlockRequest reserves dates on behalf of a caretaker. Ranges and Recurrence
// may be combined.
type BlockRequest struct {
	CaretakerID uuid.UUID                      `json:"-"`
	FacilityID  uuid.UUID                      `json:"-"`
	Title       string                         `json:"title"`
	Notes       *string                        `json:"notes"`
	Ranges      []conflict_controller.Interval `json:"ranges"`
	Recurrence  *Recurrence                    `json:"recurrence"`
}

func (r BlockRequest) expand() ([]conflict_controller.Interval, error) {
	out := append([]conflict_controller.Interval(nil), r.Ranges...)
	if rec := r.Recurrence; rec != nil {
		if rec.EveryDays <= 0 {
			return nil, &ValidationError{Fields: map[string]string{"recurrence.every_days": "must be positive"}}
		}
		generated, err := conflict_controller.GenerateRecurring(
			conflict_controller.Interval{Start: rec.Start, End: rec.End},
			time.Duration(rec.EveryDays)*24*time.Hour, rec.Count)
		if err != nil {
			return nil, &ValidationError{Fields: map[string]string{"recurrence": err.Error()}}
		}
		out = append(out, generated...)
	}

	v := &ValidationError{}
	if len(out) == 0 {
		v.add("ranges", "at least one range is required")
	}
	if len(out) > MaxBlockRanges {
		v.add("ranges", fmt.Sprintf("at most %d ranges per request", MaxBlockRanges))
	}
	for i, iv := range out {
		if !iv.Valid() {
			v.add(fmt.Sprintf("ranges[%d]", i), "end must be after start")
		}
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// BlockDates creates active bookings for every range, or none of them. No
// notifications are queued for caretaker blocks.
func (s *Service) BlockDates(ctx context.Context, req BlockRequest) ([]booking_models.Booking, error) {
	ranges, err := req.expand()
	if err != nil {
		return nil, err
	}

	var created []booking_models.Booking
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.facilities.GetFacility(ctx, req.FacilityID); err != nil {
			return err
		}
		caretaker, err := s.assignedCaretaker(ctx, req.CaretakerID, req.FacilityID)
		if err != nil {
			return err
		}

		if err := s.bookings.LockFacility(ctx, req.FacilityID); err != nil {
			return err
		}
		if err := s.conflicts.CheckBatch(ctx, req.FacilityID, ranges); err != nil {
			return err
		}

		title := strings.TrimSpace(req.Title)
		if title == "" {
			title = "Blocked"
		}
		for _, iv := range ranges {
			b, err := s.newBooking(nil, req.FacilityID, shared_models.BookingStatusActive)
			if err != nil {
				return err
			}
			b.Title = title
			b.Start, b.End = iv.Start, iv.End
			b.SubmitterName, b.SubmitterEmail = caretaker.Name, caretaker.Email
			b.Notes = req.Notes
			if err := s.create(ctx, b); err != nil {
				return err
			}
			created = append(created, *b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoLogger.Infof("Caretaker %s blocked %d ranges on facility %s", req.CaretakerID, len(created), req.FacilityID)
	return created, nil
}

func (s *Service) assignedCaretaker(ctx context.Context, caretakerID, facilityID uuid.UUID) (*facility_models.Caretaker, error) {
	caretakers, err := s.facilities.CaretakersForFacility(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	for i := range caretakers {
		if caretakers[i].ID == caretakerID {
			return &caretakers[i], nil
		}
	}
	return nil, ErrNotCaretaker
}
