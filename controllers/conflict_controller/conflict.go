// Package conflict_controller decides whether a candidate interval collides
// with the reservations already held on a facility.
package conflict_controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joy095/hallbooking/models/booking_models"
)

// AdjacencyAdvisory is shown to a submitter whose booking touches another one.
const AdjacencyAdvisory = "Your booking directly borders another reservation and may require coordination with the neighboring booking."

var (
	ErrConflict          = errors.New("interval conflicts with an existing booking")
	ErrInvalidInterval   = errors.New("end must be after start")
	ErrLookupUnavailable = errors.New("conflict lookup unavailable")
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}

// Overlaps reports whether two half-open intervals share any instant.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Adjacent reports whether two intervals touch without overlapping.
func Adjacent(a, b Interval) bool {
	return a.End.Equal(b.Start) || a.Start.Equal(b.End)
}

// ConflictError names the reservation a candidate collides with. Existing
// is zero when a concurrent writer took the interval first.
type ConflictError struct {
	Candidate Interval
	Existing  Interval
	BookingID uuid.UUID
}

func (e *ConflictError) Error() string {
	if e.Existing.Start.IsZero() && e.Existing.End.IsZero() {
		return fmt.Sprintf("requested time %s overlaps a concurrent booking", e.Candidate)
	}
	return fmt.Sprintf("requested time %s overlaps an existing booking %s", e.Candidate, e.Existing)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// BookingLookup returns the pending and active bookings of a facility that
// overlap or touch [from, to].
type BookingLookup interface {
	ListBlocking(ctx context.Context, facilityID uuid.UUID, from, to time.Time) ([]booking_models.Booking, error)
}

// Result is the outcome of checking one candidate.
type Result struct {
	Overlap     bool
	Conflicting *booking_models.Booking
	Adjacent    bool
}

type Resolver struct {
	lookup BookingLookup
}

func NewResolver(lookup BookingLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Check evaluates overlap and adjacency with a single lookup. A failed lookup
// is an error, never "no conflict".
func (r *Resolver) Check(ctx context.Context, facilityID uuid.UUID, candidate Interval) (Result, error) {
	if !candidate.Valid() {
		return Result{}, ErrInvalidInterval
	}

	existing, err := r.lookup.ListBlocking(ctx, facilityID, candidate.Start, candidate.End)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}

	var res Result
	for i := range existing {
		b := existing[i]
		other := Interval{Start: b.Start, End: b.End}
		switch {
		case Overlaps(candidate, other):
			if !res.Overlap {
				res.Overlap = true
				res.Conflicting = &b
			}
		case Adjacent(candidate, other):
			res.Adjacent = true
		}
	}
	return res, nil
}

// HasOverlap reports whether [start, end) collides with a blocking booking.
func (r *Resolver) HasOverlap(ctx context.Context, facilityID uuid.UUID, start, end time.Time) (bool, error) {
	res, err := r.Check(ctx, facilityID, Interval{Start: start, End: end})
	return res.Overlap, err
}

// HasAdjacent reports whether [start, end) touches a blocking booking. It is
// advisory only.
func (r *Resolver) HasAdjacent(ctx context.Context, facilityID uuid.UUID, start, end time.Time) (bool, error) {
	res, err := r.Check(ctx, facilityID, Interval{Start: start, End: end})
	return res.Adjacent, err
}

// Require returns a *ConflictError when candidate overlaps, otherwise the
// check result so callers can surface adjacency.
func (r *Resolver) Require(ctx context.Context, facilityID uuid.UUID, candidate Interval) (Result, error) {
	res, err := r.Check(ctx, facilityID, candidate)
	if err != nil {
		return res, err
	}
	if res.Overlap {
		return res, &ConflictError{
			Candidate: candidate,
			Existing:  Interval{Start: res.Conflicting.Start, End: res.Conflicting.End},
			BookingID: res.Conflicting.ID,
		}
	}
	return res, nil
}

// CheckBatch checks every candidate independently, and against each other,
// and stops at the first conflict. Nothing is written, so a caller that only
// inserts after a nil return gets all-or-nothing behaviour.
func (r *Resolver) CheckBatch(ctx context.Context, facilityID uuid.UUID, candidates []Interval) error {
	for i, c := range candidates {
		for j := 0; j < i; j++ {
			if Overlaps(c, candidates[j]) {
				return &ConflictError{Candidate: c, Existing: candidates[j]}
			}
		}
		if _, err := r.Require(ctx, facilityID, c); err != nil {
			return err
		}
	}
	return nil
}

// GenerateRecurring repeats first count times, every step apart.
func GenerateRecurring(first Interval, step time.Duration, count int) ([]Interval, error) {
	if !first.Valid() {
		return nil, ErrInvalidInterval
	}
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive")
	}
	if count > 1 && step < first.End.Sub(first.Start) {
		return nil, fmt.Errorf("step %s is shorter than the interval length", step)
	}

	out := make([]Interval, 0, count)
	for i := 0; i < count; i++ {
		shift := time.Duration(i) * step
		out = append(out, Interval{Start: first.Start.Add(shift), End: first.End.Add(shift)})
	}
	return out, nil
}
