package notification_controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/models/booking_models"
	"github.com/joy095/hallbooking/models/facility_models"
	"github.com/joy095/hallbooking/models/notification_models"
	"github.com/joy095/hallbooking/models/shared_models"
	"github.com/joy095/hallbooking/models/tenant_models"
	"github.com/joy095/hallbooking/tenant"
	"github.com/joy095/hallbooking/utils/mail"
)

const (
	DefaultBatchSize = 10
	MaxBatchSize     = 50
	DefaultLease     = 10 * time.Minute
)

var ErrMissingReference = errors.New("event has neither booking id nor cancel token")

type BookingSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*booking_models.Booking, error)
	GetByCancelToken(ctx context.Context, token string) (*booking_models.Booking, error)
}

type FacilitySource interface {
	GetFacility(ctx context.Context, id uuid.UUID) (*facility_models.Facility, error)
	CaretakersForFacility(ctx context.Context, facilityID uuid.UUID) ([]facility_models.Caretaker, error)
}

type TenantConfigSource interface {
	GetConfig(ctx context.Context) (tenant_models.Config, error)
}

type Planner interface {
	Plan(ev notification_models.Event, snap mail.Snapshot) ([]mail.Message, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, msgs []mail.Message) error
}

// Outcome is what happened to one claimed event.
type Outcome struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType string    `json:"event_type"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	Messages  int       `json:"messages"`
	Error     string    `json:"error,omitempty"`
}

// Summary reports one dispatch run.
type Summary struct {
	Claimed   int       `json:"claimed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Exhausted int       `json:"exhausted"`
	Outcomes  []Outcome `json:"outcomes"`
}

type Dispatcher struct {
	events     EventStore
	bookings   BookingSource
	facilities FacilitySource
	tenants    TenantConfigSource
	planner    Planner
	deliverer  Deliverer
	lease      time.Duration
	now        func() time.Time
}

func NewDispatcher(events EventStore, bookings BookingSource, facilities FacilitySource, tenants TenantConfigSource,
	planner Planner, deliverer Deliverer, lease time.Duration) *Dispatcher {
	if lease <= 0 {
		lease = DefaultLease
	}
	return &Dispatcher{
		events:     events,
		bookings:   bookings,
		facilities: facilities,
		tenants:    tenants,
		planner:    planner,
		deliverer:  deliverer,
		lease:      lease,
		now:        time.Now,
	}
}

// ClampBatch normalises a requested batch size.
func ClampBatch(limit int) int {
	if limit <= 0 {
		return DefaultBatchSize
	}
	if limit > MaxBatchSize {
		return MaxBatchSize
	}
	return limit
}

// DispatchBatch claims up to limit events and processes each one. Only a
// failed claim is returned as an error; per-event failures are recorded on
// the event and reported in the summary.
func (d *Dispatcher) DispatchBatch(ctx context.Context, limit int) (Summary, error) {
	events, err := d.events.Claim(ctx, ClampBatch(limit), d.lease)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to claim notification events: %v", err)
		return Summary{}, err
	}

	s := Summary{Claimed: len(events), Outcomes: make([]Outcome, 0, len(events))}
	for _, ev := range events {
		out := d.process(ctx, ev)
		switch out.Status {
		case shared_models.EventStatusSucceeded:
			s.Succeeded++
		case shared_models.EventStatusFailed:
			s.Failed++
		case shared_models.EventStatusExhausted:
			s.Exhausted++
		}
		s.Outcomes = append(s.Outcomes, out)
	}

	if s.Claimed > 0 {
		logger.InfoLogger.Infof("Dispatched %d events: %d succeeded, %d failed, %d exhausted",
			s.Claimed, s.Succeeded, s.Failed, s.Exhausted)
	}
	return s, nil
}

func (d *Dispatcher) process(ctx context.Context, ev notification_models.Event) Outcome {
	out := Outcome{EventID: ev.ID, EventType: ev.EventType, Attempts: ev.Attempts}

	n, err := d.Deliver(ctx, ev)
	if err == nil {
		out.Messages = n
		out.Status = shared_models.EventStatusSucceeded
		if err := d.events.MarkSucceeded(ctx, ev.ID, d.now()); err != nil {
			logger.ErrorLogger.Errorf("Failed to mark event %s succeeded: %v", ev.ID, err)
		}
		return out
	}

	out.Error = notification_models.TruncateError(err.Error())
	if !retryable(err) || ev.MaxAttempts-ev.Attempts <= 0 {
		out.Status = shared_models.EventStatusExhausted
		if err := d.events.MarkExhausted(ctx, ev.ID, out.Error, d.now()); err != nil {
			logger.ErrorLogger.Errorf("Failed to mark event %s exhausted: %v", ev.ID, err)
		}
		logger.WarnLogger.Warnf("Notification event %s exhausted after %d attempts: %s", ev.ID, ev.Attempts, out.Error)
		return out
	}

	out.Status = shared_models.EventStatusFailed
	if err := d.events.MarkFailed(ctx, ev.ID, out.Error); err != nil {
		logger.ErrorLogger.Errorf("Failed to mark event %s failed: %v", ev.ID, err)
	}
	return out
}

func retryable(err error) bool {
	return !errors.Is(err, booking_models.ErrBookingNotFound) &&
		!errors.Is(err, ErrMissingReference) &&
		!errors.Is(err, mail.ErrUnknownEventType)
}

// Deliver builds the snapshot for ev under its tenant, plans the messages and
// hands them to the adapter. It returns the number of messages sent.
func (d *Dispatcher) Deliver(ctx context.Context, ev notification_models.Event) (int, error) {
	if !shared_models.ValidEventType(ev.EventType) {
		return 0, fmt.Errorf("%w: %q", mail.ErrUnknownEventType, ev.EventType)
	}

	ctx = tenant.WithTenant(ctx, ev.TenantID)
	snap, err := d.snapshot(ctx, ev)
	if err != nil {
		return 0, err
	}

	msgs, err := d.planner.Plan(ev, snap)
	if err != nil {
		return 0, err
	}
	if err := d.deliverer.Deliver(ctx, msgs); err != nil {
		return 0, err
	}
	return len(msgs), nil
}

func (d *Dispatcher) snapshot(ctx context.Context, ev notification_models.Event) (mail.Snapshot, error) {
	var (
		b   *booking_models.Booking
		err error
	)
	switch {
	case ev.BookingID != nil:
		b, err = d.bookings.GetByID(ctx, *ev.BookingID)
	case ev.CancelToken != nil && *ev.CancelToken != "":
		b, err = d.bookings.GetByCancelToken(ctx, *ev.CancelToken)
	default:
		return mail.Snapshot{}, ErrMissingReference
	}
	if err != nil {
		return mail.Snapshot{}, err
	}

	f, err := d.facilities.GetFacility(ctx, b.FacilityID)
	if err != nil {
		if errors.Is(err, facility_models.ErrFacilityNotFound) {
			return mail.Snapshot{}, fmt.Errorf("%w: facility of booking %s is gone", booking_models.ErrBookingNotFound, b.ID)
		}
		return mail.Snapshot{}, err
	}
	caretakers, err := d.facilities.CaretakersForFacility(ctx, b.FacilityID)
	if err != nil {
		return mail.Snapshot{}, err
	}
	cfg, err := d.tenants.GetConfig(ctx)
	if err != nil {
		return mail.Snapshot{}, err
	}

	return mail.Snapshot{Booking: *b, Facility: *f, Caretakers: caretakers, Tenant: cfg}, nil
}
