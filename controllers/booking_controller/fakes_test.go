package booking_controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joy095/hallbooking/controllers/notification_controller"
	"github.com/joy095/hallbooking/models/booking_models"
	"github.com/joy095/hallbooking/models/facility_models"
	"github.com/joy095/hallbooking/models/notification_models"
	"github.com/joy095/hallbooking/models/shared_models"
	"github.com/joy095/hallbooking/tenant"
)

type memBookings struct {
	mu          sync.Mutex
	rows        map[uuid.UUID]*booking_models.Booking
	comments    map[uuid.UUID]map[string]string
	writable    map[string]bool
	refused     map[string]bool
	present     []string
	listErr     error
	listBlind   bool
	updateCalls []string
}

func newMemBookings(writable ...string) *memBookings {
	m := &memBookings{
		rows:     map[uuid.UUID]*booking_models.Booking{},
		comments: map[uuid.UUID]map[string]string{},
		writable: map[string]bool{},
		refused:  map[string]bool{},
	}
	for _, c := range writable {
		m.writable[c] = true
	}
	return m
}

func (m *memBookings) visible(ctx context.Context, b *booking_models.Booking) bool {
	t := tenant.FromContext(ctx)
	return t != "" && b.TenantID == t
}

func (m *memBookings) Create(ctx context.Context, b *booking_models.Booking) error {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.rows[b.ID]; dup {
		return booking_models.ErrDuplicateID
	}
	for _, other := range m.rows {
		if other.FacilityID == b.FacilityID && shared_models.IsBlocking(other.Status) &&
			b.Start.Before(other.End) && b.End.After(other.Start) {
			return booking_models.ErrOverlap
		}
	}
	b.TenantID = tenantID
	cp := *b
	m.rows[b.ID] = &cp
	return nil
}

func (m *memBookings) GetByID(ctx context.Context, id uuid.UUID) (*booking_models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok || !m.visible(ctx, b) {
		return nil, booking_models.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) ListBlocking(ctx context.Context, facilityID uuid.UUID, from, to time.Time) ([]booking_models.Booking, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if m.listBlind {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []booking_models.Booking
	for _, b := range m.rows {
		if m.visible(ctx, b) && b.FacilityID == facilityID && shared_models.IsBlocking(b.Status) &&
			!b.Start.After(to) && !b.End.Before(from) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memBookings) UpdateDecision(ctx context.Context, id uuid.UUID, fromStatuses []string, status, column, comment string) (*booking_models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls = append(m.updateCalls, status+"/"+column)

	b, ok := m.rows[id]
	if !ok || !m.visible(ctx, b) {
		return nil, booking_models.ErrBookingNotFound
	}
	if column != "" && !m.writable[column] {
		return nil, booking_models.ErrUnknownColumn
	}
	if m.refused[status] {
		return nil, booking_models.ErrStatusRejected
	}
	allowed := false
	for _, s := range fromStatuses {
		allowed = allowed || s == b.Status
	}
	if !allowed {
		return nil, booking_models.ErrStatusChanged
	}

	b.Status = status
	if column != "" {
		if m.comments[id] == nil {
			m.comments[id] = map[string]string{}
		}
		m.comments[id][column] = comment
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) CancelByToken(ctx context.Context, token string) (*booking_models.Booking, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.rows {
		if b.CancelToken == token && m.visible(ctx, b) {
			if !shared_models.IsBlocking(b.Status) {
				return nil, false, nil
			}
			b.Status = shared_models.BookingStatusCancelled
			cp := *b
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (m *memBookings) CompletePast(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, b := range m.rows {
		if m.visible(ctx, b) && b.Status == shared_models.BookingStatusActive && !b.End.After(now) {
			b.Status = shared_models.BookingStatusCompleted
			n++
		}
	}
	return n, nil
}

func (m *memBookings) CommentColumns(context.Context) ([]string, error) {
	return m.present, nil
}

func (m *memBookings) LockFacility(context.Context, uuid.UUID) error { return nil }

func (m *memBookings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memBookings) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.updateCalls
	m.updateCalls = nil
	return out
}

type memFacilities struct {
	facilities map[uuid.UUID]facility_models.Facility
	caretakers map[uuid.UUID][]facility_models.Caretaker
	eventTypes map[uuid.UUID]string
}

func (m *memFacilities) GetFacility(ctx context.Context, id uuid.UUID) (*facility_models.Facility, error) {
	f, ok := m.facilities[id]
	if !ok || f.TenantID != tenant.FromContext(ctx) {
		return nil, facility_models.ErrFacilityNotFound
	}
	return &f, nil
}

func (m *memFacilities) CaretakersForFacility(ctx context.Context, facilityID uuid.UUID) ([]facility_models.Caretaker, error) {
	var out []facility_models.Caretaker
	for _, c := range m.caretakers[facilityID] {
		if c.TenantID == tenant.FromContext(ctx) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memFacilities) CaretakerManagesFacility(ctx context.Context, caretakerID, facilityID uuid.UUID) (bool, error) {
	cs, _ := m.CaretakersForFacility(ctx, facilityID)
	for _, c := range cs {
		if c.ID == caretakerID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memFacilities) EventTypeExists(ctx context.Context, id uuid.UUID) (bool, error) {
	t, ok := m.eventTypes[id]
	return ok && t == tenant.FromContext(ctx), nil
}

type inlineTx struct{}

func (inlineTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

func (inlineTx) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type queued struct {
	eventType string
	ref       notification_models.Ref
	meta      notification_models.Metadata
}

type recordingQueue struct {
	mu     sync.Mutex
	events []queued
}

var _ Enqueuer = (*recordingQueue)(nil)
var _ Enqueuer = (*notification_controller.Queue)(nil)

func (q *recordingQueue) Enqueue(_ context.Context, eventType string, ref notification_models.Ref, meta notification_models.Metadata) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, queued{eventType: eventType, ref: ref, meta: meta})
}

func (q *recordingQueue) ofType(t string) []queued {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queued
	for _, e := range q.events {
		if e.eventType == t {
			out = append(out, e)
		}
	}
	return out
}

type env struct {
	svc        *Service
	bookings   *memBookings
	facilities *memFacilities
	queue      *recordingQueue
	facilityID uuid.UUID
	caretaker  facility_models.Caretaker
	ctx        context.Context
}

func newEnv(writable ...string) *env {
	if len(writable) == 0 {
		writable = []string{"decision_comment"}
	}
	facilityID := uuid.New()
	caretaker := facility_models.Caretaker{ID: uuid.New(), TenantID: "north", Name: "Ben", Email: "ben@example.org"}
	bookings := newMemBookings(writable...)
	facilities := &memFacilities{
		facilities: map[uuid.UUID]facility_models.Facility{
			facilityID: {ID: facilityID, TenantID: "north", Name: "North Hall"},
		},
		caretakers: map[uuid.UUID][]facility_models.Caretaker{facilityID: {caretaker}},
		eventTypes: map[uuid.UUID]string{},
	}
	queue := &recordingQueue{}
	return &env{
		svc:        NewService(bookings, facilities, queue, inlineTx{}),
		bookings:   bookings,
		facilities: facilities,
		queue:      queue,
		facilityID: facilityID,
		caretaker:  caretaker,
		ctx:        tenant.WithTenant(context.Background(), "north"),
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 6, 1, hour, minute, 0, 0, time.UTC)
}

func (e *env) request(start, end time.Time) SubmitRequest {
	return SubmitRequest{
		FacilityID:     e.facilityID,
		Title:          "Choir rehearsal",
		Start:          start,
		End:            end,
		SubmitterName:  "Ana",
		SubmitterEmail: "ana@example.org",
	}
}

var errLookup = errors.New("connection reset")
