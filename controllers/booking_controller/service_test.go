package booking_controller

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joy095/hallbooking/badwords"
	"github.com/joy095/hallbooking/controllers/conflict_controller"
	"github.com/joy095/hallbooking/models/booking_models"
	"github.com/joy095/hallbooking/models/facility_models"
	"github.com/joy095/hallbooking/models/shared_models"
)

func TestBookingLifecycleEndToEnd(t *testing.T) {
	e := newEnv()

	a, err := e.svc.Submit(e.ctx, e.request(at(10, 0), at(12, 0)))
	require.NoError(t, err)
	assert.Equal(t, shared_models.BookingStatusPending, a.Booking.Status)
	assert.Len(t, a.Booking.CancelToken, shared_models.CancelTokenLength)
	created := e.queue.ofType(shared_models.EventBookingCreated)
	require.Len(t, created, 1)
	assert.Equal(t, a.Booking.ID, *created[0].ref.BookingID)

	_, err = e.svc.Submit(e.ctx, e.request(at(11, 0), at(13, 0)))
	require.ErrorIs(t, err, conflict_controller.ErrConflict)
	assert.Equal(t, 1, e.bookings.count(), "the conflicting booking is not stored")
	assert.Len(t, e.queue.ofType(shared_models.EventBookingCreated), 1)

	approved, err := e.svc.Decide(e.ctx, DecideRequest{BookingID: a.Booking.ID, CaretakerID: e.caretaker.ID, Outcome: OutcomeApprove})
	require.NoError(t, err)
	assert.Equal(t, shared_models.BookingStatusActive, approved.Status)
	decided := e.queue.ofType(shared_models.EventBookingStatusDecided)
	require.Len(t, decided, 1)
	assert.Equal(t, "active", decided[0].meta.Status)

	res, err := e.svc.Cancel(e.ctx, a.Booking.CancelToken)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, shared_models.BookingStatusCancelled, res.Booking.Status)
	require.Len(t, e.queue.ofType(shared_models.EventBookingCancelledByRenter), 1)

	res, err = e.svc.Cancel(e.ctx, a.Booking.CancelToken)
	require.NoError(t, err)
	assert.False(t, res.Cancelled)
	assert.Len(t, e.queue.ofType(shared_models.EventBookingCancelledByRenter), 1, "a repeated cancel queues nothing")

	_, err = e.svc.Submit(e.ctx, e.request(at(11, 0), at(13, 0)))
	assert.NoError(t, err, "a cancelled booking no longer blocks the slot")
}

func TestSerializedSubmissionsNeverOverlap(t *testing.T) {
	e := newEnv()
	var accepted []booking_models.Booking
	for i := 0; i < 24; i++ {
		start := at(8, 0).Add(time.Duration(i*25) * time.Minute)
		res, err := e.svc.Submit(e.ctx, e.request(start, start.Add(70*time.Minute)))
		if err == nil {
			accepted = append(accepted, *res.Booking)
		}
	}
	require.NotEmpty(t, accepted)
	for i := range accepted {
		for j := i + 1; j < len(accepted); j++ {
			a := conflict_controller.Interval{Start: accepted[i].Start, End: accepted[i].End}
			b := conflict_controller.Interval{Start: accepted[j].Start, End: accepted[j].End}
			assert.False(t, conflict_controller.Overlaps(a, b), "%s overlaps %s", a, b)
		}
	}
}

func TestSubmitReportsAdjacency(t *testing.T) {
	e := newEnv()
	_, err := e.svc.Submit(e.ctx, e.request(at(10, 0), at(12, 0)))
	require.NoError(t, err)

	res, err := e.svc.Submit(e.ctx, e.request(at(12, 0), at(13, 0)))
	require.NoError(t, err)
	assert.Equal(t, conflict_controller.AdjacencyAdvisory, res.Advisory)
}

func TestSubmitValidation(t *testing.T) {
	e := newEnv()
	req := e.request(at(12, 0), at(10, 0))
	req.SubmitterName = "  "
	req.SubmitterEmail = "not an email"

	_, err := e.svc.Submit(e.ctx, req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "submitter_name")
	assert.Contains(t, verr.Fields, "submitter_email")
	assert.Contains(t, verr.Fields, "end")
	assert.Zero(t, e.bookings.count())
	assert.Empty(t, e.queue.events)
}

func TestSubmitScreensTitleAndNotes(t *testing.T) {
	e := newEnv()
	e.svc.WithTitleScreen(badwords.New("heck"))

	req := e.request(at(10, 0), at(11, 0))
	req.Title = "Heck of a party"
	notes := "bring snacks"
	req.Notes = &notes
	_, err := e.svc.Submit(e.ctx, req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")
	assert.NotContains(t, verr.Fields, "notes")
	assert.Zero(t, e.bookings.count())

	req.Title = "Choir rehearsal"
	_, err = e.svc.Submit(e.ctx, req)
	assert.NoError(t, err)
}

func TestSubmitUnknownReferences(t *testing.T) {
	e := newEnv()

	req := e.request(at(10, 0), at(11, 0))
	req.FacilityID = uuid.New()
	_, err := e.svc.Submit(e.ctx, req)
	assert.ErrorIs(t, err, facility_models.ErrFacilityNotFound)

	req = e.request(at(10, 0), at(11, 0))
	eventType := uuid.New()
	req.EventTypeID = &eventType
	_, err = e.svc.Submit(e.ctx, req)
	assert.ErrorIs(t, err, ErrEventTypeNotFound)

	e.facilities.eventTypes[eventType] = "north"
	_, err = e.svc.Submit(e.ctx, req)
	assert.NoError(t, err)
}

func TestSubmitWithoutTenantFailsClosed(t *testing.T) {
	e := newEnv()
	_, err := e.svc.Submit(context.Background(), e.request(at(10, 0), at(11, 0)))
	assert.ErrorIs(t, err, facility_models.ErrFacilityNotFound)
	assert.Zero(t, e.bookings.count())
}

func TestSubmitKeepsClientSuppliedID(t *testing.T) {
	e := newEnv()
	id := uuid.New()
	req := e.request(at(10, 0), at(11, 0))
	req.ID = &id

	res, err := e.svc.Submit(e.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, id, res.Booking.ID)

	req = e.request(at(14, 0), at(15, 0))
	req.ID = &id
	_, err = e.svc.Submit(e.ctx, req)
	assert.ErrorIs(t, err, booking_models.ErrDuplicateID)
}

func TestSubmitLosingInsertRaceReportsConcurrentBooking(t *testing.T) {
	e := newEnv()
	_, err := e.svc.Submit(e.ctx, e.request(at(10, 0), at(12, 0)))
	require.NoError(t, err)

	e.bookings.listBlind = true
	_, err = e.svc.Submit(e.ctx, e.request(at(11, 0), at(13, 0)))
	var cerr *conflict_controller.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Error(), "concurrent booking")
	assert.NotContains(t, cerr.Error(), "existing booking")
	assert.Equal(t, 1, e.bookings.count())
}

func TestConflictLookupFailureBlocksSubmission(t *testing.T) {
	e := newEnv()
	e.bookings.listErr = errLookup
	_, err := e.svc.Submit(e.ctx, e.request(at(10, 0), at(11, 0)))
	assert.ErrorIs(t, err, conflict_controller.ErrLookupUnavailable)
	assert.Zero(t, e.bookings.count())
}

func TestCommentColumnIsRememberedPerFacility(t *testing.T) {
	e := newEnv("caretaker_comment")

	first, err := e.svc.Submit(e.ctx, e.request(at(8, 0), at(9, 0)))
	require.NoError(t, err)
	second, err := e.svc.Submit(e.ctx, e.request(at(10, 0), at(11, 0)))
	require.NoError(t, err)

	_, err = e.svc.Decide(e.ctx, DecideRequest{BookingID: first.Booking.ID, Outcome: OutcomeApprove, Comment: "See you there"})
	require.NoError(t, err)
	assert.Equal(t, []string{"active/decision_comment", "active/caretaker_comment"}, e.bookings.calls())
	assert.Equal(t, "See you there", e.bookings.comments[first.Booking.ID]["caretaker_comment"])

	_, err = e.svc.Decide(e.ctx, DecideRequest{BookingID: second.Booking.ID, Outcome: OutcomeApprove, Comment: "Bring chairs"})
	require.NoError(t, err)
	assert.Equal(t, []string{"active/caretaker_comment"}, e.bookings.calls(), "no probing once a column worked")

	decided := e.queue.ofType(shared_models.EventBookingStatusDecided)
	require.Len(t, decided, 2)
	assert.Equal(t, "Bring chairs", decided[1].meta.Comment)
}

func TestPrimedCommentColumnSkipsProbing(t *testing.T) {
	e := newEnv("response_comment")
	e.bookings.present = []string{"response_comment"}
	e.svc.PrimeCommentColumns(context.Background())

	b, err := e.svc.Submit(e.ctx, e.request(at(8, 0), at(9, 0)))
	require.NoError(t, err)
	_, err = e.svc.Decide(e.ctx, DecideRequest{BookingID: b.Booking.ID, Outcome: OutcomeReject, Comment: "Hall closed"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cancelled/response_comment"}, e.bookings.calls())
}

func TestRejectFallsBackThroughStatuses(t *testing.T) {
	e := newEnv()
	e.bookings.refused[shared_models.BookingStatusCancelled] = true

	b, err := e.svc.Submit(e.ctx, e.request(at(8, 0), at(9, 0)))
	require.NoError(t, err)
	decided, err := e.svc.Decide(e.ctx, DecideRequest{BookingID: b.Booking.ID, Outcome: OutcomeReject})
	require.NoError(t, err)
	assert.Equal(t, shared_models.BookingStatusRejected, decided.Status)
	assert.Equal(t, []string{"cancelled/", "rejected/"}, e.bookings.calls())

	meta := e.queue.ofType(shared_models.EventBookingStatusDecided)[0].meta
	assert.Equal(t, shared_models.BookingStatusRejected, meta.Status)
}

func TestDecisionFailsWhenEveryCandidateFails(t *testing.T) {
	e := newEnv()
	for _, s := range RejectStatuses {
		e.bookings.refused[s] = true
	}

	b, err := e.svc.Submit(e.ctx, e.request(at(8, 0), at(9, 0)))
	require.NoError(t, err)
	_, err = e.svc.Decide(e.ctx, DecideRequest{BookingID: b.Booking.ID, Outcome: OutcomeReject, Comment: "no"})
	assert.ErrorIs(t, err, ErrDecisionFailed)

	stored, err := e.bookings.GetByID(e.ctx, b.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, shared_models.BookingStatusPending, stored.Status)
	assert.Empty(t, e.queue.ofType(shared_models.EventBookingStatusDecided))
}

func TestDecideGuards(t *testing.T) {
	e := newEnv()
	b, err := e.svc.Submit(e.ctx, e.request(at(8, 0), at(9, 0)))
	require.NoError(t, err)

	_, err = e.svc.Decide(e.ctx, DecideRequest{BookingID: b.Booking.ID, Outcome: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	_, err = e.svc.Decide(e.ctx, DecideRequest{BookingID: b.Booking.ID, CaretakerID: uuid.New(), Outcome: OutcomeApprove})
	assert.ErrorIs(t, err, ErrNotCaretaker)

	_, err = e.svc.Decide(e.ctx, DecideRequest{BookingID: uuid.New(), Outcome: OutcomeApprove})
	assert.ErrorIs(t, err, booking_models.ErrBookingNotFound)

	_, err = e.svc.Cancel(e.ctx, b.Booking.CancelToken)
	require.NoError(t, err)
	_, err = e.svc.Decide(e.ctx, DecideRequest{BookingID: b.Booking.ID, Outcome: OutcomeApprove})
	assert.ErrorIs(t, err, ErrNotDecidable)
}

func TestCancelLeavesClosedBookingsAlone(t *testing.T) {
	for _, status := range []string{
		shared_models.BookingStatusCompleted,
		shared_models.BookingStatusRejected,
		shared_models.BookingStatusDeclined,
	} {
		t.Run(status, func(t *testing.T) {
			e := newEnv()
			b, err := e.svc.Submit(e.ctx, e.request(at(8, 0), at(9, 0)))
			require.NoError(t, err)
			e.bookings.rows[b.Booking.ID].Status = status
			created := len(e.queue.events)

			res, err := e.svc.Cancel(e.ctx, b.Booking.CancelToken)
			require.NoError(t, err)
			assert.False(t, res.Cancelled)
			assert.Equal(t, status, e.bookings.rows[b.Booking.ID].Status)
			assert.Len(t, e.queue.events, created)
			assert.Empty(t, e.queue.ofType(shared_models.EventBookingCancelledByRenter))
		})
	}
}

func TestBlockDatesIsAllOrNothing(t *testing.T) {
	e := newEnv()
	third := at(10, 0).Add(14 * 24 * time.Hour)
	_, err := e.svc.Submit(e.ctx, e.request(third.Add(time.Hour), third.Add(3*time.Hour)))
	require.NoError(t, err)

	req := BlockRequest{
		CaretakerID: e.caretaker.ID,
		FacilityID:  e.facilityID,
		Recurrence:  &Recurrence{Start: at(10, 0), End: at(12, 0), EveryDays: 7, Count: 4},
	}
	_, err = e.svc.BlockDates(e.ctx, req)
	require.ErrorIs(t, err, conflict_controller.ErrConflict)
	assert.Equal(t, 1, e.bookings.count())

	req.Recurrence.Count = 2
	created, err := e.svc.BlockDates(e.ctx, req)
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, b := range created {
		assert.Equal(t, shared_models.BookingStatusActive, b.Status)
		assert.Equal(t, "Blocked", b.Title)
		assert.Equal(t, e.caretaker.Email, b.SubmitterEmail)
	}
	assert.Len(t, e.queue.events, 1, "blocks queue no notifications")
}

func TestBlockDatesRequiresAssignedCaretaker(t *testing.T) {
	e := newEnv()
	_, err := e.svc.BlockDates(e.ctx, BlockRequest{
		CaretakerID: uuid.New(),
		FacilityID:  e.facilityID,
		Ranges:      []conflict_controller.Interval{{Start: at(10, 0), End: at(11, 0)}},
	})
	assert.ErrorIs(t, err, ErrNotCaretaker)

	_, err = e.svc.BlockDates(e.ctx, BlockRequest{CaretakerID: e.caretaker.ID, FacilityID: e.facilityID})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCompletePast(t *testing.T) {
	e := newEnv()
	e.svc.now = func() time.Time { return at(20, 0) }

	b, err := e.svc.Submit(e.ctx, e.request(at(8, 0), at(9, 0)))
	require.NoError(t, err)
	_, err = e.svc.Decide(e.ctx, DecideRequest{BookingID: b.Booking.ID, Outcome: OutcomeApprove})
	require.NoError(t, err)
	_, err = e.svc.Submit(e.ctx, e.request(at(10, 0), at(11, 0)))
	require.NoError(t, err)

	n, err := e.svc.CompletePast(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	stored, _ := e.bookings.GetByID(e.ctx, b.Booking.ID)
	assert.Equal(t, shared_models.BookingStatusCompleted, stored.Status)
}
