// Package notification_controller records booking state changes as durable
// events and drains them into the mail adapter.
package notification_controller

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/models/notification_models"
	"github.com/joy095/hallbooking/models/shared_models"
	"github.com/joy095/hallbooking/tenant"
)

// EventStore is the persistence the queue and dispatcher need.
type EventStore interface {
	Insert(ctx context.Context, e *notification_models.Event) error
	Claim(ctx context.Context, limit int, lease time.Duration) ([]notification_models.Event, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	MarkExhausted(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error
}

// Savepointer isolates a statement so its failure cannot abort an enclosing
// transaction. *db.Runner implements it.
type Savepointer interface {
	Savepoint(ctx context.Context, fn func(ctx context.Context) error) error
}

type Queue struct {
	store       EventStore
	sp          Savepointer
	maxAttempts int
	now         func() time.Time
}

func NewQueue(store EventStore, sp Savepointer, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = shared_models.DefaultMaxAttempts
	}
	return &Queue{store: store, sp: sp, maxAttempts: maxAttempts, now: time.Now}
}

// Enqueue records an event for the tenant in ctx. It never fails the caller;
// insert errors are logged and the event is lost.
func (q *Queue) Enqueue(ctx context.Context, eventType string, ref notification_models.Ref, meta notification_models.Metadata) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" {
		logger.ErrorLogger.Errorf("Dropping %s event: no tenant in context", eventType)
		return
	}

	id, err := shared_models.GenerateUUIDv7()
	if err != nil {
		id = uuid.New()
	}
	ev := &notification_models.Event{
		ID:          id,
		TenantID:    tenantID,
		EventType:   eventType,
		BookingID:   ref.BookingID,
		Metadata:    meta,
		MaxAttempts: q.maxAttempts,
		Status:      shared_models.EventStatusQueued,
		CreatedAt:   q.now(),
	}
	if ref.CancelToken != "" {
		token := ref.CancelToken
		ev.CancelToken = &token
	}

	insert := func(ctx context.Context) error { return q.store.Insert(ctx, ev) }
	if q.sp != nil {
		err = q.sp.Savepoint(ctx, insert)
	} else {
		err = insert(ctx)
	}
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to enqueue %s event for tenant %s: %v", eventType, tenantID, err)
		return
	}
	logger.InfoLogger.Infof("Enqueued %s event %s", eventType, ev.ID)
}
