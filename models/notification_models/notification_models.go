package notification_models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joy095/hallbooking/config/db"
	"github.com/joy095/hallbooking/models/shared_models"
)

// Metadata is the free-form payload of an event.
type Metadata struct {
	Status  string `json:"status,omitempty"`
	Comment string `json:"comment,omitempty"`
	Source  string `json:"source,omitempty"`
}

// Ref identifies the booking an event is about. CancelToken lets the
// dispatcher find the booking when the id is unknown to the producer.
type Ref struct {
	BookingID   *uuid.UUID
	CancelToken string
}

// Event is a durable record of a booking state change awaiting delivery.
type Event struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    string     `json:"tenant_id"`
	EventType   string     `json:"event_type"`
	BookingID   *uuid.UUID `json:"booking_id,omitempty"`
	CancelToken *string    `json:"-"`
	Metadata    Metadata   `json:"metadata"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	Status      string     `json:"status"`
	LastError   *string    `json:"last_error,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Claimable reports whether a dispatcher may pick the event up.
func (e *Event) Claimable() bool {
	return (e.Status == shared_models.EventStatusQueued || e.Status == shared_models.EventStatusFailed) &&
		e.Attempts < e.MaxAttempts
}

// Abandoned reports whether a processing event's lease ran out after its
// final attempt was claimed. Such an event can never be claimed again.
func (e *Event) Abandoned(now time.Time, lease time.Duration) bool {
	return e.leaseExpired(now, lease) && e.Attempts >= e.MaxAttempts
}

// Reclaimable reports whether a processing event's lease ran out with
// attempts to spare.
func (e *Event) Reclaimable(now time.Time, lease time.Duration) bool {
	return e.leaseExpired(now, lease) && e.Attempts < e.MaxAttempts
}

func (e *Event) leaseExpired(now time.Time, lease time.Duration) bool {
	return e.Status == shared_models.EventStatusProcessing && e.ClaimedAt != nil &&
		e.ClaimedAt.Before(now.Add(-lease))
}

// LeaseExpiredError is stored on events retired by Abandoned.
const LeaseExpiredError = "lease expired after final attempt"

// MaxErrorLength bounds the stored last_error text in bytes.
const MaxErrorLength = 500

// TruncateError shortens an error message for storage without splitting a
// UTF-8 sequence.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorLength {
		return msg
	}
	n := MaxErrorLength
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, tenant_id, event_type, booking_id, cancel_token, metadata, attempts, max_attempts,
	status, last_error, claimed_at, processed_at, created_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var (
		e    Event
		meta []byte
	)
	err := row.Scan(&e.ID, &e.TenantID, &e.EventType, &e.BookingID, &e.CancelToken, &meta,
		&e.Attempts, &e.MaxAttempts, &e.Status, &e.LastError, &e.ClaimedAt, &e.ProcessedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode event metadata: %w", err)
		}
	}
	return &e, nil
}

// Insert stores a queued event.
func (r *Repository) Insert(ctx context.Context, e *Event) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode event metadata: %w", err)
	}
	_, err = db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO notification_events (id, tenant_id, event_type, booking_id, cancel_token, metadata,
			attempts, max_attempts, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.TenantID, e.EventType, e.BookingID, e.CancelToken, meta,
		e.Attempts, e.MaxAttempts, e.Status, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification event: %w", err)
	}
	return nil
}

// Claim atomically moves up to limit claimable events to processing and
// returns them. Rows locked by a concurrent claim are skipped. A processing
// row whose claim is older than lease is claimed again, or retired as
// exhausted when its final attempt was the one that lapsed.
func (r *Repository) Claim(ctx context.Context, limit int, lease time.Duration) ([]Event, error) {
	query := `
		WITH abandoned AS (
			UPDATE notification_events
			SET status = $6, last_error = $7, processed_at = NOW()
			WHERE status = $1
			  AND attempts >= max_attempts
			  AND claimed_at < NOW() - ($4::int * INTERVAL '1 second')
		)
		UPDATE notification_events
		SET status = $1, attempts = attempts + 1, claimed_at = NOW()
		WHERE id IN (
			SELECT id FROM notification_events
			WHERE attempts < max_attempts
			  AND (status IN ($2, $3) OR (status = $1 AND claimed_at < NOW() - ($4::int * INTERVAL '1 second')))
			ORDER BY created_at
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + eventColumns

	rows, err := r.pool.Query(ctx, query,
		shared_models.EventStatusProcessing, shared_models.EventStatusQueued, shared_models.EventStatusFailed,
		int(lease.Seconds()), limit, shared_models.EventStatusExhausted, LeaseExpiredError)
	if err != nil {
		return nil, fmt.Errorf("claim notification events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim notification events: %w", err)
	}
	return out, nil
}

// MarkSucceeded records a successful delivery.
func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.mark(ctx, id, shared_models.EventStatusSucceeded, nil, &at)
}

// MarkFailed leaves the event eligible for another claim.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	msg := TruncateError(errMsg)
	return r.mark(ctx, id, shared_models.EventStatusFailed, &msg, nil)
}

// MarkExhausted retires the event for good.
func (r *Repository) MarkExhausted(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error {
	msg := TruncateError(errMsg)
	return r.mark(ctx, id, shared_models.EventStatusExhausted, &msg, &at)
}

func (r *Repository) mark(ctx context.Context, id uuid.UUID, status string, lastError *string, processedAt *time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_events
		SET status = $2, last_error = COALESCE($3, last_error), processed_at = COALESCE($4, processed_at)
		WHERE id = $1`, id, status, lastError, processedAt)
	if err != nil {
		return fmt.Errorf("mark notification event %s %s: %w", id, status, err)
	}
	return nil
}
