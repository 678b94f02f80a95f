package booking_models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joy095/hallbooking/config/db"
	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/models/shared_models"
	"github.com/joy095/hallbooking/tenant"
)

// Booking is a reservation request or grant for a facility over [Start, End).
type Booking struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       string     `json:"tenant_id"`
	FacilityID     uuid.UUID  `json:"facility_id"`
	Title          string     `json:"title"`
	EventTypeID    *uuid.UUID `json:"event_type_id,omitempty"`
	Start          time.Time  `json:"start"`
	End            time.Time  `json:"end"`
	SubmitterName  string     `json:"submitter_name"`
	SubmitterEmail string     `json:"submitter_email"`
	Notes          *string    `json:"notes,omitempty"`
	IsPublic       bool       `json:"is_public"`
	Status         string     `json:"status"`
	CancelToken    string     `json:"cancel_token,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

const bookingColumns = `id, tenant_id, facility_id, title, event_type_id, start_time, end_time,
	submitter_name, submitter_email, notes, is_public, status, cancel_token, created_at, updated_at`

// CommentColumnCandidates lists the decision comment columns in probe order.
var CommentColumnCandidates = []string{"decision_comment", "caretaker_comment", "response_comment"}

// Repository persists bookings in PostgreSQL. Every query is filtered by the
// tenant carried in ctx; without one nothing is found and nothing changes.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanBooking(row pgx.Row) (*Booking, error) {
	b := &Booking{}
	err := row.Scan(
		&b.ID, &b.TenantID, &b.FacilityID, &b.Title, &b.EventTypeID, &b.Start, &b.End,
		&b.SubmitterName, &b.SubmitterEmail, &b.Notes, &b.IsPublic, &b.Status, &b.CancelToken,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Create inserts a new booking. The tenant is taken from ctx, not from b.
func (r *Repository) Create(ctx context.Context, b *Booking) error {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	b.TenantID = tenantID

	query := `
		INSERT INTO bookings (
			id, tenant_id, facility_id, title, event_type_id, start_time, end_time,
			submitter_name, submitter_email, notes, is_public, status, cancel_token, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = db.Conn(ctx, r.pool).Exec(ctx, query,
		b.ID, b.TenantID, b.FacilityID, b.Title, b.EventTypeID, b.Start, b.End,
		b.SubmitterName, b.SubmitterEmail, b.Notes, b.IsPublic, b.Status, b.CancelToken,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		switch {
		case db.HasCode(err, db.CodeExclusionViolated):
			return ErrOverlap
		case db.HasCode(err, db.CodeUniqueViolation):
			return ErrDuplicateID
		}
		logger.ErrorLogger.Errorf("Failed to insert booking %s for facility %s: %v", b.ID, b.FacilityID, err)
		return fmt.Errorf("failed to create booking: %w", err)
	}

	logger.InfoLogger.Infof("Booking %s created for facility %s with status %s", b.ID, b.FacilityID, b.Status)
	return nil
}

// GetByID fetches a booking of the current tenant.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" {
		return nil, ErrBookingNotFound
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 AND tenant_id = $2`
	b, err := scanBooking(db.Conn(ctx, r.pool).QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("database error fetching booking: %w", err)
	}
	return b, nil
}

// GetByCancelToken fetches a booking of the current tenant by its cancel token.
func (r *Repository) GetByCancelToken(ctx context.Context, token string) (*Booking, error) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" || token == "" {
		return nil, ErrBookingNotFound
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE cancel_token = $1 AND tenant_id = $2`
	b, err := scanBooking(db.Conn(ctx, r.pool).QueryRow(ctx, query, token, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("database error fetching booking by token: %w", err)
	}
	return b, nil
}

// ListBlocking returns pending and active bookings of a facility that overlap
// or touch [from, to].
func (r *Repository) ListBlocking(ctx context.Context, facilityID uuid.UUID, from, to time.Time) ([]Booking, error) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" {
		return nil, nil
	}

	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE tenant_id = $1 AND facility_id = $2
		  AND status = ANY($3)
		  AND start_time <= $5 AND end_time >= $4
		ORDER BY start_time`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, tenantID, facilityID, shared_models.BlockingStatuses, from, to)
	if err != nil {
		return nil, fmt.Errorf("query blocking bookings: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blocking booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// UpdateDecision writes a caretaker decision. column names the comment column
// and must come from CommentColumnCandidates; "" writes the status only.
// The update only applies while the booking is in one of fromStatuses.
func (r *Repository) UpdateDecision(ctx context.Context, id uuid.UUID, fromStatuses []string, status, column, comment string) (*Booking, error) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" {
		return nil, ErrBookingNotFound
	}

	set := `status = $1, updated_at = NOW()`
	args := []any{status, id, tenantID, fromStatuses}
	if column != "" {
		if !knownCommentColumn(column) {
			return nil, fmt.Errorf("refusing to write unknown comment column %q", column)
		}
		set += `, ` + pgx.Identifier{column}.Sanitize() + ` = $5`
		args = append(args, comment)
	}

	query := `UPDATE bookings SET ` + set + `
		WHERE id = $2 AND tenant_id = $3 AND status = ANY($4)
		RETURNING ` + bookingColumns

	b, err := scanBooking(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, r.missingOrChanged(ctx, id)
		case db.HasCode(err, db.CodeUndefinedColumn):
			return nil, ErrUnknownColumn
		case db.HasCode(err, db.CodeCheckViolation, db.CodeInvalidTextRepr):
			return nil, ErrStatusRejected
		}
		return nil, fmt.Errorf("failed to update booking decision: %w", err)
	}

	logger.InfoLogger.Infof("Booking %s status updated to %s", id, status)
	return b, nil
}

// CancelByToken moves the booking owning token to cancelled when it is still
// pending or active. cancelled is false for unknown tokens and for bookings
// that are already cancelled, denied or completed, which lets repeated calls
// converge without error.
func (r *Repository) CancelByToken(ctx context.Context, token string) (b *Booking, cancelled bool, err error) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" || token == "" {
		return nil, false, nil
	}

	query := `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE cancel_token = $2 AND tenant_id = $3 AND status = ANY($4)
		RETURNING ` + bookingColumns

	b, err = scanBooking(db.Conn(ctx, r.pool).QueryRow(ctx, query, shared_models.BookingStatusCancelled, token, tenantID,
		shared_models.BlockingStatuses))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to cancel booking: %w", err)
	}
	return b, true, nil
}

// CompletePast marks active bookings of the current tenant that ended before
// now as completed.
func (r *Repository) CompletePast(ctx context.Context, now time.Time) (int64, error) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" {
		return 0, nil
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE bookings SET status = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND status = $3 AND end_time <= $4`,
		shared_models.BookingStatusCompleted, tenantID, shared_models.BookingStatusActive, now)
	if err != nil {
		return 0, fmt.Errorf("complete past bookings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CommentColumns reports which candidate comment columns exist on bookings.
func (r *Repository) CommentColumns(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = 'bookings' AND column_name = ANY($1)`,
		CommentColumnCandidates)
	if err != nil {
		return nil, fmt.Errorf("inspect booking columns: %w", err)
	}
	defer rows.Close()

	present := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []string
	for _, c := range CommentColumnCandidates {
		if present[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *Repository) missingOrChanged(ctx context.Context, id uuid.UUID) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrStatusChanged
}

func knownCommentColumn(column string) bool {
	for _, c := range CommentColumnCandidates {
		if c == column {
			return true
		}
	}
	return false
}

// LockFacility serialises writers of one facility's calendar until the
// surrounding transaction ends. Outside a transaction it is a no-op.
func (r *Repository) LockFacility(ctx context.Context, facilityID uuid.UUID) error {
	tx, ok := db.TxFromContext(ctx)
	if !ok {
		return nil
	}
	return db.AdvisoryXactLock(ctx, tx, "facility:"+facilityID.String())
}
