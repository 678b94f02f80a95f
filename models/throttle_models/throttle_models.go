package throttle_models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joy095/hallbooking/config/db"
)

// Entry records one submission from a requester. Entries are never updated
// or deleted here; they only age out of the window.
type Entry struct {
	ID        int64      `json:"id"`
	TenantID  string     `json:"tenant_id"`
	IP        string     `json:"ip"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
	UserAgent string     `json:"user_agent"`
	CreatedAt time.Time  `json:"created_at"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lock serialises throttle decisions for one (tenant, ip) pair until the
// surrounding transaction ends. Outside a transaction it is a no-op.
func (r *Repository) Lock(ctx context.Context, tenantID, ip string) error {
	tx, ok := db.TxFromContext(ctx)
	if !ok {
		return nil
	}
	return db.AdvisoryXactLock(ctx, tx, "throttle:"+tenantID+":"+ip)
}

// ExistsSince reports whether the pair has an entry created at or after since.
func (r *Repository) ExistsSince(ctx context.Context, tenantID, ip string, since time.Time) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM throttle_log
			WHERE tenant_id = $1 AND ip = $2 AND created_at >= $3
		)`, tenantID, ip, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query throttle log: %w", err)
	}
	return exists, nil
}

// Append writes an entry.
func (r *Repository) Append(ctx context.Context, e *Entry) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO throttle_log (tenant_id, ip, booking_id, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`, e.TenantID, e.IP, e.BookingID, e.UserAgent, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append throttle log: %w", err)
	}
	return nil
}
