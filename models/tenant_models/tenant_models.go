package tenant_models

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joy095/hallbooking/tenant"
)

// Config is the per-tenant configuration used when talking to renters.
type Config struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SenderEmail   string `json:"sender_email"`
	ReplyTo       string `json:"reply_to"`
	PublicBaseURL string `json:"public_base_url"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetConfig loads the configuration of the tenant in ctx. Without a tenant,
// or for an unknown one, the zero Config is returned.
func (r *Repository) GetConfig(ctx context.Context) (Config, error) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" {
		return Config{}, nil
	}

	var c Config
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, sender_email, reply_to, public_base_url
		FROM tenants WHERE id = $1`, tenantID,
	).Scan(&c.ID, &c.Name, &c.SenderEmail, &c.ReplyTo, &c.PublicBaseURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Config{ID: tenantID}, nil
		}
		return Config{}, fmt.Errorf("load tenant config: %w", err)
	}
	return c, nil
}

// Ownership answers tenant.Lookup from the authoritative tables. These are
// the only queries that run without a tenant filter.
type Ownership struct {
	pool *pgxpool.Pool
}

var _ tenant.Lookup = (*Ownership)(nil)

func NewOwnership(pool *pgxpool.Pool) *Ownership {
	return &Ownership{pool: pool}
}

func (o *Ownership) FacilityTenant(ctx context.Context, facilityID uuid.UUID) (string, error) {
	return o.one(ctx, `SELECT tenant_id FROM facilities WHERE id = $1`, facilityID)
}

func (o *Ownership) BookingTokenTenant(ctx context.Context, cancelToken string) (string, error) {
	return o.one(ctx, `SELECT tenant_id FROM bookings WHERE cancel_token = $1`, cancelToken)
}

func (o *Ownership) CaretakerTenant(ctx context.Context, caretakerID uuid.UUID) (string, error) {
	return o.one(ctx, `SELECT tenant_id FROM caretakers WHERE id = $1`, caretakerID)
}

func (o *Ownership) one(ctx context.Context, query string, arg any) (string, error) {
	var id string
	if err := o.pool.QueryRow(ctx, query, arg).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}
