package facility_models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joy095/hallbooking/config/db"
	"github.com/joy095/hallbooking/tenant"
)

var ErrFacilityNotFound = errors.New("facility not found")

// Facility is a bookable hall. Its tenant never changes after creation.
type Facility struct {
	ID          uuid.UUID `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Caretaker approves or rejects bookings for the facilities assigned to them.
type Caretaker struct {
	ID       uuid.UUID `json:"id"`
	TenantID string    `json:"tenant_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetFacility fetches a facility of the current tenant.
func (r *Repository) GetFacility(ctx context.Context, id uuid.UUID) (*Facility, error) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" {
		return nil, ErrFacilityNotFound
	}

	f := &Facility{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, tenant_id, name, address, description, created_at
		FROM facilities WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&f.ID, &f.TenantID, &f.Name, &f.Address, &f.Description, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFacilityNotFound
		}
		return nil, fmt.Errorf("database error fetching facility: %w", err)
	}
	return f, nil
}

// CaretakersForFacility lists the caretakers assigned to a facility.
func (r *Repository) CaretakersForFacility(ctx context.Context, facilityID uuid.UUID) ([]Caretaker, error) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" {
		return nil, nil
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT c.id, c.tenant_id, c.name, c.email
		FROM caretakers c
		JOIN facility_caretakers fc ON fc.caretaker_id = c.id
		WHERE fc.facility_id = $1 AND c.tenant_id = $2
		ORDER BY c.name`, facilityID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query caretakers: %w", err)
	}
	defer rows.Close()

	var out []Caretaker
	for rows.Next() {
		var c Caretaker
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email); err != nil {
			return nil, fmt.Errorf("scan caretaker: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CaretakerManagesFacility reports whether the caretaker is assigned to the facility.
func (r *Repository) CaretakerManagesFacility(ctx context.Context, caretakerID, facilityID uuid.UUID) (bool, error) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" {
		return false, nil
	}

	var ok bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM facility_caretakers fc
			JOIN caretakers c ON c.id = fc.caretaker_id
			WHERE fc.caretaker_id = $1 AND fc.facility_id = $2 AND c.tenant_id = $3
		)`, caretakerID, facilityID, tenantID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check caretaker assignment: %w", err)
	}
	return ok, nil
}

// EventTypeExists reports whether an event type belongs to the current tenant.
func (r *Repository) EventTypeExists(ctx context.Context, id uuid.UUID) (bool, error) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" {
		return false, nil
	}

	var ok bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM event_types WHERE id = $1 AND tenant_id = $2)`, id, tenantID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check event type: %w", err)
	}
	return ok, nil
}
