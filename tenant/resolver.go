package tenant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Lookup answers "which tenant owns this object". Implementations query
// across tenants, since their answer is what scopes everything else.
// A missing object yields ("", nil).
type Lookup interface {
	FacilityTenant(ctx context.Context, facilityID uuid.UUID) (string, error)
	BookingTokenTenant(ctx context.Context, cancelToken string) (string, error)
	CaretakerTenant(ctx context.Context, caretakerID uuid.UUID) (string, error)
}

// Cache memoises immutable ownership lookups.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// Resolver determines the tenant of a request.
type Resolver struct {
	lookup        Lookup
	cache         Cache
	defaultTenant string
}

// NewResolver builds a resolver. cache may be nil; defaultTenant is the
// static deployment fallback and may be empty.
func NewResolver(lookup Lookup, cache Cache, defaultTenant string) *Resolver {
	return &Resolver{lookup: lookup, cache: cache, defaultTenant: strings.TrimSpace(defaultTenant)}
}

// Initial picks the tenant for a fresh request: explicit parameter, then the
// value persisted by a previous response, then static configuration.
func (r *Resolver) Initial(explicit, persisted string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	if v := strings.TrimSpace(persisted); v != "" {
		return v
	}
	return r.defaultTenant
}

// ResolveForFacility returns the owning tenant of a facility. Ownership never
// changes, so the answer is cached.
func (r *Resolver) ResolveForFacility(ctx context.Context, facilityID uuid.UUID) (string, error) {
	key := "tenant:facility:" + facilityID.String()
	if r.cache != nil {
		if v, ok := r.cache.Get(ctx, key); ok {
			return v, nil
		}
	}
	id, err := r.lookup.FacilityTenant(ctx, facilityID)
	if err != nil {
		return "", fmt.Errorf("resolve tenant for facility %s: %w", facilityID, err)
	}
	if id != "" && r.cache != nil {
		r.cache.Set(ctx, key, id)
	}
	return id, nil
}

// ResolveForBookingToken finds the tenant of a booking known only by its
// cancel token.
func (r *Resolver) ResolveForBookingToken(ctx context.Context, cancelToken string) (string, error) {
	cancelToken = strings.TrimSpace(cancelToken)
	if cancelToken == "" {
		return "", nil
	}
	id, err := r.lookup.BookingTokenTenant(ctx, cancelToken)
	if err != nil {
		return "", fmt.Errorf("resolve tenant for booking token: %w", err)
	}
	return id, nil
}

// ResolveForCaretaker returns the tenant a caretaker works for.
func (r *Resolver) ResolveForCaretaker(ctx context.Context, caretakerID uuid.UUID) (string, error) {
	key := "tenant:caretaker:" + caretakerID.String()
	if r.cache != nil {
		if v, ok := r.cache.Get(ctx, key); ok {
			return v, nil
		}
	}
	id, err := r.lookup.CaretakerTenant(ctx, caretakerID)
	if err != nil {
		return "", fmt.Errorf("resolve tenant for caretaker %s: %w", caretakerID, err)
	}
	if id != "" && r.cache != nil {
		r.cache.Set(ctx, key, id)
	}
	return id, nil
}
