package throttle_controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/models/throttle_models"
)

// DefaultWindow is the sliding window during which one accepted submission
// blocks the next one from the same requester.
const DefaultWindow = 5 * time.Minute

var (
	ErrThrottled   = errors.New("too many booking requests, please wait a few minutes before trying again")
	ErrUnavailable = errors.New("booking throttle check unavailable")
)

type Store interface {
	Lock(ctx context.Context, tenantID, ip string) error
	ExistsSince(ctx context.Context, tenantID, ip string, since time.Time) (bool, error)
	Append(ctx context.Context, e *throttle_models.Entry) error
}

// Guard bounds how often an anonymous requester may create bookings per tenant.
type Guard struct {
	store       Store
	window      time.Duration
	logRejected bool
	now         func() time.Time
}

// NewGuard builds a guard. With logRejected set, rejected attempts are logged
// too and therefore extend the window; by default only accepted bookings are.
func NewGuard(store Store, window time.Duration, logRejected bool) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{store: store, window: window, logRejected: logRejected, now: time.Now}
}

// WithClock replaces the time source.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// CheckAndReject reports whether ip may submit for tenantID now. Inside a
// transaction the (tenant, ip) pair stays locked until it ends, so check and
// Record are atomic against concurrent submissions. Store failures surface
// as ErrUnavailable.
func (g *Guard) CheckAndReject(ctx context.Context, ip, tenantID string) (bool, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" || tenantID == "" {
		return false, fmt.Errorf("%w: requester or tenant unknown", ErrUnavailable)
	}

	if err := g.store.Lock(ctx, tenantID, ip); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	since := g.now().Add(-g.window)
	recent, err := g.store.ExistsSince(ctx, tenantID, ip, since)
	if err != nil {
		logger.ErrorLogger.Errorf("Throttle lookup failed for %s in tenant %s: %v", ip, tenantID, err)
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !recent {
		return true, nil
	}

	logger.WarnLogger.Warnf("Throttled booking submission from %s in tenant %s", ip, tenantID)
	if g.logRejected {
		if err := g.store.Append(ctx, &throttle_models.Entry{TenantID: tenantID, IP: ip, CreatedAt: g.now()}); err != nil {
			logger.WarnLogger.Warnf("Failed to log rejected attempt from %s: %v", ip, err)
		}
	}
	return false, nil
}

// Record appends the log entry for an accepted booking.
func (g *Guard) Record(ctx context.Context, ip, tenantID string, bookingID uuid.UUID, userAgent string) error {
	id := bookingID
	entry := &throttle_models.Entry{
		TenantID:  tenantID,
		IP:        strings.TrimSpace(ip),
		BookingID: &id,
		UserAgent: userAgent,
		CreatedAt: g.now(),
	}
	if err := g.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("record throttle entry: %w", err)
	}
	return nil
}
