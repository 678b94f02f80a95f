package throttle_controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joy095/hallbooking/models/throttle_models"
)

type memStore struct {
	entries []throttle_models.Entry
	err     error
	locks   int
}

func (m *memStore) Lock(context.Context, string, string) error {
	m.locks++
	return nil
}

func (m *memStore) ExistsSince(_ context.Context, tenantID, ip string, since time.Time) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, e := range m.entries {
		if e.TenantID == tenantID && e.IP == ip && !e.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Append(_ context.Context, e *throttle_models.Entry) error {
	m.entries = append(m.entries, *e)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestSlidingWindow(t *testing.T) {
	store := &memStore{}
	clk := &clock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	g := NewGuard(store, 0, false).WithClock(clk.now)
	ctx := context.Background()

	allowed, err := g.CheckAndReject(ctx, "203.0.113.7", "north")
	require.NoError(t, err)
	require.True(t, allowed)
	require.NoError(t, g.Record(ctx, "203.0.113.7", "north", uuid.New(), "test-agent"))

	clk.t = clk.t.Add(2 * time.Minute)
	allowed, err = g.CheckAndReject(ctx, "203.0.113.7", "north")
	require.NoError(t, err)
	assert.False(t, allowed, "second attempt inside the window is rejected")

	allowed, err = g.CheckAndReject(ctx, "203.0.113.7", "south")
	require.NoError(t, err)
	assert.True(t, allowed, "windows are per tenant")

	clk.t = clk.t.Add(4 * time.Minute)
	allowed, err = g.CheckAndReject(ctx, "203.0.113.7", "north")
	require.NoError(t, err)
	assert.True(t, allowed, "accepted again after the window")
}

func TestRejectedAttemptsAreNotLoggedByDefault(t *testing.T) {
	store := &memStore{}
	clk := &clock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	g := NewGuard(store, 5*time.Minute, false).WithClock(clk.now)
	ctx := context.Background()

	require.NoError(t, g.Record(ctx, "198.51.100.1", "north", uuid.New(), ""))
	clk.t = clk.t.Add(4 * time.Minute)
	allowed, err := g.CheckAndReject(ctx, "198.51.100.1", "north")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Len(t, store.entries, 1)

	clk.t = clk.t.Add(2 * time.Minute)
	allowed, err = g.CheckAndReject(ctx, "198.51.100.1", "north")
	require.NoError(t, err)
	assert.True(t, allowed, "the rejected attempt did not extend the window")
}

func TestRejectedAttemptsLoggedWhenConfigured(t *testing.T) {
	store := &memStore{}
	clk := &clock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	g := NewGuard(store, 5*time.Minute, true).WithClock(clk.now)
	ctx := context.Background()

	require.NoError(t, g.Record(ctx, "198.51.100.1", "north", uuid.New(), ""))
	clk.t = clk.t.Add(4 * time.Minute)
	allowed, err := g.CheckAndReject(ctx, "198.51.100.1", "north")
	require.NoError(t, err)
	assert.False(t, allowed)
	require.Len(t, store.entries, 2)
	assert.Nil(t, store.entries[1].BookingID)

	clk.t = clk.t.Add(2 * time.Minute)
	allowed, err = g.CheckAndReject(ctx, "198.51.100.1", "north")
	require.NoError(t, err)
	assert.False(t, allowed, "the logged rejection keeps the requester throttled")
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	g := NewGuard(&memStore{err: errors.New("timeout")}, 0, false)
	allowed, err := g.CheckAndReject(context.Background(), "203.0.113.7", "north")
	assert.False(t, allowed)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMissingTenantFailsClosed(t *testing.T) {
	g := NewGuard(&memStore{}, 0, false)
	allowed, err := g.CheckAndReject(context.Background(), "203.0.113.7", "")
	assert.False(t, allowed)
	assert.ErrorIs(t, err, ErrUnavailable)
}
