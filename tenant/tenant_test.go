package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	facilities map[uuid.UUID]string
	tokens     map[string]string
	caretakers map[uuid.UUID]string
	err        error
	calls      int
}

func (f *fakeLookup) FacilityTenant(_ context.Context, id uuid.UUID) (string, error) {
	f.calls++
	return f.facilities[id], f.err
}

func (f *fakeLookup) BookingTokenTenant(_ context.Context, token string) (string, error) {
	f.calls++
	return f.tokens[token], f.err
}

func (f *fakeLookup) CaretakerTenant(_ context.Context, id uuid.UUID) (string, error) {
	f.calls++
	return f.caretakers[id], f.err
}

type mapCache map[string]string

func (m mapCache) Get(_ context.Context, key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapCache) Set(_ context.Context, key, value string) { m[key] = value }

func TestRequireWithoutTenant(t *testing.T) {
	_, err := Require(context.Background())
	assert.ErrorIs(t, err, ErrNoTenant)

	id, err := Require(WithTenant(context.Background(), "  alpha "))
	require.NoError(t, err)
	assert.Equal(t, "alpha", id)
}

func TestInitialPrecedence(t *testing.T) {
	r := NewResolver(&fakeLookup{}, nil, "default")

	assert.Equal(t, "explicit", r.Initial("explicit", "cookie"))
	assert.Equal(t, "cookie", r.Initial(" ", "cookie"))
	assert.Equal(t, "default", r.Initial("", ""))
	assert.Equal(t, "", NewResolver(&fakeLookup{}, nil, "").Initial("", ""))
}

func TestResolveForFacilityCaches(t *testing.T) {
	facility := uuid.New()
	lookup := &fakeLookup{facilities: map[uuid.UUID]string{facility: "beta"}}
	cache := mapCache{}
	r := NewResolver(lookup, cache, "default")

	for i := 0; i < 3; i++ {
		id, err := r.ResolveForFacility(context.Background(), facility)
		require.NoError(t, err)
		assert.Equal(t, "beta", id)
	}
	assert.Equal(t, 1, lookup.calls)
}

func TestResolveUnknownObjectIsEmpty(t *testing.T) {
	r := NewResolver(&fakeLookup{}, mapCache{}, "default")

	id, err := r.ResolveForFacility(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, id, "an unknown facility must not fall back to the default tenant")

	id, err = r.ResolveForBookingToken(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestResolveLookupFailure(t *testing.T) {
	boom := errors.New("connection refused")
	r := NewResolver(&fakeLookup{err: boom}, nil, "default")

	_, err := r.ResolveForCaretaker(context.Background(), uuid.New())
	assert.ErrorIs(t, err, boom)

	_, err = r.ResolveForBookingToken(context.Background(), "tok")
	assert.ErrorIs(t, err, boom)
}

func TestHolderNotifiesOnChange(t *testing.T) {
	h := NewHolder("alpha")

	var seen [][2]string
	unsubscribe := h.Subscribe(func(previous, current string) {
		seen = append(seen, [2]string{previous, current})
	})

	h.SetCurrent("alpha")
	h.SetCurrent("beta")
	assert.Equal(t, "beta", h.GetCurrent())
	assert.Equal(t, [][2]string{{"alpha", "beta"}}, seen)

	unsubscribe()
	h.SetCurrent("gamma")
	assert.Len(t, seen, 1)
	assert.Equal(t, "gamma", h.GetCurrent())
}
