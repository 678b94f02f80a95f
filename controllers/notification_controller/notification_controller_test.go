package notification_controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joy095/hallbooking/models/shared_models"
)

type tokenTenants struct {
	owners map[string]string
	err    error
}

func (t tokenTenants) ResolveForBookingToken(_ context.Context, token string) (string, error) {
	return t.owners[token], t.err
}

func deliverRouter(t *testing.T, fx *fixture, del Deliverer, tokens TokenTenants) *gin.Engine {
	gin.SetMode(gin.TestMode)
	nc := NewNotificationController(newDispatcher(t, newMemEvents(), fx, del), tokens)
	r := gin.New()
	r.POST("/internal/notifications/deliver", nc.Deliver)
	return r
}

func postDeliver(t *testing.T, r http.Handler, body map[string]any) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/internal/notifications/deliver", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDeliverResolvesTenantFromCancelToken(t *testing.T) {
	fx := newFixture()
	del := &flakyDeliverer{}
	r := deliverRouter(t, fx, del, tokenTenants{owners: map[string]string{"tok": fx.tenantID}})

	w := postDeliver(t, r, map[string]any{
		"event_type":   shared_models.EventBookingCancelledByRenter,
		"cancel_token": "tok",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, del.sent, 2)
}

func TestDeliverUnknownTokenWithoutTenantIs404(t *testing.T) {
	fx := newFixture()
	r := deliverRouter(t, fx, &flakyDeliverer{}, tokenTenants{})

	w := postDeliver(t, r, map[string]any{
		"event_type":   shared_models.EventBookingCancelledByRenter,
		"cancel_token": "nope",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeliverTokenLookupFailureIs503(t *testing.T) {
	fx := newFixture()
	r := deliverRouter(t, fx, &flakyDeliverer{}, tokenTenants{err: errors.New("connection refused")})

	w := postDeliver(t, r, map[string]any{
		"event_type":   shared_models.EventBookingCancelledByRenter,
		"cancel_token": "tok",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDeliverWithoutTenantOrTokenIs400(t *testing.T) {
	fx := newFixture()
	id := fx.booking.ID
	r := deliverRouter(t, fx, &flakyDeliverer{}, tokenTenants{})

	w := postDeliver(t, r, map[string]any{
		"event_type": shared_models.EventBookingCreated,
		"booking_id": id,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
