package notification_controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/models/booking_models"
	"github.com/joy095/hallbooking/models/notification_models"
	"github.com/joy095/hallbooking/tenant"
	"github.com/joy095/hallbooking/utils"
	"github.com/joy095/hallbooking/utils/mail"
)

// TokenTenants finds the tenant owning a cancel token.
type TokenTenants interface {
	ResolveForBookingToken(ctx context.Context, token string) (string, error)
}

type NotificationController struct {
	dispatcher *Dispatcher
	tokens     TokenTenants
}

func NewNotificationController(d *Dispatcher, tokens TokenTenants) *NotificationController {
	return &NotificationController{dispatcher: d, tokens: tokens}
}

// Dispatch drains one batch of the queue. ?limit= defaults to 10, capped at 50.
func (nc *NotificationController) Dispatch(c *gin.Context) {
	limit := DefaultBatchSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			utils.AbortWithError(c, http.StatusBadRequest, utils.CodeValidation, "limit must be an integer")
			return
		}
		limit = n
	}

	summary, err := nc.dispatcher.DispatchBatch(c.Request.Context(), limit)
	if err != nil {
		utils.AbortWithError(c, http.StatusInternalServerError, utils.CodeInternal, "Failed to claim notification events")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DeliverRequest asks for one event to be delivered right away, bypassing
// the queue.
type DeliverRequest struct {
	EventType   string                       `json:"event_type" binding:"required"`
	BookingID   *uuid.UUID                   `json:"booking_id"`
	CancelToken string                       `json:"cancel_token"`
	Metadata    notification_models.Metadata `json:"metadata"`
}

func (nc *NotificationController) Deliver(c *gin.Context) {
	var req DeliverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AbortWithError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid request body: "+err.Error())
		return
	}

	req.CancelToken = strings.TrimSpace(req.CancelToken)
	tenantID := tenant.FromContext(c.Request.Context())
	if req.CancelToken != "" && nc.tokens != nil {
		owner, err := nc.tokens.ResolveForBookingToken(c.Request.Context(), req.CancelToken)
		if err != nil {
			logger.ErrorLogger.Errorf("Failed to resolve tenant for cancel token: %v", err)
			utils.AbortWithError(c, http.StatusServiceUnavailable, utils.CodeUnavailable, "Tenant lookup unavailable")
			return
		}
		if owner != "" {
			tenantID = owner
		}
	}
	if tenantID == "" {
		if req.CancelToken != "" {
			utils.AbortWithError(c, http.StatusNotFound, utils.CodeNotFound, "Booking not found")
			return
		}
		utils.AbortWithError(c, http.StatusBadRequest, utils.CodeValidation, "tenant is required")
		return
	}

	ev := notification_models.Event{
		ID:        uuid.New(),
		TenantID:  tenantID,
		EventType: strings.TrimSpace(req.EventType),
		BookingID: req.BookingID,
		Metadata:  req.Metadata,
	}
	if req.CancelToken != "" {
		token := req.CancelToken
		ev.CancelToken = &token
	}

	sent, err := nc.dispatcher.Deliver(c.Request.Context(), ev)
	if err != nil {
		switch {
		case errors.Is(err, mail.ErrUnknownEventType), errors.Is(err, ErrMissingReference):
			utils.AbortWithError(c, http.StatusBadRequest, utils.CodeValidation, err.Error())
		case errors.Is(err, booking_models.ErrBookingNotFound):
			utils.AbortWithError(c, http.StatusNotFound, utils.CodeNotFound, "Booking not found")
		default:
			logger.ErrorLogger.Errorf("Direct delivery of %s failed: %v", ev.EventType, err)
			utils.AbortWithError(c, http.StatusInternalServerError, utils.CodeInternal, "Failed to deliver notification")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"delivered": true, "messages": sent})
}
