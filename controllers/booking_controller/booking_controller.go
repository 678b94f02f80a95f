package booking_controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joy095/hallbooking/controllers/conflict_controller"
	"github.com/joy095/hallbooking/controllers/throttle_controller"
	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/models/booking_models"
	"github.com/joy095/hallbooking/models/facility_models"
	"github.com/joy095/hallbooking/tenant"
	"github.com/joy095/hallbooking/utils"
)

type Guard interface {
	CheckAndReject(ctx context.Context, ip, tenantID string) (bool, error)
	Record(ctx context.Context, ip, tenantID string, bookingID uuid.UUID, userAgent string) error
}

type TenantResolver interface {
	ResolveForFacility(ctx context.Context, facilityID uuid.UUID) (string, error)
	ResolveForBookingToken(ctx context.Context, token string) (string, error)
}

// BookingController exposes the lifecycle over HTTP.
type BookingController struct {
	svc     *Service
	guard   Guard
	tenants TenantResolver
	tx      TxRunner
}

func NewBookingController(svc *Service, guard Guard, tenants TenantResolver, tx TxRunner) *BookingController {
	return &BookingController{svc: svc, guard: guard, tenants: tenants, tx: tx}
}

// SubmitBooking handles anonymous booking requests. The tenant is always the
// facility owner, whatever the request hinted.
func (bc *BookingController) SubmitBooking(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AbortWithError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	tenantID, err := bc.tenants.ResolveForFacility(ctx, req.FacilityID)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to resolve tenant for facility %s: %v", req.FacilityID, err)
		utils.AbortWithError(c, http.StatusServiceUnavailable, utils.CodeUnavailable, "Booking service temporarily unavailable")
		return
	}
	if tenantID == "" {
		utils.AbortWithError(c, http.StatusNotFound, utils.CodeNotFound, "Facility not found")
		return
	}
	ctx = utils.BindTenant(c, tenantID)

	ip, userAgent := c.ClientIP(), c.Request.UserAgent()
	var (
		res       *SubmitResult
		throttled bool
	)
	err = bc.tx.InTx(ctx, func(ctx context.Context) error {
		allowed, err := bc.guard.CheckAndReject(ctx, ip, tenantID)
		if err != nil {
			return err
		}
		if !allowed {
			throttled = true
			return nil
		}

		res, err = bc.svc.Submit(ctx, req)
		if err != nil {
			return err
		}
		return bc.guard.Record(ctx, ip, tenantID, res.Booking.ID, userAgent)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if throttled {
		utils.AbortWithError(c, http.StatusTooManyRequests, utils.CodeThrottled, throttle_controller.ErrThrottled.Error())
		return
	}

	c.JSON(http.StatusOK, res)
}

type cancelRequest struct {
	Token string `json:"token" binding:"required"`
}

// CancelBooking is idempotent: unknown tokens and repeated calls succeed
// with cancelled=false.
func (bc *BookingController) CancelBooking(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AbortWithError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	tenantID, err := bc.tenants.ResolveForBookingToken(ctx, req.Token)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to resolve tenant for cancel token: %v", err)
		utils.AbortWithError(c, http.StatusServiceUnavailable, utils.CodeUnavailable, "Booking service temporarily unavailable")
		return
	}
	if tenantID == "" {
		c.JSON(http.StatusOK, CancelResult{Message: "Booking not found or already cancelled"})
		return
	}

	res, err := bc.svc.Cancel(utils.BindTenant(c, tenantID), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type decisionRequest struct {
	Outcome string `json:"outcome" binding:"required"`
	Comment string `json:"comment"`
}

// DecideBooking records a caretaker's approve or reject decision.
func (bc *BookingController) DecideBooking(c *gin.Context) {
	caretakerID, err := utils.GetCaretakerIDFromContext(c)
	if err != nil {
		utils.AbortWithError(c, http.StatusUnauthorized, utils.CodeUnauthorized, err.Error())
		return
	}
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		utils.AbortWithError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid booking ID format")
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AbortWithError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid request body: "+err.Error())
		return
	}

	b, err := bc.svc.Decide(c.Request.Context(), DecideRequest{
		BookingID:   bookingID,
		CaretakerID: caretakerID,
		Outcome:     req.Outcome,
		Comment:     req.Comment,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

// BlockDates reserves one or more ranges on a facility for its caretaker.
func (bc *BookingController) BlockDates(c *gin.Context) {
	caretakerID, err := utils.GetCaretakerIDFromContext(c)
	if err != nil {
		utils.AbortWithError(c, http.StatusUnauthorized, utils.CodeUnauthorized, err.Error())
		return
	}
	facilityID, err := uuid.Parse(c.Param("facility_id"))
	if err != nil {
		utils.AbortWithError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid facility ID format")
		return
	}

	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AbortWithError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid request body: "+err.Error())
		return
	}
	req.CaretakerID = caretakerID
	req.FacilityID = facilityID

	created, err := bc.svc.BlockDates(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": created})
}

func writeError(c *gin.Context, err error) {
	var verr *ValidationError
	var cerr *conflict_controller.ConflictError

	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, utils.ErrorResponse{
			Error: verr.Error(), Code: utils.CodeValidation, Details: verr.Fields,
		})
	case errors.As(err, &cerr):
		utils.AbortWithError(c, http.StatusBadRequest, utils.CodeConflict, cerr.Error())
	case errors.Is(err, booking_models.ErrDuplicateID):
		c.AbortWithStatusJSON(http.StatusBadRequest, utils.ErrorResponse{
			Error: "id cannot be used", Code: utils.CodeValidation, Details: map[string]string{"id": "cannot be used"},
		})
	case errors.Is(err, conflict_controller.ErrInvalidInterval),
		errors.Is(err, ErrInvalidOutcome),
		errors.Is(err, ErrEventTypeNotFound),
		errors.Is(err, tenant.ErrNoTenant):
		utils.AbortWithError(c, http.StatusBadRequest, utils.CodeValidation, err.Error())
	case errors.Is(err, facility_models.ErrFacilityNotFound):
		utils.AbortWithError(c, http.StatusNotFound, utils.CodeNotFound, "Facility not found")
	case errors.Is(err, booking_models.ErrBookingNotFound):
		utils.AbortWithError(c, http.StatusNotFound, utils.CodeNotFound, "Booking not found")
	case errors.Is(err, ErrNotCaretaker):
		utils.AbortWithError(c, http.StatusForbidden, utils.CodeForbidden, err.Error())
	case errors.Is(err, ErrNotDecidable):
		utils.AbortWithError(c, http.StatusConflict, utils.CodeStateChanged, err.Error())
	case errors.Is(err, throttle_controller.ErrUnavailable),
		errors.Is(err, conflict_controller.ErrLookupUnavailable):
		logger.ErrorLogger.Errorf("Booking check unavailable: %v", err)
		utils.AbortWithError(c, http.StatusServiceUnavailable, utils.CodeUnavailable, "Booking service temporarily unavailable, please retry")
	default:
		logger.ErrorLogger.Errorf("Booking request failed: %v", err)
		utils.AbortWithError(c, http.StatusInternalServerError, utils.CodeInternal, "Failed to process booking request")
	}
}
