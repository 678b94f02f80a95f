package utils

import (
	"errors"

	"github.com/gin-gonic/gin"
)

var ErrCaretakerIDNotFound = errors.New("authentication required: caretaker ID not found")

// Error codes carried in the "code" field of error payloads.
const (
	CodeValidation   = "VALIDATION_FAILED"
	CodeConflict     = "BOOKING_CONFLICT"
	CodeNotFound     = "NOT_FOUND"
	CodeThrottled    = "RATE_LIMITED"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeStateChanged = "STATUS_CHANGED"
	CodeForbidden    = "FORBIDDEN"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// AbortWithError writes the error payload and stops the handler chain.
func AbortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code})
}
