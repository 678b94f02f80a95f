package utils

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/tenant"
)

// CaretakerIDKey is where the auth middleware stores the caretaker id.
const CaretakerIDKey = "sub"

// GetCaretakerIDFromContext extracts the authenticated caretaker's id, stored
// as a string by the auth middleware.
func GetCaretakerIDFromContext(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(CaretakerIDKey)
	if !exists {
		return uuid.Nil, ErrCaretakerIDNotFound
	}

	idStr, ok := raw.(string)
	if !ok {
		logger.ErrorLogger.Errorf("Caretaker ID in context is not a string, actual type: %T", raw)
		return uuid.Nil, fmt.Errorf("internal server error: invalid caretaker ID format in context")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to parse caretaker ID '%s': %v", idStr, err)
		return uuid.Nil, fmt.Errorf("internal server error: invalid caretaker ID format")
	}
	return id, nil
}

// Tenant propagation. The cookie persists the last resolved tenant; the
// changed header tells clients to drop per-tenant caches.
const (
	TenantIDKey         = "tenant_id"
	TenantCookie        = "tenant_id"
	TenantChangedHeader = "X-Tenant-Changed"
	tenantCookieMaxAge  = 30 * 24 * 60 * 60
)

// BindTenant scopes the rest of the request to tenantID. When it differs from
// the tenant the client sent in its cookie, the cookie is rewritten and the
// changed header is set.
func BindTenant(c *gin.Context, tenantID string) context.Context {
	ctx := tenant.WithTenant(c.Request.Context(), tenantID)
	c.Request = c.Request.WithContext(ctx)
	c.Set(TenantIDKey, tenantID)

	if previous, _ := c.Cookie(TenantCookie); previous != tenantID {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(TenantCookie, tenantID, tenantCookieMaxAge, "/", "", c.Request.TLS != nil, true)
		c.Header(TenantChangedHeader, "1")
	}
	return ctx
}
