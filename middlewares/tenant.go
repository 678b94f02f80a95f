package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joy095/hallbooking/utils"
)

const (
	TenantQueryParam = "tenant"
	TenantHeader     = "X-Tenant-ID"
)

// InitialTenant is the part of tenant.Resolver the middleware needs.
type InitialTenant interface {
	Initial(explicit, persisted string) string
}

// TenantContext resolves the request's starting tenant from ?tenant= or the
// X-Tenant-ID header, then the tenant_id cookie, then configuration.
// Handlers that load an object with a known owner rebind to that owner.
// Without any tenant the request continues unscoped and data access finds
// nothing.
func TenantContext(resolver InitialTenant) gin.HandlerFunc {
	return func(c *gin.Context) {
		explicit := strings.TrimSpace(c.Query(TenantQueryParam))
		if explicit == "" {
			explicit = strings.TrimSpace(c.GetHeader(TenantHeader))
		}
		persisted, _ := c.Cookie(utils.TenantCookie)

		if id := resolver.Initial(explicit, persisted); id != "" {
			utils.BindTenant(c, id)
		}
		c.Next()
	}
}
