package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/utils"
	"github.com/joy095/hallbooking/utils/jwt_parse"
)

// CaretakerTenants resolves the tenant a caretaker belongs to.
type CaretakerTenants interface {
	ResolveForCaretaker(ctx context.Context, caretakerID uuid.UUID) (string, error)
}

// CaretakerAuth authenticates a caretaker bearer token and scopes the request
// to the caretaker's tenant, overriding any tenant the request hinted at.
func CaretakerAuth(secret []byte, tenants CaretakerTenants) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := jwt_parse.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			utils.AbortWithError(c, http.StatusUnauthorized, utils.CodeUnauthorized, err.Error())
			return
		}

		caretakerID, err := jwt_parse.ParseCaretakerToken(raw, secret)
		if err != nil {
			logger.WarnLogger.Warnf("Rejected caretaker token from %s: %v", c.ClientIP(), err)
			utils.AbortWithError(c, http.StatusUnauthorized, utils.CodeUnauthorized, "Invalid token")
			return
		}

		tenantID, err := tenants.ResolveForCaretaker(c.Request.Context(), caretakerID)
		if err != nil {
			logger.ErrorLogger.Errorf("Failed to resolve tenant for caretaker %s: %v", caretakerID, err)
			utils.AbortWithError(c, http.StatusServiceUnavailable, utils.CodeUnavailable, "Tenant lookup unavailable")
			return
		}
		if tenantID == "" {
			utils.AbortWithError(c, http.StatusUnauthorized, utils.CodeUnauthorized, "Unknown caretaker")
			return
		}

		c.Set(utils.CaretakerIDKey, caretakerID.String())
		utils.BindTenant(c, tenantID)
		c.Next()
	}
}
