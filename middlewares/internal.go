package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/utils"
)

const InternalTokenHeader = "X-Internal-Token"

// InternalOnly guards operator and cron endpoints with a shared token.
func InternalOnly(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(InternalTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			logger.WarnLogger.Warnf("Rejected internal call to %s from %s", c.FullPath(), c.ClientIP())
			utils.AbortWithError(c, http.StatusUnauthorized, utils.CodeUnauthorized, "invalid internal token")
			return
		}
		c.Next()
	}
}
