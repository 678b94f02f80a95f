package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/utils"
)

// RequestLogger writes one structured line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
			"tenant":     c.GetString(utils.TenantIDKey),
		}
		entry := logger.InfoLogger.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			logger.ErrorLogger.WithFields(fields).Error("request failed")
		case c.Writer.Status() >= 400:
			logger.WarnLogger.WithFields(fields).Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	}
}
