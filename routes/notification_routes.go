package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/joy095/hallbooking/controllers/notification_controller"
	middleware "github.com/joy095/hallbooking/middlewares"
)

// RegisterNotificationRoutes registers the operator endpoints that drain the
// notification queue. They are meant for cron jobs and require the internal
// token.
func RegisterNotificationRoutes(router *gin.Engine, nc *notification_controller.NotificationController, internalToken string) {
	internal := router.Group("/internal/notifications")
	internal.Use(middleware.InternalOnly(internalToken))
	{
		internal.POST("/dispatch", nc.Dispatch)
		internal.POST("/deliver", nc.Deliver)
	}
}
