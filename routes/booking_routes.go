package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/joy095/hallbooking/controllers/booking_controller"
	middleware "github.com/joy095/hallbooking/middlewares"
)

// RegisterBookingRoutes registers the public and caretaker booking routes.
// burstRate fronts the anonymous submission endpoint, e.g. "20-1m".
func RegisterBookingRoutes(router *gin.Engine, bc *booking_controller.BookingController, caretakerAuth gin.HandlerFunc,
	rdb *redis.Client, burstRate string) {

	public := router.Group("/public/bookings")
	{
		public.POST("", middleware.NewRateLimiter(rdb, burstRate, "submit-booking"), bc.SubmitBooking)
		public.POST("/cancel", middleware.NewRateLimiter(rdb, "30-1m", "cancel-booking"), bc.CancelBooking)
	}

	caretaker := router.Group("/caretaker")
	caretaker.Use(caretakerAuth)
	{
		caretaker.PATCH("/bookings/:booking_id/decision", bc.DecideBooking)
		caretaker.POST("/facilities/:facility_id/blocks",
			middleware.NewRateLimiter(rdb, "10-1m", "block-dates"), bc.BlockDates)
	}
}
