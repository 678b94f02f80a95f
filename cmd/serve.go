package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/joy095/hallbooking/config/db"
	"github.com/joy095/hallbooking/controllers/booking_controller"
	"github.com/joy095/hallbooking/controllers/notification_controller"
	"github.com/joy095/hallbooking/logger"
	middleware "github.com/joy095/hallbooking/middlewares"
	"github.com/joy095/hallbooking/middlewares/auth"
	"github.com/joy095/hallbooking/middlewares/cors"
	"github.com/joy095/hallbooking/routes"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if migrateOnStart {
			if err := db.Migrate(ctx, a.pool); err != nil {
				return err
			}
		}
		a.bookings.PrimeCommentColumns(ctx)

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           a.router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			logger.InfoLogger.Infof("Server listening on :%s", cfg.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			return fmt.Errorf("server failed to listen: %w", err)
		case <-ctx.Done():
		}

		logger.InfoLogger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		logger.InfoLogger.Info("Server exited gracefully")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply the schema before serving")
}

func (a *app) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(cors.CorsMiddleware(a.cfg.CorsOrigins))
	r.Use(middleware.TenantContext(a.tenants))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok from hallbooking"})
	})

	bc := booking_controller.NewBookingController(a.bookings, a.guard, a.tenants, a.runner)
	routes.RegisterBookingRoutes(r, bc, auth.CaretakerAuth([]byte(a.cfg.JWTSecret), a.tenants), a.redis, a.cfg.BurstRate)

	nc := notification_controller.NewNotificationController(a.dispatcher, a.tenants)
	routes.RegisterNotificationRoutes(r, nc, a.cfg.InternalAPIToken)

	return r
}
