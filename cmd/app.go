package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/joy095/hallbooking/badwords"
	"github.com/joy095/hallbooking/config"
	"github.com/joy095/hallbooking/config/db"
	redisclient "github.com/joy095/hallbooking/config/redis"
	"github.com/joy095/hallbooking/controllers/booking_controller"
	"github.com/joy095/hallbooking/controllers/notification_controller"
	"github.com/joy095/hallbooking/controllers/throttle_controller"
	"github.com/joy095/hallbooking/logger"
	"github.com/joy095/hallbooking/models/booking_models"
	"github.com/joy095/hallbooking/models/facility_models"
	"github.com/joy095/hallbooking/models/notification_models"
	"github.com/joy095/hallbooking/models/tenant_models"
	"github.com/joy095/hallbooking/models/throttle_models"
	"github.com/joy095/hallbooking/tenant"
	"github.com/joy095/hallbooking/utils/mail"
)

const tenantCacheTTL = 24 * time.Hour

// app holds the wired services shared by the commands.
type app struct {
	cfg        config.App
	pool       *pgxpool.Pool
	runner     *db.Runner
	redis      *redis.Client
	tenants    *tenant.Resolver
	bookings   *booking_controller.Service
	guard      *throttle_controller.Guard
	dispatcher *notification_controller.Dispatcher
	transport  mail.Transport
}

func newApp(ctx context.Context, cfg config.App) (*app, error) {
	var words *badwords.Filter
	if cfg.BadWordsFile != "" {
		var err error
		if words, err = badwords.LoadFile(cfg.BadWordsFile); err != nil {
			return nil, err
		}
	}
	planner, err := mail.NewPlanner(cfg.FromEmail, time.Local)
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	rdb, err := redisclient.GetRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, err
	}

	transport, err := mail.NewTransport(cfg)
	if err != nil {
		redisclient.CloseRedis()
		db.Close()
		return nil, fmt.Errorf("mail transport: %w", err)
	}

	runner := db.NewRunner(pool)
	bookingRepo := booking_models.NewRepository(pool)
	facilityRepo := facility_models.NewRepository(pool)
	eventRepo := notification_models.NewRepository(pool)

	queue := notification_controller.NewQueue(eventRepo, runner, cfg.DispatchMaxAttempts)
	svc := booking_controller.NewService(bookingRepo, facilityRepo, queue, runner)
	if words != nil {
		svc.WithTitleScreen(words)
	}

	return &app{
		cfg:      cfg,
		pool:     pool,
		runner:   runner,
		redis:    rdb,
		tenants:  tenant.NewResolver(tenant_models.NewOwnership(pool), tenant.NewRedisCache(rdb, tenantCacheTTL), cfg.DefaultTenantID),
		bookings: svc,
		guard: throttle_controller.NewGuard(throttle_models.NewRepository(pool), cfg.ThrottleWindow,
			cfg.ThrottleLogRejected),
		dispatcher: notification_controller.NewDispatcher(eventRepo, bookingRepo, facilityRepo,
			tenant_models.NewRepository(pool), planner, mail.NewAdapter(transport), cfg.DispatchLease),
		transport: transport,
	}, nil
}

func (a *app) Close() {
	if err := a.transport.Close(); err != nil {
		logger.WarnLogger.Warnf("Failed to close mail transport: %v", err)
	}
	redisclient.CloseRedis()
	db.Close()
}
