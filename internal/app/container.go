package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/api"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/auth"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/booking"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/config"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/lab"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/notification"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/logger"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/metrics"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/middleware"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/user"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	StoreDriver  string
	// DBPool is required when StoreDriver is postgres.
	DBPool     *pgxpool.Pool
	JWTSecret  string
	JWTTTL     time.Duration
	BcryptCost int
	Location   *time.Location
	Logger     *logger.Logger

	// LabSeed is loaded into the lab registry at startup. Existing ids are kept.
	LabSeed     []*lab.Lab
	LabCacheTTL time.Duration

	NotifyWorkers   int
	NotifyQueueSize int
	// ExtraSinks receive every notification next to the inbox, e.g. Kafka.
	ExtraSinks []notification.Sink

	RateLimitPerSec float64
	RateLimitBurst  int
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager
	Registry   *prometheus.Registry
	Dispatcher *notification.Dispatcher

	UserService         user.Service
	LabService          lab.Service
	BookingService      booking.Service
	NotificationService notification.Service
}

type repositories struct {
	users         user.Repository
	labs          lab.Repository
	bookings      booking.Repository
	notifications notification.Repository
}

func newRepositories(cfg Config) (repositories, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if cfg.DBPool == nil {
			return repositories{}, fmt.Errorf("postgres store requires a database pool")
		}
		var labs lab.Repository = lab.NewPgxRepository(cfg.DBPool)
		if cfg.LabCacheTTL > 0 {
			labs = lab.NewCachedRepository(labs, cfg.LabCacheTTL)
		}
		return repositories{
			users:         user.NewPgxRepository(cfg.DBPool),
			labs:          labs,
			bookings:      booking.NewPgxRepository(cfg.DBPool),
			notifications: notification.NewPgxRepository(cfg.DBPool),
		}, nil
	case config.StoreDriverMemory, "":
		return repositories{
			users:         user.NewMemoryRepository(),
			labs:          lab.NewMemoryRepository(),
			bookings:      booking.NewMemoryRepository(),
			notifications: notification.NewMemoryRepository(),
		}, nil
	default:
		return repositories{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewContainer initializes all modules and returns the container.
// The notification dispatcher is created but not started.
func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	// Init Components
	passwordHasher := auth.NewBcryptPasswordHasherWithCost(cfg.BcryptCost)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	repos, err := newRepositories(cfg)
	if err != nil {
		return nil, err
	}

	// Lab Module
	if len(cfg.LabSeed) > 0 {
		n, err := lab.Seed(ctx, repos.labs, cfg.LabSeed)
		if err != nil {
			return nil, fmt.Errorf("seed labs: %w", err)
		}
		log.Info("lab registry seeded", "created", n, "entries", len(cfg.LabSeed))
	}
	labService := lab.NewService(repos.labs)

	// User Module
	userService := user.NewService(repos.users, passwordHasher)

	// Notification Module
	sinks := append(notification.MultiSink{notification.NewInboxSink(repos.notifications)}, cfg.ExtraSinks...)
	dispatcher := notification.NewDispatcher(sinks, cfg.NotifyWorkers, cfg.NotifyQueueSize, log, recorder)
	notificationService := notification.NewService(repos.notifications)

	// Booking Module
	bookingService := booking.NewService(repos.bookings, repos.labs, userService, dispatcher, booking.Config{
		Location: cfg.Location,
		Logger:   log,
		Metrics:  recorder,
	})

	var limiter *middleware.IPRateLimiter
	if cfg.RateLimitPerSec > 0 {
		limiter = middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	}

	var ready func(context.Context) error
	if cfg.DBPool != nil {
		ready = cfg.DBPool.Ping
	}

	// Router
	router := api.NewRouter(api.Config{
		IsProduction:        cfg.IsProduction,
		ProdOrigins:         cfg.ProdOrigins,
		Logger:              log,
		Gatherer:            registry,
		RateLimiter:         limiter,
		Ready:               ready,
		UserService:         userService,
		LabService:          labService,
		BookingService:      bookingService,
		NotificationService: notificationService,
		JWTManager:          jwtManager,
	})

	return &Container{
		Router:              router,
		JWTManager:          jwtManager,
		Registry:            registry,
		Dispatcher:          dispatcher,
		UserService:         userService,
		LabService:          labService,
		BookingService:      bookingService,
		NotificationService: notificationService,
	}, nil
}
