package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/auth"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/booking"
	bookingHttp "github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/booking/http"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/lab"
	labHttp "github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/lab/http"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/notification"
	notificationHttp "github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/notification/http"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/logger"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/middleware"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/user"
	userHttp "github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/user/http"
)

// Config holds the dependencies needed to build the router.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	Logger       *logger.Logger
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// RateLimiter throttles /v1 per client IP. Nil disables throttling.
	RateLimiter *middleware.IPRateLimiter
	// Ready reports whether backing stores are reachable.
	Ready func(ctx context.Context) error

	UserService         user.Service
	LabService          lab.Service
	BookingService      booking.Service
	NotificationService notification.Service
	JWTManager          *auth.JWTManager
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	r := gin.New()

	// Global Middleware:
	// - Logger: Logs request information (structured in production).
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	if cfg.IsProduction && cfg.Logger != nil {
		r.Use(RequestLogger(cfg.Logger.Named("http")))
	} else {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	if cfg.IsProduction {
		corsConfig.AllowOrigins = splitOrigins(cfg.ProdOrigins)
	} else {
		corsConfig.AllowOrigins = []string{
			"http://localhost:3000", // Frontend dev server
			"http://localhost:8081", // Swagger
		}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	if len(corsConfig.AllowOrigins) > 0 {
		r.Use(cors.New(corsConfig))
	}

	r.GET("/healthz", healthHandler(cfg.Ready))
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	userHandler := userHttp.NewUserHandler(cfg.UserService, cfg.JWTManager)
	labHandler := labHttp.NewHandler(cfg.LabService, cfg.UserService)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService)
	notificationHandler := notificationHttp.NewHandler(cfg.NotificationService, cfg.UserService)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	if cfg.RateLimiter != nil {
		v1.Use(middleware.RateLimit(cfg.RateLimiter))
	}
	{
		userHttp.RegisterRoutes(v1, userHandler, authMiddleware)
		labHttp.RegisterRoutes(v1, labHandler, authMiddleware)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware)
		notificationHttp.RegisterRoutes(v1, notificationHandler, authMiddleware)
	}

	return r
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func healthHandler(ready func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
