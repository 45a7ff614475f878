package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	authhandler "github.com/jwalitptl/medicure-api/internal/handler/auth"
	chathandler "github.com/jwalitptl/medicure-api/internal/handler/chat"
	doctorhandler "github.com/jwalitptl/medicure-api/internal/handler/doctor"
	fileshandler "github.com/jwalitptl/medicure-api/internal/handler/files"
	healthhandler "github.com/jwalitptl/medicure-api/internal/handler/health"
	patienthandler "github.com/jwalitptl/medicure-api/internal/handler/patient"
	promhandler "github.com/jwalitptl/medicure-api/internal/handler/prometheus"
	"github.com/jwalitptl/medicure-api/internal/middleware"
	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/pkg/metrics"
)

type Handlers struct {
	Auth    *authhandler.Handler
	Patient *patienthandler.Handler
	Chat    *chathandler.Handler
	Doctor  *doctorhandler.Handler
	Files   *fileshandler.Handler
	Health  *healthhandler.Handler
}

type RouterConfig struct {
	Mode       string
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
	SizeLimit  middleware.SizeLimitConfig
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	metrics  *metrics.Metrics
	config   RouterConfig
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, m *metrics.Metrics, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	middleware.RegisterValidation()

	engine := gin.New()

	// Add core middlewares
	engine.Use(
		middleware.RequestID(),
		middleware.LoggerWith(config.Logger),
		middleware.Metrics(m),
		middleware.Recovery(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}
	engine.Use(middleware.SizeLimit(config.SizeLimit))

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		metrics:  m,
		config:   config,
	}
	r.setup()
	return r
}

func (r *Router) setup() {
	if r.config.Gatherer != nil {
		promhandler.New(r.config.Gatherer).RegisterRoutes(r.engine)
	}

	api := r.engine.Group("/api")

	// Public routes
	r.handlers.Health.RegisterRoutes(api)
	r.handlers.Auth.RegisterRoutes(api)
	r.handlers.Files.RegisterRoutes(api)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.handlers.Auth.RegisterProtectedRoutes(protected)

	patientOnly := r.auth.RequireRole(model.RolePatient)
	r.handlers.Patient.RegisterRoutes(protected.Group("/patient", patientOnly))
	r.handlers.Chat.RegisterRoutes(protected, patientOnly)
	r.handlers.Doctor.RegisterRoutes(protected.Group("/doctor", r.auth.RequireRole(model.RoleDoctor)))
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
