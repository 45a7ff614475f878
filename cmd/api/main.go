package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/medicure-api/internal/app"
	"github.com/jwalitptl/medicure-api/internal/config"
	"github.com/jwalitptl/medicure-api/internal/email"
	authhandler "github.com/jwalitptl/medicure-api/internal/handler/auth"
	chathandler "github.com/jwalitptl/medicure-api/internal/handler/chat"
	doctorhandler "github.com/jwalitptl/medicure-api/internal/handler/doctor"
	fileshandler "github.com/jwalitptl/medicure-api/internal/handler/files"
	healthhandler "github.com/jwalitptl/medicure-api/internal/handler/health"
	patienthandler "github.com/jwalitptl/medicure-api/internal/handler/patient"
	"github.com/jwalitptl/medicure-api/internal/middleware"
	"github.com/jwalitptl/medicure-api/internal/router"
	appointmentService "github.com/jwalitptl/medicure-api/internal/service/appointment"
	authService "github.com/jwalitptl/medicure-api/internal/service/auth"
	consultationService "github.com/jwalitptl/medicure-api/internal/service/consultation"
	doctorService "github.com/jwalitptl/medicure-api/internal/service/doctor"
	notificationService "github.com/jwalitptl/medicure-api/internal/service/notification"
	reportService "github.com/jwalitptl/medicure-api/internal/service/report"
	mediaworker "github.com/jwalitptl/medicure-api/internal/worker"
	"github.com/jwalitptl/medicure-api/pkg/ai"
	"github.com/jwalitptl/medicure-api/pkg/auth"
	"github.com/jwalitptl/medicure-api/pkg/logger"
	"github.com/jwalitptl/medicure-api/pkg/security"
	"github.com/jwalitptl/medicure-api/pkg/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&cfg.Log)
	appLogger.SetGlobal()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := app.NewInfra(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal(err, "failed to initialize infrastructure")
	}
	defer infra.Close()

	repos := infra.Repos

	model := ai.NewGuarded(
		ai.NewOpenAI(ai.OpenAIConfig{
			APIKey:          cfg.AI.APIKey,
			BaseURL:         cfg.AI.BaseURL,
			ChatModel:       cfg.AI.ChatModel,
			VisionModel:     cfg.AI.VisionModel,
			SpeechModel:     cfg.AI.SpeechModel,
			SpeechVoice:     cfg.AI.SpeechVoice,
			TranscribeModel: cfg.AI.TranscribeModel,
			Temperature:     cfg.AI.Temperature,
		}),
		ai.GuardConfig{
			Timeout:         cfg.AI.Timeout,
			BreakerFailures: cfg.AI.BreakerFailures,
			BreakerTimeout:  cfg.AI.BreakerTimeout,
		},
		infra.Metrics,
	)

	// Initialize services
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	authSvc := authService.NewService(repos.Users, jwtSvc, security.NewBcryptHasher(cfg.JWT.BcryptCost))
	appointmentSvc := appointmentService.NewService(repos.Appointments, repos.Users, infra.Locker)
	consultationSvc := consultationService.NewService(
		consultationService.Dependencies{
			Appointments: repos.Appointments,
			Transcripts:  repos.Transcripts,
			Summaries:    repos.Summaries,
			Users:        repos.Users,
			Model:        model,
			Media:        infra.Media,
			Locker:       infra.Locker,
			Broker:       infra.Broker,
			Metrics:      infra.Metrics,
			Logger:       appLogger,
		},
		consultationService.Config{
			TempDir:       cfg.Storage.TempDir,
			PublicBaseURL: cfg.Server.PublicBaseURL,
		},
	)
	dashboardSvc := doctorService.NewService(
		repos.Appointments,
		repos.Summaries,
		repos.Users,
		doctorService.DefaultConfig(),
		appLogger,
	)
	reportSvc := reportService.NewService(consultationSvc)

	// Initialize handlers
	handlers := router.Handlers{
		Auth:    authhandler.NewHandler(authSvc),
		Patient: patienthandler.NewHandler(appointmentSvc),
		Chat:    chathandler.NewHandler(consultationSvc, cfg.Server.MaxUploadBytes),
		Doctor:  doctorhandler.NewHandler(dashboardSvc, consultationSvc, reportSvc),
		Files:   fileshandler.NewHandler(infra.Media),
		Health:  healthhandler.NewHandler(infra.Pinger),
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins

	sizeLimit := middleware.DefaultSizeLimitConfig()
	sizeLimit.MaxBodySize = cfg.Server.MaxBodyBytes
	sizeLimit.MaxUploadSize = cfg.Server.MaxUploadBytes

	routerConfig := router.RouterConfig{
		Mode:       cfg.Server.Mode,
		CORSConfig: corsConfig,
		SizeLimit:  sizeLimit,
		Gatherer:   infra.Registry,
		Logger:     appLogger.ZL,
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerConfig.RateBurst = cfg.RateLimit.Burst
	}

	r := router.NewRouter(middleware.NewAuthMiddleware(authSvc), handlers, infra.Metrics, routerConfig)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if pruner, ok := infra.Pruner(); ok {
		cleanup := mediaworker.NewMediaCleanupWorker(
			pruner,
			cfg.Worker.MediaRetention,
			cfg.Worker.MediaCleanupInterval,
			appLogger,
		)
		g.Go(func() error {
			cleanup.Start(gctx)
			return nil
		})
	}

	// The memory broker only reaches subscribers in this process.
	if cfg.Worker.InProcess || !infra.Distributed {
		notifier := worker.NewNotificationWorker(
			infra.Broker,
			notificationService.NewService(
				repos.Users,
				repos.Summaries,
				email.New(cfg.SMTP, appLogger.ZL),
				infra.Metrics,
				appLogger,
			),
			worker.NotificationWorkerConfig{
				RetryAttempts: cfg.Worker.RetryAttempts,
				RetryDelay:    cfg.Worker.RetryDelay,
				HandleTimeout: cfg.Worker.HandleTimeout,
			},
			appLogger,
			notificationService.ErrPermanent,
		)
		g.Go(func() error {
			return notifier.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		appLogger.Error(err, "server stopped with error")
		infra.Close()
		os.Exit(1)
	}

	appLogger.Info("Server exited properly")
}
