package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medicure-api/internal/app"
	"github.com/jwalitptl/medicure-api/internal/config"
	"github.com/jwalitptl/medicure-api/internal/email"
	"github.com/jwalitptl/medicure-api/internal/repository"
	notificationService "github.com/jwalitptl/medicure-api/internal/service/notification"
	"github.com/jwalitptl/medicure-api/pkg/logger"
	"github.com/jwalitptl/medicure-api/pkg/worker"
)

func setupHealthCheck(port int, db repository.Pinger, logger *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Logger.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	appLogger := logger.NewLogger(&cfg.Log).WithComponent("worker")
	appLogger.SetGlobal()

	if !cfg.Redis.Enabled() {
		appLogger.Fatal(nil, "The standalone worker needs redis.url; without it the API consumes events in process")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	infra, err := app.NewInfra(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal(err, "Failed to initialize infrastructure")
	}
	defer infra.Close()

	notifier := notificationService.NewService(
		infra.Repos.Users,
		infra.Repos.Summaries,
		email.New(cfg.SMTP, appLogger.ZL),
		infra.Metrics,
		appLogger,
	)

	processor := worker.NewNotificationWorker(
		infra.Broker,
		notifier,
		worker.NotificationWorkerConfig{
			RetryAttempts: cfg.Worker.RetryAttempts,
			RetryDelay:    cfg.Worker.RetryDelay,
			HandleTimeout: cfg.Worker.HandleTimeout,
		},
		appLogger,
		notificationService.ErrPermanent,
	)

	// Setup health check endpoints
	health := setupHealthCheck(cfg.Worker.HealthPort, infra.Pinger, appLogger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("Shutting down...")
		cancel()
	}()

	runErr := processor.Start(ctx)

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = health.Shutdown(shutdownCtx)

	if runErr != nil {
		appLogger.Error(runErr, "Notification worker stopped")
		infra.Close()
		os.Exit(1)
	}
}
