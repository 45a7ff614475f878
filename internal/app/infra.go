// Package app assembles the shared infrastructure used by the api and worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jwalitptl/medicure-api/internal/config"
	"github.com/jwalitptl/medicure-api/internal/repository"
	"github.com/jwalitptl/medicure-api/internal/repository/memory"
	"github.com/jwalitptl/medicure-api/internal/repository/postgres"
	"github.com/jwalitptl/medicure-api/pkg/lock"
	"github.com/jwalitptl/medicure-api/pkg/logger"
	"github.com/jwalitptl/medicure-api/pkg/messaging"
	"github.com/jwalitptl/medicure-api/pkg/messaging/redis"
	"github.com/jwalitptl/medicure-api/pkg/metrics"
	"github.com/jwalitptl/medicure-api/pkg/storage"
)

type Repositories struct {
	Users        repository.UserRepository
	Appointments repository.AppointmentRepository
	Transcripts  repository.TranscriptRepository
	Summaries    repository.SummaryRepository
}

// Infra holds the process-wide dependencies. Close releases them in reverse order.
type Infra struct {
	Repos    Repositories
	Pinger   repository.Pinger
	Broker   messaging.Broker
	Locker   lock.Locker
	Media    storage.MediaStore
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Distributed is true when the broker and locker are shared across processes.
	Distributed bool

	closers []func() error
}

func NewInfra(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Infra, error) {
	infra := &Infra{Registry: prometheus.NewRegistry()}
	infra.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	infra.Metrics = metrics.NewMetrics("medicure", infra.Registry)

	if err := infra.openDatabase(cfg.Database, log); err != nil {
		infra.Close()
		return nil, err
	}
	if err := infra.openMessaging(ctx, cfg.Redis, log); err != nil {
		infra.Close()
		return nil, err
	}
	if err := infra.openStorage(cfg.Storage); err != nil {
		infra.Close()
		return nil, err
	}
	return infra, nil
}

func (i *Infra) openDatabase(cfg config.DatabaseConfig, log *logger.Logger) error {
	if cfg.Driver == "memory" {
		log.Info("Using in-memory repositories, data will not survive a restart")
		i.Repos = Repositories{
			Users:        memory.NewUserRepository(),
			Appointments: memory.NewAppointmentRepository(),
			Transcripts:  memory.NewTranscriptRepository(),
			Summaries:    memory.NewSummaryRepository(),
		}
		return nil
	}

	db, err := postgres.NewDB(cfg)
	if err != nil {
		return err
	}
	i.closers = append(i.closers, db.Close)

	if cfg.AutoMigrate {
		if err := postgres.Migrate(db); err != nil {
			return err
		}
		log.Info("Database migrations applied")
	}

	i.Repos = postgresRepositories(db)
	i.Pinger = db
	return nil
}

func postgresRepositories(db *sqlx.DB) Repositories {
	return Repositories{
		Users:        postgres.NewUserRepository(postgres.NewBaseRepository(db)),
		Appointments: postgres.NewAppointmentRepository(db),
		Transcripts:  postgres.NewTranscriptRepository(db),
		Summaries:    postgres.NewSummaryRepository(db),
	}
}

func (i *Infra) openMessaging(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) error {
	if !cfg.Enabled() {
		broker := messaging.NewMemoryBroker(64)
		i.Broker = broker
		i.Locker = lock.NewLocal()
		i.closers = append(i.closers, broker.Close)
		return nil
	}

	client, err := redis.NewClient(ctx, redis.Config{
		URL:          cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	if err != nil {
		return err
	}
	i.useRedis(client, cfg, log)
	return nil
}

func (i *Infra) useRedis(client goredis.UniversalClient, cfg config.RedisConfig, log *logger.Logger) {
	broker := redis.NewRedisBroker(client, &log.ZL)
	i.Broker = broker
	i.Locker = lock.NewRedis(client, cfg.LockTTL, lock.WithPrefix("medicure:lock:"))
	i.Distributed = true
	i.closers = append(i.closers, client.Close, broker.Close)
}

func (i *Infra) openStorage(cfg config.StorageConfig) error {
	switch cfg.Driver {
	case "minio":
		store, err := storage.NewMinioStore(
			cfg.Minio.Endpoint,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.Bucket,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("failed to init minio store: %w", err)
		}
		i.Media = store
	default:
		store, err := storage.NewLocalStore(cfg.LocalDir)
		if err != nil {
			return fmt.Errorf("failed to init local store: %w", err)
		}
		i.Media = store
	}
	return nil
}

// Pruner exposes the media store's prune capability when it has one.
func (i *Infra) Pruner() (storage.Pruner, bool) {
	p, ok := i.Media.(storage.Pruner)
	return p, ok
}

func (i *Infra) Close() error {
	var first error
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil && first == nil {
			first = err
		}
	}
	i.closers = nil
	return first
}
