package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/pkg/logger"
	"github.com/jwalitptl/medicure-api/pkg/messaging"
)

// SummaryHandler reacts to a newly created summary.
type SummaryHandler interface {
	SummaryCreated(ctx context.Context, evt *model.SummaryCreatedEvent) error
}

type NotificationWorkerConfig struct {
	RetryAttempts int
	RetryDelay    time.Duration
	// HandleTimeout bounds one delivery including retries.
	HandleTimeout time.Duration
}

func DefaultNotificationWorkerConfig() NotificationWorkerConfig {
	return NotificationWorkerConfig{
		RetryAttempts: 3,
		RetryDelay:    5 * time.Second,
		HandleTimeout: 2 * time.Minute,
	}
}

// NotificationWorker consumes summary events from the broker.
type NotificationWorker struct {
	broker  messaging.Broker
	handler SummaryHandler
	config  NotificationWorkerConfig
	logger  *logger.Logger
	// permanent reports errors that must not be retried.
	permanent func(error) bool
}

func NewNotificationWorker(
	broker messaging.Broker,
	handler SummaryHandler,
	config NotificationWorkerConfig,
	log *logger.Logger,
	permanent error,
) *NotificationWorker {
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &NotificationWorker{
		broker:  broker,
		handler: handler,
		config:  config,
		logger:  log.WithComponent("notification_worker"),
		permanent: func(err error) bool {
			return permanent != nil && errors.Is(err, permanent)
		},
	}
}

// Start blocks until ctx is done or the subscription ends. Events are
// handled one at a time in arrival order.
func (w *NotificationWorker) Start(ctx context.Context) error {
	msgs, err := w.broker.Subscribe(ctx, messaging.ChannelSummaries)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", messaging.ChannelSummaries, err)
	}

	w.logger.Info("Starting notification worker", "channel", messaging.ChannelSummaries)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down notification worker")
			return nil
		case payload, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("subscription to %s closed", messaging.ChannelSummaries)
			}
			w.process(ctx, payload)
		}
	}
}

func (w *NotificationWorker) process(ctx context.Context, payload []byte) {
	var evt model.SummaryCreatedEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		w.logger.Error(err, "Dropping malformed summary event")
		return
	}

	if w.config.HandleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.HandleTimeout)
		defer cancel()
	}

	err := retry(ctx, w.config.RetryAttempts, w.config.RetryDelay, func() error {
		err := w.handler.SummaryCreated(ctx, &evt)
		if err != nil && w.permanent(err) {
			return stop{err}
		}
		return err
	})
	if err != nil {
		w.logger.Error(err, "Failed to handle summary event",
			"summary_id", evt.SummaryID.String(),
			"appointment_id", evt.AppointmentID.String())
	}
}

// stop ends retrying early.
type stop struct{ err error }

func (s stop) Error() string { return s.err.Error() }
func (s stop) Unwrap() error { return s.err }

// Helper retry function
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		var s stop
		if errors.As(err, &s) {
			return s.err
		}
		if i < attempts-1 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return err
			case <-t.C:
			}
		}
	}
	return err
}
