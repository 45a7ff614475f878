package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/medicure-api/pkg/logger"
	"github.com/jwalitptl/medicure-api/pkg/storage"
)

// ReplyAudioPrefix names synthesized spoken replies. Clients fetch them once
// right after a voice turn, so they are safe to expire.
const ReplyAudioPrefix = "reply_"

type MediaCleanupWorker struct {
	store           storage.Pruner
	retention       time.Duration
	cleanupInterval time.Duration
	logger          *logger.Logger
	now             func() time.Time
}

func NewMediaCleanupWorker(store storage.Pruner, retention, cleanupInterval time.Duration, log *logger.Logger) *MediaCleanupWorker {
	if log == nil {
		log = logger.Nop()
	}
	return &MediaCleanupWorker{
		store:           store,
		retention:       retention,
		cleanupInterval: cleanupInterval,
		logger:          log.WithComponent("media_cleanup"),
		now:             time.Now,
	}
}

func (w *MediaCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				w.logger.Error(err, "media cleanup failed")
			}
		}
	}
}

// Cleanup removes reply audio older than the retention window.
func (w *MediaCleanupWorker) Cleanup(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.retention)

	n, err := w.store.Prune(ctx, ReplyAudioPrefix, cutoff)
	if err != nil {
		return n, fmt.Errorf("failed to prune reply audio: %w", err)
	}

	if n > 0 {
		w.logger.Info("pruned reply audio", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return n, nil
}
