package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/pkg/messaging"
)

var errGone = errors.New("gone")

type countingHandler struct {
	mu      sync.Mutex
	calls   map[uuid.UUID]int
	fail    map[uuid.UUID]error
	failN   int
	handled chan uuid.UUID
}

func newCountingHandler() *countingHandler {
	return &countingHandler{
		calls:   map[uuid.UUID]int{},
		fail:    map[uuid.UUID]error{},
		handled: make(chan uuid.UUID, 16),
	}
}

func (h *countingHandler) SummaryCreated(_ context.Context, evt *model.SummaryCreatedEvent) error {
	h.mu.Lock()
	h.calls[evt.SummaryID]++
	n := h.calls[evt.SummaryID]
	err := h.fail[evt.SummaryID]
	h.mu.Unlock()

	if err != nil && (errors.Is(err, errGone) || n <= h.failN) {
		h.handled <- evt.SummaryID
		return err
	}
	h.handled <- evt.SummaryID
	return nil
}

func (h *countingHandler) count(id uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[id]
}

func startWorker(t *testing.T, h *countingHandler) (*messaging.MemoryBroker, context.CancelFunc, chan error) {
	t.Helper()
	broker := messaging.NewMemoryBroker(8)
	w := NewNotificationWorker(broker, h, NotificationWorkerConfig{
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		HandleTimeout: time.Second,
	}, nil, errGone)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	// wait for the subscription before publishing
	require.Eventually(t, func() bool {
		return broker.SubscriberCount(messaging.ChannelSummaries) > 0
	}, time.Second, time.Millisecond)
	return broker, cancel, done
}

func waitHandled(t *testing.T, h *countingHandler, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.handled:
		case <-time.After(time.Second):
			t.Fatalf("handled %d of %d calls", i, n)
		}
	}
}

func TestNotificationWorkerRetriesTransientFailures(t *testing.T) {
	h := newCountingHandler()
	id := uuid.New()
	h.fail[id] = errors.New("smtp unavailable")
	h.failN = 2

	broker, cancel, done := startWorker(t, h)
	require.NoError(t, broker.Publish(context.Background(), messaging.ChannelSummaries, model.SummaryCreatedEvent{SummaryID: id}))
	waitHandled(t, h, 3)
	assert.Equal(t, 3, h.count(id))

	cancel()
	assert.NoError(t, <-done)
}

func TestNotificationWorkerSkipsPermanentFailures(t *testing.T) {
	h := newCountingHandler()
	gone, ok := uuid.New(), uuid.New()
	h.fail[gone] = errGone

	broker, cancel, done := startWorker(t, h)
	ctx := context.Background()
	require.NoError(t, broker.Publish(ctx, messaging.ChannelSummaries, []byte("not json")))
	require.NoError(t, broker.Publish(ctx, messaging.ChannelSummaries, model.SummaryCreatedEvent{SummaryID: gone}))
	require.NoError(t, broker.Publish(ctx, messaging.ChannelSummaries, model.SummaryCreatedEvent{SummaryID: ok}))
	waitHandled(t, h, 2)

	assert.Equal(t, 1, h.count(gone))
	assert.Equal(t, 1, h.count(ok))

	cancel()
	assert.NoError(t, <-done)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return errors.New("boom")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
