package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/medicure-api/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
	"github.com/jwalitptl/medicure-api/pkg/metrics"
)

// Operation names used for breakers, metrics and error messages.
const (
	OpChat       = "chat completion"
	OpTranscribe = "transcription"
	OpSpeech     = "speech synthesis"
	OpVision     = "image analysis"
)

var errEmptyOutput = errors.New("model returned empty output")

type GuardConfig struct {
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Guarded wraps a Provider so that every call runs under a deadline and a
// per-operation circuit breaker. All failures, including empty output, come
// back as upstream AppErrors.
type Guarded struct {
	next     Provider
	timeout  time.Duration
	breakers map[string]*circuitbreaker.CircuitBreaker
	metrics  *metrics.Metrics
}

func NewGuarded(next Provider, cfg GuardConfig, m *metrics.Metrics) *Guarded {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	g := &Guarded{
		next:     next,
		timeout:  cfg.Timeout,
		breakers: make(map[string]*circuitbreaker.CircuitBreaker),
		metrics:  m,
	}
	for _, op := range []string{OpChat, OpTranscribe, OpSpeech, OpVision} {
		op := op
		g.breakers[op] = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        op,
			MaxFailures: cfg.BreakerFailures,
			Timeout:     cfg.BreakerTimeout,
			// caller cancellation says nothing about provider health
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(_ string, _, to string) {
				if m == nil {
					return
				}
				open := 0.0
				if to == "open" {
					open = 1
				}
				m.CapabilityBreakers.WithLabelValues(op).Set(open)
			},
		})
	}
	return g
}

func (g *Guarded) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var timer *prometheus.Timer
	if g.metrics != nil {
		timer = prometheus.NewTimer(g.metrics.CapabilityLatency.WithLabelValues(op))
	}

	err := g.breakers[op].Execute(func() error { return fn(ctx) })

	if g.metrics != nil {
		timer.ObserveDuration()
		status := "ok"
		if err != nil {
			status = "error"
		}
		g.metrics.CapabilityCalls.WithLabelValues(op, status).Inc()
	}

	if err != nil {
		return apperrors.NewUpstream(op, err)
	}
	return nil
}

func (g *Guarded) Complete(ctx context.Context, sessionKey string, messages []Message) (string, error) {
	var out string
	err := g.call(ctx, OpChat, func(ctx context.Context) error {
		var err error
		out, err = g.next.Complete(ctx, sessionKey, messages)
		if err == nil && strings.TrimSpace(out) == "" {
			err = errEmptyOutput
		}
		return err
	})
	return out, err
}

func (g *Guarded) Transcribe(ctx context.Context, audioPath string) (string, error) {
	var out string
	err := g.call(ctx, OpTranscribe, func(ctx context.Context) error {
		var err error
		out, err = g.next.Transcribe(ctx, audioPath)
		if err == nil && strings.TrimSpace(out) == "" {
			err = errEmptyOutput
		}
		return err
	})
	return strings.TrimSpace(out), err
}

func (g *Guarded) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var out []byte
	err := g.call(ctx, OpSpeech, func(ctx context.Context) error {
		var err error
		out, err = g.next.Synthesize(ctx, text)
		if err == nil && len(out) == 0 {
			err = errEmptyOutput
		}
		return err
	})
	return out, err
}

func (g *Guarded) Describe(ctx context.Context, sessionKey, directive string, image []byte, contentType string) (string, error) {
	var out string
	err := g.call(ctx, OpVision, func(ctx context.Context) error {
		var err error
		out, err = g.next.Describe(ctx, sessionKey, directive, image, contentType)
		if err == nil && strings.TrimSpace(out) == "" {
			err = errEmptyOutput
		}
		return err
	})
	return out, err
}

var _ Provider = (*Guarded)(nil)
