package sender

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/http2"

	"github.com/0xmhha/filewatchrest/internal/telemetry"
	"github.com/0xmhha/filewatchrest/pkg/circuitbreaker"
	"github.com/0xmhha/filewatchrest/pkg/clock"
	"github.com/0xmhha/filewatchrest/pkg/logger"
)

// Outcome classifies one attempt's result.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetryable
	outcomeTerminal
)

// Sender is the HTTP Resilience Sender.
type Sender struct {
	cfg     Config
	client  *http.Client
	clock   clock.Clock
	logger  logger.Logger
	circuit *circuitbreaker.Registry
}

// New creates a Sender. circuits may be nil to disable circuit-breaker
// gating entirely.
func New(cfg Config, circuits *circuitbreaker.Registry, log logger.Logger) *Sender {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if log == nil {
		log = logger.Default()
	}

	transport := cfg.Transport
	if transport == nil {
		t := &http.Transport{}
		if err := http2.ConfigureTransport(t); err != nil {
			log.Warn("failed to configure http2 transport, falling back to http/1.1", "error", err)
		}
		transport = t
	}

	return &Sender{
		cfg:     cfg,
		client:  &http.Client{Transport: transport},
		clock:   cfg.Clock,
		logger:  log,
		circuit: circuits,
	}
}

// Send attempts delivery of a request built by factory to endpoint,
// retrying retryable failures with exponential backoff and jitter. The
// circuit breaker registry is checked once before the first attempt, and the
// outcome of every attempt is recorded to it.
func (s *Sender) Send(ctx context.Context, endpoint string, factory RequestFactory) (*Result, error) {
	if s.circuit != nil && !s.circuit.Allow(endpoint) {
		return nil, fmt.Errorf("%s: %w", endpoint, circuitbreaker.ErrCircuitOpen)
	}

	tracer := otel.Tracer(telemetry.TracerName)

	var lastErr error
	attempts := s.cfg.Retries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := s.backoff(attempt - 1)
			s.logger.Debug("retrying send", "endpoint", endpoint, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-s.clock.After(delay):
			}
		}

		attemptCtx, span := tracer.Start(ctx, "sender.attempt")
		span.SetAttributes(
			attribute.String("endpoint", endpoint),
			attribute.Int("attempt", attempt),
		)

		result, oc, err := s.doAttempt(attemptCtx, factory)

		switch oc {
		case outcomeSuccess:
			span.SetStatus(codes.Ok, "")
			span.End()
			if s.circuit != nil {
				s.circuit.RecordSuccess(endpoint)
			}
			result.Attempts = attempt
			return result, nil

		case outcomeTerminal:
			span.SetStatus(codes.Error, err.Error())
			span.End()
			if s.circuit != nil {
				s.circuit.RecordFailure(endpoint)
			}
			return nil, fmt.Errorf("%w: %v", ErrNonRetryableSend, err)

		default: // outcomeRetryable
			span.SetStatus(codes.Error, err.Error())
			span.End()
			lastErr = err
			if s.circuit != nil {
				s.circuit.RecordFailure(endpoint)
			}
			s.logger.Warn("send attempt failed, will retry if attempts remain",
				"endpoint", endpoint, "attempt", attempt, "error", err)
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrRetryableSend, lastErr)
}

// backoff computes delay = RetryDelay * 2^(n-1) + jitter.
func (s *Sender) backoff(n int) time.Duration {
	base := s.cfg.RetryDelay
	multiplier := time.Duration(1 << uint(n-1)) // nolint:gosec // n bounded by Retries
	delay := base * multiplier
	return delay + s.clock.Jitter(base)
}

func (s *Sender) doAttempt(ctx context.Context, factory RequestFactory) (*Result, outcome, error) {
	req, err := factory(ctx)
	if err != nil {
		return nil, outcomeTerminal, fmt.Errorf("build request: %w", err)
	}

	if s.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.BearerToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, outcomeRetryable, err
	}
	defer drainAndClose(resp.Body)

	body, _ := readLimited(resp.Body, 64*1024)

	switch classify(resp.StatusCode) {
	case outcomeSuccess:
		return &Result{StatusCode: resp.StatusCode, Body: body}, outcomeSuccess, nil
	case outcomeRetryable:
		return nil, outcomeRetryable, fmt.Errorf("http %d", resp.StatusCode)
	default:
		return nil, outcomeTerminal, fmt.Errorf("http %d", resp.StatusCode)
	}
}

// classify buckets a response status code into success (2xx), retryable
// (5xx, 408, 429), or non-retryable (other 4xx).
func classify(statusCode int) outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return outcomeSuccess
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return outcomeRetryable
	case statusCode >= 500:
		return outcomeRetryable
	default:
		return outcomeTerminal
	}
}
