// Package planclient submits validated plan requests to the plan-generation
// endpoint, retrying transient failures with bounded backoff and classifying
// every unsuccessful outcome as a single *Failure.
package planclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/runcoach/runcoach/internal/plan"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// ErrNoEndpoint is returned by New when no endpoint URL is configured.
var ErrNoEndpoint = errors.New("plan endpoint is required")

// Config holds configuration for the plan client.
// Use DefaultConfig for the documented defaults.
type Config struct {
	// Endpoint is the URL of the plan-generation endpoint.
	Endpoint string

	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// Delay is the wait before the second attempt.
	// Default: 2 seconds
	Delay time.Duration

	// Backoff doubles the wait after every failed attempt when true;
	// when false every wait equals Delay.
	Backoff bool

	// MaxDelay caps a single wait. Zero means uncapped.
	MaxDelay time.Duration

	// AttemptTimeout bounds each individual attempt.
	// Default: 30 seconds
	AttemptTimeout time.Duration

	// HTTPClient performs the requests. Default: a client without its own timeout.
	HTTPClient *http.Client

	// Now is the clock used for local validation. Default: time.Now
	Now func() time.Time

	// NewTimer creates the timer used for waits between attempts.
	// Default: a real timer.
	NewTimer func() backoff.Timer

	Logger zerolog.Logger
}

// DefaultConfig returns the default configuration for endpoint.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:       endpoint,
		MaxAttempts:    3,
		Delay:          2 * time.Second,
		Backoff:        true,
		AttemptTimeout: 30 * time.Second,
	}
}

// Client submits plan requests.
type Client struct {
	cfg        Config
	httpClient *http.Client
	tracer     trace.Tracer
	metrics    *metrics
}

// New creates a plan client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 2 * time.Second
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	m, err := newMetrics()
	if err != nil {
		return nil, fmt.Errorf("creating plan client metrics: %w", err)
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		tracer:     otel.Tracer(instrumentationName),
		metrics:    m,
	}, nil
}

// Submit sends req to the plan endpoint and returns the generated plan.
//
// An invalid request fails with KindValidation before any network call.
// Failures with status 400, 401, 403 or 404 and unreadable plans are returned
// without retrying. Other failures are retried until MaxAttempts is reached,
// after which a KindRetryExhausted failure wraps the last one. onRetry, if
// non-nil, is called with the failed attempt number before each wait.
//
// Cancelling ctx stops the sequence and Submit returns ctx.Err().
func (c *Client) Submit(ctx context.Context, req *plan.PlanRequest, onRetry func(attempt int, err error)) (*plan.TrainingPlan, error) {
	if req == nil {
		return nil, &Failure{Kind: KindValidation, Message: "request is required", Err: ErrNilRequest}
	}

	ctx, span := c.tracer.Start(ctx, "planclient.Submit",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("plan.distance", string(req.MarathonInfo.Distance)),
			attribute.Int("plan.history_records", len(req.RunningHistory)),
		),
	)
	defer span.End()

	logger := c.cfg.Logger.With().Str("endpoint", c.cfg.Endpoint).Logger()

	if err := plan.ValidateRequest(req, c.cfg.Now()); err != nil {
		f := &Failure{Kind: KindValidation, Message: "request failed validation", Err: err}
		c.finish(ctx, span, f, 0)
		return nil, f
	}

	body, err := json.Marshal(req)
	if err != nil {
		f := &Failure{Kind: KindValidation, Message: "request could not be encoded", Err: err}
		c.finish(ctx, span, f, 0)
		return nil, f
	}

	var (
		attempt int
		result  *plan.TrainingPlan
	)

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		attempt++
		p, f := c.attempt(ctx, body)
		if f == nil {
			result = p
			return nil
		}

		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		logger.Debug().
			Int("attempt", attempt).
			Stringer("kind", f.Kind).
			Int("status", f.Status).
			Msg("plan request attempt failed")

		switch {
		case f.Kind == KindParse:
			return backoff.Permanent(f)
		case attempt >= c.cfg.MaxAttempts:
			return backoff.Permanent(&Failure{
				Kind:     KindRetryExhausted,
				Status:   f.Status,
				Message:  f.Message,
				Attempts: attempt,
				Last:     f,
			})
		case !f.Retryable():
			return backoff.Permanent(f)
		}
		return f
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("retrying plan request")
		span.AddEvent("retry", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("wait", wait.String()),
		))
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}

	var timer backoff.Timer
	if c.cfg.NewTimer != nil {
		timer = c.cfg.NewTimer()
	}

	err = backoff.RetryNotifyWithTimer(operation, c.policy(ctx), notify, timer)
	if err != nil {
		c.finish(ctx, span, err, attempt)
		if f, ok := AsFailure(err); ok {
			logger.Warn().Err(err).Int("attempts", attempt).Stringer("kind", f.Kind).Msg("plan request failed")
		}
		return nil, err
	}

	c.finish(ctx, span, nil, attempt)
	logger.Info().Int("attempts", attempt).Int("weeks", len(result.Weeks)).Msg("training plan received")
	return result, nil
}

// policy returns the wait schedule between attempts.
func (c *Client) policy(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if c.cfg.Backoff {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = c.cfg.Delay
		exp.Multiplier = 2
		exp.RandomizationFactor = 0
		exp.MaxElapsedTime = 0
		exp.MaxInterval = time.Duration(math.MaxInt64)
		if c.cfg.MaxDelay > 0 {
			exp.MaxInterval = c.cfg.MaxDelay
		}
		b = exp
	} else {
		b = backoff.NewConstantBackOff(c.cfg.Delay)
	}
	retries := uint64(c.cfg.MaxAttempts - 1)
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

// attempt performs one bounded request. The attempt context is always
// released before returning.
func (c *Client) attempt(parent context.Context, body []byte) (*plan.TrainingPlan, *Failure) {
	ctx, cancel := context.WithTimeout(parent, c.cfg.AttemptTimeout)
	defer cancel()

	start := time.Now()
	p, f := c.do(ctx, body)
	c.metrics.recordAttempt(parent, time.Since(start), f)
	return p, f
}

func (c *Client) do(ctx context.Context, body []byte) (*plan.TrainingPlan, *Failure) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Failure{Kind: KindNetwork, Message: err.Error(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportFailure(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportFailure(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusFailure(resp.StatusCode, data)
	}

	p, err := decodePlan(data)
	if err != nil {
		return nil, &Failure{Kind: KindParse, Status: resp.StatusCode, Message: err.Error(), Err: err}
	}
	return p, nil
}

// successBody is the envelope of a 2xx response.
type successBody struct {
	TrainingPlan json.RawMessage `json:"trainingPlan"`
}

func decodePlan(data []byte) (*plan.TrainingPlan, error) {
	var env successBody
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", plan.ErrMalformedPlan, err)
	}
	if len(env.TrainingPlan) == 0 {
		return nil, fmt.Errorf("%w: missing trainingPlan", plan.ErrMalformedPlan)
	}
	return plan.ParseTrainingPlan(env.TrainingPlan)
}

func (c *Client) finish(ctx context.Context, span trace.Span, err error, attempts int) {
	outcome := "success"
	if err != nil {
		outcome = "canceled"
		if f, ok := AsFailure(err); ok {
			outcome = f.Kind.String()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(
		attribute.Int("plan.attempts", attempts),
		attribute.String("plan.outcome", outcome),
	)
	c.metrics.recordSubmit(context.WithoutCancel(ctx), outcome, attempts)
}
