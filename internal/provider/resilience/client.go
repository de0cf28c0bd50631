package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// errorBodyLimit bounds how much of an upstream error body is kept.
const errorBodyLimit = 4 << 10

var (
	// ErrCircuitOpen is returned without contacting the provider while its breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrBodyNotReplayable is returned when a request with a body cannot be retried.
	ErrBodyNotReplayable = errors.New("request body cannot be replayed")
)

// StatusError is an upstream response that counts as a failed call:
// a 5xx or a 429.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// RateLimited reports whether the provider asked us to slow down.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// ClientConfig holds configuration for a resilient provider client.
type ClientConfig struct {
	// Name identifies the provider.
	Name string

	// Timeout bounds every individual attempt.
	// Default: 20 seconds
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Zero disables retries.
	MaxRetries uint64

	// InitialInterval is the first retry wait.
	// Default: 250ms
	InitialInterval time.Duration

	// MaxInterval caps a single retry wait.
	// Default: 4 seconds
	MaxInterval time.Duration

	// Breaker configures the circuit breaker. If nil, DefaultBreakerConfig is used.
	Breaker *BreakerConfig

	// Registry receives health updates when set. The client registers itself.
	Registry *Registry

	// Transport is the underlying round tripper. Default: http.DefaultTransport
	Transport http.RoundTripper

	Logger zerolog.Logger
}

// DefaultClientConfig returns the configuration used for AI providers.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         20 * time.Second,
		MaxRetries:      2,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     4 * time.Second,
		Breaker:         &breaker,
	}
}

// Client executes provider requests through a circuit breaker with retries.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	registry   *Registry
	cfg        ClientConfig
	logger     zerolog.Logger
}

// NewClient creates a resilient provider client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 250 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 4 * time.Second
	}

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
		breakerCfg.Name = cfg.Name
	}

	logger := cfg.Logger.With().Str("provider", cfg.Name).Logger()

	c := &Client{
		name: cfg.Name,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		breaker:  newBreaker[*http.Response](breakerCfg, cfg.Logger), //nolint:bodyclose // type param, not response
		registry: cfg.Registry,
		cfg:      cfg,
		logger:   logger,
	}
	if c.registry != nil {
		c.registry.Register(c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Do executes req, retrying network failures, 5xx and 429 responses with
// exponential backoff. Other responses are returned to the caller as-is.
// Requests with a body must be replayable (http.NewRequest sets GetBody for
// in-memory readers).
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)

	var resp *http.Response
	operation := func() error {
		attemptReq, err := replay(ctx, req)
		if err != nil {
			return backoff.Permanent(err)
		}

		r, err := c.breaker.Execute(func() (*http.Response, error) {
			r, err := c.httpClient.Do(attemptReq)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				defer r.Body.Close()
				body, _ := io.ReadAll(io.LimitReader(r.Body, errorBodyLimit)) //nolint:errcheck // best effort
				return nil, &StatusError{StatusCode: r.StatusCode, Body: body}
			}
			return r, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%s: %w", c.name, ErrCircuitOpen))
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug().Err(err).Dur("wait", wait).Msg("retrying provider request")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if c.registry != nil {
			c.registry.RecordFailure(c.name, err)
		}
		return nil, err
	}

	if c.registry != nil {
		c.registry.RecordSuccess(c.name)
	}
	return resp, nil
}

// replay returns a copy of req with a fresh body for another attempt.
func replay(ctx context.Context, req *http.Request) (*http.Request, error) {
	out := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}
	if req.GetBody == nil {
		return nil, ErrBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("replay request body: %w", err)
	}
	out.Body = body
	return out, nil
}

// State returns the current circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the current circuit breaker counts.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}
