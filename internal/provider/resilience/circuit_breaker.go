// Package resilience wraps calls to upstream AI providers with a circuit
// breaker, per-request timeouts and bounded retries, and tracks provider
// health for the ops endpoints.
package resilience

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig holds configuration for a provider circuit breaker.
type BreakerConfig struct {
	// Name identifies the breaker in logs and health reports.
	Name string

	// HalfOpenRequests is the number of trial requests allowed while half-open.
	// Default: 1
	HalfOpenRequests uint32

	// Interval clears the failure counts periodically while closed.
	// Default: 0 (never)
	Interval time.Duration

	// OpenTimeout is how long the breaker stays open before probing again.
	// Default: 30 seconds
	OpenTimeout time.Duration

	// ReadyToTrip decides when to open the breaker.
	// Default: TripOnFailureRatio(5, 0.5)
	ReadyToTrip func(counts gobreaker.Counts) bool
}

// DefaultBreakerConfig returns the breaker configuration used for AI providers.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		HalfOpenRequests: 1,
		OpenTimeout:      30 * time.Second,
		ReadyToTrip:      TripOnFailureRatio(5, 0.5),
	}
}

// TripOnFailureRatio opens the breaker once at least minRequests have been
// made and the failure ratio reaches ratio.
func TripOnFailureRatio(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests < minRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

// newBreaker creates a circuit breaker that logs its state changes.
func newBreaker[T any](cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[T] {
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = TripOnFailureRatio(5, 0.5)
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: cfg.ReadyToTrip,
		// Rate limiting is retried but does not count against the provider.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) && se.RateLimited() {
				return true
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			event := logger.Info()
			if to == gobreaker.StateOpen {
				event = logger.Warn()
			}
			event.
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}
