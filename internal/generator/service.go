package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/runcoach/runcoach/internal/plan"
)

const tracerName = "github.com/runcoach/runcoach/internal/generator"

// ServiceConfig holds configuration for the plan generation service.
type ServiceConfig struct {
	Provider Provider

	// Now is the clock used for validation and the weeks-until-race figure.
	// Default: time.Now
	Now func() time.Time

	Logger zerolog.Logger
}

// Service generates training plans.
type Service struct {
	provider Provider
	now      func() time.Time
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewService creates a plan generation service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		provider: cfg.Provider,
		now:      now,
		logger:   cfg.Logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// ProviderName returns the name of the backing provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// Generate validates req, prompts the provider and returns the parsed plan.
// Validation failures are returned as *plan.ValidationError; a reply that
// does not hold a well-formed plan wraps plan.ErrMalformedPlan.
func (s *Service) Generate(ctx context.Context, req *plan.PlanRequest) (*plan.TrainingPlan, error) {
	now := s.now()
	if err := plan.ValidateRequest(req, now); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "generator.Generate", trace.WithAttributes(
		attribute.String("generator.provider", s.provider.Name()),
		attribute.String("plan.distance", string(req.MarathonInfo.Distance)),
		attribute.Bool("plan.has_history", req.HasRunningHistory),
	))
	defer span.End()

	prompt := BuildPrompt(req, now)

	start := time.Now()
	text, err := s.provider.Generate(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider failed")
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		span.SetStatus(codes.Error, "empty response")
		return nil, ErrEmptyResponse
	}

	raw, err := plan.ExtractJSONObject(text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no json")
		return nil, fmt.Errorf("%w: %w", plan.ErrMalformedPlan, err)
	}

	p, err := plan.ParseTrainingPlan([]byte(raw))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed plan")
		s.logger.Warn().Err(err).Int("response_bytes", len(text)).Msg("model returned a malformed plan")
		return nil, err
	}

	span.SetAttributes(attribute.Int("plan.weeks", len(p.Weeks)))
	s.logger.Info().
		Str("provider", s.provider.Name()).
		Int("weeks", len(p.Weeks)).
		Dur("duration", time.Since(start)).
		Msg("training plan generated")

	return p, nil
}
