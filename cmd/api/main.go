// Package main provides the entrypoint for the training plan API server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/runcoach/runcoach/internal/api"
	"github.com/runcoach/runcoach/internal/api/middleware"
	"github.com/runcoach/runcoach/internal/config"
	"github.com/runcoach/runcoach/internal/generator"
	"github.com/runcoach/runcoach/internal/generator/gemini"
	"github.com/runcoach/runcoach/internal/provider/resilience"
	"github.com/runcoach/runcoach/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "runcoach-api"

	configFile := flag.String("config", "", "path to a config file (default: ./config.yaml if present)")
	flag.Parse()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.Log.ZerologLevel())

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.App.Env).
		Msg("starting training plan API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Env,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if tp.Enabled() {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.Endpoint).Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	registry := resilience.NewRegistry()
	provider, err := gemini.NewClient(gemini.ClientConfig{
		APIKey:   cfg.Gemini.APIKey,
		Model:    cfg.Gemini.Model,
		BaseURL:  cfg.Gemini.BaseURL,
		Timeout:  cfg.Gemini.Timeout,
		Registry: registry,
		Logger:   log,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize AI provider (set GEMINI_API_KEY)")
		os.Exit(1)
	}
	log.Info().Str("provider", provider.Name()).Str("model", provider.Model()).Msg("AI provider initialized")

	router := api.NewRouter(api.RouterConfig{
		Version:      Version,
		BuildTime:    BuildTime,
		Logger:       log,
		ServiceName:  serviceName,
		Metrics:      metrics,
		Generator:    generator.NewService(generator.ServiceConfig{Provider: provider, Logger: log}),
		Registry:     registry,
		RequireTLS:   cfg.App.RequireTLS,
		MaxBodyBytes: cfg.App.MaxBodyBytes,
	})

	// WriteTimeout leaves room for the provider's retries.
	server := &http.Server{
		Addr:              cfg.App.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
