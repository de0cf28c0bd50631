// Package main provides runplan, an interactive terminal client that collects
// a race goal and recent runs and asks the plan service for a training plan.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterh/liner"
	"github.com/rs/zerolog"

	"github.com/runcoach/runcoach/internal/cli"
	"github.com/runcoach/runcoach/internal/config"
	"github.com/runcoach/runcoach/internal/planclient"
	"github.com/runcoach/runcoach/internal/wizard"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "runplan:", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", "", "path to a config file (default: ./config.yaml if present)")
	endpoint := flag.String("endpoint", "", "plan service URL (overrides PLAN_ENDPOINT)")
	verbose := flag.Bool("v", false, "log retries and transitions to stderr")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	if *endpoint != "" {
		cfg.Plan.Endpoint = *endpoint
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	clientCfg := planclient.DefaultConfig(cfg.Plan.Endpoint)
	clientCfg.MaxAttempts = cfg.Plan.MaxAttempts
	clientCfg.Delay = cfg.Plan.RetryDelay
	clientCfg.Backoff = cfg.Plan.Backoff
	clientCfg.MaxDelay = cfg.Plan.MaxDelay
	clientCfg.AttemptTimeout = cfg.Plan.AttemptTimeout
	clientCfg.Logger = log

	client, err := planclient.New(clientCfg)
	if err != nil {
		return err
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	session := cli.NewSession(cli.Config{
		Prompter:  cli.NewHistoryPrompter(line),
		Out:       os.Stdout,
		Wizard:    wizard.New(wizard.Config{Logger: log}),
		Submitter: client,
		Logger:    log,
	})

	if err := session.Run(ctx); err != nil && !errors.Is(err, cli.ErrAborted) {
		return err
	}
	return nil
}
