package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ingest-control-plane/internal/client"
	"ingest-control-plane/internal/config"
	"ingest-control-plane/internal/worker"
)

func main() {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg := config.Load()

	apiClient := client.New(cfg.Worker.APIBaseURL, cfg.Worker.RequestTimeout)
	w := worker.New(worker.Config{
		Client:          apiClient,
		PollInterval:    cfg.Worker.PollInterval,
		ProgressEvery:   cfg.Worker.ProgressEvery,
		CSVPathOverride: cfg.Worker.CSVPathOverride,
		Logger:          logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel the poll loop on SIGINT/SIGTERM; an in-flight job run finishes
	// its current control-surface call before the process exits.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
		cancel()
	}()

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("Worker exited with error")
	}

	logger.Info().Msg("Worker terminated.")
}
