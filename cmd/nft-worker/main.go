package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-nft/pkg/simplenft/api"
	"github.com/tendant/simple-nft/pkg/simplenft/config"
	"github.com/tendant/simple-nft/pkg/simplenft/queue/amqp"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cfg.Build(ctx, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close application", "error", err)
		}
	}()

	handler := api.NewHandler(app.Esdt, app.Processor, app.Repo, app.Blobs,
		api.WithLogger(logger),
		api.WithMetrics(app.Metrics.Handler()),
		api.WithEnvironment(cfg.Environment),
	)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("nft worker listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runner *amqp.Runner
	runDone := make(chan struct{})
	if cfg.AMQP.URL != "" {
		runner, err = amqp.Dial(amqp.Config{
			URL:         cfg.AMQP.URL,
			Queue:       cfg.AMQP.Queue,
			ConsumerTag: "nft-worker",
			Prefetch:    cfg.AMQP.Prefetch,
			Workers:     cfg.AMQP.Workers,
		}, app.Consumer, amqp.WithLogger(logger))
		if err != nil {
			logger.Error("failed to connect to queue", "error", err)
			os.Exit(1)
		}
		go func() {
			defer close(runDone)
			if err := runner.Run(ctx); err != nil {
				errCh <- fmt.Errorf("queue consumer: %w", err)
			}
		}()
	} else {
		close(runDone)
		logger.Warn("AMQP_URL not set, queue consumer disabled")
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("worker stopped", "error", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	select {
	case <-runDone:
	case <-shutdownCtx.Done():
		logger.Warn("queue consumer did not drain in time")
	}
	if runner != nil {
		if err := runner.Close(); err != nil {
			logger.Warn("failed to close queue connection", "error", err)
		}
	}
	logger.Info("nft worker exiting")
}
