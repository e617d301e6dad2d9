// Package main is the entry point for queuekit.
// It runs the send/receive demonstration against Kafka and RabbitMQ and can
// then keep serving both backends over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"queuekit/internal/api"
	"queuekit/internal/banner"
	"queuekit/internal/config"
	"queuekit/internal/demo"
	"queuekit/internal/factory"
	"queuekit/internal/queue"
	"queuekit/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	serve := flag.Bool("serve", false, "serve both backends over HTTP after the demonstration run")
	flag.Parse()

	banner.Print(os.Stdout)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err, "path", *configPath)
		os.Exit(1)
	}

	logger := initLogger(&cfg.Logger)
	logger.Info("configuration loaded",
		"path", *configPath,
		"kafka", cfg.Kafka.Descriptor.String(),
		"rabbitmq", cfg.RabbitMQ.Descriptor.String(),
	)

	// Create context that listens for shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	settings := factory.SettingsFrom(cfg)
	open := func(ctx context.Context, kind queue.Kind, desc queue.Descriptor) (queue.Adapter[string], error) {
		return factory.Create[string](ctx, kind, desc, settings, queue.StringCodec{}, logger)
	}

	runner := demo.NewRunner(open, os.Stdout, logger)
	demoErr := runner.Run(ctx, demo.DefaultSteps(cfg.Kafka.Descriptor, cfg.RabbitMQ.Descriptor))
	if demoErr != nil {
		fmt.Fprintf(os.Stderr, "demonstration failed: %v\n", demoErr)
	}

	if *serve {
		if err := runServer(ctx, cfg, open, logger); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	if demoErr != nil {
		os.Exit(1)
	}
}

// runServer opens one long-lived adapter per backend and serves them until
// ctx is canceled. Adapters are closed on every exit path.
func runServer(ctx context.Context, cfg *config.Config, open demo.Opener, logger *slog.Logger) error {
	var cleanupFuncs []func()
	cleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}
	defer cleanup()

	backends := make(map[queue.Kind]api.Backend)
	targets := map[queue.Kind]queue.Descriptor{
		queue.KindKafka:    cfg.Kafka.Descriptor,
		queue.KindRabbitMQ: cfg.RabbitMQ.Descriptor,
	}
	for kind, desc := range targets {
		adapter, err := open(ctx, kind, desc)
		if err != nil {
			return err
		}
		s := queue.Synchronized[string](strategy.New(adapter, logger))
		cleanupFuncs = append(cleanupFuncs, func() { _ = s.Close() })
		backends[kind] = api.Backend{
			Adapter:     s,
			Destination: desc.Destination,
			Sources:     cfg.Server.ReceiveSources[string(kind)],
		}
	}

	server := api.NewServer(api.ServerDeps{
		Config:       &cfg.Server,
		Logger:       logger,
		QueueHandler: api.NewQueueHandler(backends, logger),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("queuekit serving", "address", cfg.Server.Address())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("queuekit stopped")
	return nil
}

// initLogger creates and configures the application logger.
func initLogger(cfg *config.LoggerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
