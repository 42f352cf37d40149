package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orbd/internal/adaptation"
	"github.com/fyrsmithlabs/orbd/internal/config"
	"github.com/fyrsmithlabs/orbd/internal/event"
	"github.com/fyrsmithlabs/orbd/internal/eventstore"
	orbdhttp "github.com/fyrsmithlabs/orbd/internal/http"
	"github.com/fyrsmithlabs/orbd/internal/insight"
	"github.com/fyrsmithlabs/orbd/internal/learning"
	"github.com/fyrsmithlabs/orbd/internal/logging"
	"github.com/fyrsmithlabs/orbd/internal/pattern"
	"github.com/fyrsmithlabs/orbd/internal/services"
	"github.com/fyrsmithlabs/orbd/internal/telemetry"
)

// shutdownTimeout bounds graceful HTTP drain and telemetry flush.
const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting orbd",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("event_store", cfg.EventStore.Backend),
		zap.String("learning_store", cfg.LearningStore.Backend))

	tel, err := telemetry.New(ctx, cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}

	eventStore, err := eventstore.NewStore(cfg.EventStore, logger)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer func() {
		if err := eventStore.Close(); err != nil {
			logger.Warn("event store close failed", zap.Error(err))
		}
	}()

	learningStore, err := learning.NewStore(cfg.LearningStore, logger)
	if err != nil {
		return fmt.Errorf("open learning store: %w", err)
	}
	defer func() {
		if err := learningStore.Close(); err != nil {
			logger.Warn("learning store close failed", zap.Error(err))
		}
	}()

	bus, err := event.NewBus(eventStore, logger)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}

	detector, err := pattern.NewDetector(cfg.Detector, logger)
	if err != nil {
		return fmt.Errorf("initialize detector: %w", err)
	}

	generator := insight.NewGenerator(logger)

	workflow, err := learning.NewWorkflow(learningStore, logger)
	if err != nil {
		return fmt.Errorf("initialize workflow: %w", err)
	}

	engine, err := adaptation.NewEngine(cfg.Engine, bus, detector, generator, learningStore, logger)
	if err != nil {
		return fmt.Errorf("initialize adaptation engine: %w", err)
	}

	registry := services.NewRegistry(services.Options{
		Bus:       bus,
		Detector:  detector,
		Generator: generator,
		Learning:  learningStore,
		Workflow:  workflow,
		Engine:    engine,
	})

	srv, err := orbdhttp.NewServer(registry, logger, &orbdhttp.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("initialize http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown failed", zap.Error(err))
	}

	logger.Info("orbd stopped")
	return nil
}
