package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pvannier/lumen-api/internal/catalog"
	"github.com/pvannier/lumen-api/internal/config"
	"github.com/pvannier/lumen-api/internal/orchestrator"
	"github.com/pvannier/lumen-api/internal/platform/logger"
	"github.com/pvannier/lumen-api/internal/registry"
	"github.com/pvannier/lumen-api/internal/upstream"
)

// shutdownTimeout bounds how long in-flight requests may take to finish
// once a stop signal arrives.
const shutdownTimeout = 10 * time.Second

// application holds the wired dependencies of the server.
type application struct {
	config       *config.Config
	logger       *slog.Logger
	registry     *registry.Registry
	catalog      *catalog.Service
	upstream     *upstream.Client
	orchestrator *orchestrator.Orchestrator
}

// initializeApp loads configuration and wires the application components.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server)
	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"upstream_configured", cfg.Upstream.APIKey != "" && cfg.Upstream.APIURL != "")

	reg := registry.New(cfg.Registry.PendingTTL(), cfg.Registry.TerminalTTL(), appLogger)

	httpClient := &http.Client{}
	client, err := upstream.NewClient(cfg.Upstream, httpClient, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	cat := catalog.NewService(httpClient, appLogger)

	orch, err := orchestrator.New(reg, client, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	return &application{
		config:       cfg,
		logger:       appLogger,
		registry:     reg,
		catalog:      cat,
		upstream:     client,
		orchestrator: orch,
	}, nil
}

// run starts the HTTP server and blocks until a stop signal, then shuts
// down gracefully.
func (app *application) run() error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.setupRouter(),
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("Starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		app.registry.Stop()
		return err
	case sig := <-shutdownCh:
		app.logger.Info("Shutting down server", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		app.registry.Stop()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	// Stop eviction timers after the listener closes; jobs are in-memory
	// only, there is nothing to flush.
	app.registry.Stop()
	app.logger.Info("Server stopped")
	return nil
}
