package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guardhome/guardhome/internal/guard/common/clock"
	"github.com/guardhome/guardhome/internal/guard/common/log"
	"github.com/guardhome/guardhome/internal/guard/config"
	"github.com/guardhome/guardhome/internal/guard/gateways/adguard"
	"github.com/guardhome/guardhome/internal/guard/gateways/httpapi"
	"github.com/guardhome/guardhome/internal/guard/repos/backup"
	"github.com/guardhome/guardhome/internal/guard/repos/journal"
	"github.com/guardhome/guardhome/internal/guard/services/unblock"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "guardhomed"

	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all the components of the guardhome service
type Application struct {
	config  *config.AppConfig
	server  *httpapi.Server
	journal *journal.Journal
}

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	err = log.Configure(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":    version,
		"env":        cfg.Env,
		"log_level":  cfg.LogLevel,
		"port":       cfg.Port,
		"upstream":   cfg.UpstreamBaseURL(),
		"backup_dir": cfg.BackupDir,
		"journal_db": cfg.JournalDB,
	}, "Starting guardhome")

	// Build application with all dependencies
	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Server failed")
	}

	log.Info(nil, "guardhome stopped gracefully")
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := clock.RealClock{}
	logger := log.GetLogger()

	// Repository layer
	backupStore, err := backup.New(cfg.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup store: %w", err)
	}
	attemptJournal, err := journal.New(cfg.JournalDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open attempt journal: %w", err)
	}

	// Gateway layer
	client, err := adguard.New(adguard.Options{
		BaseURL:  cfg.UpstreamBaseURL(),
		Username: cfg.UpstreamUser,
		Password: cfg.UpstreamPass,
		Timeout:  time.Duration(cfg.UpstreamTimeout) * time.Second,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	log.Info(map[string]any{
		"upstream":      cfg.UpstreamBaseURL(),
		"timeout":       cfg.UpstreamTimeout,
		"authenticated": cfg.UpstreamUser != "",
	}, "Upstream filtering client configured")

	// Service layer
	guard := unblock.New(unblock.Options{
		Client:    client,
		Backups:   backupStore,
		Journal:   attemptJournal,
		Clock:     clk,
		Logger:    logger,
		HealthTTL: time.Duration(cfg.HealthTTL) * time.Second,
	})

	// Transport layer
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := httpapi.NewServer(addr, guard, logger)

	return &Application{
		config:  cfg,
		server:  server,
		journal: attemptJournal,
	}, nil
}

// Run starts the control API and blocks until context is cancelled
func (app *Application) Run(ctx context.Context) error {
	if err := app.server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start control API: %w", err)
	}

	log.Info(map[string]any{
		"address": app.server.Address(),
	}, "guardhome ready")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info(nil, "Shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		log.Warn(map[string]any{"error": err}, "Error during control API shutdown")
	}

	if err := app.journal.Close(); err != nil {
		log.Warn(map[string]any{"error": err}, "Error closing attempt journal")
	}

	log.Info(nil, "Graceful shutdown completed")
	return nil
}
