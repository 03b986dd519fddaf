// MaintFlow server — predictive maintenance backbone: HTTP ingress, the
// in-process event bus, and the agent pipeline from sensor readings to
// scheduled maintenance.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/predictix/maintflow/pkg/acquisition"
	"github.com/predictix/maintflow/pkg/api"
	"github.com/predictix/maintflow/pkg/cleanup"
	"github.com/predictix/maintflow/pkg/config"
	"github.com/predictix/maintflow/pkg/coordinator"
	"github.com/predictix/maintflow/pkg/detection"
	"github.com/predictix/maintflow/pkg/events"
	"github.com/predictix/maintflow/pkg/inference"
	"github.com/predictix/maintflow/pkg/notification"
	"github.com/predictix/maintflow/pkg/orchestrator"
	"github.com/predictix/maintflow/pkg/prediction"
	"github.com/predictix/maintflow/pkg/storage"
	"github.com/predictix/maintflow/pkg/validation"
	"github.com/predictix/maintflow/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting MaintFlow", "version", version.Full(), "config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize storage: PostgreSQL when DB_HOST is configured,
	// otherwise the in-memory store (demo / local development).
	var store storage.Store
	if os.Getenv("DB_HOST") != "" {
		dbConfig, err := storage.LoadPostgresConfigFromEnv()
		if err != nil {
			slog.Error("Failed to load database config", "error", err)
			os.Exit(1)
		}
		pgStore, err := storage.NewPostgresStore(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := pgStore.Close(); err != nil {
				slog.Error("Error closing database", "error", err)
			}
		}()
		store = pgStore
		slog.Info("Connected to PostgreSQL database")
	} else {
		store = storage.NewMemoryStore()
		slog.Warn("DB_HOST not set, using in-memory storage")
	}

	// 3. Dead-letter sink and event bus
	var dlq events.DLQSink
	if cfg.Bus.DLQOn() {
		fileDLQ, err := events.NewFileDLQ(cfg.Bus.DLQLogFile)
		if err != nil {
			slog.Error("Failed to open DLQ sink", "path", cfg.Bus.DLQLogFile, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := fileDLQ.Close(); err != nil {
				slog.Error("Error closing DLQ sink", "error", err)
			}
		}()
		dlq = fileDLQ
	}
	bus := events.NewBus(cfg.Bus, dlq)

	// 4. Model loader: remote registry when serverless models are enabled,
	// local z-score fallback otherwise.
	// Note: grpc.NewClient uses lazy dialing; the connection happens on the
	// first RPC call.
	var loader inference.ModelLoader
	if cfg.Detection.ServerlessOn() {
		registry, err := inference.NewRegistryClient(cfg.Inference)
		if err != nil {
			slog.Error("Failed to initialize model registry client", "addr", cfg.Inference.Addr, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := registry.Close(); err != nil {
				slog.Error("Error closing model registry client", "error", err)
			}
		}()
		loader = registry
		slog.Info("Model registry client initialized", "addr", cfg.Inference.Addr)
	} else {
		loader = inference.NewZScoreLoader(cfg.Detection.ZScoreThreshold, cfg.Detection.BaselineWindow)
		slog.Info("Using local z-score model fallback")
	}

	// 5. Build the agent pipeline
	acquisitionAgent, err := acquisition.New(bus, store)
	if err != nil {
		slog.Error("Failed to create acquisition agent", "error", err)
		os.Exit(1)
	}
	detectionAgent, err := detection.New(bus, cfg.Detection, loader)
	if err != nil {
		slog.Error("Failed to create detection agent", "error", err)
		os.Exit(1)
	}
	validationAgent, err := validation.New(bus, cfg.Validation, validation.NewDefaultRuleEngine(), store)
	if err != nil {
		slog.Error("Failed to create validation agent", "error", err)
		os.Exit(1)
	}
	predictionAgent, err := prediction.New(bus, cfg.Prediction, store, prediction.NewTrendForecaster())
	if err != nil {
		slog.Error("Failed to create prediction agent", "error", err)
		os.Exit(1)
	}
	orchestratorAgent, err := orchestrator.New(bus, cfg.Orchestrator)
	if err != nil {
		slog.Error("Failed to create orchestrator agent", "error", err)
		os.Exit(1)
	}
	schedulerAgent, err := coordinator.NewScheduler(bus, store, technicianPool())
	if err != nil {
		slog.Error("Failed to create scheduler agent", "error", err)
		os.Exit(1)
	}
	notificationAgent, err := notification.New(bus, notification.ChannelConsole, notification.NewConsoleProvider())
	if err != nil {
		slog.Error("Failed to create notification agent", "error", err)
		os.Exit(1)
	}

	// 6. Coordinator: downstream consumers start after their producers and
	// stop before them.
	coord, err := coordinator.New(bus)
	if err != nil {
		slog.Error("Failed to create coordinator", "error", err)
		os.Exit(1)
	}
	coord.Register(
		acquisitionAgent,
		detectionAgent,
		validationAgent,
		predictionAgent,
		orchestratorAgent,
		schedulerAgent,
		notificationAgent,
	)
	if err := coord.StartAll(ctx); err != nil {
		slog.Error("Failed to start system", "error", err)
		os.Exit(1)
	}
	defer coord.StopAll()

	// 7. Reading retention service
	if cfg.Retention.On() {
		retention := cleanup.NewService(cfg.Retention, store)
		retention.Start(ctx)
		defer retention.Stop()
	}

	// 8. HTTP server
	server, err := api.NewServer(cfg.API, coord, orchestratorAgent, store)
	if err != nil {
		slog.Error("Failed to create API server", "error", err)
		os.Exit(1)
	}
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("MaintFlow started successfully", "port", cfg.API.Port)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Shutting down after server error", "error", err)
	}

	// 10. Graceful shutdown: stop accepting HTTP traffic, then let the
	// deferred coordinator stop drain the pipeline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("MaintFlow shutdown complete")
}

// technicianPool reads the TECHNICIAN_POOL env (comma-separated IDs).
// Empty means the scheduler's built-in default pool.
func technicianPool() []string {
	raw := os.Getenv("TECHNICIAN_POOL")
	if raw == "" {
		return nil
	}
	var pool []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			pool = append(pool, id)
		}
	}
	return pool
}
