package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/skypro1111/chunked-transcriber/internal/audio"
	"github.com/skypro1111/chunked-transcriber/internal/config"
	"github.com/skypro1111/chunked-transcriber/internal/events"
	"github.com/skypro1111/chunked-transcriber/internal/metrics"
	"github.com/skypro1111/chunked-transcriber/internal/pipeline"
	"github.com/skypro1111/chunked-transcriber/internal/runs"
	"github.com/skypro1111/chunked-transcriber/internal/server"
	"github.com/skypro1111/chunked-transcriber/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "chunked-transcriber"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to .env file (optional)")
	flag.Parse()

	// Environment from .env is visible to ${VAR} expansion in the config file
	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load env file %s: %v\n", *envPath, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		slog.Int64("max_chunk_bytes", cfg.Chunking.MaxChunkBytes),
		slog.Float64("max_chunk_duration", cfg.Chunking.MaxChunkDuration),
		slog.Float64("min_chunk_duration", cfg.Chunking.MinChunkDuration),
		slog.Int("max_parallel_requests", cfg.Pipeline.MaxParallelRequests),
		slog.String("transcription_backend", cfg.Transcription.Backend),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.Bool("events_enabled", cfg.Events.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	transcriber, err := transcription.New(transcription.Config{
		Backend:       cfg.Transcription.Backend,
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Model:         cfg.Transcription.Model,
		Language:      cfg.Transcription.Language,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pipe, err := pipeline.New(pipeline.Options{
		Planner: audio.PlannerConfig{
			MaxChunkBytes:           cfg.Chunking.MaxChunkBytes,
			MaxChunkDurationSeconds: cfg.Chunking.MaxChunkDuration,
			MinChunkDurationSeconds: cfg.Chunking.MinChunkDuration,
		},
		MaxParallelRequests: cfg.Pipeline.MaxParallelRequests,
	}, audio.NewBeepDecoder(), transcriber, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	publisher := events.New(&events.Config{
		Enabled:   cfg.Events.Enabled,
		Brokers:   cfg.Events.Brokers,
		Topic:     cfg.Events.Topic,
		Principal: cfg.Events.Principal,
	}, logger, appMetrics)

	runMgr, err := runs.NewManager(logger, runs.Config{
		Retention:       cfg.Runs.GetRetentionDuration(),
		CleanupInterval: cfg.Runs.GetCleanupInterval(),
		MaxActive:       cfg.Pipeline.MaxActiveRuns,
	}, pipe, publisher)
	if err != nil {
		logger.Error("Failed to create run manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Run manager initialized",
		slog.Duration("retention", cfg.Runs.GetRetentionDuration()),
		slog.Int("max_active_runs", cfg.Pipeline.MaxActiveRuns),
	)

	httpServer := server.NewHTTPServer(cfg, logger, runMgr, transcriber, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop accepting uploads first
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Cancels in-flight runs and publishes their terminal events
	runMgr.Stop()

	if err := publisher.Close(); err != nil {
		logger.Error("Error closing event publisher", slog.String("error", err.Error()))
	}

	if closer, ok := transcriber.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("Error closing transcription client", slog.String("error", err.Error()))
		}
	}

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
