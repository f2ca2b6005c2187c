package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ragdesk/console/internal/adapters/navigation"
	"github.com/ragdesk/console/internal/pkg/config"
	"github.com/ragdesk/console/internal/telemetry"
	"github.com/ragdesk/console/pkg/console"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the console config file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	// The file is read once here for the logger and tracer settings; the
	// console loads and watches it again on Start.
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logger
	level := new(slog.LevelVar)
	level.Set(cfg.Log.SlogLevel())
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer(cfg.Telemetry, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	c, err := console.New(
		console.WithLogger(logger),
		console.WithLogLevel(level),
		console.WithFileConfig(*configPath),
		console.WithNavigator(navigation.NewLogger(logger)),
	)
	if err != nil {
		log.Fatalf("Failed to create console: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		log.Fatalf("Failed to start console: %v", err)
	}

	logger.Info("Console started successfully",
		slog.String("config", *configPath),
		slog.String("addr", c.Addr().String()))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping console...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := c.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Console shutdown complete")
}
