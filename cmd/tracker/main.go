package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/unsubtrack/tracker/internal/config"
	"github.com/unsubtrack/tracker/internal/eventlog"
	"github.com/unsubtrack/tracker/internal/ratelimit"
	"github.com/unsubtrack/tracker/internal/server"
	"github.com/unsubtrack/tracker/internal/storage"
	"github.com/unsubtrack/tracker/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "optional YAML config file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.Init("unsub-tracker", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	alerts := eventlog.NewAlertClient(cfg.Alert.WebhookURL, cfg.Alert.Timeout())
	recorder := eventlog.New(store, logger, alerts)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.Ping(startupCtx); err != nil {
		cancelStartup()
		recorder.Record(context.Background(), eventlog.Event{
			Source:  "api",
			Level:   "CRITICAL",
			Message: fmt.Sprintf("Database connection failed on startup: %v", err),
		})
		log.Fatalf("Database connection failed on startup: %v", err)
	}
	cancelStartup()
	recorder.Record(context.Background(), eventlog.Event{
		Source:  "api",
		Level:   "INFO",
		Message: "Application started successfully.",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := ratelimit.New()
	if cfg.RateLimit.Enabled {
		go limiter.Run(ctx, cfg.RateLimit.SweepInterval(), cfg.RateLimit.Window(), recorder, logger)
	}

	srv := server.New(cfg, logger, store, recorder, limiter)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", srv.Port),
		Handler: srv.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", srv.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	recorder.Record(context.Background(), eventlog.Event{
		Source:  "api",
		Level:   "INFO",
		Message: "Application shutting down.",
	})
	logger.Info("shutdown complete")
}
