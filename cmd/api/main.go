package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/meeting-minutes/internal/adapters/http"
	"github.com/kirillkom/meeting-minutes/internal/bootstrap"
	"github.com/kirillkom/meeting-minutes/internal/config"
	"github.com/kirillkom/meeting-minutes/internal/observability/logging"
	"github.com/kirillkom/meeting-minutes/internal/observability/metrics"
	"github.com/kirillkom/meeting-minutes/internal/observability/tracing"
)

const serviceName = "api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Service:      "meeting-minutes-" + serviceName,
		Exporter:     cfg.OTelExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Error("tracing_setup_failed", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	router := httpadapter.NewRouter(cfg, app.Meetings, app.Ingest).WithMetrics(httpMetrics).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr, "db_driver", cfg.DBDriver, "llm_provider", cfg.LLMProvider)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing_shutdown_failed", "error", err)
	}
}
