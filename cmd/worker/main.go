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

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/meeting-minutes/internal/bootstrap"
	"github.com/kirillkom/meeting-minutes/internal/config"
	"github.com/kirillkom/meeting-minutes/internal/core/domain"
	"github.com/kirillkom/meeting-minutes/internal/observability/logging"
	"github.com/kirillkom/meeting-minutes/internal/observability/tracing"
)

const serviceName = "worker"

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
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux(app),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		logger.Info("worker_subscribed", "subject", cfg.NATSChunkSubject)
		return app.Queue.SubscribeChunkUploaded(groupCtx, func(handlerCtx context.Context, event domain.ChunkUploaded) error {
			processCtx, cancel := context.WithTimeout(handlerCtx, cfg.ChunkTimeout)
			defer cancel()

			start := time.Now()
			app.Pipeline.StartMessage()
			state, err := app.Ingest.ProcessChunk(processCtx, event.MeetingID, event.Sequence)
			app.Pipeline.FinishMessage(cfg.NATSChunkSubject, time.Since(start), err)
			if err == nil {
				logger.Info("chunk_handled", "meeting_id", event.MeetingID, "sequence", event.Sequence, "state", state)
			}
			return err
		})
	})
	group.Go(func() error {
		logger.Info("worker_subscribed", "subject", cfg.NATSRegenerateSubject)
		return app.Queue.SubscribeRegenerationRequested(groupCtx, func(handlerCtx context.Context, meetingID string) error {
			start := time.Now()
			app.Pipeline.StartMessage()
			doc, err := app.Regenerator.ForceReprocess(handlerCtx, meetingID)
			app.Pipeline.FinishMessage(cfg.NATSRegenerateSubject, time.Since(start), err)
			if err == nil {
				logger.Info("reprocess_handled", "meeting_id", meetingID, "generated", doc != nil)
			}
			return err
		})
	})

	if err := group.Wait(); err != nil {
		logger.Error("worker_failed", "error", err)
		os.Exit(1)
	}
}

func metricsMux(app *bootstrap.App) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", app.Pipeline.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !app.Queue.Connected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
