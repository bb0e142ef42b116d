package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/meeting-minutes/internal/config"
	"github.com/kirillkom/meeting-minutes/internal/core/ports"
	"github.com/kirillkom/meeting-minutes/internal/core/usecase"
	"github.com/kirillkom/meeting-minutes/internal/infrastructure/asr/whisper"
	"github.com/kirillkom/meeting-minutes/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/meeting-minutes/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/meeting-minutes/internal/infrastructure/llm/openai"
	"github.com/kirillkom/meeting-minutes/internal/infrastructure/natsserver"
	"github.com/kirillkom/meeting-minutes/internal/infrastructure/queue/nats"
	"github.com/kirillkom/meeting-minutes/internal/infrastructure/repository/sqlstore"
	"github.com/kirillkom/meeting-minutes/internal/infrastructure/resilience"
	"github.com/kirillkom/meeting-minutes/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/meeting-minutes/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue       *nats.Queue
	Meetings    ports.MeetingService
	Ingest      ports.ChunkIngestor
	Regenerator ports.MinutesRegenerator
	Pipeline    *metrics.PipelineMetrics

	closeFn func()
}

// New wires the application. service names the process ("api" or "worker") in
// metrics labels.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	dialect, err := sqlstore.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	db, err := sqlstore.OpenDB(dialect, dataSource(cfg, dialect))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if err := sqlstore.EnsureSchema(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	store := sqlstore.NewStore(db, dialect)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	pipeline := metrics.NewPipelineMetrics(service)
	executor := resilience.NewExecutor(resilienceConfig(cfg)).WithObserver(pipeline)

	var embedded *natsserver.EmbeddedServer
	natsURL := cfg.NATSURL
	if cfg.NATSEmbedded {
		embedded, err = natsserver.Start(natsserver.Options{Port: cfg.NATSEmbeddedPort}, slog.Default())
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("start embedded nats: %w", err)
		}
		natsURL = embedded.ClientURL()
	}

	queue, err := nats.NewWithOptions(natsURL, nats.Subjects{
		ChunkUploaded:         cfg.NATSChunkSubject,
		RegenerationRequested: cfg.NATSRegenerateSubject,
	}, nats.Options{ResilienceExecutor: executor})
	if err != nil {
		embedded.Shutdown()
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	settings := usecase.PipelineSettings{
		MaxTasks:        cfg.MinutesMaxTasks,
		DueBusinessDays: cfg.MinutesDueBusinessDays,
		Location:        cfg.Location(),
		RunTimeout:      cfg.RegenerationTimeout,
	}

	regenerator := usecase.NewRegenerateMinutesUseCase(
		store.Meetings, store.Segments, store.Minutes, store.Tasks,
		newCompletionService(cfg, executor),
		pipeline,
		settings,
	).WithMeetingLocker(store.Locks)
	ingest := usecase.NewIngestChunkUseCase(
		store.Meetings, store.Chunks, store.Segments,
		storage, queue,
		newTranscriber(cfg, executor),
		regenerator,
		pipeline,
	)
	meetings := usecase.NewMeetingUseCase(
		store.Meetings, store.Segments, store.Minutes, store.Tasks,
		queue, xlsx.New(), settings,
	)

	return &App{
		Config:      cfg,
		Queue:       queue,
		Meetings:    meetings,
		Ingest:      ingest,
		Regenerator: regenerator,
		Pipeline:    pipeline,

		closeFn: func() {
			queue.Close()
			embedded.Shutdown()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func dataSource(cfg config.Config, dialect sqlstore.Dialect) string {
	if dialect == sqlstore.DialectSQLite {
		return cfg.SQLitePath
	}
	return cfg.PostgresDSN
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.BreakerEnabled = cfg.ResilienceBreakerEnabled
	return out
}

// newCompletionService returns nil when no backend is configured; the pipeline then
// skips refinement and synthesis.
func newCompletionService(cfg config.Config, executor *resilience.Executor) ports.CompletionService {
	switch cfg.LLMProvider {
	case "openai":
		if strings.TrimSpace(cfg.LLMAPIKey) == "" {
			slog.Warn("completion_backend_disabled", "reason", "LLM_API_KEY is empty")
			return nil
		}
		return openai.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, openai.Options{
			Timeout:            cfg.LLMTimeout,
			ResilienceExecutor: executor,
		})
	case "ollama":
		return ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaModel, ollama.Options{
			Timeout:            cfg.LLMTimeout,
			ResilienceExecutor: executor,
		})
	default:
		return nil
	}
}

func newTranscriber(cfg config.Config, executor *resilience.Executor) ports.Transcriber {
	if strings.TrimSpace(cfg.ASRBaseURL) == "" {
		slog.Warn("asr_backend_disabled", "reason", "ASR_BASE_URL is empty")
		return nil
	}
	return whisper.New(cfg.ASRBaseURL, cfg.ASRAPIKey, cfg.ASRModel, whisper.Options{
		Timeout:            cfg.ASRTimeout,
		ResilienceExecutor: executor,
	})
}
