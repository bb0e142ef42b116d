package bootstrap

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/config"
	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

func sqliteConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		DBDriver:               "sqlite",
		SQLitePath:             filepath.Join(dir, "minutes.db"),
		StoragePath:            filepath.Join(dir, "storage"),
		NATSEmbedded:           true,
		NATSEmbeddedPort:       -1,
		LLMProvider:            "none",
		MinutesMaxTasks:        10,
		MinutesDueBusinessDays: 3,
		MeetingTimezone:        "UTC",
		RegenerationTimeout:    time.Minute,
	}
}

func TestNewWiresSQLiteAndEmbeddedNATS(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, sqliteConfig(t), "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if !app.Queue.Connected() {
		t.Fatalf("expected queue to be connected to the embedded server")
	}

	meeting, err := app.Meetings.StartMeeting(ctx, "", domain.Identification{Client: "Acme"})
	if err != nil {
		t.Fatalf("StartMeeting() error = %v", err)
	}
	chunk, err := app.Ingest.Upload(ctx, meeting.ID, 0, bytes.NewReader([]byte("webm")))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if chunk.State != domain.ChunkPending {
		t.Fatalf("expected pending chunk, got %s", chunk.State)
	}

	// Without an ASR backend the chunk is skipped rather than failed.
	state, err := app.Ingest.ProcessChunk(ctx, meeting.ID, 0)
	if err != nil {
		t.Fatalf("ProcessChunk() error = %v", err)
	}
	if state != domain.ChunkSkippedNoQuota {
		t.Fatalf("expected skipped_no_quota, got %s", state)
	}

	doc, err := app.Regenerator.TriggerRegeneration(ctx, meeting.ID)
	if err != nil || doc != nil {
		t.Fatalf("expected no document for empty transcript, got %+v, %v", doc, err)
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.DBDriver = "oracle"
	if _, err := New(context.Background(), cfg, "test"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestNewCompletionServiceSelection(t *testing.T) {
	if svc := newCompletionService(config.Config{LLMProvider: "none"}, nil); svc != nil {
		t.Fatalf("expected nil service for provider none")
	}
	if svc := newCompletionService(config.Config{LLMProvider: "openai"}, nil); svc != nil {
		t.Fatalf("expected nil service without api key")
	}
	if svc := newCompletionService(config.Config{LLMProvider: "ollama", OllamaURL: "http://localhost:11434", OllamaModel: "m"}, nil); svc == nil {
		t.Fatalf("expected ollama service")
	}
	if tr := newTranscriber(config.Config{}, nil); tr != nil {
		t.Fatalf("expected nil transcriber without ASR_BASE_URL")
	}
}
