package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
	"github.com/kirillkom/meeting-minutes/internal/core/ports"
)

const tracerName = "github.com/kirillkom/meeting-minutes/internal/core/usecase"

type PipelineSettings struct {
	MaxTasks        int
	DueBusinessDays int
	Location        *time.Location
	RunTimeout      time.Duration
}

func (s PipelineSettings) normalize() PipelineSettings {
	out := s
	if out.MaxTasks <= 0 {
		out.MaxTasks = 10
	}
	if out.DueBusinessDays <= 0 {
		out.DueBusinessDays = 3
	}
	if out.Location == nil {
		out.Location = time.UTC
	}
	if out.RunTimeout <= 0 {
		out.RunTimeout = 5 * time.Minute
	}
	return out
}

type RegenerateMinutesUseCase struct {
	meetings ports.MeetingRepository
	segments ports.SegmentRepository
	minutes  ports.MinutesRepository
	tasks    ports.TaskRepository
	llm      ports.CompletionService
	observer ports.PipelineObserver
	settings PipelineSettings
	locker   ports.MeetingLocker

	tracer trace.Tracer
	now    func() time.Time
	gate   *regenerationGate
}

// NewRegenerateMinutesUseCase wires the pipeline. llm and observer may be nil: without
// a completion service every run resolves with no document.
func NewRegenerateMinutesUseCase(
	meetings ports.MeetingRepository,
	segments ports.SegmentRepository,
	minutes ports.MinutesRepository,
	tasks ports.TaskRepository,
	llm ports.CompletionService,
	observer ports.PipelineObserver,
	settings PipelineSettings,
) *RegenerateMinutesUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	uc := &RegenerateMinutesUseCase{
		meetings: meetings,
		segments: segments,
		minutes:  minutes,
		tasks:    tasks,
		llm:      llm,
		observer: observer,
		settings: settings.normalize(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	uc.gate = newRegenerationGate(uc.runDetached, observer.RegenerationCoalesced)
	return uc
}

// WithMeetingLocker makes every scheduled run hold the meeting's lock, so processes
// sharing one database never regenerate the same meeting concurrently.
func (uc *RegenerateMinutesUseCase) WithMeetingLocker(locker ports.MeetingLocker) *RegenerateMinutesUseCase {
	uc.locker = locker
	return uc
}

// TriggerRegeneration waits for a regeneration of the meeting that starts after the
// call. A nil document with a nil error means there was nothing to synthesize.
func (uc *RegenerateMinutesUseCase) TriggerRegeneration(ctx context.Context, meetingID string) (*domain.MinutesDocument, error) {
	if strings.TrimSpace(meetingID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "trigger regeneration", fmt.Errorf("meeting id is required"))
	}
	return uc.gate.wait(ctx, meetingID)
}

// Schedule requests a regeneration without waiting for it.
func (uc *RegenerateMinutesUseCase) Schedule(meetingID string) {
	if strings.TrimSpace(meetingID) == "" {
		return
	}
	uc.gate.enqueue(meetingID)
}

// ForceReprocess clears the meeting's tasks and regenerates unconditionally.
func (uc *RegenerateMinutesUseCase) ForceReprocess(ctx context.Context, meetingID string) (*domain.MinutesDocument, error) {
	if strings.TrimSpace(meetingID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "force reprocess", fmt.Errorf("meeting id is required"))
	}
	if _, err := uc.meetings.GetMeeting(ctx, meetingID); err != nil {
		return nil, fmt.Errorf("load meeting: %w", err)
	}
	if err := uc.tasks.ReplaceTasks(ctx, meetingID, nil); err != nil {
		return nil, fmt.Errorf("clear tasks: %w", err)
	}
	return uc.TriggerRegeneration(ctx, meetingID)
}

func (uc *RegenerateMinutesUseCase) runDetached(meetingID string) (*domain.MinutesDocument, error) {
	ctx, cancel := context.WithTimeout(context.Background(), uc.settings.RunTimeout)
	defer cancel()

	if uc.locker != nil {
		release, err := uc.locker.LockMeeting(ctx, meetingID)
		if err != nil {
			slog.Error("regeneration_lock_failed", "meeting_id", meetingID, "error", err)
			return nil, err
		}
		defer release()
	}

	uc.observer.RegenerationStarted()
	start := time.Now()
	doc, err := uc.Regenerate(ctx, meetingID)

	outcome := "generated"
	switch {
	case err != nil:
		outcome = "error"
		slog.Error("regeneration_failed", "meeting_id", meetingID, "error", err)
	case doc == nil:
		outcome = "no_document"
	}
	uc.observer.RegenerationFinished(outcome, time.Since(start))
	return doc, err
}

// Regenerate runs one full pass of the pipeline for a meeting, bypassing the
// per-meeting gate. Callers that may run concurrently must use TriggerRegeneration.
func (uc *RegenerateMinutesUseCase) Regenerate(ctx context.Context, meetingID string) (*domain.MinutesDocument, error) {
	ctx, span := uc.tracer.Start(ctx, "minutes.regenerate", trace.WithAttributes(attribute.String("meeting.id", meetingID)))
	defer span.End()

	doc, err := uc.regenerate(ctx, meetingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Bool("minutes.generated", doc != nil))
	return doc, err
}

func (uc *RegenerateMinutesUseCase) regenerate(ctx context.Context, meetingID string) (*domain.MinutesDocument, error) {
	meeting, err := uc.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("load meeting: %w", err)
	}

	segments, err := uc.segments.ListSegments(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	if len(segments) == 0 {
		return nil, nil
	}

	refined, err := uc.refine(ctx, meetingID, segments)
	if err != nil {
		return nil, err
	}

	ident := domain.IdentificationFor(meeting, uc.settings.Location)
	defaultDue := uc.defaultDueDate(ident)

	raw, ok := uc.synthesize(ctx, meetingID, ident, defaultDue, refined)
	if !ok {
		return nil, nil
	}

	repaired := RepairMinutes(raw, uc.now().In(uc.settings.Location))
	uc.observer.RepairStage(string(repaired.Stage))
	if repaired.Degraded {
		slog.Warn("minutes_repair_fallback", "meeting_id", meetingID, "attempts", len(repaired.Attempts), "raw_prefix", truncate(raw, 500))
	}

	doc := repaired.Document
	doc.Identification = ident

	tasks := extractTasks(meetingID, doc.NewTasks, defaultDue, uc.settings.MaxTasks)
	doc.NewTasks = minutesTasksFrom(tasks)
	doc.Normalize()

	if err := uc.persist(ctx, meetingID, doc, tasks); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (uc *RegenerateMinutesUseCase) refine(ctx context.Context, meetingID string, segments []domain.TranscriptSegment) ([]domain.TranscriptSegment, error) {
	ctx, span := uc.tracer.Start(ctx, "minutes.refine_speakers", trace.WithAttributes(attribute.Int("segments", len(segments))))
	defer span.End()

	refined := refineSpeakers(ctx, uc.llm, meetingID, segments)
	changed := changedSegments(segments, refined)
	span.SetAttributes(attribute.Int("segments.changed", len(changed)))
	if len(changed) == 0 {
		return refined, nil
	}
	if err := uc.segments.UpdateSegments(ctx, changed); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("update refined segments: %w", err)
	}
	return refined, nil
}

func (uc *RegenerateMinutesUseCase) synthesize(
	ctx context.Context,
	meetingID string,
	ident domain.MinutesIdentification,
	defaultDue string,
	segments []domain.TranscriptSegment,
) (string, bool) {
	if uc.llm == nil {
		return "", false
	}
	ctx, span := uc.tracer.Start(ctx, "minutes.synthesize")
	defer span.End()

	content, err := uc.llm.Complete(ctx, ports.CompletionRequest{
		Messages:    []ports.ChatMessage{{Role: "user", Content: buildMinutesPrompt(ident, defaultDue, uc.settings.MaxTasks, segments)}},
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		span.RecordError(err)
		slog.Warn("minutes_synthesis_failed", "meeting_id", meetingID, "error", err)
		return "", false
	}
	content = strings.TrimSpace(content)
	if content == "" {
		slog.Warn("minutes_synthesis_empty", "meeting_id", meetingID)
		return "", false
	}
	return content, true
}

func (uc *RegenerateMinutesUseCase) persist(ctx context.Context, meetingID string, doc domain.MinutesDocument, tasks []domain.Task) error {
	ctx, span := uc.tracer.Start(ctx, "minutes.persist", trace.WithAttributes(attribute.Int("tasks", len(tasks))))
	defer span.End()

	if err := uc.minutes.UpsertMinutes(ctx, meetingID, doc); err != nil {
		span.RecordError(err)
		return fmt.Errorf("upsert minutes: %w", err)
	}
	if err := uc.tasks.ReplaceTasks(ctx, meetingID, tasks); err != nil {
		span.RecordError(err)
		return fmt.Errorf("replace tasks: %w", err)
	}
	return nil
}

func (uc *RegenerateMinutesUseCase) defaultDueDate(ident domain.MinutesIdentification) string {
	base := ident.Date
	if base == "" {
		base = uc.now().In(uc.settings.Location).Format(domain.DateLayout)
	}
	due, err := domain.BusinessDaysAfter(base, uc.settings.DueBusinessDays)
	if err != nil {
		return domain.AddBusinessDays(uc.now().In(uc.settings.Location), uc.settings.DueBusinessDays).Format(domain.DateLayout)
	}
	return due
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

type noopObserver struct{}

func (noopObserver) RegenerationStarted() {}
func (noopObserver) RegenerationFinished(string, time.Duration) {}
func (noopObserver) RegenerationCoalesced() {}
func (noopObserver) RepairStage(string) {}
func (noopObserver) ChunkOutcome(domain.ChunkState) {}
