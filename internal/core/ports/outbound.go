package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

// MeetingRepository persists meetings.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting *domain.Meeting) error
	GetMeeting(ctx context.Context, id string) (*domain.Meeting, error)
	ListMeetings(ctx context.Context, userID string) ([]domain.Meeting, error)
	EndMeeting(ctx context.Context, meeting *domain.Meeting) error
}

// ChunkRepository persists audio chunk bookkeeping.
type ChunkRepository interface {
	CreateChunk(ctx context.Context, chunk *domain.Chunk) error
	GetChunk(ctx context.Context, meetingID string, sequence int) (*domain.Chunk, error)
	UpdateChunkState(ctx context.Context, meetingID string, sequence int, state domain.ChunkState) error
}

// SegmentRepository persists the ordered transcript.
type SegmentRepository interface {
	// ReplaceChunkSegments drops whatever the chunk produced before and stores segments.
	ReplaceChunkSegments(ctx context.Context, meetingID string, sequence int, segments []domain.TranscriptSegment) error
	ListSegments(ctx context.Context, meetingID string) ([]domain.TranscriptSegment, error)
	UpdateSegments(ctx context.Context, segments []domain.TranscriptSegment) error
}

// MinutesRepository stores at most one minutes document per meeting.
type MinutesRepository interface {
	UpsertMinutes(ctx context.Context, meetingID string, doc domain.MinutesDocument) error
	GetMinutes(ctx context.Context, meetingID string) (*domain.MinutesDocument, error)
}

// TaskRepository replaces and reads a meeting's task set.
type TaskRepository interface {
	ReplaceTasks(ctx context.Context, meetingID string, tasks []domain.Task) error
	ListTasks(ctx context.Context, meetingID string) ([]domain.Task, error)
}

// MeetingLocker serializes regeneration of one meeting across processes. The
// returned release func must be called exactly once.
type MeetingLocker interface {
	LockMeeting(ctx context.Context, meetingID string) (release func(), err error)
}

// ObjectStorage stores raw chunk audio.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes chunk and regeneration events.
type MessageQueue interface {
	PublishChunkUploaded(ctx context.Context, event domain.ChunkUploaded) error
	SubscribeChunkUploaded(ctx context.Context, handler func(context.Context, domain.ChunkUploaded) error) error
	PublishRegenerationRequested(ctx context.Context, meetingID string) error
	SubscribeRegenerationRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// Transcriber is the speech-to-text service. Quota and rate-limit failures are
// reported as domain.ErrQuotaExceeded.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (domain.Transcription, error)
}

// ChatMessage is one message of a completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest asks the language model for a single completion.
type CompletionRequest struct {
	Messages    []ChatMessage
	Temperature float64
	JSON        bool
}

// CompletionService is the external language-model endpoint.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// MinutesExporter renders minutes into a downloadable file.
type MinutesExporter interface {
	Export(meeting *domain.Meeting, doc *domain.MinutesDocument, tasks []domain.Task) ([]byte, error)
}

// PipelineObserver receives pipeline events for metrics.
type PipelineObserver interface {
	RegenerationStarted()
	RegenerationFinished(outcome string, duration time.Duration)
	RegenerationCoalesced()
	RepairStage(stage string)
	ChunkOutcome(state domain.ChunkState)
}
