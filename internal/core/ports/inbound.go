package ports

import (
	"context"
	"io"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

// ChunkIngestor is the inbound contract for audio chunk ingestion.
type ChunkIngestor interface {
	Upload(ctx context.Context, meetingID string, sequence int, audio io.Reader) (*domain.Chunk, error)
	ProcessChunk(ctx context.Context, meetingID string, sequence int) (domain.ChunkState, error)
	IngestTranscript(ctx context.Context, meetingID string, sequence int, result domain.Transcription) (domain.ChunkState, error)
}

// MinutesRegenerator runs the synthesis pipeline for a meeting.
type MinutesRegenerator interface {
	TriggerRegeneration(ctx context.Context, meetingID string) (*domain.MinutesDocument, error)
	ForceReprocess(ctx context.Context, meetingID string) (*domain.MinutesDocument, error)
	Schedule(meetingID string)
}

// MeetingService covers the meeting lifecycle, reads and manual edits.
type MeetingService interface {
	StartMeeting(ctx context.Context, userID string, ident domain.Identification) (*domain.Meeting, error)
	EndMeeting(ctx context.Context, meetingID string) (*domain.Meeting, error)
	GetMeeting(ctx context.Context, meetingID string) (*domain.Meeting, error)
	ListMeetings(ctx context.Context, userID string) ([]domain.Meeting, error)
	Transcript(ctx context.Context, meetingID string) ([]domain.TranscriptSegment, error)
	GetMinutes(ctx context.Context, meetingID string) (*domain.MinutesDocument, error)
	SaveMinutes(ctx context.Context, meetingID string, doc domain.MinutesDocument) (*domain.MinutesDocument, error)
	ListTasks(ctx context.Context, meetingID string) ([]domain.Task, error)
	ReplaceTasks(ctx context.Context, meetingID string, tasks []domain.Task) ([]domain.Task, error)
	RequestReprocess(ctx context.Context, meetingID string) error
	ExportMinutes(ctx context.Context, meetingID string) ([]byte, error)
}
