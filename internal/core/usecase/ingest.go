package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
	"github.com/kirillkom/meeting-minutes/internal/core/ports"
)

type IngestChunkUseCase struct {
	meetings    ports.MeetingRepository
	chunks      ports.ChunkRepository
	segments    ports.SegmentRepository
	storage     ports.ObjectStorage
	queue       ports.MessageQueue
	transcriber ports.Transcriber
	regenerator ports.MinutesRegenerator
	observer    ports.PipelineObserver
	now         func() time.Time
}

// NewIngestChunkUseCase builds the chunk ingestion flow. A nil transcriber marks every
// chunk as skipped.
func NewIngestChunkUseCase(
	meetings ports.MeetingRepository,
	chunks ports.ChunkRepository,
	segments ports.SegmentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	transcriber ports.Transcriber,
	regenerator ports.MinutesRegenerator,
	observer ports.PipelineObserver,
) *IngestChunkUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	return &IngestChunkUseCase{
		meetings:    meetings,
		chunks:      chunks,
		segments:    segments,
		storage:     storage,
		queue:       queue,
		transcriber: transcriber,
		regenerator: regenerator,
		observer:    observer,
		now:         time.Now,
	}
}

func chunkStorageKey(meetingID string, sequence int) string {
	return fmt.Sprintf("%s/chunk_%d.webm", meetingID, sequence)
}

func validateMeetingID(operation, meetingID string) error {
	if strings.TrimSpace(meetingID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, operation, fmt.Errorf("meeting id is required"))
	}
	if strings.ContainsAny(meetingID, `/\`) || strings.Contains(meetingID, "..") {
		return domain.WrapError(domain.ErrInvalidInput, operation, fmt.Errorf("meeting id %q is not allowed", meetingID))
	}
	return nil
}

// Upload stores the chunk audio, records a pending chunk and publishes it for
// transcription.
func (uc *IngestChunkUseCase) Upload(ctx context.Context, meetingID string, sequence int, audio io.Reader) (*domain.Chunk, error) {
	if err := validateMeetingID("upload chunk", meetingID); err != nil {
		return nil, err
	}
	if sequence < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload chunk", fmt.Errorf("sequence must not be negative"))
	}
	if audio == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload chunk", fmt.Errorf("audio is required"))
	}
	if _, err := uc.meetings.GetMeeting(ctx, meetingID); err != nil {
		return nil, fmt.Errorf("load meeting: %w", err)
	}

	key := chunkStorageKey(meetingID, sequence)
	if err := uc.storage.Save(ctx, key, audio); err != nil {
		return nil, fmt.Errorf("save chunk audio: %w", err)
	}

	chunk := &domain.Chunk{
		MeetingID:  meetingID,
		Sequence:   sequence,
		StorageKey: key,
		State:      domain.ChunkPending,
		CreatedAt:  uc.now().UTC(),
	}
	if err := uc.chunks.CreateChunk(ctx, chunk); err != nil {
		return nil, fmt.Errorf("create chunk: %w", err)
	}

	if err := uc.queue.PublishChunkUploaded(ctx, domain.ChunkUploaded{MeetingID: meetingID, Sequence: sequence}); err != nil {
		return nil, fmt.Errorf("publish chunk: %w", err)
	}
	return chunk, nil
}

// ProcessChunk transcribes a stored chunk. Transcription failures are terminal for the
// chunk and reported through its state, not as an error.
func (uc *IngestChunkUseCase) ProcessChunk(ctx context.Context, meetingID string, sequence int) (domain.ChunkState, error) {
	chunk, err := uc.chunks.GetChunk(ctx, meetingID, sequence)
	if err != nil {
		return "", fmt.Errorf("load chunk: %w", err)
	}
	if chunk.State != domain.ChunkPending {
		slog.Info("chunk_already_processed", "meeting_id", meetingID, "sequence", sequence, "state", chunk.State)
		return chunk.State, nil
	}

	if uc.transcriber == nil {
		return uc.finishChunk(ctx, meetingID, sequence, domain.ChunkSkippedNoQuota)
	}

	audio, err := uc.storage.Open(ctx, chunk.StorageKey)
	if err != nil {
		return "", fmt.Errorf("open chunk audio: %w", err)
	}
	defer audio.Close()

	result, err := uc.transcriber.Transcribe(ctx, fmt.Sprintf("chunk_%d.webm", sequence), audio)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		if domain.IsKind(err, domain.ErrQuotaExceeded) {
			slog.Warn("chunk_transcription_skipped", "meeting_id", meetingID, "sequence", sequence, "error", err)
			return uc.finishChunk(ctx, meetingID, sequence, domain.ChunkSkippedNoQuota)
		}
		slog.Error("chunk_transcription_failed", "meeting_id", meetingID, "sequence", sequence, "error", err)
		return uc.finishChunk(ctx, meetingID, sequence, domain.ChunkFailed)
	}

	return uc.IngestTranscript(ctx, meetingID, sequence, result)
}

// IngestTranscript converts a transcription result into transcript segments and, when
// anything was persisted, schedules a regeneration of the minutes.
func (uc *IngestChunkUseCase) IngestTranscript(ctx context.Context, meetingID string, sequence int, result domain.Transcription) (domain.ChunkState, error) {
	segments := segmentsFromTranscription(meetingID, sequence, result, uc.now().UTC())

	if len(segments) > 0 {
		if err := uc.segments.ReplaceChunkSegments(ctx, meetingID, sequence, segments); err != nil {
			if _, markErr := uc.finishChunk(ctx, meetingID, sequence, domain.ChunkFailed); markErr != nil {
				slog.Error("chunk_state_update_failed", "meeting_id", meetingID, "sequence", sequence, "error", markErr)
			}
			return domain.ChunkFailed, fmt.Errorf("store segments: %w", err)
		}
	}

	state, err := uc.finishChunk(ctx, meetingID, sequence, domain.ChunkProcessed)
	if err != nil {
		return "", err
	}
	slog.Info("chunk_transcribed", "meeting_id", meetingID, "sequence", sequence, "segments", len(segments))

	if len(segments) > 0 && uc.regenerator != nil {
		uc.regenerator.Schedule(meetingID)
	}
	return state, nil
}

func (uc *IngestChunkUseCase) finishChunk(ctx context.Context, meetingID string, sequence int, state domain.ChunkState) (domain.ChunkState, error) {
	if err := uc.chunks.UpdateChunkState(ctx, meetingID, sequence, state); err != nil {
		return "", fmt.Errorf("update chunk state: %w", err)
	}
	uc.observer.ChunkOutcome(state)
	return state, nil
}

// segmentsFromTranscription maps the provider's speaker tags to SpeakerK tokens in
// first-seen order within the chunk. Every provider segment is kept, untagged ones
// sharing a token. A result with no segments but non-empty text becomes a single
// Speaker1 segment.
func segmentsFromTranscription(meetingID string, sequence int, result domain.Transcription, now time.Time) []domain.TranscriptSegment {
	out := make([]domain.TranscriptSegment, 0, len(result.Segments))
	tokens := make(map[string]string)

	for _, seg := range result.Segments {
		text := strings.TrimSpace(seg.Text)
		tag := strings.TrimSpace(seg.SpeakerTag)
		token, ok := tokens[tag]
		if !ok {
			token = fmt.Sprintf("Speaker%d", len(tokens)+1)
			tokens[tag] = token
		}
		out = append(out, domain.TranscriptSegment{
			MeetingID:     meetingID,
			ChunkSequence: sequence,
			Speaker:       token,
			Text:          text,
			CreatedAt:     now,
		})
	}

	if len(result.Segments) == 0 {
		if text := strings.TrimSpace(result.Text); text != "" {
			out = append(out, domain.TranscriptSegment{
				MeetingID:     meetingID,
				ChunkSequence: sequence,
				Speaker:       "Speaker1",
				Text:          text,
				CreatedAt:     now,
			})
		}
	}
	return out
}
