package httpadapter

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/config"
	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

type meetingServiceFake struct {
	mu sync.Mutex

	meeting      *domain.Meeting
	minutes      *domain.MinutesDocument
	err          error
	startedUser  string
	startedIdent domain.Identification
	savedTasks   []domain.Task
	reprocessed  []string
	export       []byte
}

func (f *meetingServiceFake) StartMeeting(_ context.Context, userID string, ident domain.Identification) (*domain.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startedUser = userID
	f.startedIdent = ident
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Meeting{ID: "m-1", UserID: userID, State: domain.MeetingActive, Identification: ident, StartedAt: time.Now().UTC()}, nil
}

func (f *meetingServiceFake) EndMeeting(_ context.Context, id string) (*domain.Meeting, error) {
	return f.lookup(id)
}

func (f *meetingServiceFake) GetMeeting(_ context.Context, id string) (*domain.Meeting, error) {
	return f.lookup(id)
}

func (f *meetingServiceFake) lookup(id string) (*domain.Meeting, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.meeting == nil || f.meeting.ID != id {
		return nil, domain.WrapError(domain.ErrMeetingNotFound, "get meeting", errors.New("id="+id))
	}
	return f.meeting, nil
}

func (f *meetingServiceFake) ListMeetings(context.Context, string) ([]domain.Meeting, error) {
	if f.meeting == nil {
		return []domain.Meeting{}, f.err
	}
	return []domain.Meeting{*f.meeting}, f.err
}

func (f *meetingServiceFake) Transcript(_ context.Context, id string) ([]domain.TranscriptSegment, error) {
	if _, err := f.lookup(id); err != nil {
		return nil, err
	}
	return []domain.TranscriptSegment{{ID: 1, MeetingID: id, Speaker: "Speaker1", Text: "hola"}}, nil
}

func (f *meetingServiceFake) GetMinutes(_ context.Context, id string) (*domain.MinutesDocument, error) {
	if f.minutes == nil {
		return nil, domain.WrapError(domain.ErrMinutesNotFound, "get minutes", errors.New("id="+id))
	}
	return f.minutes, nil
}

func (f *meetingServiceFake) SaveMinutes(_ context.Context, id string, doc domain.MinutesDocument) (*domain.MinutesDocument, error) {
	if _, err := f.lookup(id); err != nil {
		return nil, err
	}
	doc.Identification.Client = f.meeting.Identification.Client
	doc.Normalize()
	f.minutes = &doc
	return &doc, nil
}

func (f *meetingServiceFake) ListTasks(context.Context, string) ([]domain.Task, error) {
	return f.savedTasks, nil
}

func (f *meetingServiceFake) ReplaceTasks(_ context.Context, id string, tasks []domain.Task) ([]domain.Task, error) {
	if _, err := f.lookup(id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedTasks = tasks
	return tasks, nil
}

func (f *meetingServiceFake) RequestReprocess(_ context.Context, id string) error {
	if _, err := f.lookup(id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reprocessed = append(f.reprocessed, id)
	return nil
}

func (f *meetingServiceFake) ExportMinutes(_ context.Context, id string) ([]byte, error) {
	if _, err := f.lookup(id); err != nil {
		return nil, err
	}
	return f.export, nil
}

type ingestorFake struct {
	meetingID string
	sequence  int
	audio     []byte
	err       error
}

func (f *ingestorFake) Upload(_ context.Context, meetingID string, sequence int, audio io.Reader) (*domain.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(audio)
	if err != nil {
		return nil, err
	}
	f.meetingID, f.sequence, f.audio = meetingID, sequence, raw
	return &domain.Chunk{MeetingID: meetingID, Sequence: sequence, StorageKey: "k", State: domain.ChunkPending}, nil
}

func (f *ingestorFake) ProcessChunk(context.Context, string, int) (domain.ChunkState, error) {
	return domain.ChunkProcessed, nil
}

func (f *ingestorFake) IngestTranscript(context.Context, string, int, domain.Transcription) (domain.ChunkState, error) {
	return domain.ChunkProcessed, nil
}

func testConfig() config.Config {
	return config.Config{
		LLMProvider:   "openai",
		MaxChunkBytes: 1 << 20,
	}
}
