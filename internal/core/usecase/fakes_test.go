package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
	"github.com/kirillkom/meeting-minutes/internal/core/ports"
)

// memStore implements every repository port in memory.
type memStore struct {
	mu       sync.Mutex
	meetings map[string]domain.Meeting
	chunks   map[string]domain.Chunk
	segments []domain.TranscriptSegment
	minutes  map[string]domain.MinutesDocument
	tasks    map[string][]domain.Task
	nextID   int64

	appendErr   error
	upsertCalls int
	updated     []domain.TranscriptSegment
}

func newMemStore() *memStore {
	return &memStore{
		meetings: make(map[string]domain.Meeting),
		chunks:   make(map[string]domain.Chunk),
		minutes:  make(map[string]domain.MinutesDocument),
		tasks:    make(map[string][]domain.Task),
	}
}

func chunkKey(meetingID string, sequence int) string {
	return fmt.Sprintf("%s#%d", meetingID, sequence)
}

func (s *memStore) CreateMeeting(_ context.Context, meeting *domain.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[meeting.ID] = *meeting
	return nil
}

func (s *memStore) GetMeeting(_ context.Context, id string) (*domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meeting, ok := s.meetings[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrMeetingNotFound, "get meeting", errors.New(id))
	}
	return &meeting, nil
}

func (s *memStore) ListMeetings(_ context.Context, userID string) ([]domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Meeting, 0)
	for _, meeting := range s.meetings {
		if meeting.UserID == userID {
			out = append(out, meeting)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (s *memStore) EndMeeting(_ context.Context, meeting *domain.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[meeting.ID] = *meeting
	return nil
}

func (s *memStore) CreateChunk(_ context.Context, chunk *domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[chunkKey(chunk.MeetingID, chunk.Sequence)] = *chunk
	return nil
}

func (s *memStore) GetChunk(_ context.Context, meetingID string, sequence int) (*domain.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunk, ok := s.chunks[chunkKey(meetingID, sequence)]
	if !ok {
		return nil, domain.WrapError(domain.ErrChunkNotFound, "get chunk", errors.New(meetingID))
	}
	return &chunk, nil
}

func (s *memStore) UpdateChunkState(_ context.Context, meetingID string, sequence int, state domain.ChunkState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := chunkKey(meetingID, sequence)
	chunk, ok := s.chunks[key]
	if !ok {
		return domain.WrapError(domain.ErrChunkNotFound, "update chunk", errors.New(meetingID))
	}
	chunk.State = state
	s.chunks[key] = chunk
	return nil
}

func (s *memStore) chunkState(meetingID string, sequence int) domain.ChunkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks[chunkKey(meetingID, sequence)].State
}

func (s *memStore) ReplaceChunkSegments(_ context.Context, meetingID string, sequence int, segments []domain.TranscriptSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	kept := s.segments[:0]
	for _, segment := range s.segments {
		if segment.MeetingID != meetingID || segment.ChunkSequence != sequence {
			kept = append(kept, segment)
		}
	}
	s.segments = kept
	for _, segment := range segments {
		s.nextID++
		segment.ID = s.nextID
		s.segments = append(s.segments, segment)
	}
	return nil
}

func (s *memStore) ListSegments(_ context.Context, meetingID string) ([]domain.TranscriptSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TranscriptSegment, 0)
	for _, segment := range s.segments {
		if segment.MeetingID == meetingID {
			out = append(out, segment)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ChunkSequence != out[j].ChunkSequence {
			return out[i].ChunkSequence < out[j].ChunkSequence
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memStore) UpdateSegments(_ context.Context, segments []domain.TranscriptSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, update := range segments {
		for i := range s.segments {
			if s.segments[i].ID == update.ID {
				s.segments[i].Speaker = update.Speaker
				s.segments[i].Text = update.Text
			}
		}
		s.updated = append(s.updated, update)
	}
	return nil
}

func (s *memStore) UpsertMinutes(_ context.Context, meetingID string, doc domain.MinutesDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	s.minutes[meetingID] = doc
	return nil
}

func (s *memStore) GetMinutes(_ context.Context, meetingID string) (*domain.MinutesDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.minutes[meetingID]
	if !ok {
		return nil, domain.WrapError(domain.ErrMinutesNotFound, "get minutes", errors.New(meetingID))
	}
	return &doc, nil
}

func (s *memStore) ReplaceTasks(_ context.Context, meetingID string, tasks []domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[meetingID] = append([]domain.Task(nil), tasks...)
	return nil
}

func (s *memStore) ListTasks(_ context.Context, meetingID string) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Task{}, s.tasks[meetingID]...), nil
}

func (s *memStore) seedMeeting(id string, startedAt time.Time, ident domain.Identification) {
	s.meetings[id] = domain.Meeting{
		ID:             id,
		UserID:         "default",
		State:          domain.MeetingActive,
		StartedAt:      startedAt,
		Identification: ident,
	}
}

func (s *memStore) seedSegments(meetingID string, texts ...string) {
	for _, text := range texts {
		s.nextID++
		s.segments = append(s.segments, domain.TranscriptSegment{
			ID:        s.nextID,
			MeetingID: meetingID,
			Speaker:   "Speaker1",
			Text:      text,
		})
	}
}

// fakeLLM answers refinement (free text) and synthesis (JSON) requests separately.
type fakeLLM struct {
	mu         sync.Mutex
	refine     func() (string, error)
	synthesize func() (string, error)

	refineCalls int
	synthCalls  int
	active      int
	maxActive   int
	prompts     []string
}

func (f *fakeLLM) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	if len(req.Messages) > 0 {
		f.prompts = append(f.prompts, req.Messages[0].Content)
	}
	handler := f.refine
	if req.JSON {
		f.synthCalls++
		handler = f.synthesize
	} else {
		f.refineCalls++
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()
	if handler == nil {
		return "", nil
	}
	return handler()
}

func (f *fakeLLM) counts() (refine, synth, maxActive int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refineCalls, f.synthCalls, f.maxActive
}

type fakeObserver struct {
	mu        sync.Mutex
	started   int
	outcomes  []string
	coalesced int
	stages    []string
	chunks    []domain.ChunkState
}

func (o *fakeObserver) RegenerationStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *fakeObserver) RegenerationFinished(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *fakeObserver) RegenerationCoalesced() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.coalesced++
}

func (o *fakeObserver) RepairStage(stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage)
}

func (o *fakeObserver) ChunkOutcome(state domain.ChunkState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.chunks = append(o.chunks, state)
}

func (o *fakeObserver) coalescedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.coalesced
}

type fakeStorage struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: make(map[string][]byte)}
}

func (f *fakeStorage) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = raw
	return nil
}

func (f *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.files[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type fakeQueue struct {
	mu          sync.Mutex
	chunks      []domain.ChunkUploaded
	regenerated []string
	err         error
}

func (f *fakeQueue) PublishChunkUploaded(_ context.Context, event domain.ChunkUploaded) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, event)
	return nil
}

func (f *fakeQueue) SubscribeChunkUploaded(context.Context, func(context.Context, domain.ChunkUploaded) error) error {
	return errors.New("not implemented")
}

func (f *fakeQueue) PublishRegenerationRequested(_ context.Context, meetingID string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regenerated = append(f.regenerated, meetingID)
	return nil
}

func (f *fakeQueue) SubscribeRegenerationRequested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type fakeTranscriber struct {
	result   domain.Transcription
	err      error
	filename string
	audio    string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, filename string, audio io.Reader) (domain.Transcription, error) {
	raw, _ := io.ReadAll(audio)
	f.filename = filename
	f.audio = string(raw)
	return f.result, f.err
}

type fakeRegenerator struct {
	mu        sync.Mutex
	scheduled []string
}

func (f *fakeRegenerator) TriggerRegeneration(context.Context, string) (*domain.MinutesDocument, error) {
	return nil, nil
}

func (f *fakeRegenerator) ForceReprocess(context.Context, string) (*domain.MinutesDocument, error) {
	return nil, nil
}

func (f *fakeRegenerator) Schedule(meetingID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, meetingID)
}

type fakeExporter struct {
	meeting *domain.Meeting
	doc     *domain.MinutesDocument
	tasks   []domain.Task
}

func (f *fakeExporter) Export(meeting *domain.Meeting, doc *domain.MinutesDocument, tasks []domain.Task) ([]byte, error) {
	f.meeting = meeting
	f.doc = doc
	f.tasks = tasks
	return []byte("xlsx"), nil
}
