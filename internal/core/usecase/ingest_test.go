package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
	"github.com/kirillkom/meeting-minutes/internal/core/ports"
)

type ingestFixture struct {
	store       *memStore
	storage     *fakeStorage
	queue       *fakeQueue
	regenerator *fakeRegenerator
	observer    *fakeObserver
	uc          *IngestChunkUseCase
}

func newIngestFixture(transcriber ports.Transcriber) *ingestFixture {
	f := &ingestFixture{
		store:       newMemStore(),
		storage:     newFakeStorage(),
		queue:       &fakeQueue{},
		regenerator: &fakeRegenerator{},
		observer:    &fakeObserver{},
	}
	f.store.seedMeeting("m1", meetingStart, domain.Identification{Client: "Acme"})
	f.uc = NewIngestChunkUseCase(f.store, f.store, f.store, f.storage, f.queue, transcriber, f.regenerator, f.observer)
	f.uc.now = func() time.Time { return meetingStart.Add(time.Minute) }
	return f
}

func (f *ingestFixture) upload(t *testing.T, sequence int) {
	t.Helper()
	if _, err := f.uc.Upload(context.Background(), "m1", sequence, bytes.NewBufferString("audio-bytes")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
}

func TestIngestUploadSuccess(t *testing.T) {
	f := newIngestFixture(&fakeTranscriber{})

	chunk, err := f.uc.Upload(context.Background(), "m1", 2, bytes.NewBufferString("audio-bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if chunk.State != domain.ChunkPending || chunk.StorageKey != "m1/chunk_2.webm" {
		t.Fatalf("unexpected chunk %+v", chunk)
	}
	if string(f.storage.files["m1/chunk_2.webm"]) != "audio-bytes" {
		t.Fatalf("audio not stored")
	}
	if len(f.queue.chunks) != 1 || f.queue.chunks[0] != (domain.ChunkUploaded{MeetingID: "m1", Sequence: 2}) {
		t.Fatalf("unexpected published events %+v", f.queue.chunks)
	}
}

func TestIngestUploadRejectsInvalidInput(t *testing.T) {
	f := newIngestFixture(&fakeTranscriber{})

	cases := []struct {
		name      string
		meetingID string
		sequence  int
	}{
		{name: "empty id", meetingID: " ", sequence: 0},
		{name: "path traversal", meetingID: "../m1", sequence: 0},
		{name: "negative sequence", meetingID: "m1", sequence: -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.uc.Upload(context.Background(), tc.meetingID, tc.sequence, bytes.NewBufferString("x"))
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
	if len(f.storage.files) != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestIngestUploadUnknownMeeting(t *testing.T) {
	f := newIngestFixture(&fakeTranscriber{})

	_, err := f.uc.Upload(context.Background(), "missing", 0, bytes.NewBufferString("x"))
	if !domain.IsKind(err, domain.ErrMeetingNotFound) {
		t.Fatalf("expected meeting not found, got %v", err)
	}
}

func TestIngestUploadQueueError(t *testing.T) {
	f := newIngestFixture(&fakeTranscriber{})
	f.queue.err = errors.New("queue down")

	_, err := f.uc.Upload(context.Background(), "m1", 0, bytes.NewBufferString("x"))
	if err == nil || !strings.Contains(err.Error(), "publish chunk") {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestProcessChunkMapsSpeakersPerChunk(t *testing.T) {
	transcriber := &fakeTranscriber{result: domain.Transcription{
		Text: "ignored aggregate",
		Segments: []domain.TranscriptionSegment{
			{SpeakerTag: "B", Text: " hello "},
			{SpeakerTag: "A", Text: "hi"},
			{SpeakerTag: "B", Text: "how are you"},
			{SpeakerTag: "A", Text: "   "},
		},
	}}
	f := newIngestFixture(transcriber)
	f.upload(t, 0)

	state, err := f.uc.ProcessChunk(context.Background(), "m1", 0)
	if err != nil {
		t.Fatalf("ProcessChunk() error = %v", err)
	}
	if state != domain.ChunkProcessed {
		t.Fatalf("expected processed, got %s", state)
	}
	if transcriber.filename != "chunk_0.webm" || transcriber.audio != "audio-bytes" {
		t.Fatalf("unexpected transcriber input %q / %q", transcriber.filename, transcriber.audio)
	}

	segments, _ := f.store.ListSegments(context.Background(), "m1")
	want := []struct{ speaker, text string }{
		{"Speaker1", "hello"},
		{"Speaker2", "hi"},
		{"Speaker1", "how are you"},
		{"Speaker2", ""},
	}
	if len(segments) != len(want) {
		t.Fatalf("expected %d segments, got %+v", len(want), segments)
	}
	for i, w := range want {
		if segments[i].Speaker != w.speaker || segments[i].Text != w.text || segments[i].ChunkSequence != 0 {
			t.Fatalf("segment %d = %+v", i, segments[i])
		}
	}
	if len(f.regenerator.scheduled) != 1 || f.regenerator.scheduled[0] != "m1" {
		t.Fatalf("expected one scheduled regeneration, got %v", f.regenerator.scheduled)
	}
	if f.store.chunkState("m1", 0) != domain.ChunkProcessed {
		t.Fatalf("chunk state not persisted")
	}
}

func TestIngestTranscriptAggregateTextOnly(t *testing.T) {
	f := newIngestFixture(&fakeTranscriber{})
	f.upload(t, 1)

	state, err := f.uc.IngestTranscript(context.Background(), "m1", 1, domain.Transcription{Text: "  buenos dias  "})
	if err != nil || state != domain.ChunkProcessed {
		t.Fatalf("IngestTranscript() = %s, %v", state, err)
	}
	segments, _ := f.store.ListSegments(context.Background(), "m1")
	if len(segments) != 1 || segments[0].Speaker != "Speaker1" || segments[0].Text != "buenos dias" {
		t.Fatalf("unexpected segments %+v", segments)
	}
}

func TestIngestTranscriptEmptyDoesNotSchedule(t *testing.T) {
	f := newIngestFixture(&fakeTranscriber{})
	f.upload(t, 0)

	state, err := f.uc.IngestTranscript(context.Background(), "m1", 0, domain.Transcription{})
	if err != nil || state != domain.ChunkProcessed {
		t.Fatalf("IngestTranscript() = %s, %v", state, err)
	}
	if len(f.regenerator.scheduled) != 0 {
		t.Fatalf("expected no regeneration, got %v", f.regenerator.scheduled)
	}
}

func TestProcessChunkQuotaIsSkipped(t *testing.T) {
	f := newIngestFixture(&fakeTranscriber{
		err: domain.WrapError(domain.ErrQuotaExceeded, "transcribe", errors.New("status 429")),
	})
	f.upload(t, 0)

	state, err := f.uc.ProcessChunk(context.Background(), "m1", 0)
	if err != nil {
		t.Fatalf("ProcessChunk() error = %v", err)
	}
	if state != domain.ChunkSkippedNoQuota || f.store.chunkState("m1", 0) != domain.ChunkSkippedNoQuota {
		t.Fatalf("expected skipped chunk, got %s", state)
	}
	if segments, _ := f.store.ListSegments(context.Background(), "m1"); len(segments) != 0 {
		t.Fatalf("expected no segments, got %+v", segments)
	}
	if len(f.regenerator.scheduled) != 0 {
		t.Fatalf("expected no regeneration")
	}
	if len(f.observer.chunks) != 1 || f.observer.chunks[0] != domain.ChunkSkippedNoQuota {
		t.Fatalf("unexpected observed outcomes %v", f.observer.chunks)
	}
}

func TestProcessChunkTranscriberFailureMarksFailed(t *testing.T) {
	f := newIngestFixture(&fakeTranscriber{err: errors.New("bad audio")})
	f.upload(t, 0)

	state, err := f.uc.ProcessChunk(context.Background(), "m1", 0)
	if err != nil {
		t.Fatalf("ProcessChunk() error = %v", err)
	}
	if state != domain.ChunkFailed || f.store.chunkState("m1", 0) != domain.ChunkFailed {
		t.Fatalf("expected failed chunk, got %s", state)
	}
}

func TestProcessChunkWithoutTranscriberIsSkipped(t *testing.T) {
	f := newIngestFixture(nil)
	f.upload(t, 0)

	state, err := f.uc.ProcessChunk(context.Background(), "m1", 0)
	if err != nil || state != domain.ChunkSkippedNoQuota {
		t.Fatalf("ProcessChunk() = %s, %v", state, err)
	}
}

func TestProcessChunkAlreadyProcessed(t *testing.T) {
	transcriber := &fakeTranscriber{err: errors.New("must not be called")}
	f := newIngestFixture(transcriber)
	f.upload(t, 0)
	_ = f.store.UpdateChunkState(context.Background(), "m1", 0, domain.ChunkProcessed)

	state, err := f.uc.ProcessChunk(context.Background(), "m1", 0)
	if err != nil || state != domain.ChunkProcessed {
		t.Fatalf("ProcessChunk() = %s, %v", state, err)
	}
	if transcriber.filename != "" {
		t.Fatalf("transcriber should not be called")
	}
}

func TestIngestTranscriptAppendFailureMarksFailed(t *testing.T) {
	f := newIngestFixture(&fakeTranscriber{})
	f.upload(t, 0)
	f.store.appendErr = errors.New("disk full")

	state, err := f.uc.IngestTranscript(context.Background(), "m1", 0, domain.Transcription{Text: "hello"})
	if err == nil {
		t.Fatalf("expected append error")
	}
	if state != domain.ChunkFailed || f.store.chunkState("m1", 0) != domain.ChunkFailed {
		t.Fatalf("expected failed chunk, got %s", state)
	}
	if len(f.regenerator.scheduled) != 0 {
		t.Fatalf("expected no regeneration")
	}
}

func TestProcessChunkReuploadReplacesSegments(t *testing.T) {
	transcriber := &fakeTranscriber{result: domain.Transcription{Text: "primera toma"}}
	f := newIngestFixture(transcriber)
	f.upload(t, 0)
	f.upload(t, 1)
	if _, err := f.uc.ProcessChunk(context.Background(), "m1", 1); err != nil {
		t.Fatalf("ProcessChunk(1) error = %v", err)
	}

	for _, text := range []string{"primera toma", "segunda toma"} {
		transcriber.result = domain.Transcription{Text: text}
		f.upload(t, 0)
		if state, err := f.uc.ProcessChunk(context.Background(), "m1", 0); err != nil || state != domain.ChunkProcessed {
			t.Fatalf("ProcessChunk(0) = %s, %v", state, err)
		}
	}

	segments, _ := f.store.ListSegments(context.Background(), "m1")
	perChunk := map[int][]string{}
	for _, seg := range segments {
		perChunk[seg.ChunkSequence] = append(perChunk[seg.ChunkSequence], seg.Text)
	}
	if len(perChunk[0]) != 1 || perChunk[0][0] != "segunda toma" {
		t.Fatalf("chunk 0 segments = %v", perChunk[0])
	}
	if len(perChunk[1]) != 1 {
		t.Fatalf("chunk 1 segments = %v", perChunk[1])
	}
}
