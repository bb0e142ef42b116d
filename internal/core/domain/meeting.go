package domain

import "time"

type MeetingState string

const (
	MeetingActive MeetingState = "active"
	MeetingEnded  MeetingState = "ended"
)

// Identification is the caller-supplied ground truth copied verbatim into every
// minutes document.
type Identification struct {
	Client       string   `json:"client"`
	Project      string   `json:"project"`
	Responsible  string   `json:"responsible"`
	Participants []string `json:"participants"`
}

type Meeting struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	State          MeetingState   `json:"state"`
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        *time.Time     `json:"ended_at,omitempty"`
	Identification Identification `json:"identification"`
}

type ChunkState string

const (
	ChunkPending        ChunkState = "pending"
	ChunkProcessed      ChunkState = "processed"
	ChunkSkippedNoQuota ChunkState = "skipped_no_quota"
	ChunkFailed         ChunkState = "failed"
)

type Chunk struct {
	MeetingID  string     `json:"meeting_id"`
	Sequence   int        `json:"sequence"`
	StorageKey string     `json:"storage_key"`
	State      ChunkState `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TranscriptSegment is one line of the transcript. ID is assigned by the store on
// insert and identifies the segment for in-place refinement updates.
type TranscriptSegment struct {
	ID            int64     `json:"id"`
	MeetingID     string    `json:"meeting_id"`
	ChunkSequence int       `json:"chunk_sequence"`
	Speaker       string    `json:"speaker"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
}

// ChunkUploaded is published once a chunk's audio is stored.
type ChunkUploaded struct {
	MeetingID string `json:"meeting_id"`
	Sequence  int    `json:"sequence"`
}
