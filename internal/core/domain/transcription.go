package domain

// TranscriptionSegment is a single timestamped piece of ASR output. SpeakerTag is the
// provider's own label and is only meaningful within one response.
type TranscriptionSegment struct {
	StartSec   float64 `json:"start"`
	EndSec     float64 `json:"end"`
	SpeakerTag string  `json:"speaker,omitempty"`
	Text       string  `json:"text"`
}

// Transcription is the ASR result for one chunk.
type Transcription struct {
	Text     string                 `json:"text"`
	Language string                 `json:"language,omitempty"`
	Segments []TranscriptionSegment `json:"segments"`
}
