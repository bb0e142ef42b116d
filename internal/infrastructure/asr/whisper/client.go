package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
	"github.com/kirillkom/meeting-minutes/internal/infrastructure/resilience"
)

const maxAudioBytes = 25 << 20

// Client calls an OpenAI-compatible /audio/transcriptions endpoint with
// response_format=verbose_json.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, apiKey, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

type verboseTranscription struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Text    string  `json:"text"`
		Speaker string  `json:"speaker"`
		Spk     string  `json:"spk"`
	} `json:"segments"`
}

func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (domain.Transcription, error) {
	data, err := io.ReadAll(io.LimitReader(audio, maxAudioBytes+1))
	if err != nil {
		return domain.Transcription{}, fmt.Errorf("read audio: %w", err)
	}
	if len(data) > maxAudioBytes {
		return domain.Transcription{}, domain.WrapError(domain.ErrInvalidInput, "transcribe", fmt.Errorf("audio exceeds %d bytes", maxAudioBytes))
	}
	if len(data) == 0 {
		return domain.Transcription{}, domain.WrapError(domain.ErrInvalidInput, "transcribe", fmt.Errorf("audio is empty"))
	}

	var response verboseTranscription
	call := func(callCtx context.Context) error {
		response = verboseTranscription{}
		return c.postAudio(callCtx, filename, data, &response)
	}

	if c.executor != nil {
		err = c.executor.Execute(ctx, "asr.transcribe", call, classifyASRError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.Transcription{}, wrapProviderError("transcribe", err)
	}

	out := domain.Transcription{
		Text:     strings.TrimSpace(response.Text),
		Language: response.Language,
		Segments: make([]domain.TranscriptionSegment, 0, len(response.Segments)),
	}
	for _, seg := range response.Segments {
		tag := seg.Spk
		if tag == "" {
			tag = seg.Speaker
		}
		out.Segments = append(out.Segments, domain.TranscriptionSegment{
			StartSec:   seg.Start,
			EndSec:     seg.End,
			SpeakerTag: tag,
			Text:       seg.Text,
		})
	}
	return out, nil
}

func (c *Client) postAudio(ctx context.Context, filename string, data []byte, out any) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", c.model); err != nil {
		return fmt.Errorf("write model field: %w", err)
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return fmt.Errorf("write response_format field: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return fmt.Errorf("create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
			RetryAfter: resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode transcription response: %w", err)
	}
	return nil
}
