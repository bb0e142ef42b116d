package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/config"
	"github.com/kirillkom/meeting-minutes/internal/core/domain"
	"github.com/kirillkom/meeting-minutes/internal/core/ports"
	"github.com/kirillkom/meeting-minutes/internal/observability/metrics"
)

const (
	serviceName      = "api"
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	multipartOverrun = 1 << 20
)

type Router struct {
	meetings ports.MeetingService
	ingest   ports.ChunkIngestor
	metrics  *metrics.HTTPServerMetrics

	completionConfigured bool
	asrConfigured        bool
	maxChunkBytes        int64
	rateLimitRPS         float64
	rateLimitBurst       int
	maxInFlight          int
	backpressureWait     time.Duration
}

func NewRouter(cfg config.Config, meetings ports.MeetingService, ingest ports.ChunkIngestor) *Router {
	maxChunk := cfg.MaxChunkBytes
	if maxChunk <= 0 {
		maxChunk = 25 << 20
	}
	return &Router{
		meetings:             meetings,
		ingest:               ingest,
		completionConfigured: cfg.LLMProvider != "" && cfg.LLMProvider != "none",
		asrConfigured:        strings.TrimSpace(cfg.ASRBaseURL) != "",
		maxChunkBytes:        maxChunk,
		rateLimitRPS:         cfg.APIRateLimitRPS,
		rateLimitBurst:       cfg.APIRateLimitBurst,
		maxInFlight:          cfg.APIMaxInFlight,
		backpressureWait:     cfg.APIBackpressureWait,
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/meetings", rt.startMeeting)
	mux.HandleFunc("GET /v1/meetings", rt.listMeetings)
	mux.HandleFunc("GET /v1/meetings/{id}", rt.getMeeting)
	mux.HandleFunc("POST /v1/meetings/{id}/end", rt.endMeeting)
	mux.HandleFunc("POST /v1/meetings/{id}/chunks", rt.uploadChunk)
	mux.HandleFunc("GET /v1/meetings/{id}/transcript", rt.getTranscript)
	mux.HandleFunc("GET /v1/meetings/{id}/minutes", rt.getMinutes)
	mux.HandleFunc("PUT /v1/meetings/{id}/minutes", rt.putMinutes)
	mux.HandleFunc("GET /v1/meetings/{id}/minutes.xlsx", rt.exportMinutes)
	mux.HandleFunc("GET /v1/meetings/{id}/tasks", rt.getTasks)
	mux.HandleFunc("PUT /v1/meetings/{id}/tasks", rt.putTasks)
	mux.HandleFunc("POST /v1/meetings/{id}/reprocess", rt.reprocess)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.backpressureWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst, rt.onRateLimited)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) onRateLimited() {
	if rt.metrics != nil {
		rt.metrics.RecordRateLimited(serviceName)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "ok",
		"time":                  time.Now().UTC().Format(time.RFC3339),
		"completion_configured": rt.completionConfigured,
		"asr_configured":        rt.asrConfigured,
	})
}

type startMeetingRequest struct {
	UserID       string   `json:"user_id"`
	Client       string   `json:"client"`
	Project      string   `json:"project"`
	Responsible  string   `json:"responsible"`
	Participants []string `json:"participants"`
}

func (rt *Router) startMeeting(w http.ResponseWriter, r *http.Request) {
	var req startMeetingRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	meeting, err := rt.meetings.StartMeeting(r.Context(), req.UserID, domain.Identification{
		Client:       req.Client,
		Project:      req.Project,
		Responsible:  req.Responsible,
		Participants: req.Participants,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, meeting)
}

func (rt *Router) listMeetings(w http.ResponseWriter, r *http.Request) {
	meetings, err := rt.meetings.ListMeetings(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meetings)
}

func (rt *Router) getMeeting(w http.ResponseWriter, r *http.Request) {
	meeting, err := rt.meetings.GetMeeting(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

func (rt *Router) endMeeting(w http.ResponseWriter, r *http.Request) {
	meeting, err := rt.meetings.EndMeeting(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

func (rt *Router) uploadChunk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxChunkBytes+multipartOverrun)

	file, fileHeader, err := r.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "chunk too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'audio' is required"})
		return
	}
	defer file.Close()

	if fileHeader.Size > rt.maxChunkBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "chunk too large"})
		return
	}

	rawSequence := r.FormValue("sequence")
	if rawSequence == "" {
		rawSequence = r.FormValue("chunkNumber")
	}
	sequence, err := strconv.Atoi(strings.TrimSpace(rawSequence))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'sequence' must be an integer"})
		return
	}

	chunk, err := rt.ingest.Upload(r.Context(), r.PathValue("id"), sequence, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordChunkUpload(serviceName, fileHeader.Size)
	}
	writeJSON(w, http.StatusAccepted, chunk)
}

func (rt *Router) getTranscript(w http.ResponseWriter, r *http.Request) {
	segments, err := rt.meetings.Transcript(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, segments)
}

func (rt *Router) getMinutes(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.meetings.GetMinutes(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) putMinutes(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body"})
		return
	}
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "minutes object required"})
		return
	}
	var doc domain.MinutesDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid minutes: " + err.Error()})
		return
	}

	saved, err := rt.meetings.SaveMinutes(r.Context(), r.PathValue("id"), doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (rt *Router) exportMinutes(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, err := rt.meetings.ExportMinutes(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="minutes-%s.xlsx"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (rt *Router) getTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := rt.meetings.ListTasks(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// putTasks accepts either a bare array or {"tasks": [...]}.
func (rt *Router) putTasks(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body"})
		return
	}

	var tasks []domain.Task
	trimmed := bytes.TrimSpace(raw)
	switch {
	case bytes.HasPrefix(trimmed, []byte("[")):
		err = json.Unmarshal(trimmed, &tasks)
	case bytes.HasPrefix(trimmed, []byte("{")):
		var wrapper struct {
			Tasks *[]domain.Task `json:"tasks"`
		}
		err = json.Unmarshal(trimmed, &wrapper)
		if err == nil && wrapper.Tasks == nil {
			err = errors.New("missing tasks")
		}
		if wrapper.Tasks != nil {
			tasks = *wrapper.Tasks
		}
	default:
		err = errors.New("not an array")
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tasks array required"})
		return
	}

	saved, err := rt.meetings.ReplaceTasks(r.Context(), r.PathValue("id"), tasks)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (rt *Router) reprocess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := rt.meetings.RequestReprocess(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"meeting_id": id, "status": "queued"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
		message = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}
