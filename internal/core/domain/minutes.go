package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type TaskType string

const (
	TaskTypeNew   TaskType = "new"
	TaskTypePrior TaskType = "prior"
)

type TaskState string

const (
	TaskStatePending TaskState = "pending"
	TaskStateDone    TaskState = "done"
)

// Task is a persisted action item. TaskID is the per-regeneration sequential id
// ("task_1", "task_2", ...).
type Task struct {
	MeetingID   string    `json:"meeting_id"`
	TaskID      string    `json:"task_id"`
	Type        TaskType  `json:"type"`
	Description string    `json:"description"`
	Owner       string    `json:"owner"`
	State       TaskState `json:"state"`
	DueDate     string    `json:"due_date"`
}

// MinutesIdentification is the identification block of the minutes document. The
// JSON keys are the fixed schema the completion service is asked to produce.
type MinutesIdentification struct {
	Client       string   `json:"cliente"`
	Project      string   `json:"proyecto"`
	Date         string   `json:"fecha"`
	StartTime    string   `json:"hora_inicio"`
	EndTime      string   `json:"hora_fin"`
	Responsible  string   `json:"responsable"`
	Participants []string `json:"participantes"`
}

// MinutesTask is an action item as it appears inside the minutes document.
type MinutesTask struct {
	ID          string `json:"id"`
	Description string `json:"descripcion"`
	Owner       string `json:"responsable"`
	DueDate     string `json:"fecha_compromiso"`
}

// UnmarshalJSON accepts either a task object or a bare description string, and
// tolerates non-string scalars in the object fields. A due date that is not a
// string is dropped so the default due date applies.
func (t *MinutesTask) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*t = MinutesTask{Description: text}
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("task must be an object or a string: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("task must not be null")
	}
	*t = MinutesTask{
		ID:          scalarString(raw["id"]),
		Description: scalarString(raw["descripcion"]),
		Owner:       scalarString(raw["responsable"]),
		DueDate:     textOnly(raw["fecha_compromiso"]),
	}
	return nil
}

func scalarString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return ""
	}
}

func textOnly(v any) string {
	if value, ok := v.(string); ok {
		return value
	}
	return ""
}

// MinutesDocument is the acta: one per meeting, replaced wholesale on every
// successful regeneration.
type MinutesDocument struct {
	Identification MinutesIdentification `json:"identificacion"`
	PriorTasks     []MinutesTask         `json:"tareas_anteriores"`
	NewTasks       []MinutesTask         `json:"tareas_nuevas"`
	Summary        string                `json:"resumen_reunion"`
	Observations   string                `json:"observaciones_generales"`
}

// Normalize replaces nil slices with empty ones so the document always serializes
// every field the same way.
func (d *MinutesDocument) Normalize() {
	if d.PriorTasks == nil {
		d.PriorTasks = []MinutesTask{}
	}
	if d.NewTasks == nil {
		d.NewTasks = []MinutesTask{}
	}
	if d.Identification.Participants == nil {
		d.Identification.Participants = []string{}
	}
}

// IdentificationFor renders the canonical identification block of a meeting, with
// times expressed in loc.
func IdentificationFor(m *Meeting, loc *time.Location) MinutesIdentification {
	if loc == nil {
		loc = time.UTC
	}
	participants := make([]string, 0, len(m.Identification.Participants))
	participants = append(participants, m.Identification.Participants...)

	out := MinutesIdentification{
		Client:       m.Identification.Client,
		Project:      m.Identification.Project,
		Responsible:  m.Identification.Responsible,
		Participants: participants,
	}
	if !m.StartedAt.IsZero() {
		started := m.StartedAt.In(loc)
		out.Date = started.Format(DateLayout)
		out.StartTime = started.Format("15:04")
	}
	if m.EndedAt != nil && !m.EndedAt.IsZero() {
		out.EndTime = m.EndedAt.In(loc).Format("15:04")
	}
	return out
}

// NormalizeDescription is the comparison key used for task deduplication.
func NormalizeDescription(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}
