package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
	"github.com/kirillkom/meeting-minutes/internal/core/ports"
)

const defaultUserID = "default"

type MeetingUseCase struct {
	meetings ports.MeetingRepository
	segments ports.SegmentRepository
	minutes  ports.MinutesRepository
	tasks    ports.TaskRepository
	queue    ports.MessageQueue
	exporter ports.MinutesExporter
	settings PipelineSettings
	now      func() time.Time
}

func NewMeetingUseCase(
	meetings ports.MeetingRepository,
	segments ports.SegmentRepository,
	minutes ports.MinutesRepository,
	tasks ports.TaskRepository,
	queue ports.MessageQueue,
	exporter ports.MinutesExporter,
	settings PipelineSettings,
) *MeetingUseCase {
	return &MeetingUseCase{
		meetings: meetings,
		segments: segments,
		minutes:  minutes,
		tasks:    tasks,
		queue:    queue,
		exporter: exporter,
		settings: settings.normalize(),
		now:      time.Now,
	}
}

func (uc *MeetingUseCase) StartMeeting(ctx context.Context, userID string, ident domain.Identification) (*domain.Meeting, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = defaultUserID
	}
	ident.Client = strings.TrimSpace(ident.Client)
	ident.Project = strings.TrimSpace(ident.Project)
	ident.Responsible = strings.TrimSpace(ident.Responsible)
	participants := make([]string, 0, len(ident.Participants))
	for _, p := range ident.Participants {
		if p = strings.TrimSpace(p); p != "" {
			participants = append(participants, p)
		}
	}
	ident.Participants = participants

	meeting := &domain.Meeting{
		ID:             uuid.NewString(),
		UserID:         userID,
		State:          domain.MeetingActive,
		StartedAt:      uc.now().UTC(),
		Identification: ident,
	}
	if err := uc.meetings.CreateMeeting(ctx, meeting); err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}
	return meeting, nil
}

// EndMeeting records the end time. Ending an already ended meeting returns it as is.
func (uc *MeetingUseCase) EndMeeting(ctx context.Context, meetingID string) (*domain.Meeting, error) {
	meeting, err := uc.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.State == domain.MeetingEnded {
		return meeting, nil
	}

	endedAt := uc.now().UTC()
	meeting.State = domain.MeetingEnded
	meeting.EndedAt = &endedAt
	if err := uc.meetings.EndMeeting(ctx, meeting); err != nil {
		return nil, fmt.Errorf("end meeting: %w", err)
	}
	return meeting, nil
}

func (uc *MeetingUseCase) GetMeeting(ctx context.Context, meetingID string) (*domain.Meeting, error) {
	if err := validateMeetingID("get meeting", meetingID); err != nil {
		return nil, err
	}
	meeting, err := uc.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("get meeting: %w", err)
	}
	return meeting, nil
}

func (uc *MeetingUseCase) ListMeetings(ctx context.Context, userID string) ([]domain.Meeting, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = defaultUserID
	}
	meetings, err := uc.meetings.ListMeetings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return meetings, nil
}

func (uc *MeetingUseCase) Transcript(ctx context.Context, meetingID string) ([]domain.TranscriptSegment, error) {
	if _, err := uc.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	segments, err := uc.segments.ListSegments(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	return segments, nil
}

func (uc *MeetingUseCase) GetMinutes(ctx context.Context, meetingID string) (*domain.MinutesDocument, error) {
	if err := validateMeetingID("get minutes", meetingID); err != nil {
		return nil, err
	}
	doc, err := uc.minutes.GetMinutes(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("get minutes: %w", err)
	}
	doc.Normalize()
	return doc, nil
}

// SaveMinutes stores a manually edited document. The identification block is always
// rewritten from the meeting record.
func (uc *MeetingUseCase) SaveMinutes(ctx context.Context, meetingID string, doc domain.MinutesDocument) (*domain.MinutesDocument, error) {
	meeting, err := uc.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	doc.Identification = domain.IdentificationFor(meeting, uc.settings.Location)
	doc.Normalize()
	if err := uc.minutes.UpsertMinutes(ctx, meetingID, doc); err != nil {
		return nil, fmt.Errorf("save minutes: %w", err)
	}
	return &doc, nil
}

func (uc *MeetingUseCase) ListTasks(ctx context.Context, meetingID string) ([]domain.Task, error) {
	if err := validateMeetingID("list tasks", meetingID); err != nil {
		return nil, err
	}
	tasks, err := uc.tasks.ListTasks(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ReplaceTasks overwrites the meeting's task set with a manually edited one. Blank
// descriptions are rejected; missing ids, types, states and due dates are filled in.
func (uc *MeetingUseCase) ReplaceTasks(ctx context.Context, meetingID string, tasks []domain.Task) ([]domain.Task, error) {
	meeting, err := uc.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	ident := domain.IdentificationFor(meeting, uc.settings.Location)
	defaultDue, err := domain.BusinessDaysAfter(ident.Date, uc.settings.DueBusinessDays)
	if err != nil {
		defaultDue = domain.AddBusinessDays(uc.now().In(uc.settings.Location), uc.settings.DueBusinessDays).Format(domain.DateLayout)
	}

	out := make([]domain.Task, 0, len(tasks))
	for i, task := range tasks {
		task.Description = strings.TrimSpace(task.Description)
		if task.Description == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "replace tasks", fmt.Errorf("task %d has an empty description", i+1))
		}
		task.MeetingID = meetingID
		if strings.TrimSpace(task.TaskID) == "" {
			task.TaskID = fmt.Sprintf("task_%d", i+1)
		}
		if task.Type == "" {
			task.Type = domain.TaskTypeNew
		}
		if task.Type != domain.TaskTypeNew && task.Type != domain.TaskTypePrior {
			return nil, domain.WrapError(domain.ErrInvalidInput, "replace tasks", fmt.Errorf("task %d has unknown type %q", i+1, task.Type))
		}
		if task.State == "" {
			task.State = domain.TaskStatePending
		}
		if task.State != domain.TaskStatePending && task.State != domain.TaskStateDone {
			return nil, domain.WrapError(domain.ErrInvalidInput, "replace tasks", fmt.Errorf("task %d has unknown state %q", i+1, task.State))
		}
		task.Owner = strings.TrimSpace(task.Owner)
		task.DueDate = strings.TrimSpace(task.DueDate)
		if task.DueDate == "" {
			task.DueDate = defaultDue
		}
		out = append(out, task)
	}

	if err := uc.tasks.ReplaceTasks(ctx, meetingID, out); err != nil {
		return nil, fmt.Errorf("replace tasks: %w", err)
	}
	return out, nil
}

// RequestReprocess asks the worker to clear the tasks and regenerate the minutes.
func (uc *MeetingUseCase) RequestReprocess(ctx context.Context, meetingID string) error {
	if _, err := uc.GetMeeting(ctx, meetingID); err != nil {
		return err
	}
	if err := uc.queue.PublishRegenerationRequested(ctx, meetingID); err != nil {
		return fmt.Errorf("publish regeneration request: %w", err)
	}
	return nil
}

func (uc *MeetingUseCase) ExportMinutes(ctx context.Context, meetingID string) ([]byte, error) {
	meeting, err := uc.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	doc, err := uc.GetMinutes(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	tasks, err := uc.tasks.ListTasks(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	data, err := uc.exporter.Export(meeting, doc, tasks)
	if err != nil {
		return nil, fmt.Errorf("export minutes: %w", err)
	}
	return data, nil
}
