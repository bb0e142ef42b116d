package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

func newMeetingFixture() (*memStore, *fakeQueue, *fakeExporter, *MeetingUseCase) {
	store := newMemStore()
	queue := &fakeQueue{}
	exporter := &fakeExporter{}
	uc := NewMeetingUseCase(store, store, store, store, queue, exporter, PipelineSettings{})
	uc.now = func() time.Time { return meetingStart }
	return store, queue, exporter, uc
}

func TestStartMeetingDefaults(t *testing.T) {
	store, _, _, uc := newMeetingFixture()

	meeting, err := uc.StartMeeting(context.Background(), "", domain.Identification{
		Client:       " Acme ",
		Participants: []string{"Ana", " ", " Luis"},
	})
	if err != nil {
		t.Fatalf("StartMeeting() error = %v", err)
	}
	if meeting.ID == "" || meeting.UserID != "default" || meeting.State != domain.MeetingActive {
		t.Fatalf("unexpected meeting %+v", meeting)
	}
	if meeting.Identification.Client != "Acme" {
		t.Fatalf("client not trimmed: %q", meeting.Identification.Client)
	}
	if got := meeting.Identification.Participants; len(got) != 2 || got[1] != "Luis" {
		t.Fatalf("unexpected participants %v", got)
	}
	if _, ok := store.meetings[meeting.ID]; !ok {
		t.Fatalf("meeting not persisted")
	}
}

func TestEndMeetingIsIdempotent(t *testing.T) {
	store, _, _, uc := newMeetingFixture()
	store.seedMeeting("m1", meetingStart, domain.Identification{})

	uc.now = func() time.Time { return meetingStart.Add(time.Hour) }
	first, err := uc.EndMeeting(context.Background(), "m1")
	if err != nil {
		t.Fatalf("EndMeeting() error = %v", err)
	}
	if first.State != domain.MeetingEnded || first.EndedAt == nil || !first.EndedAt.Equal(meetingStart.Add(time.Hour)) {
		t.Fatalf("unexpected meeting %+v", first)
	}

	uc.now = func() time.Time { return meetingStart.Add(2 * time.Hour) }
	second, err := uc.EndMeeting(context.Background(), "m1")
	if err != nil {
		t.Fatalf("EndMeeting() error = %v", err)
	}
	if !second.EndedAt.Equal(*first.EndedAt) {
		t.Fatalf("end time changed on second call: %v", second.EndedAt)
	}
}

func TestEndMeetingUnknown(t *testing.T) {
	_, _, _, uc := newMeetingFixture()
	if _, err := uc.EndMeeting(context.Background(), "missing"); !domain.IsKind(err, domain.ErrMeetingNotFound) {
		t.Fatalf("expected meeting not found, got %v", err)
	}
}

func TestListMeetingsDefaultsUser(t *testing.T) {
	store, _, _, uc := newMeetingFixture()
	store.seedMeeting("old", meetingStart, domain.Identification{})
	store.seedMeeting("new", meetingStart.Add(24*time.Hour), domain.Identification{})

	meetings, err := uc.ListMeetings(context.Background(), " ")
	if err != nil {
		t.Fatalf("ListMeetings() error = %v", err)
	}
	if len(meetings) != 2 || meetings[0].ID != "new" {
		t.Fatalf("unexpected meetings %+v", meetings)
	}
}

func TestSaveMinutesOverridesIdentification(t *testing.T) {
	store, _, _, uc := newMeetingFixture()
	store.seedMeeting("m1", meetingStart, domain.Identification{Client: "Acme", Participants: []string{"Ana"}})

	doc, err := uc.SaveMinutes(context.Background(), "m1", domain.MinutesDocument{
		Identification: domain.MinutesIdentification{Client: "Edited"},
		Summary:        "manual summary",
	})
	if err != nil {
		t.Fatalf("SaveMinutes() error = %v", err)
	}
	if doc.Identification.Client != "Acme" || doc.Identification.Date != "2024-01-05" {
		t.Fatalf("identification not enforced: %+v", doc.Identification)
	}
	if doc.NewTasks == nil || doc.PriorTasks == nil {
		t.Fatalf("expected normalized task lists")
	}
	if store.minutes["m1"].Summary != "manual summary" {
		t.Fatalf("minutes not persisted")
	}
}

func TestGetMinutesNotFound(t *testing.T) {
	_, _, _, uc := newMeetingFixture()
	if _, err := uc.GetMinutes(context.Background(), "m1"); !domain.IsKind(err, domain.ErrMinutesNotFound) {
		t.Fatalf("expected minutes not found, got %v", err)
	}
}

func TestReplaceTasksFillsDefaults(t *testing.T) {
	store, _, _, uc := newMeetingFixture()
	store.seedMeeting("m1", meetingStart, domain.Identification{})

	tasks, err := uc.ReplaceTasks(context.Background(), "m1", []domain.Task{
		{Description: " Call the vendor ", Owner: "Ana"},
		{TaskID: "custom", Description: "Close the ticket", State: domain.TaskStateDone, Type: domain.TaskTypePrior, DueDate: "2024-02-01"},
	})
	if err != nil {
		t.Fatalf("ReplaceTasks() error = %v", err)
	}
	if tasks[0].TaskID != "task_1" || tasks[0].Description != "Call the vendor" || tasks[0].DueDate != "2024-01-10" {
		t.Fatalf("unexpected first task %+v", tasks[0])
	}
	if tasks[0].Type != domain.TaskTypeNew || tasks[0].State != domain.TaskStatePending || tasks[0].MeetingID != "m1" {
		t.Fatalf("defaults not applied %+v", tasks[0])
	}
	if tasks[1].TaskID != "custom" || tasks[1].State != domain.TaskStateDone {
		t.Fatalf("explicit values overwritten %+v", tasks[1])
	}
	if len(store.tasks["m1"]) != 2 {
		t.Fatalf("tasks not persisted")
	}
}

func TestReplaceTasksRejectsInvalid(t *testing.T) {
	store, _, _, uc := newMeetingFixture()
	store.seedMeeting("m1", meetingStart, domain.Identification{})

	cases := map[string]domain.Task{
		"blank description": {Description: "  "},
		"unknown state":     {Description: "Call the vendor", State: "archived"},
		"unknown type":      {Description: "Call the vendor", Type: "other"},
	}
	for name, task := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := uc.ReplaceTasks(context.Background(), "m1", []domain.Task{task})
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestRequestReprocessPublishes(t *testing.T) {
	store, queue, _, uc := newMeetingFixture()
	store.seedMeeting("m1", meetingStart, domain.Identification{})

	if err := uc.RequestReprocess(context.Background(), "m1"); err != nil {
		t.Fatalf("RequestReprocess() error = %v", err)
	}
	if len(queue.regenerated) != 1 || queue.regenerated[0] != "m1" {
		t.Fatalf("unexpected published requests %v", queue.regenerated)
	}

	if err := uc.RequestReprocess(context.Background(), "missing"); !domain.IsKind(err, domain.ErrMeetingNotFound) {
		t.Fatalf("expected meeting not found, got %v", err)
	}
	if len(queue.regenerated) != 1 {
		t.Fatalf("unknown meeting must not be published")
	}
}

func TestExportMinutes(t *testing.T) {
	store, _, exporter, uc := newMeetingFixture()
	store.seedMeeting("m1", meetingStart, domain.Identification{Client: "Acme"})
	store.minutes["m1"] = domain.MinutesDocument{Summary: "done"}
	store.tasks["m1"] = []domain.Task{{MeetingID: "m1", TaskID: "task_1", Description: "Call the vendor"}}

	data, err := uc.ExportMinutes(context.Background(), "m1")
	if err != nil {
		t.Fatalf("ExportMinutes() error = %v", err)
	}
	if string(data) != "xlsx" {
		t.Fatalf("unexpected export payload %q", data)
	}
	if exporter.meeting.ID != "m1" || exporter.doc.Summary != "done" || len(exporter.tasks) != 1 {
		t.Fatalf("exporter received unexpected input")
	}
}
