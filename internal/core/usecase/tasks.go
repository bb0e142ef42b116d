package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

const minTaskDescriptionLen = 5

// extractTasks turns the model's new-task list into the persisted task set: blank,
// too-short and duplicate descriptions are dropped, at most maxTasks are kept, ids are
// reassigned sequentially and missing due dates default to defaultDue.
func extractTasks(meetingID string, items []domain.MinutesTask, defaultDue string, maxTasks int) []domain.Task {
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.Task, 0, len(items))

	for _, item := range items {
		if maxTasks > 0 && len(out) >= maxTasks {
			break
		}
		description := strings.TrimSpace(item.Description)
		if description == "" {
			continue
		}
		key := domain.NormalizeDescription(description)
		if utf8.RuneCountInString(key) <= minTaskDescriptionLen {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		due := strings.TrimSpace(item.DueDate)
		if due == "" {
			due = defaultDue
		}
		out = append(out, domain.Task{
			MeetingID:   meetingID,
			TaskID:      fmt.Sprintf("task_%d", len(out)+1),
			Type:        domain.TaskTypeNew,
			Description: description,
			Owner:       strings.TrimSpace(item.Owner),
			State:       domain.TaskStatePending,
			DueDate:     due,
		})
	}
	return out
}

func minutesTasksFrom(tasks []domain.Task) []domain.MinutesTask {
	out := make([]domain.MinutesTask, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, domain.MinutesTask{
			ID:          task.TaskID,
			Description: task.Description,
			Owner:       task.Owner,
			DueDate:     task.DueDate,
		})
	}
	return out
}
