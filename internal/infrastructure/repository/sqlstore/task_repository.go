package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

type TaskRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewTaskRepository(db *sql.DB, dialect Dialect) *TaskRepository {
	return &TaskRepository{db: db, dialect: dialect}
}

// ReplaceTasks swaps the meeting's whole task set in one transaction.
func (r *TaskRepository) ReplaceTasks(ctx context.Context, meetingID string, tasks []domain.Task) error {
	insert := r.dialect.rebind(`
INSERT INTO tasks (meeting_id, position, task_id, type, description, owner, state, due_date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`)
	return withTx(ctx, r.db, "replace tasks", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.dialect.rebind(`DELETE FROM tasks WHERE meeting_id = $1`), meetingID); err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		for i, task := range tasks {
			if _, err := tx.ExecContext(ctx, insert,
				meetingID,
				i,
				task.TaskID,
				string(task.Type),
				task.Description,
				task.Owner,
				string(task.State),
				task.DueDate,
			); err != nil {
				return fmt.Errorf("insert task %s: %w", task.TaskID, err)
			}
		}
		return nil
	})
}

func (r *TaskRepository) ListTasks(ctx context.Context, meetingID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
SELECT meeting_id, task_id, type, description, owner, state, due_date
FROM tasks
WHERE meeting_id = $1
ORDER BY position
`), meetingID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func scanTask(scanner rowScanner) (domain.Task, error) {
	var (
		task      domain.Task
		taskType  string
		taskState string
	)
	if err := scanner.Scan(
		&task.MeetingID,
		&task.TaskID,
		&taskType,
		&task.Description,
		&task.Owner,
		&taskState,
		&task.DueDate,
	); err != nil {
		return domain.Task{}, fmt.Errorf("scan task: %w", err)
	}
	task.Type = domain.TaskType(taskType)
	task.State = domain.TaskState(taskState)
	return task, nil
}
