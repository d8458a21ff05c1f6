package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sadopc/timesheet/internal/model"
)

const taskColumns = `id, project_id, name, description, metadata, created_at, updated_at`

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode task metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(raw string) map[string]string {
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}

func (s *Store) InsertTask(ctx context.Context, t model.Task) (*model.Task, error) {
	meta, err := encodeMetadata(t.Metadata)
	if err != nil {
		return nil, err
	}
	now := s.timestamp()
	id := newID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project_id, name, description, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, t.ProjectID, t.Name, t.Description, meta, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", violation(err))
	}
	return s.GetTask(ctx, id)
}

func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	t := &model.Task{}
	var meta, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id,
	).Scan(&t.ID, &t.ProjectID, &t.Name, &t.Description, &meta, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, notFound(err))
	}
	t.Metadata = decodeMetadata(meta)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

// ListTasks returns every task, or only the tasks of f.ProjectID when set.
func (s *Store) ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	if f.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		var meta, createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &t.Description, &meta, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		t.Metadata = decodeMetadata(meta)
		t.CreatedAt = parseTime(createdAt)
		t.UpdatedAt = parseTime(updatedAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, t model.Task) (*model.Task, error) {
	meta, err := encodeMetadata(t.Metadata)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET project_id = ?, name = ?, description = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		t.ProjectID, t.Name, t.Description, meta, s.timestamp(), t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", t.ID, violation(err))
	}
	if err := checkAffected(res); err != nil {
		return nil, fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return s.GetTask(ctx, t.ID)
}

// DeleteTask removes the task; its time entries cascade.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}
