package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sadopc/timesheet/internal/model"
)

const entrySelect = `
	SELECT e.id, e.user_id, e.project_id, e.task_id, e.date, e.start_time, e.end_time,
	       e.hours, e.description, e.created_at, e.updated_at,
	       p.id, p.name, p.client, p.description, p.start_date, p.created_at, p.updated_at,
	       t.id, t.project_id, t.name, t.description, t.metadata, t.created_at, t.updated_at
	FROM time_entries e
	JOIN projects p ON p.id = e.project_id
	LEFT JOIN tasks t ON t.id = e.task_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (model.TimeEntry, error) {
	var e model.TimeEntry
	var p model.Project
	var taskID sql.NullString
	var createdAt, updatedAt, pCreatedAt, pUpdatedAt string
	var tID, tProjectID, tName, tDesc, tMeta, tCreatedAt, tUpdatedAt sql.NullString
	err := r.Scan(
		&e.ID, &e.UserID, &e.ProjectID, &taskID, &e.Date, &e.StartTime, &e.EndTime,
		&e.Hours, &e.Description, &createdAt, &updatedAt,
		&p.ID, &p.Name, &p.Client, &p.Description, &p.StartDate, &pCreatedAt, &pUpdatedAt,
		&tID, &tProjectID, &tName, &tDesc, &tMeta, &tCreatedAt, &tUpdatedAt,
	)
	if err != nil {
		return e, err
	}
	if taskID.Valid {
		e.TaskID = &taskID.String
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	p.CreatedAt = parseTime(pCreatedAt)
	p.UpdatedAt = parseTime(pUpdatedAt)
	e.Project = &p
	if tID.Valid {
		e.Task = &model.Task{
			ID:          tID.String,
			ProjectID:   tProjectID.String,
			Name:        tName.String,
			Description: tDesc.String,
			Metadata:    decodeMetadata(tMeta.String),
			CreatedAt:   parseTime(tCreatedAt.String),
			UpdatedAt:   parseTime(tUpdatedAt.String),
		}
	}
	return e, nil
}

func (s *Store) getEntry(ctx context.Context, id string) (*model.TimeEntry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, entrySelect+` WHERE e.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", id, notFound(err))
	}
	return &e, nil
}

// InsertTimeEntry stores a new entry. Hours are recomputed from the start
// and end times; whatever the caller sent is ignored.
func (s *Store) InsertTimeEntry(ctx context.Context, e model.TimeEntry) (*model.TimeEntry, error) {
	hours, err := model.Duration(e.StartTime, e.EndTime)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	now := s.timestamp()
	id := newID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO time_entries
		   (id, user_id, project_id, task_id, date, start_time, end_time, hours, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.UserID, e.ProjectID, e.TaskID, e.Date, e.StartTime, e.EndTime, hours, e.Description, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", violation(err))
	}
	return s.getEntry(ctx, id)
}

// UpdateTimeEntry replaces project, task, times and description. User and
// date are fixed at creation.
func (s *Store) UpdateTimeEntry(ctx context.Context, e model.TimeEntry) (*model.TimeEntry, error) {
	hours, err := model.Duration(e.StartTime, e.EndTime)
	if err != nil {
		return nil, fmt.Errorf("update entry %s: %w", e.ID, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE time_entries
		 SET project_id = ?, task_id = ?, start_time = ?, end_time = ?, hours = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		e.ProjectID, e.TaskID, e.StartTime, e.EndTime, hours, e.Description, s.timestamp(), e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update entry %s: %w", e.ID, violation(err))
	}
	if err := checkAffected(res); err != nil {
		return nil, fmt.Errorf("update entry %s: %w", e.ID, err)
	}
	return s.getEntry(ctx, e.ID)
}

func (s *Store) DeleteTimeEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	return nil
}

// ListTimeEntries returns joined entries matching f, ordered by date then
// start time. From and To are inclusive.
func (s *Store) ListTimeEntries(ctx context.Context, f model.EntryFilter) ([]model.TimeEntry, error) {
	query := entrySelect + ` WHERE 1=1`
	var args []any

	if f.UserID != "" {
		query += ` AND e.user_id = ?`
		args = append(args, f.UserID)
	}
	if f.From != "" {
		query += ` AND e.date >= ?`
		args = append(args, f.From)
	}
	if f.To != "" {
		query += ` AND e.date <= ?`
		args = append(args, f.To)
	}
	query += ` ORDER BY e.date ASC, e.start_time ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []model.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
