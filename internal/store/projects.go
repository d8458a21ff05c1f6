package store

import (
	"context"
	"fmt"

	"github.com/sadopc/timesheet/internal/model"
)

const projectColumns = `id, name, client, description, start_date, created_at, updated_at`

func (s *Store) InsertProject(ctx context.Context, p model.Project) (*model.Project, error) {
	now := s.timestamp()
	if p.StartDate == "" {
		p.StartDate = s.now().Format(model.DateLayout)
	}
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, client, description, start_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, p.Name, p.Client, p.Description, p.StartDate, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", violation(err))
	}
	return s.GetProject(ctx, id)
}

func (s *Store) GetProject(ctx context.Context, id string) (*model.Project, error) {
	p := &model.Project{}
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Client, &p.Description, &p.StartDate, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, notFound(err))
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Client, &p.Description, &p.StartDate, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject replaces every mutable field of the project.
func (s *Store) UpdateProject(ctx context.Context, p model.Project) (*model.Project, error) {
	if p.StartDate == "" {
		p.StartDate = s.now().Format(model.DateLayout)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, client = ?, description = ?, start_date = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Client, p.Description, p.StartDate, s.timestamp(), p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update project %s: %w", p.ID, violation(err))
	}
	if err := checkAffected(res); err != nil {
		return nil, fmt.Errorf("update project %s: %w", p.ID, err)
	}
	return s.GetProject(ctx, p.ID)
}

// DeleteProject removes the project; its tasks and time entries cascade.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}
