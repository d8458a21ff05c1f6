// Package entries validates and performs every write the client makes to
// time entries, projects and tasks, then refreshes the affected view.
package entries

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sadopc/timesheet/internal/apperr"
	"github.com/sadopc/timesheet/internal/gateway"
	"github.com/sadopc/timesheet/internal/model"
)

// Refresher re-fetches a view after a successful write.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context) error

func (f RefreshFunc) Refresh(ctx context.Context) error { return f(ctx) }

// Duration returns end minus start in fractional hours. Both are HH:MM on
// the same day; zero and negative results are returned unchanged.
func Duration(start, end string) (float64, error) {
	return model.Duration(start, end)
}

// EntryInput is what the entry form submits. TaskID is empty for no task.
// Date is ignored by UpdateEntry.
type EntryInput struct {
	Date        string
	ProjectID   string
	TaskID      string
	StartTime   string
	EndTime     string
	Description string
}

// Manager runs writes through the gateway. After a successful entry write
// the week refresher runs once; after a project or task write the project
// refresher runs once. Either may be nil.
type Manager struct {
	gw       gateway.Gateway
	week     Refresher
	projects Refresher
	logger   *slog.Logger
	now      func() time.Time
}

func NewManager(gw gateway.Gateway, week, projects Refresher, logger *slog.Logger) *Manager {
	return &Manager{gw: gw, week: week, projects: projects, logger: logger, now: time.Now}
}

// ============================================================
// Time entries
// ============================================================

func (m *Manager) CreateEntry(ctx context.Context, userID string, in EntryInput) (*model.TimeEntry, error) {
	var missing []string
	if userID == "" {
		missing = append(missing, "user")
	}
	if strings.TrimSpace(in.Date) == "" {
		missing = append(missing, "date")
	} else if _, err := time.Parse(model.DateLayout, in.Date); err != nil {
		return nil, apperr.Invalid("date must be YYYY-MM-DD", "date")
	}
	if err := m.checkEntry(ctx, in, missing); err != nil {
		return nil, err
	}

	e, err := m.gw.InsertTimeEntry(ctx, model.TimeEntry{
		UserID:      userID,
		ProjectID:   in.ProjectID,
		TaskID:      taskRef(in.TaskID),
		Date:        in.Date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Description: strings.TrimSpace(in.Description),
	})
	if err != nil {
		return nil, m.writeFailed(apperr.OpCreate, "time entry", err)
	}
	m.logger.Info("time entry created", "id", e.ID, "date", e.Date, "hours", e.Hours)
	m.refresh(ctx, m.week, "week")
	return e, nil
}

// UpdateEntry replaces project, task, times and description of entry id.
// The owning user and date are never changed.
func (m *Manager) UpdateEntry(ctx context.Context, id string, in EntryInput) (*model.TimeEntry, error) {
	var missing []string
	if id == "" {
		missing = append(missing, "id")
	}
	if err := m.checkEntry(ctx, in, missing); err != nil {
		return nil, err
	}

	e, err := m.gw.UpdateTimeEntry(ctx, model.TimeEntry{
		ID:          id,
		ProjectID:   in.ProjectID,
		TaskID:      taskRef(in.TaskID),
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Description: strings.TrimSpace(in.Description),
	})
	if err != nil {
		return nil, m.writeFailed(apperr.OpUpdate, "time entry", err)
	}
	m.logger.Info("time entry updated", "id", e.ID, "hours", e.Hours)
	m.refresh(ctx, m.week, "week")
	return e, nil
}

func (m *Manager) DeleteEntry(ctx context.Context, id string) error {
	if id == "" {
		return apperr.Invalid("", "id")
	}
	if err := m.gw.DeleteTimeEntry(ctx, id); err != nil {
		return m.writeFailed(apperr.OpDelete, "time entry", err)
	}
	m.logger.Info("time entry deleted", "id", id)
	m.refresh(ctx, m.week, "week")
	return nil
}

// checkEntry validates the fields shared by create and update. Everything
// that can be checked locally is checked before the task lookup.
func (m *Manager) checkEntry(ctx context.Context, in EntryInput, missing []string) error {
	if in.ProjectID == "" {
		missing = append(missing, "project")
	}
	if in.StartTime == "" {
		missing = append(missing, "start_time")
	}
	if in.EndTime == "" {
		missing = append(missing, "end_time")
	}
	if len(missing) > 0 {
		return apperr.Invalid("", missing...)
	}

	hours, err := Duration(in.StartTime, in.EndTime)
	if err != nil {
		return apperr.Invalid("times must be HH:MM", "start_time", "end_time")
	}
	if hours <= 0 {
		return apperr.Invalid("end time must be after start time", "end_time")
	}

	if in.TaskID == "" {
		return nil
	}
	task, err := m.gw.GetTask(ctx, in.TaskID)
	if errors.Is(err, gateway.ErrNotFound) {
		return apperr.Invalid("task does not exist", "task")
	}
	if err != nil {
		return &apperr.FetchFailed{Resource: "task", Err: err}
	}
	if task.ProjectID != in.ProjectID {
		return apperr.Invalid("task belongs to another project", "task")
	}
	return nil
}

func taskRef(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// ============================================================
// Projects
// ============================================================

// CreateProject stores p. StartDate defaults to today.
func (m *Manager) CreateProject(ctx context.Context, p model.Project) (*model.Project, error) {
	if err := m.checkProject(&p); err != nil {
		return nil, err
	}
	out, err := m.gw.InsertProject(ctx, p)
	if err != nil {
		return nil, m.writeFailed(apperr.OpCreate, "project", err)
	}
	m.logger.Info("project created", "id", out.ID, "name", out.Name)
	m.refresh(ctx, m.projects, "projects")
	return out, nil
}

func (m *Manager) UpdateProject(ctx context.Context, p model.Project) (*model.Project, error) {
	if p.ID == "" {
		return nil, apperr.Invalid("", "id")
	}
	if err := m.checkProject(&p); err != nil {
		return nil, err
	}
	out, err := m.gw.UpdateProject(ctx, p)
	if err != nil {
		return nil, m.writeFailed(apperr.OpUpdate, "project", err)
	}
	m.logger.Info("project updated", "id", out.ID)
	m.refresh(ctx, m.projects, "projects")
	return out, nil
}

// DeleteProject removes the project with its tasks and time entries. It
// does nothing unless confirmed is true.
func (m *Manager) DeleteProject(ctx context.Context, id string, confirmed bool) error {
	if id == "" {
		return apperr.Invalid("", "id")
	}
	if !confirmed {
		return apperr.Invalid("deleting a project also deletes its tasks and time entries", "confirmation")
	}
	if err := m.gw.DeleteProject(ctx, id); err != nil {
		return m.writeFailed(apperr.OpDelete, "project", err)
	}
	m.logger.Info("project deleted", "id", id)
	m.refresh(ctx, m.projects, "projects")
	m.refresh(ctx, m.week, "week")
	return nil
}

func (m *Manager) checkProject(p *model.Project) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Client = strings.TrimSpace(p.Client)
	var missing []string
	if p.Name == "" {
		missing = append(missing, "name")
	}
	if p.Client == "" {
		missing = append(missing, "client")
	}
	if len(missing) > 0 {
		return apperr.Invalid("", missing...)
	}
	if p.StartDate == "" {
		p.StartDate = m.now().Format(model.DateLayout)
	} else if _, err := time.Parse(model.DateLayout, p.StartDate); err != nil {
		return apperr.Invalid("start date must be YYYY-MM-DD", "start_date")
	}
	return nil
}

// ============================================================
// Tasks
// ============================================================

func (m *Manager) CreateTask(ctx context.Context, t model.Task) (*model.Task, error) {
	if err := checkTask(&t); err != nil {
		return nil, err
	}
	out, err := m.gw.InsertTask(ctx, t)
	if err != nil {
		return nil, m.writeFailed(apperr.OpCreate, "task", err)
	}
	m.logger.Info("task created", "id", out.ID, "project_id", out.ProjectID)
	m.refresh(ctx, m.projects, "projects")
	return out, nil
}

func (m *Manager) UpdateTask(ctx context.Context, t model.Task) (*model.Task, error) {
	if t.ID == "" {
		return nil, apperr.Invalid("", "id")
	}
	if err := checkTask(&t); err != nil {
		return nil, err
	}
	out, err := m.gw.UpdateTask(ctx, t)
	if err != nil {
		return nil, m.writeFailed(apperr.OpUpdate, "task", err)
	}
	m.logger.Info("task updated", "id", out.ID)
	m.refresh(ctx, m.projects, "projects")
	return out, nil
}

// DeleteTask removes the task and the time entries logged against it.
func (m *Manager) DeleteTask(ctx context.Context, id string, confirmed bool) error {
	if id == "" {
		return apperr.Invalid("", "id")
	}
	if !confirmed {
		return apperr.Invalid("deleting a task also deletes its time entries", "confirmation")
	}
	if err := m.gw.DeleteTask(ctx, id); err != nil {
		return m.writeFailed(apperr.OpDelete, "task", err)
	}
	m.logger.Info("task deleted", "id", id)
	m.refresh(ctx, m.projects, "projects")
	m.refresh(ctx, m.week, "week")
	return nil
}

func checkTask(t *model.Task) error {
	t.Name = strings.TrimSpace(t.Name)
	var missing []string
	if t.ProjectID == "" {
		missing = append(missing, "project")
	}
	if t.Name == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return apperr.Invalid("", missing...)
	}
	return nil
}

// ============================================================
// Helpers
// ============================================================

func (m *Manager) writeFailed(op apperr.Op, entity string, err error) error {
	m.logger.Error("write failed", "op", string(op), "entity", entity, "error", err)
	return &apperr.WriteFailed{Op: op, Entity: entity, Err: err}
}

// refresh runs r once. A failed refresh does not fail the write that
// triggered it; the view keeps its own error.
func (m *Manager) refresh(ctx context.Context, r Refresher, name string) {
	if r == nil {
		return
	}
	if err := r.Refresh(ctx); err != nil {
		m.logger.Warn("refresh after write failed", "view", name, "error", err)
	}
}
