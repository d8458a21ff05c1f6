package gateway

import (
	"context"

	"github.com/sadopc/timesheet/internal/model"
)

// Unconfigured is used when the backend URL or API key is missing. The
// client still starts; every call fails with ErrNotConfigured.
type Unconfigured struct{}

var _ Gateway = Unconfigured{}

func (Unconfigured) GetUserByEmail(context.Context, string) (*model.User, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) UpsertUser(context.Context, model.User) (*model.User, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) ListUsers(context.Context) ([]model.User, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) GetAuthorizedEmail(context.Context, string) (*model.AuthorizedEmail, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) ListAuthorizedEmails(context.Context) ([]model.AuthorizedEmail, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) ListProjects(context.Context) ([]model.Project, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) GetProject(context.Context, string) (*model.Project, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) InsertProject(context.Context, model.Project) (*model.Project, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) UpdateProject(context.Context, model.Project) (*model.Project, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) DeleteProject(context.Context, string) error { return ErrNotConfigured }

func (Unconfigured) ListTasks(context.Context, model.TaskFilter) ([]model.Task, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) GetTask(context.Context, string) (*model.Task, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) InsertTask(context.Context, model.Task) (*model.Task, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) UpdateTask(context.Context, model.Task) (*model.Task, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) DeleteTask(context.Context, string) error { return ErrNotConfigured }

func (Unconfigured) ListTimeEntries(context.Context, model.EntryFilter) ([]model.TimeEntry, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) InsertTimeEntry(context.Context, model.TimeEntry) (*model.TimeEntry, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) UpdateTimeEntry(context.Context, model.TimeEntry) (*model.TimeEntry, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) DeleteTimeEntry(context.Context, string) error { return ErrNotConfigured }
