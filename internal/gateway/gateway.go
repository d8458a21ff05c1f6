// Package gateway defines the typed record store the client reads and writes
// through, and its HTTP and unconfigured implementations.
package gateway

import (
	"context"
	"errors"

	"github.com/sadopc/timesheet/internal/model"
)

var (
	// ErrNotFound is returned for single-row lookups that match nothing.
	ErrNotFound = errors.New("record not found")
	// ErrConstraint is returned for writes that reference a missing row or
	// break a column check.
	ErrConstraint = errors.New("record violates a constraint")
	// ErrNotConfigured is returned by every call on an Unconfigured gateway.
	ErrNotConfigured = errors.New("backend not configured: set backend_url and api_key")
)

// Gateway is the per-table CRUD surface over users, authorized_emails,
// projects, tasks and time_entries.
type Gateway interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpsertUser(ctx context.Context, u model.User) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	GetAuthorizedEmail(ctx context.Context, email string) (*model.AuthorizedEmail, error)
	ListAuthorizedEmails(ctx context.Context) ([]model.AuthorizedEmail, error)

	ListProjects(ctx context.Context) ([]model.Project, error)
	GetProject(ctx context.Context, id string) (*model.Project, error)
	InsertProject(ctx context.Context, p model.Project) (*model.Project, error)
	UpdateProject(ctx context.Context, p model.Project) (*model.Project, error)
	DeleteProject(ctx context.Context, id string) error

	ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	InsertTask(ctx context.Context, t model.Task) (*model.Task, error)
	UpdateTask(ctx context.Context, t model.Task) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// ListTimeEntries returns entries joined with project and task, ordered
	// by date then start time.
	ListTimeEntries(ctx context.Context, f model.EntryFilter) ([]model.TimeEntry, error)
	InsertTimeEntry(ctx context.Context, e model.TimeEntry) (*model.TimeEntry, error)
	UpdateTimeEntry(ctx context.Context, e model.TimeEntry) (*model.TimeEntry, error)
	DeleteTimeEntry(ctx context.Context, id string) error
}
