package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sadopc/timesheet/internal/model"
)

const restPrefix = "/rest/v1"

// Client is the HTTP implementation of Gateway.
type Client struct {
	t *Transport
}

var _ Gateway = (*Client)(nil)

func NewClient(t *Transport) *Client {
	return &Client{t: t}
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var users []model.User
	err := c.t.Do(ctx, http.MethodGet, restPrefix+"/users", url.Values{"email": {email}}, nil, &users)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return &users[0], nil
}

func (c *Client) UpsertUser(ctx context.Context, u model.User) (*model.User, error) {
	var out model.User
	if err := c.t.Do(ctx, http.MethodPut, restPrefix+"/users", nil, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := c.t.Do(ctx, http.MethodGet, restPrefix+"/users", nil, nil, &users)
	return users, err
}

func (c *Client) GetAuthorizedEmail(ctx context.Context, email string) (*model.AuthorizedEmail, error) {
	var list []model.AuthorizedEmail
	err := c.t.Do(ctx, http.MethodGet, restPrefix+"/authorized_emails", url.Values{"email": {email}}, nil, &list)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

func (c *Client) ListAuthorizedEmails(ctx context.Context) ([]model.AuthorizedEmail, error) {
	var list []model.AuthorizedEmail
	err := c.t.Do(ctx, http.MethodGet, restPrefix+"/authorized_emails", nil, nil, &list)
	return list, err
}

func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	err := c.t.Do(ctx, http.MethodGet, restPrefix+"/projects", nil, nil, &projects)
	return projects, err
}

func (c *Client) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	if err := c.t.Do(ctx, http.MethodGet, restPrefix+"/projects/"+url.PathEscape(id), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) InsertProject(ctx context.Context, p model.Project) (*model.Project, error) {
	var out model.Project
	if err := c.t.Do(ctx, http.MethodPost, restPrefix+"/projects", nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProject(ctx context.Context, p model.Project) (*model.Project, error) {
	var out model.Project
	if err := c.t.Do(ctx, http.MethodPatch, restPrefix+"/projects/"+url.PathEscape(p.ID), nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.t.Do(ctx, http.MethodDelete, restPrefix+"/projects/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error) {
	q := url.Values{}
	if f.ProjectID != "" {
		q.Set("project_id", f.ProjectID)
	}
	var tasks []model.Task
	err := c.t.Do(ctx, http.MethodGet, restPrefix+"/tasks", q, nil, &tasks)
	return tasks, err
}

func (c *Client) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	if err := c.t.Do(ctx, http.MethodGet, restPrefix+"/tasks/"+url.PathEscape(id), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) InsertTask(ctx context.Context, t model.Task) (*model.Task, error) {
	var out model.Task
	if err := c.t.Do(ctx, http.MethodPost, restPrefix+"/tasks", nil, t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTask(ctx context.Context, t model.Task) (*model.Task, error) {
	var out model.Task
	if err := c.t.Do(ctx, http.MethodPatch, restPrefix+"/tasks/"+url.PathEscape(t.ID), nil, t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.t.Do(ctx, http.MethodDelete, restPrefix+"/tasks/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListTimeEntries(ctx context.Context, f model.EntryFilter) ([]model.TimeEntry, error) {
	q := url.Values{}
	if f.UserID != "" {
		q.Set("user_id", f.UserID)
	}
	if f.From != "" {
		q.Set("from", f.From)
	}
	if f.To != "" {
		q.Set("to", f.To)
	}
	var entries []model.TimeEntry
	err := c.t.Do(ctx, http.MethodGet, restPrefix+"/time_entries", q, nil, &entries)
	return entries, err
}

func (c *Client) InsertTimeEntry(ctx context.Context, e model.TimeEntry) (*model.TimeEntry, error) {
	var out model.TimeEntry
	if err := c.t.Do(ctx, http.MethodPost, restPrefix+"/time_entries", nil, e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTimeEntry(ctx context.Context, e model.TimeEntry) (*model.TimeEntry, error) {
	var out model.TimeEntry
	if err := c.t.Do(ctx, http.MethodPatch, restPrefix+"/time_entries/"+url.PathEscape(e.ID), nil, e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTimeEntry(ctx context.Context, id string) error {
	return c.t.Do(ctx, http.MethodDelete, restPrefix+"/time_entries/"+url.PathEscape(id), nil, nil, nil)
}
