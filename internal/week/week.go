// Package week is the view model behind the weekly timesheet: the selected
// Monday-to-Sunday range, the entries fetched for it and per-day totals.
package week

import (
	"context"
	"time"

	"github.com/sadopc/timesheet/internal/apperr"
	"github.com/sadopc/timesheet/internal/gateway"
	"github.com/sadopc/timesheet/internal/model"
)

// Range is a Monday 00:00 through Sunday 23:59:59.999999999 span.
type Range struct {
	Start time.Time
	End   time.Time
}

// RangeFor returns the ISO week containing ref, in ref's location. Weeks
// start on Monday regardless of locale.
func RangeFor(ref time.Time) Range {
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	offset := int(day.Weekday())
	if offset == 0 {
		offset = 7
	}
	start := day.AddDate(0, 0, -(offset - 1))
	end := start.AddDate(0, 0, 7).Add(-time.Nanosecond)
	return Range{Start: start, End: end}
}

func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// StartDate and EndDate are the inclusive bounds as YYYY-MM-DD.
func (r Range) StartDate() string { return r.Start.Format(model.DateLayout) }
func (r Range) EndDate() string   { return r.End.Format(model.DateLayout) }

// Days returns the seven dates of the week, Monday first.
func (r Range) Days() []time.Time {
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = r.Start.AddDate(0, 0, i)
	}
	return days
}

func (r Range) Equal(o Range) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

// DaySummary is the aggregate for one day of the week.
type DaySummary struct {
	Date  string
	Hours float64
	Count int
}

// Request is a fetch tagged with the week and generation it was issued for.
type Request struct {
	Range  Range
	UserID string
	gen    uint64
}

// Result carries a Request's data back for Apply.
type Result struct {
	Request  Request
	Entries  []model.TimeEntry
	Projects []model.Project
	Tasks    []model.Task
	Err      error
}

// Model holds the selected week and its contents. It is not safe for
// concurrent use; run Load off the UI goroutine and Apply on it.
type Model struct {
	gw     gateway.Gateway
	userID string
	ref    time.Time
	gen    uint64
	now    func() time.Time

	Entries  []model.TimeEntry
	Projects []model.Project
	Tasks    []model.Task
	Loading  bool
	Err      error
}

// New creates a model anchored at ref (time.Now when zero).
func New(gw gateway.Gateway, userID string, ref time.Time) *Model {
	m := &Model{gw: gw, userID: userID, now: time.Now}
	if ref.IsZero() {
		ref = m.now()
	}
	m.ref = ref
	return m
}

func (m *Model) Range() Range        { return RangeFor(m.ref) }
func (m *Model) Reference() time.Time { return m.ref }
func (m *Model) UserID() string       { return m.userID }

// Next moves the reference date forward exactly seven days.
func (m *Model) Next() {
	m.ref = m.ref.AddDate(0, 0, 7)
	m.gen++
}

// Prev moves the reference date back exactly seven days.
func (m *Model) Prev() {
	m.ref = m.ref.AddDate(0, 0, -7)
	m.gen++
}

// Today re-anchors the model at the current time.
func (m *Model) Today() {
	m.ref = m.now()
	m.gen++
}

// Begin starts a fetch for the current week. Any earlier request becomes
// stale.
func (m *Model) Begin() Request {
	m.gen++
	m.Loading = true
	return Request{Range: m.Range(), UserID: m.userID, gen: m.gen}
}

// Load performs the three reads for req. It touches no model state, so it
// can run on any goroutine.
func Load(ctx context.Context, gw gateway.Gateway, req Request) Result {
	res := Result{Request: req}

	entries, err := gw.ListTimeEntries(ctx, model.EntryFilter{
		UserID: req.UserID,
		From:   req.Range.StartDate(),
		To:     req.Range.EndDate(),
	})
	if err != nil {
		res.Err = &apperr.FetchFailed{Resource: "time entries", Err: err}
		return res
	}
	projects, err := gw.ListProjects(ctx)
	if err != nil {
		res.Err = &apperr.FetchFailed{Resource: "projects", Err: err}
		return res
	}
	tasks, err := gw.ListTasks(ctx, model.TaskFilter{})
	if err != nil {
		res.Err = &apperr.FetchFailed{Resource: "tasks", Err: err}
		return res
	}

	res.Entries = entries
	res.Projects = projects
	res.Tasks = tasks
	return res
}

// Apply installs res if it answers the latest request for the current week
// and reports whether it did. On a failed result the previous collections
// are kept and Err is set.
func (m *Model) Apply(res Result) bool {
	if res.Request.gen != m.gen || !res.Request.Range.Equal(m.Range()) {
		return false
	}
	m.Loading = false
	if res.Err != nil {
		m.Err = res.Err
		return true
	}
	m.Err = nil
	m.Entries = res.Entries
	m.Projects = res.Projects
	m.Tasks = res.Tasks
	return true
}

// Refresh runs Begin, Load and Apply inline.
func (m *Model) Refresh(ctx context.Context) error {
	res := Load(ctx, m.gw, m.Begin())
	m.Apply(res)
	return res.Err
}

// EntriesForDay returns the entries whose date is exactly date.
func (m *Model) EntriesForDay(date string) []model.TimeEntry {
	var out []model.TimeEntry
	for _, e := range m.Entries {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out
}

// TotalHoursForDay sums hours over EntriesForDay(date).
func (m *Model) TotalHoursForDay(date string) float64 {
	var total float64
	for _, e := range m.EntriesForDay(date) {
		total += e.Hours
	}
	return total
}

func (m *Model) TotalHours() float64 {
	var total float64
	for _, e := range m.Entries {
		total += e.Hours
	}
	return total
}

// DaySummaries returns one summary per day of the current week.
func (m *Model) DaySummaries() []DaySummary {
	days := m.Range().Days()
	out := make([]DaySummary, len(days))
	for i, d := range days {
		date := d.Format(model.DateLayout)
		out[i] = DaySummary{
			Date:  date,
			Hours: m.TotalHoursForDay(date),
			Count: len(m.EntriesForDay(date)),
		}
	}
	return out
}

// TasksForProject filters the loaded task list for entry-editing pickers.
func (m *Model) TasksForProject(projectID string) []model.Task {
	var out []model.Task
	for _, t := range m.Tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out
}
