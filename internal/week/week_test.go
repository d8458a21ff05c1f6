package week

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/timesheet/internal/apperr"
	"github.com/sadopc/timesheet/internal/gateway"
	"github.com/sadopc/timesheet/internal/model"
	"github.com/sadopc/timesheet/internal/store"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation(model.DateLayout, s, time.Local)
	require.NoError(t, err)
	return d
}

type fixture struct {
	st      *store.Store
	user    *model.User
	project *model.Project
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	u, err := st.UpsertUser(ctx, model.User{Email: "ada@example.com", Role: model.RoleUser})
	require.NoError(t, err)
	p, err := st.InsertProject(ctx, model.Project{Name: "Apollo", Client: "NASA"})
	require.NoError(t, err)
	return fixture{st: st, user: u, project: p}
}

func (f fixture) entry(t *testing.T, day, start, end string) {
	t.Helper()
	_, err := f.st.InsertTimeEntry(context.Background(), model.TimeEntry{
		UserID: f.user.ID, ProjectID: f.project.ID,
		Date: day, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)
}

// ============================================================
// Range
// ============================================================

func TestRangeForMidweek(t *testing.T) {
	// Wednesday
	r := RangeFor(date(t, "2024-06-12").Add(15 * time.Hour))
	assert.Equal(t, "2024-06-10", r.StartDate())
	assert.Equal(t, "2024-06-16", r.EndDate())
	assert.Equal(t, time.Monday, r.Start.Weekday())
	assert.Equal(t, 0, r.Start.Hour())
	assert.Equal(t, 23, r.End.Hour())
	assert.Equal(t, 59, r.End.Minute())
	assert.Equal(t, 59, r.End.Second())
}

func TestRangeForSundayBelongsToPreviousMonday(t *testing.T) {
	r := RangeFor(date(t, "2024-06-16").Add(23 * time.Hour))
	assert.Equal(t, "2024-06-10", r.StartDate())
	assert.Equal(t, "2024-06-16", r.EndDate())
}

func TestRangeForMonday(t *testing.T) {
	r := RangeFor(date(t, "2024-06-10"))
	assert.Equal(t, "2024-06-10", r.StartDate())
}

func TestRangeForCrossesYear(t *testing.T) {
	// Tuesday 2024-12-31
	r := RangeFor(date(t, "2024-12-31"))
	assert.Equal(t, "2024-12-30", r.StartDate())
	assert.Equal(t, "2025-01-05", r.EndDate())
}

func TestRangeContains(t *testing.T) {
	r := RangeFor(date(t, "2024-06-12"))
	assert.True(t, r.Contains(r.Start))
	assert.True(t, r.Contains(r.End))
	assert.True(t, r.Contains(date(t, "2024-06-14").Add(12*time.Hour)))
	assert.False(t, r.Contains(r.Start.Add(-time.Nanosecond)))
	assert.False(t, r.Contains(r.End.Add(time.Nanosecond)))
}

func TestRangeHoldsForEveryDay(t *testing.T) {
	spans := []struct{ from, to string }{
		{"2024-03-04", "2024-04-07"}, // US and EU spring forward
		{"2024-10-21", "2024-11-10"}, // EU and US fall back
		{"2024-12-23", "2025-01-12"},
	}
	clocks := []time.Duration{0, 12 * time.Hour, 23*time.Hour + 59*time.Minute + 59*time.Second}

	for _, name := range []string{"UTC", "America/New_York", "Europe/Berlin"} {
		loc, err := time.LoadLocation(name)
		require.NoError(t, err)

		for _, span := range spans {
			from, err := time.ParseInLocation(model.DateLayout, span.from, loc)
			require.NoError(t, err)
			to, err := time.ParseInLocation(model.DateLayout, span.to, loc)
			require.NoError(t, err)

			for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
				for _, clock := range clocks {
					d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc).Add(clock)
					r := RangeFor(d)

					assert.True(t, r.Contains(d), "%s %s not in %s..%s", name, d, r.Start, r.End)
					assert.Equal(t, time.Monday, r.Start.Weekday(), "%s %s", name, d)
					assert.Equal(t, 0, r.Start.Hour(), "%s %s", name, d)
					assert.Equal(t, time.Sunday, r.End.Weekday(), "%s %s", name, d)
					assert.Equal(t, 23, r.End.Hour(), "%s %s", name, d)
					assert.Equal(t, 59, r.End.Minute(), "%s %s", name, d)
					assert.Equal(t, r.Start.AddDate(0, 0, 6).Format(model.DateLayout), r.EndDate(), "%s %s", name, d)

					m := New(nil, "u", d)
					m.Prev()
					assert.Equal(t, r.Start.AddDate(0, 0, -7).Format(model.DateLayout), m.Range().StartDate(), "%s %s", name, d)
					m.Next()
					assert.True(t, m.Reference().Equal(d), "%s: Next(Prev(%s)) = %s", name, d, m.Reference())
					assert.True(t, m.Range().Equal(r), "%s %s", name, d)
				}
			}
		}
	}
}

func TestRangeDays(t *testing.T) {
	days := RangeFor(date(t, "2024-06-12")).Days()
	require.Len(t, days, 7)
	assert.Equal(t, "2024-06-10", days[0].Format(model.DateLayout))
	assert.Equal(t, "2024-06-16", days[6].Format(model.DateLayout))
	assert.Equal(t, time.Sunday, days[6].Weekday())
}

// ============================================================
// Navigation
// ============================================================

func TestNextPrevMoveSevenDays(t *testing.T) {
	ref := date(t, "2024-06-12").Add(9 * time.Hour)
	m := New(gateway.Unconfigured{}, "u", ref)

	m.Next()
	assert.Equal(t, ref.AddDate(0, 0, 7), m.Reference())
	assert.Equal(t, "2024-06-17", m.Range().StartDate())

	m.Prev()
	m.Prev()
	assert.Equal(t, ref.AddDate(0, 0, -7), m.Reference())
	assert.Equal(t, "2024-06-03", m.Range().StartDate())
}

func TestTodayReanchors(t *testing.T) {
	m := New(gateway.Unconfigured{}, "u", date(t, "2020-01-01"))
	fixed := date(t, "2024-06-12").Add(10 * time.Hour)
	m.now = func() time.Time { return fixed }

	m.Today()
	assert.Equal(t, fixed, m.Reference())
	assert.Equal(t, "2024-06-10", m.Range().StartDate())
}

func TestNewDefaultsToNow(t *testing.T) {
	before := time.Now()
	m := New(gateway.Unconfigured{}, "u", time.Time{})
	assert.False(t, m.Reference().Before(before))
}

// ============================================================
// Loading
// ============================================================

func TestRefreshLoadsOnlyTheSelectedWeek(t *testing.T) {
	f := newFixture(t)
	f.entry(t, "2024-06-09", "09:00", "10:00") // previous Sunday
	f.entry(t, "2024-06-10", "09:00", "11:00")
	f.entry(t, "2024-06-16", "13:00", "14:30")
	f.entry(t, "2024-06-17", "09:00", "10:00") // next Monday

	m := New(f.st, f.user.ID, date(t, "2024-06-12"))
	require.NoError(t, m.Refresh(context.Background()))

	require.Len(t, m.Entries, 2)
	assert.Equal(t, "2024-06-10", m.Entries[0].Date)
	assert.Equal(t, "2024-06-16", m.Entries[1].Date)
	assert.Equal(t, "Apollo", m.Entries[0].ProjectName())
	assert.Len(t, m.Projects, 1)
	assert.False(t, m.Loading)
	assert.NoError(t, m.Err)
}

func TestRefreshIgnoresOtherUsers(t *testing.T) {
	f := newFixture(t)
	other, err := f.st.UpsertUser(context.Background(), model.User{Email: "bob@example.com"})
	require.NoError(t, err)
	_, err = f.st.InsertTimeEntry(context.Background(), model.TimeEntry{
		UserID: other.ID, ProjectID: f.project.ID,
		Date: "2024-06-11", StartTime: "09:00", EndTime: "10:00",
	})
	require.NoError(t, err)

	m := New(f.st, f.user.ID, date(t, "2024-06-12"))
	require.NoError(t, m.Refresh(context.Background()))
	assert.Empty(t, m.Entries)
}

func TestStaleResultIsDiscarded(t *testing.T) {
	f := newFixture(t)
	f.entry(t, "2024-06-11", "09:00", "10:00")
	f.entry(t, "2024-06-18", "09:00", "12:00")

	m := New(f.st, f.user.ID, date(t, "2024-06-12"))
	first := m.Begin()

	m.Next()
	second := m.Begin()

	newer := Load(context.Background(), f.st, second)
	older := Load(context.Background(), f.st, first)

	assert.True(t, m.Apply(newer))
	assert.False(t, m.Apply(older), "result for the previous week must not overwrite")

	require.Len(t, m.Entries, 1)
	assert.Equal(t, "2024-06-18", m.Entries[0].Date)
}

func TestResultAfterNavigationIsDiscarded(t *testing.T) {
	f := newFixture(t)
	m := New(f.st, f.user.ID, date(t, "2024-06-12"))
	req := m.Begin()
	m.Prev()

	assert.False(t, m.Apply(Load(context.Background(), f.st, req)))
	assert.True(t, m.Loading)
}

func TestFetchFailureKeepsPreviousEntries(t *testing.T) {
	f := newFixture(t)
	f.entry(t, "2024-06-11", "09:00", "10:00")

	m := New(f.st, f.user.ID, date(t, "2024-06-12"))
	require.NoError(t, m.Refresh(context.Background()))
	require.Len(t, m.Entries, 1)

	m.gw = gateway.Unconfigured{}
	err := m.Refresh(context.Background())
	require.Error(t, err)

	var ff *apperr.FetchFailed
	require.True(t, errors.As(err, &ff))
	assert.Equal(t, "time entries", ff.Resource)
	assert.ErrorIs(t, err, gateway.ErrNotConfigured)
	assert.Equal(t, err, m.Err)
	assert.Len(t, m.Entries, 1)
	assert.False(t, m.Loading)
}

// ============================================================
// Totals
// ============================================================

func TestPerDayTotals(t *testing.T) {
	f := newFixture(t)
	f.entry(t, "2024-06-10", "09:00", "10:30")
	f.entry(t, "2024-06-10", "13:00", "15:00")
	f.entry(t, "2024-06-12", "08:15", "09:00")

	m := New(f.st, f.user.ID, date(t, "2024-06-12"))
	require.NoError(t, m.Refresh(context.Background()))

	assert.InDelta(t, 3.5, m.TotalHoursForDay("2024-06-10"), 1e-9)
	assert.InDelta(t, 0.75, m.TotalHoursForDay("2024-06-12"), 1e-9)
	assert.Zero(t, m.TotalHoursForDay("2024-06-11"))
	assert.Len(t, m.EntriesForDay("2024-06-10"), 2)
	assert.Empty(t, m.EntriesForDay("2024-06-11"))
	assert.InDelta(t, 4.25, m.TotalHours(), 1e-9)

	sums := m.DaySummaries()
	require.Len(t, sums, 7)
	assert.Equal(t, DaySummary{Date: "2024-06-10", Hours: 3.5, Count: 2}, sums[0])
	assert.Equal(t, 0, sums[1].Count)
	assert.Equal(t, "2024-06-16", sums[6].Date)
}

func TestTasksForProject(t *testing.T) {
	m := New(gateway.Unconfigured{}, "u", time.Time{})
	m.Tasks = []model.Task{
		{ID: "1", ProjectID: "a"},
		{ID: "2", ProjectID: "b"},
		{ID: "3", ProjectID: "a"},
	}
	got := m.TasksForProject("a")
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[1].ID)
}
