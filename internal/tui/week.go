package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/timesheet/internal/apperr"
	"github.com/sadopc/timesheet/internal/entries"
	"github.com/sadopc/timesheet/internal/export"
	"github.com/sadopc/timesheet/internal/gateway"
	"github.com/sadopc/timesheet/internal/model"
	"github.com/sadopc/timesheet/internal/week"
)

const noTask = ""

// weekModel is the timesheet grid for one user and one week.
type weekModel struct {
	ctx    context.Context
	gw     gateway.Gateway
	mgr    *entries.Manager
	user   model.User
	wk     *week.Model
	editor *entries.RowEditor
	width  int
	height int

	day    int // 0 = Monday
	cursor int

	chart barchart.Model

	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	formDate    *string
	formProject *string
	formTask    *string
	formStart   *string
	formEnd     *string
	formDesc    *string
}

type entrySavedMsg struct {
	row     string // empty when creating
	created bool
	err     error
}

type entryDeletedMsg struct {
	err error
}

func newWeekModel(ctx context.Context, gw gateway.Gateway, mgr *entries.Manager, u model.User, ref time.Time) weekModel {
	d, p, t, s, e, desc := "", "", "", "", "", ""
	m := weekModel{
		ctx:         ctx,
		gw:          gw,
		mgr:         mgr,
		user:        u,
		wk:          week.New(gw, u.ID, ref),
		editor:      &entries.RowEditor{},
		chart:       barchart.New(60, 8),
		formDate:    &d,
		formProject: &p,
		formTask:    &t,
		formStart:   &s,
		formEnd:     &e,
		formDesc:    &desc,
	}
	m.day = m.dayOf(m.wk.Reference())
	return m
}

func (m *weekModel) setSize(w, h int) {
	m.width = w
	m.height = h
	m.buildChart()
}

// load begins a fetch of the current week. The reads run in the returned
// command; the result is applied on the UI goroutine.
func (m weekModel) load() tea.Cmd {
	req := m.wk.Begin()
	ctx, gw := m.ctx, m.gw
	return func() tea.Msg {
		return weekLoadedMsg{result: week.Load(ctx, gw, req)}
	}
}

func (m weekModel) dayOf(t time.Time) int {
	r := m.wk.Range()
	if !r.Contains(t) {
		return 0
	}
	return (int(t.Weekday()) + 6) % 7
}

func (m weekModel) selectedDate() string {
	return m.wk.Range().Days()[m.day].Format(model.DateLayout)
}

func (m weekModel) dayEntries() []model.TimeEntry {
	return m.wk.EntriesForDay(m.selectedDate())
}

func (m weekModel) selectedEntry() (model.TimeEntry, bool) {
	list := m.dayEntries()
	if m.cursor < 0 || m.cursor >= len(list) {
		return model.TimeEntry{}, false
	}
	return list[m.cursor], true
}

func (m *weekModel) clampCursor() {
	n := len(m.dayEntries())
	if m.cursor >= n {
		m.cursor = max(0, n-1)
	}
}

func (m weekModel) sheet() export.Sheet {
	r := m.wk.Range()
	return export.Sheet{
		User:    m.user.Email,
		From:    r.StartDate(),
		To:      r.EndDate(),
		Entries: m.wk.Entries,
	}
}

func (m weekModel) update(msg tea.Msg) (weekModel, tea.Cmd) {
	switch msg := msg.(type) {
	case weekLoadedMsg:
		if !m.wk.Apply(msg.result) {
			return m, nil
		}
		m.clampCursor()
		m.buildChart()
		if msg.result.Err != nil {
			return m, statusCmd(apperr.Message(msg.result.Err), true)
		}
		return m, nil

	case weekStaleMsg:
		return m, m.load()

	case entrySavedMsg:
		return m.saved(msg)

	case entryDeletedMsg:
		if msg.err != nil {
			return m, statusCmd(apperr.Message(msg.err), true)
		}
		return m, statusCmd("Entry deleted", false)
	}

	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.updateGrid(msg)
	}
	return m, nil
}

func (m weekModel) updateGrid(msg tea.KeyMsg) (weekModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.PrevWeek):
		m.wk.Prev()
		m.cursor = 0
		return m, m.load()
	case key.Matches(msg, keys.NextWeek):
		m.wk.Next()
		m.cursor = 0
		return m, m.load()
	case key.Matches(msg, keys.Today):
		m.wk.Today()
		m.day = m.dayOf(m.wk.Reference())
		m.cursor = 0
		return m, m.load()
	case key.Matches(msg, keys.Left):
		if m.day > 0 {
			m.day--
			m.cursor = 0
			m.buildChart()
		}
	case key.Matches(msg, keys.Right):
		if m.day < 6 {
			m.day++
			m.cursor = 0
			m.buildChart()
		}
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.dayEntries())-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.New):
		return m.showCreateForm()
	case key.Matches(msg, keys.Edit), key.Matches(msg, keys.Enter):
		if e, ok := m.selectedEntry(); ok {
			return m.showEditForm(e)
		}
	case key.Matches(msg, keys.Delete):
		if e, ok := m.selectedEntry(); ok {
			if m.editor.State(e.ID) == entries.Saving {
				return m, nil
			}
			return m, m.deleteEntry(e.ID)
		}
	}
	return m, nil
}

// ============================================================
// Entry form
// ============================================================

func (m weekModel) showCreateForm() (weekModel, tea.Cmd) {
	if len(m.wk.Projects) == 0 {
		return m, statusCmd("No projects yet. Create one in the Projects view first.", true)
	}
	m.editor.StartCreate()
	*m.formDate = m.selectedDate()
	*m.formProject = m.wk.Projects[0].ID
	*m.formTask = noTask
	*m.formStart = "09:00"
	*m.formEnd = "17:00"
	*m.formDesc = ""
	return m.openForm()
}

func (m weekModel) showEditForm(e model.TimeEntry) (weekModel, tea.Cmd) {
	if err := m.editor.Edit(e.ID); err != nil {
		return m, statusCmd("Another entry is still saving.", true)
	}
	*m.formDate = e.Date
	*m.formProject = e.ProjectID
	*m.formTask = noTask
	if e.TaskID != nil {
		*m.formTask = *e.TaskID
	}
	*m.formStart = e.StartTime
	*m.formEnd = e.EndTime
	*m.formDesc = e.Description
	return m.openForm()
}

// openForm builds the form from the current field values, so a failed save
// reopens with the user's input intact.
func (m weekModel) openForm() (weekModel, tea.Cmd) {
	projectOpts := make([]huh.Option[string], len(m.wk.Projects))
	for i, p := range m.wk.Projects {
		projectOpts[i] = huh.NewOption(p.Name+" ("+p.Client+")", p.ID)
	}

	var fields []huh.Field
	if m.editor.Creating() {
		fields = append(fields, huh.NewInput().Title("Date").Placeholder("YYYY-MM-DD").Value(m.formDate))
	}
	fields = append(fields,
		huh.NewSelect[string]().Title("Project").Options(projectOpts...).Value(m.formProject),
		huh.NewSelect[string]().Title("Task").
			OptionsFunc(m.taskOptions, m.formProject).
			Value(m.formTask),
		huh.NewInput().Title("Start").Placeholder("HH:MM").Value(m.formStart),
		huh.NewInput().Title("End").Placeholder("HH:MM").Value(m.formEnd),
		huh.NewInput().Title("Description").Value(m.formDesc),
	)

	m.form = huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(true).WithShowErrors(true)
	m.formActive = true
	return m, m.form.Init()
}

func (m weekModel) taskOptions() []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("(no task)", noTask)}
	for _, t := range m.wk.TasksForProject(*m.formProject) {
		opts = append(opts, huh.NewOption(t.Name, t.ID))
	}
	return opts
}

func (m weekModel) input() entries.EntryInput {
	return entries.EntryInput{
		Date:        *m.formDate,
		ProjectID:   *m.formProject,
		TaskID:      *m.formTask,
		StartTime:   strings.TrimSpace(*m.formStart),
		EndTime:     strings.TrimSpace(*m.formEnd),
		Description: *m.formDesc,
	}
}

func (m weekModel) updateForm(msg tea.Msg) (weekModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		m.formActive = false
		m.form = nil
		if m.editor.Creating() {
			m.editor.FinishCreate()
		} else {
			m.editor.Cancel()
		}
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.formActive = false
		m.form = nil
		if m.editor.Creating() {
			return m, m.createEntry(m.input())
		}
		row, _ := m.editor.Active()
		if err := m.editor.Save(); err != nil {
			return m, statusCmd(err.Error(), true)
		}
		return m, m.updateEntry(row, m.input())
	}
	return m, cmd
}

func (m weekModel) createEntry(in entries.EntryInput) tea.Cmd {
	ctx, mgr, userID := m.ctx, m.mgr, m.user.ID
	return func() tea.Msg {
		_, err := mgr.CreateEntry(ctx, userID, in)
		return entrySavedMsg{created: true, err: err}
	}
}

func (m weekModel) updateEntry(id string, in entries.EntryInput) tea.Cmd {
	ctx, mgr := m.ctx, m.mgr
	return func() tea.Msg {
		_, err := mgr.UpdateEntry(ctx, id, in)
		return entrySavedMsg{row: id, err: err}
	}
}

func (m weekModel) deleteEntry(id string) tea.Cmd {
	ctx, mgr := m.ctx, m.mgr
	return func() tea.Msg {
		return entryDeletedMsg{err: mgr.DeleteEntry(ctx, id)}
	}
}

// saved settles a create or update. On failure the form reopens with the
// submitted values so the user can retry.
func (m weekModel) saved(msg entrySavedMsg) (weekModel, tea.Cmd) {
	if msg.created && msg.err == nil {
		m.editor.FinishCreate()
		return m, statusCmd("Entry added", false)
	}
	if !msg.created {
		m.editor.Done(msg.err)
		if msg.err == nil {
			return m, statusCmd("Entry updated", false)
		}
	}

	var cmd tea.Cmd
	m, cmd = m.openForm()
	return m, tea.Batch(cmd, statusCmd(apperr.Message(msg.err), true))
}

// ============================================================
// Rendering
// ============================================================

func (m *weekModel) buildChart() {
	chartWidth := max(m.width-8, 28)
	m.chart = barchart.New(chartWidth, 8)

	var bars []barchart.BarData
	for i, s := range m.wk.DaySummaries() {
		d, _ := time.Parse(model.DateLayout, s.Date)
		color := colorSecondary
		if i == m.day {
			color = colorPrimary
		}
		bars = append(bars, barchart.BarData{
			Label: d.Format("Mon"),
			Values: []barchart.BarValue{{
				Name:  s.Date,
				Value: s.Hours,
				Style: lipgloss.NewStyle().Foreground(color),
			}},
		})
	}

	m.chart.PushAll(bars)
	m.chart.Draw()
}

func (m weekModel) view() string {
	w := m.width - 4

	if m.formActive && m.form != nil {
		title := titleStyle.Render("Edit Entry")
		if m.editor.Creating() {
			title = titleStyle.Render("New Entry")
		}
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View()),
		)
	}

	r := m.wk.Range()
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Week"), "  ",
		mutedStyle.Render(fmt.Sprintf("%s – %s", r.Start.Format("Jan 02"), r.End.Format("Jan 02, 2006"))),
		"  ",
		highlightStyle.Render("Total "+formatHours(m.wk.TotalHours())),
	)
	if m.wk.Loading {
		header += mutedStyle.Render("  loading...")
	}

	rows := []string{header, ""}
	if m.wk.Err != nil {
		rows = append(rows, errorStyle.Render(apperr.Message(m.wk.Err)), "")
	}
	rows = append(rows, m.renderDays(), "", m.chart.View(), "", m.renderDay())
	rows = append(rows, "", mutedStyle.Render("  [/]: week  t: today  ←/→: day  n: new  e: edit  d: delete  x: export"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m weekModel) renderDays() string {
	today := time.Now().Format(model.DateLayout)
	var cols []string
	for i, s := range m.wk.DaySummaries() {
		d, _ := time.Parse(model.DateLayout, s.Date)
		style := dayHeaderStyle
		if s.Date == today {
			style = todayHeaderStyle
		}
		label := style.Render(d.Format("Mon 02"))
		hours := mutedStyle.Render(formatHours(s.Hours))
		if s.Count > 0 {
			hours = normalItemStyle.Render(formatHours(s.Hours))
		}
		cell := lipgloss.JoinVertical(lipgloss.Center, label, hours)
		box := lipgloss.NewStyle().Padding(0, 1)
		if i == m.day {
			box = box.Border(lipgloss.NormalBorder(), false, false, true, false).BorderForeground(colorPrimary)
		}
		cols = append(cols, box.Render(cell))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m weekModel) renderDay() string {
	date := m.selectedDate()
	list := m.dayEntries()
	title := subtitleStyle.Render(fmt.Sprintf("%s  %d entries  %s", date, len(list), formatHours(m.wk.TotalHoursForDay(date))))

	if len(list) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render("  No entries. Press n to add one."))
	}

	descWidth := max(m.width-60, 10)
	rows := []string{title}
	for i, e := range list {
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		row := style.Render(fmt.Sprintf("%s%s-%s %6s  %-28s %s",
			cursor, e.StartTime, e.EndTime, formatHours(e.Hours),
			truncate(entryLabel(e), 28), truncate(e.Description, descWidth)))
		switch m.editor.State(e.ID) {
		case entries.Editing:
			row += warningStyle.Render(" editing")
		case entries.Saving:
			row += warningStyle.Render(" saving...")
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

func statusCmd(text string, isError bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isError: isError}
	}
}
