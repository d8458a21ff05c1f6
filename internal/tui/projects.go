package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/timesheet/internal/apperr"
	"github.com/sadopc/timesheet/internal/entries"
	"github.com/sadopc/timesheet/internal/gateway"
	"github.com/sadopc/timesheet/internal/model"
)

type formKind int

const (
	formNewProject formKind = iota
	formEditProject
	formNewTask
	formEditTask
	formDeleteProject
	formDeleteTask
)

type projectsModel struct {
	ctx    context.Context
	gw     gateway.Gateway
	mgr    *entries.Manager
	width  int
	height int

	projects     []model.Project
	tasks        []model.Task
	cursor       int
	taskCursor   int
	viewingTasks bool
	err          error

	formActive bool
	form       *huh.Form
	formType   formKind
	editingID  string

	// Form field pointers (survive value copies)
	formName    *string
	formClient  *string
	formDesc    *string
	formStart   *string
	formConfirm *bool
}

func newProjectsModel(ctx context.Context, gw gateway.Gateway, mgr *entries.Manager) projectsModel {
	name, client, desc, start, confirm := "", "", "", "", false
	return projectsModel{
		ctx:         ctx,
		gw:          gw,
		mgr:         mgr,
		formName:    &name,
		formClient:  &client,
		formDesc:    &desc,
		formStart:   &start,
		formConfirm: &confirm,
	}
}

func (p *projectsModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

type projectsDataMsg struct {
	projects []model.Project
	err      error
}

type tasksDataMsg struct {
	projectID string
	tasks     []model.Task
	err       error
}

type projectWriteMsg struct {
	done string
	err  error
}

func (p projectsModel) refresh() tea.Cmd {
	ctx, gw := p.ctx, p.gw
	return func() tea.Msg {
		projects, err := gw.ListProjects(ctx)
		if err != nil {
			return projectsDataMsg{err: &apperr.FetchFailed{Resource: "projects", Err: err}}
		}
		return projectsDataMsg{projects: projects}
	}
}

func (p projectsModel) refreshTasks() tea.Cmd {
	proj, ok := p.selected()
	if !ok {
		return nil
	}
	ctx, gw := p.ctx, p.gw
	return func() tea.Msg {
		tasks, err := gw.ListTasks(ctx, model.TaskFilter{ProjectID: proj.ID})
		if err != nil {
			return tasksDataMsg{projectID: proj.ID, err: &apperr.FetchFailed{Resource: "tasks", Err: err}}
		}
		return tasksDataMsg{projectID: proj.ID, tasks: tasks}
	}
}

func (p projectsModel) selected() (model.Project, bool) {
	if p.cursor < 0 || p.cursor >= len(p.projects) {
		return model.Project{}, false
	}
	return p.projects[p.cursor], true
}

func (p projectsModel) selectedTask() (model.Task, bool) {
	if p.taskCursor < 0 || p.taskCursor >= len(p.tasks) {
		return model.Task{}, false
	}
	return p.tasks[p.taskCursor], true
}

func (p projectsModel) update(msg tea.Msg) (projectsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case projectsDataMsg:
		if msg.err != nil {
			p.err = msg.err
			return p, statusCmd(apperr.Message(msg.err), true)
		}
		p.err = nil
		p.projects = msg.projects
		if p.cursor >= len(p.projects) {
			p.cursor = max(0, len(p.projects)-1)
		}
		if len(p.projects) == 0 {
			p.viewingTasks = false
		}
		if p.viewingTasks {
			return p, p.refreshTasks()
		}
		return p, nil

	case tasksDataMsg:
		if proj, ok := p.selected(); !ok || proj.ID != msg.projectID {
			return p, nil
		}
		if msg.err != nil {
			return p, statusCmd(apperr.Message(msg.err), true)
		}
		p.tasks = msg.tasks
		if p.taskCursor >= len(p.tasks) {
			p.taskCursor = max(0, len(p.tasks)-1)
		}
		return p, nil

	case projectsStaleMsg:
		return p, p.refresh()

	case projectWriteMsg:
		if msg.err != nil {
			return p, statusCmd(apperr.Message(msg.err), true)
		}
		return p, statusCmd(msg.done, false)
	}

	if p.formActive && p.form != nil {
		return p.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		if p.viewingTasks {
			return p.updateTaskView(msg)
		}
		return p.updateProjectList(msg)
	}
	return p, nil
}

func (p projectsModel) updateProjectList(msg tea.KeyMsg) (projectsModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(msg, keys.Down):
		if p.cursor < len(p.projects)-1 {
			p.cursor++
		}
	case key.Matches(msg, keys.Enter):
		if len(p.projects) > 0 {
			p.viewingTasks = true
			p.taskCursor = 0
			p.tasks = nil
			return p, p.refreshTasks()
		}
	case key.Matches(msg, keys.New):
		return p.showProjectForm(model.Project{}, formNewProject)
	case key.Matches(msg, keys.Edit):
		if proj, ok := p.selected(); ok {
			return p.showProjectForm(proj, formEditProject)
		}
	case key.Matches(msg, keys.Delete):
		if proj, ok := p.selected(); ok {
			return p.showConfirm(proj.ID, formDeleteProject,
				fmt.Sprintf("Delete project %q?", proj.Name),
				"Its tasks and every time entry logged against it are deleted too. This cannot be undone.")
		}
	}
	return p, nil
}

func (p projectsModel) updateTaskView(msg tea.KeyMsg) (projectsModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		p.viewingTasks = false
		return p, nil
	case key.Matches(msg, keys.Up):
		if p.taskCursor > 0 {
			p.taskCursor--
		}
	case key.Matches(msg, keys.Down):
		if p.taskCursor < len(p.tasks)-1 {
			p.taskCursor++
		}
	case key.Matches(msg, keys.New):
		return p.showTaskForm(model.Task{}, formNewTask)
	case key.Matches(msg, keys.Edit), key.Matches(msg, keys.Enter):
		if t, ok := p.selectedTask(); ok {
			return p.showTaskForm(t, formEditTask)
		}
	case key.Matches(msg, keys.Delete):
		if t, ok := p.selectedTask(); ok {
			return p.showConfirm(t.ID, formDeleteTask,
				fmt.Sprintf("Delete task %q?", t.Name),
				"Time entries logged against it are deleted too. This cannot be undone.")
		}
	}
	return p, nil
}

func (p projectsModel) showProjectForm(proj model.Project, kind formKind) (projectsModel, tea.Cmd) {
	*p.formName = proj.Name
	*p.formClient = proj.Client
	*p.formDesc = proj.Description
	*p.formStart = proj.StartDate
	p.formType = kind
	p.editingID = proj.ID

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Project Name").Value(p.formName),
			huh.NewInput().Title("Client").Value(p.formClient),
			huh.NewText().Title("Description").Lines(3).Value(p.formDesc),
			huh.NewInput().Title("Start Date").Description("Leave empty for today.").
				Placeholder("YYYY-MM-DD").Value(p.formStart),
		),
	).WithShowHelp(true).WithShowErrors(true)

	p.formActive = true
	return p, p.form.Init()
}

func (p projectsModel) showTaskForm(t model.Task, kind formKind) (projectsModel, tea.Cmd) {
	*p.formName = t.Name
	*p.formDesc = t.Description
	p.formType = kind
	p.editingID = t.ID

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Task Name").Value(p.formName),
			huh.NewText().Title("Description").Lines(3).Value(p.formDesc),
		),
	).WithShowHelp(true).WithShowErrors(true)

	p.formActive = true
	return p, p.form.Init()
}

func (p projectsModel) showConfirm(id string, kind formKind, title, warning string) (projectsModel, tea.Cmd) {
	*p.formConfirm = false
	p.formType = kind
	p.editingID = id

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(warning).
				Affirmative("Delete").
				Negative("Keep").
				Value(p.formConfirm),
		),
	).WithShowHelp(true)

	p.formActive = true
	return p, p.form.Init()
}

func (p projectsModel) updateForm(msg tea.Msg) (projectsModel, tea.Cmd) {
	// Check for escape to cancel form
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			p.formActive = false
			p.form = nil
			return p, nil
		}
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	if p.form.State == huh.StateCompleted {
		p.formActive = false
		p.form = nil
		return p, p.submit()
	}

	return p, cmd
}

// submit runs the write for the completed form. The manager refreshes the
// list through its refresher once the write succeeds.
func (p projectsModel) submit() tea.Cmd {
	ctx, mgr, id := p.ctx, p.mgr, p.editingID
	proj := model.Project{
		ID:          id,
		Name:        *p.formName,
		Client:      *p.formClient,
		Description: strings.TrimSpace(*p.formDesc),
		StartDate:   strings.TrimSpace(*p.formStart),
	}
	var projectID string
	if sel, ok := p.selected(); ok {
		projectID = sel.ID
	}
	task := model.Task{
		ID:          id,
		ProjectID:   projectID,
		Name:        *p.formName,
		Description: strings.TrimSpace(*p.formDesc),
	}
	confirmed := *p.formConfirm

	switch p.formType {
	case formNewProject:
		return func() tea.Msg {
			_, err := mgr.CreateProject(ctx, proj)
			return projectWriteMsg{done: "Project created", err: err}
		}
	case formEditProject:
		return func() tea.Msg {
			_, err := mgr.UpdateProject(ctx, proj)
			return projectWriteMsg{done: "Project updated", err: err}
		}
	case formNewTask:
		return func() tea.Msg {
			_, err := mgr.CreateTask(ctx, task)
			return projectWriteMsg{done: "Task created", err: err}
		}
	case formEditTask:
		return func() tea.Msg {
			_, err := mgr.UpdateTask(ctx, task)
			return projectWriteMsg{done: "Task updated", err: err}
		}
	case formDeleteProject:
		if !confirmed {
			return statusCmd("Kept project", false)
		}
		return func() tea.Msg {
			return projectWriteMsg{done: "Project deleted", err: mgr.DeleteProject(ctx, id, true)}
		}
	case formDeleteTask:
		if !confirmed {
			return statusCmd("Kept task", false)
		}
		return func() tea.Msg {
			return projectWriteMsg{done: "Task deleted", err: mgr.DeleteTask(ctx, id, true)}
		}
	}
	return nil
}

func (p projectsModel) view() string {
	if p.formActive && p.form != nil {
		var title string
		style := panelStyle
		switch p.formType {
		case formNewProject:
			title = "New Project"
		case formEditProject:
			title = "Edit Project"
		case formNewTask:
			title = "New Task"
		case formEditTask:
			title = "Edit Task"
		default:
			title = "Confirm Delete"
			style = dangerPanelStyle
		}
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", p.form.View())
		return style.Width(p.width - 4).Render(content)
	}

	if p.viewingTasks {
		return p.renderTaskView()
	}
	return p.renderProjectList()
}

func (p projectsModel) renderProjectList() string {
	w := p.width - 4
	title := titleStyle.Render("Projects")

	if len(p.projects) == 0 {
		hint := "No projects yet. Press n to create one."
		if p.err != nil {
			hint = apperr.Message(p.err)
		}
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", mutedStyle.Render(hint))
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	// Table header
	header := mutedStyle.Render(fmt.Sprintf("  %-28s %-20s %-10s", "Name", "Client", "Started"))
	rows = append(rows, header)

	for i, proj := range p.projects {
		cursor := "  "
		style := normalItemStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		row := style.Render(fmt.Sprintf("%s%-28s %-20s %-10s", cursor,
			truncate(proj.Name, 28), truncate(proj.Client, 20), proj.StartDate))
		rows = append(rows, row)
	}

	if proj, ok := p.selected(); ok && proj.Description != "" {
		rows = append(rows, "", mutedStyle.Render("  "+proj.Description))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  e: edit  d: delete  enter: tasks"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (p projectsModel) renderTaskView() string {
	w := p.width - 4
	proj, _ := p.selected()
	title := titleStyle.Render(fmt.Sprintf("%s · Tasks", proj.Name))

	if len(p.tasks) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No tasks. Press n to add one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	for i, task := range p.tasks {
		cursor := "  "
		style := normalItemStyle
		if i == p.taskCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		desc := ""
		if task.Description != "" {
			desc = mutedStyle.Render("  " + truncate(task.Description, max(w-40, 10)))
		}
		rows = append(rows, style.Render(cursor+task.Name)+desc)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new task  e: edit  d: delete  esc: back"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
