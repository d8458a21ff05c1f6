package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/timesheet/internal/apperr"
	"github.com/sadopc/timesheet/internal/auth"
	"github.com/sadopc/timesheet/internal/entries"
	"github.com/sadopc/timesheet/internal/export"
	"github.com/sadopc/timesheet/internal/gateway"
	"github.com/sadopc/timesheet/internal/model"
)

// App is the root Bubble Tea model. It shows the sign-in screen until the
// session binds a user, then the views that user's role allows.
type App struct {
	ctx        context.Context
	session    *auth.Session
	gw         gateway.Gateway
	mgr        *entries.Manager
	logger     *slog.Logger
	configured bool
	exportDir  string
	width      int
	height     int

	weekStale     signal
	projectsStale signal

	signedIn bool
	user     model.User
	views    []viewState

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	signIn     signInModel
	week       weekModel
	projects   projectsModel
	analytics  analyticsModel
	management managementModel
	profile    profileModel

	help      help.Model
	status    string
	statusErr bool
}

type signedOutMsg struct {
	err error
}

// NewApp builds the UI over an already started session. configured is false
// when the client runs without a backend.
func NewApp(ctx context.Context, s *auth.Session, gw gateway.Gateway, logger *slog.Logger, configured bool) App {
	h := help.New()
	h.ShowAll = false

	exportDir, err := os.UserHomeDir()
	if err != nil {
		exportDir = "."
	}

	weekStale, projectsStale := newSignal(), newSignal()
	mgr := entries.NewManager(gw, weekStale, projectsStale, logger)

	a := App{
		ctx:           ctx,
		session:       s,
		gw:            gw,
		mgr:           mgr,
		logger:        logger,
		configured:    configured,
		exportDir:     exportDir,
		weekStale:     weekStale,
		projectsStale: projectsStale,
		signIn:        newSignInModel(ctx, s, configured),
		projects:      newProjectsModel(ctx, gw, mgr),
		management:    newManagementModel(ctx, gw),
		profile:       newProfileModel(ctx, s),
		help:          h,
	}
	a.bind()
	return a
}

func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForSession(a.session.Changes()),
		a.weekStale.listen(weekStaleMsg{}),
		a.projectsStale.listen(projectsStaleMsg{}),
	}
	if a.signedIn {
		cmds = append(cmds, a.week.load(), a.projects.refresh())
	} else {
		cmds = append(cmds, a.signIn.init())
	}
	return tea.Batch(cmds...)
}

// bind follows the session: it swaps between the sign-in screen and the
// signed-in views and recomputes the tabs from the current role.
func (a *App) bind() tea.Cmd {
	u, ok := a.session.Current()
	if !ok {
		wasSignedIn := a.signedIn
		a.signedIn = false
		a.user = model.User{}
		a.views = nil
		if wasSignedIn {
			a.signIn = newSignInModel(a.ctx, a.session, a.configured)
			a.signIn.setSize(a.width, a.contentHeight())
			return a.signIn.init()
		}
		return nil
	}

	a.views = visibleViews(auth.Capabilities(u.Role))
	if a.signedIn && a.user.ID == u.ID {
		a.user = u
		if !slices.Contains(a.views, a.activeView) {
			a.activeView = a.views[0]
		}
		return nil
	}

	a.signedIn = true
	a.user = u
	a.activeView = a.views[0]
	a.week = newWeekModel(a.ctx, a.gw, a.mgr, u, time.Time{})
	a.week.setSize(a.width, a.contentHeight())
	return tea.Batch(a.week.load(), a.projects.refresh())
}

func (a App) contentHeight() int {
	return max(a.height-4, 1) // header + footer
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		h := a.contentHeight()
		a.signIn.setSize(a.width, h)
		a.projects.setSize(a.width, h)
		a.analytics.setSize(a.width, h)
		a.management.setSize(a.width, h)
		a.profile.setSize(a.width, h)
		if a.signedIn {
			a.week.setSize(a.width, h)
		}
		return a, nil

	case sessionChangedMsg:
		cmd = a.bind()
		return a, tea.Batch(cmd, waitForSession(a.session.Changes()))

	case weekStaleMsg:
		if a.signedIn {
			a.week, cmd = a.week.update(msg)
		}
		return a, tea.Batch(cmd, a.weekStale.listen(weekStaleMsg{}))

	case projectsStaleMsg:
		if a.signedIn {
			a.projects, cmd = a.projects.update(msg)
		}
		return a, tea.Batch(cmd, a.projectsStale.listen(projectsStaleMsg{}))

	case weekLoadedMsg, entrySavedMsg, entryDeletedMsg:
		if !a.signedIn {
			return a, nil
		}
		a.week, cmd = a.week.update(msg)
		return a, cmd

	case projectsDataMsg, tasksDataMsg, projectWriteMsg:
		a.projects, cmd = a.projects.update(msg)
		return a, cmd

	case managementDataMsg:
		a.management, cmd = a.management.update(msg)
		return a, cmd

	case profileSavedMsg:
		a.profile, cmd = a.profile.update(msg)
		return a, cmd

	case linkSentMsg, verifiedMsg:
		a.signIn, cmd = a.signIn.update(msg)
		return a, cmd

	case signedOutMsg:
		if msg.err != nil {
			a.setStatus(apperr.Message(msg.err), true)
		} else {
			a.setStatus("Signed out", false)
		}
		return a, nil

	case statusMsg:
		a.setStatus(msg.text, msg.isError)
		return a, nil

	case exportDoneMsg:
		a.setStatus("Exported to "+msg.path, false)
		a.exportPicking = false
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if !a.signedIn {
			break
		}

		// Export picker
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.SignOut):
			return a, a.signOut()
		case key.Matches(msg, keys.Tab1):
			return a.switchTab(0)
		case key.Matches(msg, keys.Tab2):
			return a.switchTab(1)
		case key.Matches(msg, keys.Tab3):
			return a.switchTab(2)
		case key.Matches(msg, keys.Tab4):
			return a.switchTab(3)
		case key.Matches(msg, keys.Tab5):
			return a.switchTab(4)
		case key.Matches(msg, keys.Tab):
			i := slices.Index(a.views, a.activeView)
			return a.switchTab((i + 1) % len(a.views))
		}
	}

	if !a.signedIn {
		a.signIn, cmd = a.signIn.update(msg)
		return a, cmd
	}
	return a.updateActiveView(msg)
}

func (a *App) setStatus(text string, isError bool) {
	a.status = text
	a.statusErr = isError
	if isError {
		a.logger.Debug("notice shown", "text", text)
	}
}

// switchTab activates the i-th visible view. Views the role does not allow
// are never in the list, so they cannot be reached.
func (a App) switchTab(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(a.views) {
		return a, nil
	}
	a.activeView = a.views[i]
	return a, a.refreshCurrentView()
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewWeek:
		a.week, cmd = a.week.update(msg)
	case viewProjects:
		a.projects, cmd = a.projects.update(msg)
	case viewManagement:
		a.management, cmd = a.management.update(msg)
	case viewProfile:
		a.profile, cmd = a.profile.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewWeek:
		return a.week.formActive
	case viewProjects:
		return a.projects.formActive
	case viewProfile:
		return a.profile.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewWeek:
		return a.week.load()
	case viewProjects:
		return a.projects.refresh()
	case viewManagement:
		return a.management.refresh()
	}
	return nil
}

func (a App) signOut() tea.Cmd {
	ctx, s := a.ctx, a.session
	return func() tea.Msg {
		return signedOutMsg{err: s.SignOut(ctx)}
	}
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	// Calculate available height for content
	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := max(a.height-headerHeight-footerHeight, 1)

	var content string
	switch {
	case !a.signedIn:
		content = a.signIn.view()
	case a.exportPicking:
		content = a.renderExportPicker()
	default:
		switch a.activeView {
		case viewWeek:
			content = a.week.view()
		case viewProjects:
			content = a.projects.view()
		case viewAnalytics:
			content = a.analytics.view()
		case viewManagement:
			content = a.management.view()
		case viewProfile:
			content = a.profile.view()
		}
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		MaxHeight(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, v := range a.views {
		name := fmt.Sprintf("%d %s", i+1, v)
		if v == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("timesheet")
	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	left := ""
	if a.signedIn {
		left = footerStyle.Render(a.help.View(keys))
	}

	var right []string
	if a.status != "" {
		style := mutedStyle
		if a.statusErr {
			style = errorStyle
		}
		right = append(right, style.Render(a.status))
	}
	if a.signedIn {
		name := a.user.DisplayName
		if name == "" {
			name = a.user.Email
		}
		right = append(right, highlightStyle.Render(fmt.Sprintf("● %s (%s)", name, a.user.Role)))
	} else if !a.configured {
		right = append(right, warningStyle.Render("● offline"))
	}
	rightView := strings.Join(right, "  ")

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(rightView)-2, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, rightView)
}

func (a App) renderExportPicker() string {
	r := a.week.wk.Range()
	title := titleStyle.Render("Export Week")
	subtitle := mutedStyle.Render(fmt.Sprintf("%s to %s, %d entries", r.StartDate(), r.EndDate(), len(a.week.wk.Entries)))

	rows := []string{title, subtitle, ""}
	for i, f := range export.Formats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+strings.ToUpper(string(f))))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(export.Formats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(export.Formats[a.exportCursor])
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

// doExport writes the week as currently loaded; it does not re-fetch.
func (a App) doExport(f export.Format) tea.Cmd {
	sheet, dir, logger := a.week.sheet(), a.exportDir, a.logger
	return func() tea.Msg {
		path, err := export.WriteTo(sheet, f, dir)
		if err != nil {
			logger.Error("export failed", "format", string(f), "error", err)
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		logger.Info("week exported", "path", path, "entries", len(sheet.Entries))
		return exportDoneMsg{path: path}
	}
}
