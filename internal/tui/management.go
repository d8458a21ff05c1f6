package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/timesheet/internal/apperr"
	"github.com/sadopc/timesheet/internal/gateway"
	"github.com/sadopc/timesheet/internal/model"
)

type managementTab int

const (
	tabUsers managementTab = iota
	tabAllowList
)

// managementModel lists users and the allow-list for managers. It is read
// only; the allow-list is edited with the backend's allow command.
type managementModel struct {
	ctx    context.Context
	gw     gateway.Gateway
	width  int
	height int

	tab     managementTab
	users   []model.User
	allowed []model.AuthorizedEmail
	err     error
}

type managementDataMsg struct {
	users   []model.User
	allowed []model.AuthorizedEmail
	err     error
}

func newManagementModel(ctx context.Context, gw gateway.Gateway) managementModel {
	return managementModel{ctx: ctx, gw: gw}
}

func (m *managementModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m managementModel) refresh() tea.Cmd {
	ctx, gw := m.ctx, m.gw
	return func() tea.Msg {
		users, err := gw.ListUsers(ctx)
		if err != nil {
			return managementDataMsg{err: &apperr.FetchFailed{Resource: "users", Err: err}}
		}
		allowed, err := gw.ListAuthorizedEmails(ctx)
		if err != nil {
			return managementDataMsg{err: &apperr.FetchFailed{Resource: "allow-list", Err: err}}
		}
		return managementDataMsg{users: users, allowed: allowed}
	}
}

func (m managementModel) update(msg tea.Msg) (managementModel, tea.Cmd) {
	switch msg := msg.(type) {
	case managementDataMsg:
		m.err = msg.err
		if msg.err != nil {
			return m, statusCmd(apperr.Message(msg.err), true)
		}
		m.users = msg.users
		m.allowed = msg.allowed
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			m.tab = tabUsers
		case key.Matches(msg, keys.Right):
			m.tab = tabAllowList
		}
	}
	return m, nil
}

func (m managementModel) view() string {
	w := m.width - 4

	usersTab := inactiveTabStyle.Render(fmt.Sprintf("Users (%d)", len(m.users)))
	allowTab := inactiveTabStyle.Render(fmt.Sprintf("Allow-list (%d)", len(m.allowed)))
	if m.tab == tabUsers {
		usersTab = activeTabStyle.Render(fmt.Sprintf("Users (%d)", len(m.users)))
	} else {
		allowTab = activeTabStyle.Render(fmt.Sprintf("Allow-list (%d)", len(m.allowed)))
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Management"), "  ", usersTab, allowTab,
	)

	var body string
	switch {
	case m.err != nil:
		body = errorStyle.Render(apperr.Message(m.err))
	case m.tab == tabUsers:
		body = m.renderUsers()
	default:
		body = m.renderAllowList()
	}

	nav := mutedStyle.Render("  ←/→: switch list")
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", nav))
}

func (m managementModel) renderUsers() string {
	if len(m.users) == 0 {
		return mutedStyle.Render("  No users have signed in yet.")
	}
	rows := []string{mutedStyle.Render(fmt.Sprintf("  %-32s %-24s %-10s %s", "Email", "Name", "Role", "Joined"))}
	for _, u := range m.users {
		rows = append(rows, normalItemStyle.Render(fmt.Sprintf("  %-32s %-24s %-10s %s",
			truncate(u.Email, 32), truncate(u.DisplayName, 24), u.Role, u.CreatedAt.Format(model.DateLayout))))
	}
	return strings.Join(rows, "\n")
}

func (m managementModel) renderAllowList() string {
	if len(m.allowed) == 0 {
		return mutedStyle.Render("  The allow-list is empty.")
	}
	rows := []string{mutedStyle.Render(fmt.Sprintf("  %-32s %-10s %-24s %s", "Email", "Role", "Added by", "Added"))}
	for _, a := range m.allowed {
		rows = append(rows, normalItemStyle.Render(fmt.Sprintf("  %-32s %-10s %-24s %s",
			truncate(a.Email, 32), a.Role, truncate(a.CreatedBy, 24), a.CreatedAt.Format(model.DateLayout))))
	}
	return strings.Join(rows, "\n")
}
