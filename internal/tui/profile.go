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
	"github.com/sadopc/timesheet/internal/auth"
	"github.com/sadopc/timesheet/internal/model"
)

type profileModel struct {
	ctx     context.Context
	session *auth.Session
	width   int
	height  int

	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	displayName *string
}

type profileSavedMsg struct {
	user model.User
	err  error
}

func newProfileModel(ctx context.Context, s *auth.Session) profileModel {
	name := ""
	return profileModel{ctx: ctx, session: s, displayName: &name}
}

func (p *profileModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

func (p profileModel) update(msg tea.Msg) (profileModel, tea.Cmd) {
	if saved, ok := msg.(profileSavedMsg); ok {
		if saved.err != nil {
			return p, statusCmd(apperr.Message(saved.err), true)
		}
		return p, statusCmd("Profile saved", false)
	}

	if p.formActive && p.form != nil {
		return p.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Edit):
			return p.showForm()
		}
	}
	return p, nil
}

func (p profileModel) showForm() (profileModel, tea.Cmd) {
	u, ok := p.session.Current()
	if !ok {
		return p, nil
	}
	*p.displayName = u.DisplayName

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Display name").Value(p.displayName),
		).Title("Profile"),
	).WithShowHelp(true).WithShowErrors(true)

	p.formActive = true
	return p, p.form.Init()
}

func (p profileModel) updateForm(msg tea.Msg) (profileModel, tea.Cmd) {
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
		return p, p.save(*p.displayName)
	}

	return p, cmd
}

func (p profileModel) save(name string) tea.Cmd {
	ctx, s := p.ctx, p.session
	return func() tea.Msg {
		u, err := s.UpdateProfile(ctx, name)
		return profileSavedMsg{user: u, err: err}
	}
}

func (p profileModel) view() string {
	w := p.width - 4

	if p.formActive && p.form != nil {
		title := titleStyle.Render("Profile")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", p.form.View()),
		)
	}

	u, _ := p.session.Current()
	var caps []string
	for _, c := range p.session.Capabilities() {
		caps = append(caps, string(c))
	}

	field := func(label, value string) string {
		return fmt.Sprintf("  %s %s", lipgloss.NewStyle().Width(16).Render(label), highlightStyle.Render(value))
	}

	rows := []string{
		titleStyle.Render("Profile"),
		"",
		field("Display name", u.DisplayName),
		field("Email", u.Email),
		field("Role", string(u.Role)),
		field("Access", strings.Join(caps, ", ")),
		"",
		mutedStyle.Render("Press enter to edit your display name, ctrl+o to sign out"),
	}
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
