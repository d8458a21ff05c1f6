package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/timesheet/internal/apperr"
	"github.com/sadopc/timesheet/internal/auth"
)

type signInStage int

const (
	stageEmail signInStage = iota
	stageToken
)

// signInModel walks a signed-out user through the emailed link: ask for
// the address, then for the token from the link.
type signInModel struct {
	ctx        context.Context
	session    *auth.Session
	configured bool
	width      int
	height     int

	stage  signInStage
	form   *huh.Form
	busy   bool
	notice string
	failed bool

	// Form values as pointers (survive value copies)
	email *string
	token *string
}

type linkSentMsg struct {
	email string
	err   error
}

type verifiedMsg struct {
	err error
}

func newSignInModel(ctx context.Context, s *auth.Session, configured bool) signInModel {
	email, token := "", ""
	m := signInModel{
		ctx:        ctx,
		session:    s,
		configured: configured,
		email:      &email,
		token:      &token,
	}
	m.form = m.emailForm()
	if err := s.Err(); err != nil {
		m.notice, m.failed = apperr.Message(err), true
	}
	return m
}

func (m *signInModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m signInModel) init() tea.Cmd {
	return m.form.Init()
}

func (m signInModel) emailForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Description("We will send a sign-in link to this address.").
				Placeholder("you@example.com").
				Value(m.email),
		),
	).WithShowHelp(false).WithShowErrors(true)
}

func (m signInModel) tokenForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Token").
				Description("Paste the token from the link sent to "+*m.email+".").
				Value(m.token),
		),
	).WithShowHelp(false).WithShowErrors(true)
}

func (m signInModel) sendLink() tea.Cmd {
	email := *m.email
	return func() tea.Msg {
		return linkSentMsg{email: email, err: m.session.SignIn(m.ctx, email)}
	}
}

func (m signInModel) verify() tea.Cmd {
	token := *m.token
	return func() tea.Msg {
		return verifiedMsg{err: m.session.Verify(m.ctx, token)}
	}
}

func (m signInModel) update(msg tea.Msg) (signInModel, tea.Cmd) {
	switch msg := msg.(type) {
	case linkSentMsg:
		m.busy = false
		if msg.err != nil {
			m.notice, m.failed = apperr.Message(msg.err), true
			m.form = m.emailForm()
			return m, m.form.Init()
		}
		m.notice, m.failed = "Sign-in link sent to "+msg.email+".", false
		m.stage = stageToken
		*m.token = ""
		m.form = m.tokenForm()
		return m, m.form.Init()

	case verifiedMsg:
		m.busy = false
		if msg.err != nil {
			m.notice, m.failed = apperr.Message(msg.err), true
			m.form = m.tokenForm()
			return m, m.form.Init()
		}
		m.notice, m.failed = "", false
		return m, nil

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		if msg.String() == "esc" && m.stage == stageToken {
			m.stage = stageEmail
			m.notice = ""
			m.form = m.emailForm()
			return m, m.form.Init()
		}
	}

	if m.busy {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		m.busy = true
		m.notice, m.failed = "", false
		if m.stage == stageEmail {
			return m, m.sendLink()
		}
		return m, m.verify()
	}
	return m, cmd
}

func (m signInModel) view() string {
	w := min(m.width-4, 72)

	rows := []string{
		titleStyle.Render("Sign in"),
		subtitleStyle.Render("Passwordless sign-in for allow-listed addresses."),
		"",
	}
	if !m.configured {
		rows = append(rows,
			warningStyle.Render("No backend is configured. Set backend_url and api_key in the config file."),
			"",
		)
	}

	switch {
	case m.busy && m.stage == stageEmail:
		rows = append(rows, mutedStyle.Render("Checking "+*m.email+"..."))
	case m.busy:
		rows = append(rows, mutedStyle.Render("Verifying..."))
	default:
		rows = append(rows, m.form.View())
	}

	if m.notice != "" {
		style := successStyle
		if m.failed {
			style = errorStyle
		}
		rows = append(rows, "", style.Render(m.notice))
	}

	hint := "enter: continue  ctrl+c: quit"
	if m.stage == stageToken {
		hint = "enter: verify  esc: use another email  ctrl+c: quit"
	}
	rows = append(rows, "", mutedStyle.Render(hint))

	panel := activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}
