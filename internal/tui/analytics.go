package tui

import "github.com/charmbracelet/lipgloss"

// analyticsModel is shown to supervisors and managers. There is nothing to
// compute yet.
type analyticsModel struct {
	width  int
	height int
}

func (a *analyticsModel) setSize(w, h int) {
	a.width = w
	a.height = h
}

func (a analyticsModel) view() string {
	return panelStyle.Width(a.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Analytics"),
		"",
		highlightStyle.Render("Coming soon."),
		mutedStyle.Render("Team reports will appear here."),
	))
}
