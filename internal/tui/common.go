package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/timesheet/internal/auth"
	"github.com/sadopc/timesheet/internal/model"
	"github.com/sadopc/timesheet/internal/week"
)

// viewState represents the currently active view.
type viewState int

const (
	viewWeek viewState = iota
	viewProjects
	viewAnalytics
	viewManagement
	viewProfile
)

var viewNames = []string{"Week", "Projects", "Analytics", "Management", "Profile"}

func (v viewState) String() string { return viewNames[v] }

// viewCapability is the capability a view needs. Profile needs none beyond
// being signed in.
var viewCapability = map[viewState]auth.Capability{
	viewWeek:       auth.TimeTracking,
	viewProjects:   auth.Projects,
	viewAnalytics:  auth.Analytics,
	viewManagement: auth.Management,
}

// visibleViews lists the views the capabilities allow, in tab order.
func visibleViews(caps []auth.Capability) []viewState {
	has := make(map[auth.Capability]bool, len(caps))
	for _, c := range caps {
		has[c] = true
	}
	var out []viewState
	for v := viewWeek; v <= viewProfile; v++ {
		c, gated := viewCapability[v]
		if !gated || has[c] {
			out = append(out, v)
		}
	}
	return out
}

// --- Messages ---

type sessionChangedMsg struct{}

type weekLoadedMsg struct {
	result week.Result
}

// weekStaleMsg and projectsStaleMsg are sent after a successful write.
type weekStaleMsg struct{}
type projectsStaleMsg struct{}

type statusMsg struct {
	text    string
	isError bool
}

type exportDoneMsg struct {
	path string
}

// --- Refresh signals ---

// signal is the Refresher handed to the entry manager. Writes run inside
// commands, so instead of touching view state it wakes a listener that
// turns the signal into a message for Update. Repeated signals coalesce.
type signal chan struct{}

func newSignal() signal { return make(signal, 1) }

func (s signal) Refresh(context.Context) error {
	select {
	case s <- struct{}{}:
	default:
	}
	return nil
}

// listen waits for the next signal and reports it as msg.
func (s signal) listen(msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		<-s
		return msg
	}
}

func waitForSession(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changes
		return sessionChangedMsg{}
	}
}

// --- Helpers ---

// formatHours renders fractional hours as H:MM.
func formatHours(h float64) string {
	d := time.Duration(h * float64(time.Hour)).Round(time.Minute)
	return fmt.Sprintf("%d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

func entryLabel(e model.TimeEntry) string {
	label := e.ProjectName()
	if t := e.TaskName(); t != "" {
		label += " / " + t
	}
	return label
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
