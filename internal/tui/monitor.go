// Package tui renders a live session monitor: which modules are mounted at
// each mount point, which capabilities are registered, and the tail of
// recently emitted events.
//
// It uses bubbletea's Elm-style loop: Model holds the state, Update reacts to
// messages, View renders a string.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kingrea/loom/internal/coordinator"
	"github.com/kingrea/loom/internal/module"
	"github.com/kingrea/loom/internal/modules/recorder"
	"github.com/kingrea/loom/internal/session"
)

const (
	refreshInterval = 2 * time.Second
	eventTailLimit  = 12
	monitorCaller   = "session-monitor"
)

type refreshMsg struct {
	mounts       []mountItem
	capabilities []string
	events       []recorder.Recorded
	turn         int
}

type mountItem struct {
	point   module.MountPoint
	names   []string
	singlet bool
}

func (i mountItem) Title() string {
	if len(i.names) == 0 {
		return fmt.Sprintf("%s (empty)", i.point)
	}
	return fmt.Sprintf("%s: %s", i.point, strings.Join(i.names, ", "))
}

func (i mountItem) Description() string {
	if i.singlet {
		return "singleton slot"
	}
	return fmt.Sprintf("%d mounted", len(i.names))
}

func (i mountItem) FilterValue() string { return string(i.point) }

// Monitor is the bubbletea model for one session.
type Monitor struct {
	session *session.Session

	mounts       list.Model
	capabilities []string
	events       []recorder.Recorded
	turn         int

	width  int
	height int
}

// NewMonitor builds the monitor for a session.
func NewMonitor(s *session.Session) *Monitor {
	mounts := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	mounts.Title = "Mount Points"
	mounts.SetShowStatusBar(false)
	mounts.SetFilteringEnabled(false)
	m := &Monitor{session: s, mounts: mounts}
	m.apply(m.snapshot())
	return m
}

// Run starts the monitor in the terminal and blocks until it exits.
func Run(s *session.Session) error {
	_, err := tea.NewProgram(NewMonitor(s), tea.WithAltScreen()).Run()
	return err
}

func (m *Monitor) Init() tea.Cmd {
	return m.scheduleRefresh()
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.mounts.SetSize(msg.Width/2, msg.Height-6)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, func() tea.Msg { return m.snapshot() }
		}
	case refreshMsg:
		m.apply(msg)
		return m, m.scheduleRefresh()
	}
	var cmd tea.Cmd
	m.mounts, cmd = m.mounts.Update(msg)
	return m, cmd
}

func (m *Monitor) View() string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("⬡ LOOM · session %s · turn %d", m.session.ID(), m.turn))

	leftBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(m.mounts.View())

	rightBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			m.renderCapabilities(),
			m.renderEvents(),
		))

	body := lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox)

	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render("r: refresh · q: quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Monitor) renderCapabilities() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("Capabilities")
	if len(m.capabilities) == 0 {
		note := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("none registered")
		return lipgloss.JoinVertical(lipgloss.Left, title, note)
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(m.capabilities, "\n"))
}

func (m *Monitor) renderEvents() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("Recent Events")
	if len(m.events) == 0 {
		note := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("no events recorded (mount event-recorder to see the tail)")
		return lipgloss.JoinVertical(lipgloss.Left, title, note)
	}
	lines := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		lines = append(lines, formatEvent(ev))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"))
}

func formatEvent(ev recorder.Recorded) string {
	ts, _ := ev.Data[coordinator.FieldTimestamp].(string)
	if ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			ts = parsed.Format("15:04:05")
		}
		return fmt.Sprintf("%s  %s", ts, ev.Type)
	}
	return ev.Type
}

func (m *Monitor) scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return m.snapshot()
	})
}

// snapshot reads the session's current state. It only uses the coordinator's
// public surface, so the monitor observes exactly what a module would.
func (m *Monitor) snapshot() refreshMsg {
	coord := m.session.Coordinator()
	msg := refreshMsg{
		capabilities: coord.Capabilities(),
		turn:         m.session.Turn(),
	}
	for _, mp := range module.MountPoints() {
		msg.mounts = append(msg.mounts, mountItem{
			point:   mp,
			names:   coord.Mounted(mp),
			singlet: mp.Singleton(),
		})
	}
	if impl, ok := coord.GetCapability(recorder.TailCapability, monitorCaller); ok {
		if out, err := impl(context.Background(), map[string]any{"limit": eventTailLimit}); err == nil {
			if events, ok := out.([]recorder.Recorded); ok {
				msg.events = events
			}
		}
	}
	return msg
}

func (m *Monitor) apply(msg refreshMsg) {
	items := make([]list.Item, len(msg.mounts))
	for i := range msg.mounts {
		items[i] = msg.mounts[i]
	}
	m.mounts.SetItems(items)
	m.capabilities = msg.capabilities
	m.events = msg.events
	m.turn = msg.turn
}
