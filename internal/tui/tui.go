package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Snapshot is a point-in-time view of an agent's connection, registration,
// and outbound-queue state, rendered by the status dashboard.
type Snapshot struct {
	RegistrationState string
	ConnectionState   string
	OutboxDepth       int
	OutboxDropped     int
	ActiveTasks       int
	ReconnectAttempt  int
	LastError         string
	LastEvent         string
	Uptime            time.Duration
	ActivityLog       []string
}

// StatusProvider supplies a fresh Snapshot on each tick.
type StatusProvider func() Snapshot

var (
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// stateStyle colors a state label green when it reflects a healthy
// terminal state, amber while transitioning, red when failed.
func stateStyle(state string) lipgloss.Style {
	switch state {
	case "registered", "connected":
		return okStyle
	case "failed", "conflict_already_registered":
		return errStyle
	case "", "unregistered", "disconnected":
		return dimStyle
	default:
		return warnStyle
	}
}

type model struct {
	provider StatusProvider
	snap     Snapshot
	log      viewport.Model
	ready    bool
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(1*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		if !m.ready {
			m.log = viewport.New(msg.Width-4, 8)
			m.ready = true
		} else {
			m.log.Width = msg.Width - 4
		}
		m.log.SetContent(strings.Join(m.snap.ActivityLog, "\n"))
		m.log.GotoBottom()
		return m, nil
	case tickMsg:
		m.snap = m.provider()
		if m.ready {
			m.log.SetContent(strings.Join(m.snap.ActivityLog, "\n"))
			m.log.GotoBottom()
		}
		return m, tickCmd()
	}
	var cmd tea.Cmd
	m.log, cmd = m.log.Update(msg)
	return m, cmd
}

func (m model) View() string {
	lastErr := humanError(m.snap.LastError)
	if lastErr == "" {
		lastErr = "(none)"
	}
	lastEvent := m.snap.LastEvent
	if lastEvent == "" {
		lastEvent = "(none)"
	}

	regLine := fmt.Sprintf("Registration: %s", m.snap.RegistrationState)
	connLine := fmt.Sprintf("Connection: %s", m.snap.ConnectionState)
	lastErrLine := "Last Error: " + lastErr
	if m.snap.LastError != "" {
		lastErrLine = errStyle.Render(lastErrLine)
	} else {
		lastErrLine = dimStyle.Render(lastErrLine)
	}

	body := fmt.Sprintf(
		"%s\n%s\nOutbox Depth: %d\nOutbox Dropped: %d\nActive Tasks: %d\nReconnect Attempt: %d\nUptime: %s\n%s\nLast Event: %s",
		stateStyle(m.snap.RegistrationState).Render(regLine),
		stateStyle(m.snap.ConnectionState).Render(connLine),
		m.snap.OutboxDepth,
		m.snap.OutboxDropped,
		m.snap.ActiveTasks,
		m.snap.ReconnectAttempt,
		m.snap.Uptime.Truncate(time.Second),
		lastErrLine,
		lastEvent,
	)

	var logPanel string
	if m.ready {
		logPanel = "\n\n" + dimStyle.Render("── Activity Log ──") + "\n" + m.log.View()
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Render("Agent Status"),
		"",
		body,
		logPanel,
		"",
		dimStyle.Render("Press q to quit."),
	)) + "\n"
}

// Run drives the status dashboard until ctx is cancelled or the user quits.
func Run(ctx context.Context, provider StatusProvider) error {
	defer bestEffortResetTTY()

	m := model{provider: provider, snap: provider()}
	p := tea.NewProgram(m)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run()
		done <- err
	}()

	select {
	case <-ctx.Done():
		p.Quit()
		return ctx.Err()
	case err := <-done:
		return err
	}
}
