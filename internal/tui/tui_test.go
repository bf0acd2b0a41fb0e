package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestView_DisplaysConnectionAndOutboxMetrics(t *testing.T) {
	m := model{
		snap: Snapshot{
			RegistrationState: "registered",
			ConnectionState:   "connected",
			OutboxDepth:       5,
			OutboxDropped:     1,
			ActiveTasks:       2,
			ReconnectAttempt:  0,
			LastError:         "",
			LastEvent:         "test",
			Uptime:            10 * time.Second,
		},
	}
	view := m.View()

	for _, want := range []string{
		"Registration: registered",
		"Connection: connected",
		"Outbox Depth: 5",
		"Outbox Dropped: 1",
		"Active Tasks: 2",
		"Reconnect Attempt: 0",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q, got:\n%s", want, view)
		}
	}
}

func TestView_ShowsPlaceholdersForEmptyErrorAndEvent(t *testing.T) {
	m := model{snap: Snapshot{}}
	view := m.View()
	if !strings.Contains(view, "Last Error: (none)") || !strings.Contains(view, "Last Event: (none)") {
		t.Errorf("expected placeholder text for empty error/event, got:\n%s", view)
	}
}

func TestView_StylesStateLabelsWithoutBreakingSubstrings(t *testing.T) {
	m := model{snap: Snapshot{RegistrationState: "registered", ConnectionState: "failed"}}
	view := m.View()
	for _, want := range []string{"Registration: registered", "Connection: failed"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q verbatim, got:\n%s", want, view)
		}
	}
}

func TestUpdate_WindowSizeInitializesActivityLogViewport(t *testing.T) {
	m := model{snap: Snapshot{ActivityLog: []string{"connection.state_changed", "registration.state_changed"}}}
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m2 := updated.(model)
	if !m2.ready {
		t.Fatal("expected viewport to be ready after a WindowSizeMsg")
	}
	view := m2.View()
	if !strings.Contains(view, "Activity Log") {
		t.Errorf("expected activity log panel in view, got:\n%s", view)
	}
}

func TestTUI_HeadlessNonTTY(t *testing.T) {
	provider := func() Snapshot {
		return Snapshot{
			RegistrationState: "registered",
			ConnectionState:   "connected",
			ActiveTasks:       0,
			Uptime:            5 * time.Second,
		}
	}

	m := model{provider: provider, snap: provider()}

	cmd := m.Init()
	if cmd == nil {
		t.Fatal("expected Init to return a cmd")
	}

	updated, quitCmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if updated == nil {
		t.Fatal("expected non-nil model after Update")
	}
	if quitCmd == nil {
		t.Fatal("expected quit command on 'q' key")
	}

	m2 := model{provider: provider, snap: Snapshot{}}
	updated2, tickCmd := m2.Update(tickMsg(time.Now()))
	if tickCmd == nil {
		t.Fatal("expected tick cmd after tick message")
	}
	updatedModel := updated2.(model)
	if updatedModel.snap.ConnectionState != "connected" {
		t.Fatal("expected snapshot to be refreshed from provider")
	}

	view := m.View()
	if view == "" {
		t.Fatal("expected non-empty view output in headless mode")
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(cancelCtx, provider)
	if err != nil && err != context.Canceled {
		t.Fatalf("expected clean exit or context.Canceled, got: %v", err)
	}
}
