package tui

import (
	"time"

	"github.com/basket/a2a-agent/internal/a2a"
)

// SnapshotFromRuntime reads a Runtime's current state into a Snapshot for
// the status dashboard. Safe to call concurrently with Runtime.Start.
func SnapshotFromRuntime(rt *a2a.Runtime) Snapshot {
	lastEvent, lastErr := rt.LastActivity()
	return Snapshot{
		RegistrationState: string(rt.Manager.RegistrationState()),
		ConnectionState:   string(rt.Manager.ConnectionState()),
		OutboxDepth:       rt.Outbox.Len(),
		OutboxDropped:     rt.Outbox.Dropped(),
		ActiveTasks:       rt.Tracker.ActiveCount(),
		ReconnectAttempt:  rt.Manager.ReconnectAttempts(),
		LastError:         lastErr,
		LastEvent:         lastEvent,
		Uptime:            time.Since(rt.StartedAt),
		ActivityLog:       rt.ActivityLog(),
	}
}
