package a2a

import (
	"context"
	"testing"
	"time"

	"github.com/basket/a2a-agent/internal/bus"
	"github.com/basket/a2a-agent/internal/config"
	a2aotel "github.com/basket/a2a-agent/internal/otel"
)

func testConfig() config.Config {
	return config.Config{
		AgentID:                 "agent-1",
		DirectoryHTTPURL:        "http://127.0.0.1:0",
		DirectoryWSURL:          "ws://127.0.0.1:0",
		PingIntervalSeconds:     25,
		MaxReconnectAttempts:    3,
		MaxRegistrationAttempts: 3,
		BaseBackoffSeconds:      1,
		MaxReconnectBackoffSeconds: 5,
		HTTPTimeoutSeconds:      2,
		MaxOutboxSize:           16,
		TaskRetentionPerSkill:   10,
		TaskRetentionTTLSeconds: 3600,
	}
}

func TestNewRuntimeWiresAllComponents(t *testing.T) {
	rt := NewRuntime(testConfig(), RuntimeOptions{Identity: Identity{AgentID: "agent-1"}})

	if rt.Registry == nil || rt.Tracker == nil || rt.Manager == nil || rt.Directory == nil ||
		rt.Bus == nil || rt.Dispatcher == nil || rt.Outbox == nil {
		t.Fatalf("NewRuntime left a component nil: %+v", rt)
	}
	if rt.StartedAt.IsZero() {
		t.Error("StartedAt not set")
	}
}

func TestNewRuntimeWithMeterDoesNotPanic(t *testing.T) {
	p, err := a2aotel.Init(context.Background(), a2aotel.Config{Enabled: true, Exporter: "none"})
	if err != nil {
		t.Fatalf("otel.Init: %v", err)
	}
	t.Cleanup(func() { p.Shutdown(context.Background()) })

	rt := NewRuntime(testConfig(), RuntimeOptions{
		Identity: Identity{AgentID: "agent-1"},
		Meter:    p.Meter,
	})
	rt.Registry.Register(&Skill{Name: "echo", IsAsync: true, Handler: echoHandler})
	result := rt.Registry.Execute(context.Background(), "echo", map[string]interface{}{"text": "hi"}, "t1")
	if result.Status != TaskCompleted {
		t.Fatalf("Execute with metrics wired returned %q, want completed", result.Status)
	}
}

func TestRuntimeCardReflectsRegisteredSkills(t *testing.T) {
	rt := NewRuntime(testConfig(), RuntimeOptions{Identity: Identity{AgentID: "agent-1", DisplayName: "Agent One"}})
	rt.Registry.Register(&Skill{Name: "echo", Handler: echoHandler})

	card := rt.Card(Capabilities{Streaming: true}, map[string]interface{}{"region": "us"})
	if card.Identity.AgentID != "agent-1" {
		t.Errorf("Identity.AgentID = %q, want agent-1", card.Identity.AgentID)
	}
	if len(card.Skills) != 1 || card.Skills[0].Name != "echo" {
		t.Errorf("Skills = %+v, want one echo skill", card.Skills)
	}
	if !card.Capabilities.Streaming {
		t.Error("Capabilities.Streaming not carried through")
	}
}

func TestRuntimeRecordActivityTracksSkillFailure(t *testing.T) {
	rt := NewRuntime(testConfig(), RuntimeOptions{Identity: Identity{AgentID: "agent-1"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.recordActivity(ctx)
	time.Sleep(10 * time.Millisecond) // let the subscriber attach before publishing

	rt.Bus.Publish(bus.TopicSkillExecutionFailed, bus.SkillExecutionEvent{
		TaskID: "t1", SkillName: "echo", Status: "failed", Error: "boom",
	})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		evt, errText := rt.LastActivity()
		if evt == bus.TopicSkillExecutionFailed && errText != "" {
			if errText != "skill echo failed: boom" {
				t.Errorf("lastErr = %q, want 'skill echo failed: boom'", errText)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("recordActivity never observed the published failure event")
}

func TestRuntimeRecordActivityTracksOutboxDrop(t *testing.T) {
	rt := NewRuntime(testConfig(), RuntimeOptions{Identity: Identity{AgentID: "agent-1"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.recordActivity(ctx)
	time.Sleep(10 * time.Millisecond)

	rt.Bus.Publish(bus.TopicOutboxFrameDropped, bus.OutboxFrameDroppedEvent{FrameType: FrameTypeMessage, Reason: "capacity"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		evt, errText := rt.LastActivity()
		if evt == bus.TopicOutboxFrameDropped {
			if errText != "dropped message frame: capacity" {
				t.Errorf("lastErr = %q, want 'dropped message frame: capacity'", errText)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("recordActivity never observed the published drop event")
}

func TestRuntimeActivityLogBoundedFIFO(t *testing.T) {
	rt := NewRuntime(testConfig(), RuntimeOptions{Identity: Identity{AgentID: "agent-1"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.recordActivity(ctx)
	time.Sleep(10 * time.Millisecond)

	const total = activityLogCap + 20
	for i := 0; i < total; i++ {
		rt.Bus.Publish(bus.TopicSkillExecutionCompleted, bus.SkillExecutionEvent{
			TaskID: "t", SkillName: "echo", Status: "completed",
		})
		if i%25 == 0 {
			time.Sleep(time.Millisecond) // let the subscriber drain so the bus never drops events
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n := len(rt.ActivityLog()); n == activityLogCap {
			return
		} else if n > activityLogCap {
			t.Fatalf("ActivityLog() len = %d, exceeds cap %d", n, activityLogCap)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ActivityLog() len = %d, want %d (bounded FIFO)", len(rt.ActivityLog()), activityLogCap)
}

func TestRuntimeStopIsSafeWithoutStart(t *testing.T) {
	rt := NewRuntime(testConfig(), RuntimeOptions{Identity: Identity{AgentID: "agent-1"}})
	rt.Stop() // sweeper and connection were never established
	rt.Stop() // idempotent
}
