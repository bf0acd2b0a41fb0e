package main

import (
	"context"
	"testing"

	"github.com/basket/a2a-agent/internal/a2a"
	"github.com/basket/a2a-agent/internal/config"
)

func TestEchoHandlerReturnsInputMessage(t *testing.T) {
	out, err := echoHandler(context.Background(), map[string]interface{}{"message": "hi"})
	if err != nil {
		t.Fatalf("echoHandler: %v", err)
	}
	if out["response"] != "hi" {
		t.Errorf("response = %v, want hi", out["response"])
	}
	if out["confidence"] != 1.0 {
		t.Errorf("confidence = %v, want 1.0", out["confidence"])
	}
}

func TestEchoHandlerMissingMessageDefaultsToEmptyString(t *testing.T) {
	out, err := echoHandler(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("echoHandler: %v", err)
	}
	if out["response"] != "" {
		t.Errorf("response = %v, want empty string for absent message", out["response"])
	}
}

func TestRegisterEchoSkillAddsWorkingSkill(t *testing.T) {
	rt := a2a.NewRuntime(config.Config{
		AgentID:                 "agent-1",
		DirectoryHTTPURL:        "http://127.0.0.1:0",
		DirectoryWSURL:          "ws://127.0.0.1:0",
		PingIntervalSeconds:     25,
		MaxReconnectAttempts:    3,
		MaxRegistrationAttempts: 3,
		BaseBackoffSeconds:      1,
		HTTPTimeoutSeconds:      2,
		MaxOutboxSize:           16,
		TaskRetentionPerSkill:   10,
		TaskRetentionTTLSeconds: 3600,
	}, a2a.RuntimeOptions{Identity: a2a.Identity{AgentID: "agent-1"}})

	if err := registerEchoSkill(rt); err != nil {
		t.Fatalf("registerEchoSkill: %v", err)
	}
	skill, ok := rt.Registry.Get("echo")
	if !ok {
		t.Fatal("echo skill not registered")
	}
	if !skill.IsAsync {
		t.Error("echo skill should be IsAsync so it runs off the message loop goroutine")
	}

	result := rt.Registry.Execute(context.Background(), "echo", map[string]interface{}{"message": "ping"}, "t1")
	if result.Status != a2a.TaskCompleted {
		t.Fatalf("Status = %q, want completed", result.Status)
	}
	if result.Result["response"] != "ping" {
		t.Errorf("response = %v, want ping", result.Result["response"])
	}
}

func TestRegisterEchoSkillRejectsInputMissingMessage(t *testing.T) {
	rt := a2a.NewRuntime(config.Config{
		AgentID:                 "agent-1",
		DirectoryHTTPURL:        "http://127.0.0.1:0",
		DirectoryWSURL:          "ws://127.0.0.1:0",
		PingIntervalSeconds:     25,
		MaxReconnectAttempts:    3,
		MaxRegistrationAttempts: 3,
		BaseBackoffSeconds:      1,
		HTTPTimeoutSeconds:      2,
		MaxOutboxSize:           16,
		TaskRetentionPerSkill:   10,
		TaskRetentionTTLSeconds: 3600,
	}, a2a.RuntimeOptions{Identity: a2a.Identity{AgentID: "agent-1"}})
	registerEchoSkill(rt)

	result := rt.Registry.Execute(context.Background(), "echo", map[string]interface{}{}, "t1")
	if result.Status != a2a.TaskFailed {
		t.Fatalf("Status = %q, want failed (message is a required input field)", result.Status)
	}
	if a2a.KindOf(result.Err) != a2a.KindValidation {
		t.Errorf("KindOf(err) = %q, want validation", a2a.KindOf(result.Err))
	}
}
