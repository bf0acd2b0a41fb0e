package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestTaskStatusTerminal(t *testing.T) {
	cases := map[TaskStatus]bool{
		TaskPending:   false,
		TaskRunning:   false,
		TaskCompleted: true,
		TaskFailed:    true,
		TaskCancelled: true,
	}
	for status, want := range cases {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestHumanizeName(t *testing.T) {
	cases := map[string]string{
		"send_email":     "Send Email",
		"echo":           "Echo",
		"get-task-status": "Get Task Status",
		"":               "",
	}
	for in, want := range cases {
		if got := humanizeName(in); got != want {
			t.Errorf("humanizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSkillCompileFillsDefaults(t *testing.T) {
	s := &Skill{Name: "echo", Handler: func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
		return input, nil
	}}
	if err := s.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if s.Description != "Echo" {
		t.Errorf("Description = %q, want Echo", s.Description)
	}
	if s.Version != "1.0.0" {
		t.Errorf("Version = %q, want 1.0.0", s.Version)
	}
}

func TestSkillCompileRejectsInvalidSchema(t *testing.T) {
	s := &Skill{Name: "broken", InputSchema: json.RawMessage(`{not json`)}
	if err := s.Compile(); err == nil {
		t.Fatal("Compile() returned nil error for malformed schema, want error")
	}
}

func TestSkillExecuteValidationFailure(t *testing.T) {
	s := &Skill{
		Name: "echo",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"required": ["text"],
			"properties": {"text": {"type": "string"}}
		}`),
		Handler: func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			t.Fatal("handler should not run when validation fails")
			return nil, nil
		},
	}
	if err := s.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	result := s.Execute(context.Background(), "t1", map[string]interface{}{})
	if result.Status != TaskFailed {
		t.Errorf("Status = %q, want failed", result.Status)
	}
	if KindOf(result.Err) != KindValidation {
		t.Errorf("KindOf(err) = %q, want validation", KindOf(result.Err))
	}
}

func TestSkillExecuteSuccess(t *testing.T) {
	s := &Skill{
		Name: "echo",
		Handler: func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"response": input["text"]}, nil
		},
	}
	if err := s.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	result := s.Execute(context.Background(), "t1", map[string]interface{}{"text": "hello"})
	if result.Status != TaskCompleted {
		t.Fatalf("Status = %q, want completed", result.Status)
	}
	if result.Result["response"] != "hello" {
		t.Errorf("Result[response] = %v, want hello", result.Result["response"])
	}
}

func TestSkillExecuteHandlerError(t *testing.T) {
	s := &Skill{
		Name: "fails",
		Handler: func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			return nil, errors.New("boom")
		},
	}
	if err := s.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	result := s.Execute(context.Background(), "t1", map[string]interface{}{})
	if result.Status != TaskFailed {
		t.Fatalf("Status = %q, want failed", result.Status)
	}
	if KindOf(result.Err) != KindHandler {
		t.Errorf("KindOf(err) = %q, want handler", KindOf(result.Err))
	}
}

func TestSkillExecuteHandlerPanicRecovered(t *testing.T) {
	s := &Skill{
		Name: "panics",
		Handler: func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			panic("handler exploded")
		},
	}
	if err := s.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	result := s.Execute(context.Background(), "t1", map[string]interface{}{})
	if result.Status != TaskFailed {
		t.Fatalf("Status = %q, want failed", result.Status)
	}
	if KindOf(result.Err) != KindHandler {
		t.Errorf("KindOf(err) = %q, want handler", KindOf(result.Err))
	}
}
