package a2a

import (
	"encoding/json"
	"testing"
)

func TestNewPingPongFrames(t *testing.T) {
	if got := NewPingFrame(); got.Type != FrameTypePing {
		t.Errorf("NewPingFrame().Type = %q, want %q", got.Type, FrameTypePing)
	}
	if got := NewPongFrame(); got.Type != FrameTypePong {
		t.Errorf("NewPongFrame().Type = %q, want %q", got.Type, FrameTypePong)
	}
}

func TestTaskFrameRoundTrip(t *testing.T) {
	raw := []byte(`{"type":"task","task_id":"t1","content":{"input":"hello","skill":"echo","parameters":{"text":"hello"}}}`)

	var disc RawFrame
	if err := json.Unmarshal(raw, &disc); err != nil {
		t.Fatalf("unmarshal discriminator: %v", err)
	}
	if disc.Type != FrameTypeTask {
		t.Fatalf("disc.Type = %q, want %q", disc.Type, FrameTypeTask)
	}

	var frame TaskFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("unmarshal task frame: %v", err)
	}
	if frame.TaskID != "t1" {
		t.Errorf("TaskID = %q, want t1", frame.TaskID)
	}
	if frame.Content.Skill != "echo" {
		t.Errorf("Content.Skill = %q, want echo", frame.Content.Skill)
	}
	if text, _ := frame.Content.Parameters["text"].(string); text != "hello" {
		t.Errorf("Content.Parameters[text] = %q, want hello", text)
	}
}

func TestTaskUpdateFrameOmitsAbsentFields(t *testing.T) {
	update := TaskUpdateFrame{
		Type:   FrameTypeTaskUpdate,
		TaskID: "t1",
		Status: string(TaskCompleted),
		Result: &ResultEnvelope{Response: "hello", Confidence: 0.9},
	}
	out, err := json.Marshal(update)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := decoded["error"]; present {
		t.Errorf("error field present in completed task_update, want omitted")
	}
	if _, present := decoded["result"]; !present {
		t.Errorf("result field missing")
	}
}

func TestUnknownFrameTypeParsesDiscriminatorOnly(t *testing.T) {
	raw := []byte(`{"type":"future_frame","data":"whatever"}`)
	var disc RawFrame
	if err := json.Unmarshal(raw, &disc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if disc.Type != "future_frame" {
		t.Errorf("disc.Type = %q, want future_frame", disc.Type)
	}
}
