package a2a

import "encoding/json"

// Frame types recognized on the wire. The set is extensible - an unknown
// type is logged and dropped, never treated as a protocol error.
const (
	FrameTypePing        = "ping"
	FrameTypePong        = "pong"
	FrameTypeTask        = "task"
	FrameTypeTaskUpdate  = "task_update"
	FrameTypeMessage     = "message"
)

// RawFrame is the minimal shape needed to read the discriminator before
// unmarshaling into a concrete frame type.
type RawFrame struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// PingFrame and PongFrame carry no payload beyond the type discriminator.
type PingFrame struct {
	Type string `json:"type"`
}

type PongFrame struct {
	Type string `json:"type"`
}

// TaskContent is the body of an inbound task frame.
type TaskContent struct {
	Input      interface{}            `json:"input,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Skill      string                 `json:"skill,omitempty"`
}

// TaskFrame is an inbound request to run a task, optionally naming a skill.
type TaskFrame struct {
	Type    string      `json:"type"`
	TaskID  string      `json:"task_id"`
	Content TaskContent `json:"content"`
}

// TaskUpdateError is the structured error carried by a failed task_update.
type TaskUpdateError struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// TaskUpdateFrame is the outbound, normalized result of a task's execution.
type TaskUpdateFrame struct {
	Type          string           `json:"type"`
	TaskID        string           `json:"task_id"`
	Status        string           `json:"status"` // "completed" | "failed"
	Result        *ResultEnvelope  `json:"result,omitempty"`
	Error         *TaskUpdateError `json:"error,omitempty"`
	ExecutionTime float64          `json:"execution_time"`
	AgentID       string           `json:"agent_id,omitempty"`
	CompletedAt   string           `json:"completed_at"`
}

// ResultEnvelope is the normalized skill output shape nested under a
// task_update's "result" field: a response string plus the confidence
// and free-form metadata the dispatcher carries through from the
// skill's handler.
type ResultEnvelope struct {
	Response   string                 `json:"response"`
	Confidence float64                `json:"confidence,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// MessageFrame carries an application-level message between agents.
type MessageFrame struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	From    string      `json:"from,omitempty"`
	To      string      `json:"to,omitempty"`
	Content interface{} `json:"content"`
}

// NewPingFrame / NewPongFrame build the control frames sent by the
// heartbeat sender and the message loop's ping branch.
func NewPingFrame() PingFrame { return PingFrame{Type: FrameTypePing} }
func NewPongFrame() PongFrame { return PongFrame{Type: FrameTypePong} }
