package main

import (
	"context"
	"encoding/json"

	"github.com/basket/a2a-agent/internal/a2a"
)

// echoHandler is the default handler used for tasks that name no skill.
// It mirrors what a bare "chat with the agent" request looks like.
func echoHandler(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	message, _ := input["message"].(string)
	return map[string]interface{}{
		"response":   message,
		"confidence": 1.0,
	}, nil
}

// registerEchoSkill adds a minimal built-in skill so a freshly started
// agent has at least one concrete capability to advertise and exercise.
func registerEchoSkill(rt *a2a.Runtime) error {
	return rt.Registry.Register(&a2a.Skill{
		Name:        "echo",
		Description: "Echoes the input message back, useful for connectivity checks",
		IsAsync:     true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"message": {"type": "string"}},
			"required": ["message"]
		}`),
		OutputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"response": {"type": "string"},
				"confidence": {"type": "number"}
			},
			"required": ["response"]
		}`),
		Handler: echoHandler,
		Examples: []a2a.Example{
			{
				Input:  map[string]interface{}{"message": "ping"},
				Output: map[string]interface{}{"response": "ping", "confidence": 1.0},
			},
		},
	})
}
