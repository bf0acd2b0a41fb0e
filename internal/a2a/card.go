package a2a

import "encoding/json"

// defaultInputSchema / defaultOutputSchema are the envelope schemas every
// skill gets when it declares none of its own: a free-form "message"
// in, a "response" (+ optional confidence/metadata) out. They're also
// surfaced at the top level of a served Card, describing the envelope a
// caller gets back when it omits a skill name entirely.
var (
	defaultInputSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"message": {"type": "string"},
			"context": {"type": "object"}
		},
		"required": ["message"]
	}`)

	defaultOutputSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"response": {"type": "string"},
			"confidence": {"type": "number"},
			"metadata": {"type": "object"}
		},
		"required": ["response"]
	}`)
)

// Identity is the agent's self-description independent of its skills.
type Identity struct {
	AgentID     string `json:"agent_id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
}

// Capabilities advertises the transport/protocol features this agent
// supports, so a directory or peer can decide how to talk to it.
type Capabilities struct {
	Streaming    bool `json:"streaming"`
	PushNotify   bool `json:"push_notifications"`
	StateHistory bool `json:"state_transition_history"`
}

// Names returns capabilities as a flat list of strings, the shape the
// directory's registration descriptor expects rather than this struct's
// booleans.
func (c Capabilities) Names() []string {
	var out []string
	if c.Streaming {
		out = append(out, "streaming")
	}
	if c.PushNotify {
		out = append(out, "push_notifications")
	}
	if c.StateHistory {
		out = append(out, "state_transition_history")
	}
	return out
}

// AuthSpec describes how a peer authenticates requests to this agent.
type AuthSpec struct {
	Type string `json:"type"` // "none" | "bearer"
}

// CardSkill is the Agent Card's public projection of a Skill: the schema
// and examples a consumer needs, without the compiled internals or handler.
type CardSkill struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Version      string          `json:"version"`
	Categories   []string        `json:"categories,omitempty"`
	RequiresAuth bool            `json:"requires_auth"`
	InputSchema  json.RawMessage `json:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema"`
	Examples     []Example       `json:"examples,omitempty"`
}

// Card is the serializable identity+skills document an agent publishes
// at its well-known endpoint. Inputs/Outputs/Examples describe the
// envelope a caller gets when it calls this agent without naming a
// skill, the same default every individual CardSkill falls back to.
type Card struct {
	Identity     Identity               `json:"identity"`
	Capabilities Capabilities           `json:"capabilities"`
	Endpoint     string                 `json:"endpoint,omitempty"`
	Auth         AuthSpec               `json:"auth"`
	Skills       []CardSkill            `json:"skills"`
	Inputs       json.RawMessage        `json:"inputs"`
	Outputs      json.RawMessage        `json:"outputs"`
	Examples     []Example              `json:"examples,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// CreateStandardCard builds a Card from a Registry's current skill set,
// falling back to the default message/response envelope for any skill
// that declared no schema of its own. endpoint is this agent's
// reachable base URL; authToken non-empty means peers must present a
// bearer token.
func CreateStandardCard(identity Identity, capabilities Capabilities, reg *Registry, endpoint, authToken string, metadata map[string]interface{}) Card {
	skills := reg.List()
	cardSkills := make([]CardSkill, 0, len(skills))
	var examples []Example
	for _, s := range skills {
		in, out := s.InputSchema, s.OutputSchema
		if in == nil {
			in = defaultInputSchema
		}
		if out == nil {
			out = defaultOutputSchema
		}
		cardSkills = append(cardSkills, CardSkill{
			Name:         s.Name,
			Description:  s.Description,
			Version:      s.Version,
			Categories:   s.Categories,
			RequiresAuth: s.RequiresAuth,
			InputSchema:  in,
			OutputSchema: out,
			Examples:     s.Examples,
		})
		examples = append(examples, s.Examples...)
	}

	authType := "none"
	if authToken != "" {
		authType = "bearer"
	}

	return Card{
		Identity:     identity,
		Capabilities: capabilities,
		Endpoint:     endpoint,
		Auth:         AuthSpec{Type: authType},
		Skills:       cardSkills,
		Inputs:       defaultInputSchema,
		Outputs:      defaultOutputSchema,
		Examples:     examples,
		Metadata:     metadata,
	}
}

// descriptorSkill is the trimmed skill projection the directory's flat
// registration descriptor carries - name/description/version only, no
// schemas or examples.
type descriptorSkill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// RegistrationDescriptor is the flat shape a directory's registration
// endpoint expects: agent identity, capability names, endpoint, and a
// trimmed skill list, distinct from the richer Card served at this
// agent's own discovery endpoint.
type RegistrationDescriptor struct {
	AgentID      string            `json:"agent_id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Capabilities []string          `json:"capabilities"`
	Endpoint     string            `json:"endpoint"`
	Version      string            `json:"version,omitempty"`
	Skills       []descriptorSkill `json:"skills"`
	Auth         AuthSpec          `json:"auth"`
}

// ToDescriptor projects a Card into the flat descriptor shape a
// directory's registration endpoint expects.
func (c Card) ToDescriptor() RegistrationDescriptor {
	skills := make([]descriptorSkill, 0, len(c.Skills))
	for _, s := range c.Skills {
		skills = append(skills, descriptorSkill{Name: s.Name, Description: s.Description, Version: s.Version})
	}
	return RegistrationDescriptor{
		AgentID:      c.Identity.AgentID,
		Name:         c.Identity.DisplayName,
		Description:  c.Identity.Description,
		Capabilities: c.Capabilities.Names(),
		Endpoint:     c.Endpoint,
		Version:      c.Identity.Version,
		Skills:       skills,
		Auth:         c.Auth,
	}
}
