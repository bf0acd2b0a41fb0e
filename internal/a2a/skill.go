package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// TaskStatus is the lifecycle state of a task. Status only progresses
// forward; terminal statuses are immutable.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// Handler is the typed unit of work a Skill wraps. It receives validated
// input and returns either a value conforming to the skill's output
// schema or an error. No implicit retries happen inside a handler - a
// retry is a new call with a new task_id, made by the caller.
type Handler func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)

// Skill is a validated, typed unit of work: input schema -> handler ->
// output schema, plus metadata used when building an Agent Card.
type Skill struct {
	Name          string
	Description   string
	Version       string
	Categories    []string
	RequiresAuth  bool
	IsAsync       bool // false means the handler must run off the message loop goroutine
	InputSchema   json.RawMessage
	OutputSchema  json.RawMessage
	Examples      []Example
	Handler       Handler

	inputSchema  *jsonschema.Schema
	outputSchema *jsonschema.Schema
}

// Example is one sample input/output pair shown on an Agent Card.
type Example struct {
	Input  map[string]interface{} `json:"input"`
	Output map[string]interface{} `json:"output"`
}

// Compile compiles the skill's declared JSON schemas. Called once at
// registration time; a skill with an invalid schema is rejected before
// it can ever be looked up.
func (s *Skill) Compile() error {
	if s.Description == "" {
		s.Description = humanizeName(s.Name)
	}
	if s.Version == "" {
		s.Version = "1.0.0"
	}
	var err error
	if s.InputSchema != nil {
		s.inputSchema, err = compileSchema(s.Name+".input", s.InputSchema)
		if err != nil {
			return fmt.Errorf("compile input schema for skill %q: %w", s.Name, err)
		}
	}
	if s.OutputSchema != nil {
		s.outputSchema, err = compileSchema(s.Name+".output", s.OutputSchema)
		if err != nil {
			return fmt.Errorf("compile output schema for skill %q: %w", s.Name, err)
		}
	}
	return nil
}

func compileSchema(resourceID string, raw json.RawMessage) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceID, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(resourceID)
}

// ValidateInput checks input against the declared input schema. A skill
// with no declared input schema accepts anything - an absent schema
// here means the handler itself enforces shape.
func (s *Skill) ValidateInput(input map[string]interface{}) error {
	if s.inputSchema == nil {
		return nil
	}
	return validateAgainst(s.inputSchema, input)
}

// ValidateOutput checks a handler's result against the declared output schema.
func (s *Skill) ValidateOutput(output map[string]interface{}) error {
	if s.outputSchema == nil {
		return nil
	}
	return validateAgainst(s.outputSchema, output)
}

func validateAgainst(schema *jsonschema.Schema, value map[string]interface{}) error {
	// Round-trip through jsonschema.UnmarshalJSON so numeric types match
	// what the compiled schema expects (json.Number rather than float64).
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	return schema.Validate(doc)
}

// SkillResult is the outcome of one execute_task invocation.
type SkillResult struct {
	SkillName     string
	TaskID        string
	Status        TaskStatus
	Result        map[string]interface{}
	Err           error
	StartTime     time.Time
	EndTime       time.Time
	ExecutionTime time.Duration
}

// Execute validates input, runs the handler (honoring IsAsync's
// off-loop requirement is the caller's job - see Registry.Execute),
// and returns a terminal SkillResult. execution_time spans validation
// through handler exit inclusive.
func (s *Skill) Execute(ctx context.Context, taskID string, input map[string]interface{}) SkillResult {
	start := time.Now()

	if err := s.ValidateInput(input); err != nil {
		end := time.Now()
		return SkillResult{
			SkillName:     s.Name,
			TaskID:        taskID,
			Status:        TaskFailed,
			Err:           Wrap(KindValidation, "input validation failed", err),
			StartTime:     start,
			EndTime:       end,
			ExecutionTime: end.Sub(start),
		}
	}

	result, err := s.runHandler(ctx, input)
	end := time.Now()
	if err != nil {
		kind := KindOf(err)
		if kind == KindHandler {
			err = Wrap(KindHandler, "skill handler failed", err)
		}
		return SkillResult{
			SkillName:     s.Name,
			TaskID:        taskID,
			Status:        TaskFailed,
			Err:           err,
			StartTime:     start,
			EndTime:       end,
			ExecutionTime: end.Sub(start),
		}
	}

	return SkillResult{
		SkillName:     s.Name,
		TaskID:        taskID,
		Status:        TaskCompleted,
		Result:        result,
		StartTime:     start,
		EndTime:       end,
		ExecutionTime: end.Sub(start),
	}
}

func (s *Skill) runHandler(ctx context.Context, input map[string]interface{}) (result map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Wrap(KindHandler, "skill handler panicked", fmt.Errorf("%v", r))
		}
	}()
	return s.Handler(ctx, input)
}

// humanizeName derives a readable description from a skill's name when
// none was supplied, e.g. "send_email" -> "Send Email".
func humanizeName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
