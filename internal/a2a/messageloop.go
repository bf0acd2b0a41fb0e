package a2a

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.opentelemetry.io/otel/trace"

	a2aotel "github.com/basket/a2a-agent/internal/otel"
	"github.com/basket/a2a-agent/internal/shared"
)

// Dispatcher routes inbound task frames to either a named skill via the
// Registry or a default handler, and normalizes whatever comes back into
// an outbound task_update.
type Dispatcher struct {
	registry          *Registry
	defaultHandler    Handler
	logger            *slog.Logger
	agentID           string
	defaultConfidence float64
	taskTimeout       time.Duration
	tracer            trace.Tracer
}

// NewDispatcher builds a Dispatcher. defaultHandler runs for tasks naming
// no skill, or naming one the Registry doesn't recognize. An unrecognized
// skill is never a protocol error, only a routing fallback.
func NewDispatcher(reg *Registry, defaultHandler Handler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:          reg,
		defaultHandler:    defaultHandler,
		logger:            logger,
		defaultConfidence: 0.9,
		taskTimeout:       30 * time.Second,
	}
}

// WithAgentID stamps every emitted task_update's agent_id field.
func (d *Dispatcher) WithAgentID(agentID string) *Dispatcher {
	d.agentID = agentID
	return d
}

// WithDefaultConfidence overrides the confidence value stamped onto a
// successful result when the handler's own output didn't set one.
func (d *Dispatcher) WithDefaultConfidence(c float64) *Dispatcher {
	if c > 0 {
		d.defaultConfidence = c
	}
	return d
}

// WithTracer attaches a tracer for task-dispatch spans. tracer may be nil.
func (d *Dispatcher) WithTracer(tracer trace.Tracer) *Dispatcher {
	d.tracer = tracer
	return d
}

// WithTaskTimeout bounds how long a single task dispatch may run before
// it is closed out with a TIMEOUT error. A zero or negative duration
// disables the bound.
func (d *Dispatcher) WithTaskTimeout(timeout time.Duration) *Dispatcher {
	d.taskTimeout = timeout
	return d
}

// Dispatch runs the task named by frame and returns the task_update to
// send back. The run is bounded by taskTimeout: if the handler hasn't
// returned by then the task is closed out as a TIMEOUT failure and the
// handler, if still running, is left to finish in the background with
// its result discarded.
func (d *Dispatcher) Dispatch(ctx context.Context, frame TaskFrame) TaskUpdateFrame {
	if d.tracer != nil {
		var span trace.Span
		ctx, span = a2aotel.StartSpan(ctx, d.tracer, "task.dispatch",
			a2aotel.AttrAgentID.String(d.agentID),
			a2aotel.AttrTaskID.String(frame.TaskID),
			a2aotel.AttrSkillName.String(frame.Content.Skill))
		defer span.End()
	}
	d.logger.Debug("dispatching task",
		"task_id", frame.TaskID, "skill", frame.Content.Skill, "trace_id", shared.TraceID(ctx))
	input := toInputMap(frame.Content)

	if d.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.taskTimeout)
		defer cancel()
	}

	var result SkillResult
	if frame.Content.Skill != "" {
		if _, ok := d.registry.Get(frame.Content.Skill); ok {
			result = d.runWithTimeout(ctx, frame.TaskID, func(ctx context.Context) SkillResult {
				return d.registry.Execute(ctx, frame.Content.Skill, input, frame.TaskID)
			})
			if result.Err != nil && KindOf(result.Err) == KindTimeout {
				d.registry.MarkTimeout(frame.TaskID)
			}
			return d.toUpdateFrame(frame.TaskID, result)
		}
		d.logger.Info("task named unrecognized skill, falling back to default handler", "skill", frame.Content.Skill, "task_id", frame.TaskID)
	}

	if d.defaultHandler == nil {
		err := NewError(KindNotFound, "no skill named and no default handler configured")
		return TaskUpdateFrame{
			Type: FrameTypeTaskUpdate, TaskID: frame.TaskID, Status: string(TaskFailed),
			Error:       &TaskUpdateError{Message: err.Error(), Kind: string(KindNotFound)},
			AgentID:     d.agentID,
			CompletedAt: time.Now().UTC().Format(time.RFC3339),
		}
	}

	skill := &Skill{Name: "default", Handler: d.defaultHandler}
	result = d.runWithTimeout(ctx, frame.TaskID, func(ctx context.Context) SkillResult {
		return skill.Execute(ctx, frame.TaskID, input)
	})
	return d.toUpdateFrame(frame.TaskID, result)
}

// runWithTimeout runs fn to completion, unless ctx is cancelled first -
// in which case it returns immediately with a TIMEOUT result while fn
// keeps running in the background and its eventual result is dropped.
func (d *Dispatcher) runWithTimeout(ctx context.Context, taskID string, fn func(context.Context) SkillResult) SkillResult {
	start := time.Now()
	done := make(chan SkillResult, 1)
	go func() { done <- fn(ctx) }()

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		end := time.Now()
		return SkillResult{
			TaskID:        taskID,
			Status:        TaskFailed,
			Err:           NewError(KindTimeout, "task exceeded its execution timeout"),
			StartTime:     start,
			EndTime:       end,
			ExecutionTime: end.Sub(start),
		}
	}
}

func toInputMap(c TaskContent) map[string]interface{} {
	if m, ok := c.Input.(map[string]interface{}); ok {
		return m
	}
	if len(c.Parameters) > 0 {
		return c.Parameters
	}
	if c.Input == nil {
		return map[string]interface{}{}
	}
	// Non-object input (e.g. a bare string) is wrapped so skills always
	// see an object, matching the default message/response envelope.
	return map[string]interface{}{"message": c.Input}
}

// toUpdateFrame normalizes a SkillResult into the wire task_update frame,
// stamping agent_id, execution_time, and completed_at on every outcome
// and defaulting confidence when the handler's own output didn't set one.
func (d *Dispatcher) toUpdateFrame(taskID string, result SkillResult) TaskUpdateFrame {
	completedAt := result.EndTime
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	frame := TaskUpdateFrame{
		Type:          FrameTypeTaskUpdate,
		TaskID:        taskID,
		AgentID:       d.agentID,
		ExecutionTime: result.ExecutionTime.Seconds(),
		CompletedAt:   completedAt.UTC().Format(time.RFC3339),
	}

	if result.Err != nil {
		frame.Status = string(TaskFailed)
		frame.Error = &TaskUpdateError{Message: result.Err.Error(), Kind: string(KindOf(result.Err))}
		frame.Result = &ResultEnvelope{Confidence: 0.0}
		return frame
	}

	env := &ResultEnvelope{Metadata: result.Result, Confidence: d.defaultConfidence}
	if resp, ok := result.Result["response"].(string); ok {
		env.Response = resp
	}
	if conf, ok := result.Result["confidence"].(float64); ok {
		env.Confidence = conf
	}
	frame.Status = string(TaskCompleted)
	frame.Result = env
	return frame
}

// MessageLoop is the single reader of a connection: it reads one frame
// at a time, discriminates by type, and dispatches - there is exactly
// one reader per connection so frame ordering is preserved.
type MessageLoop struct {
	conn       *websocket.Conn
	outbox     *Outbox
	dispatcher *Dispatcher
	logger     *slog.Logger
	metrics    *a2aotel.Metrics

	onMessage func(MessageFrame)
}

// NewMessageLoop builds a MessageLoop over an already-dialed connection.
func NewMessageLoop(conn *websocket.Conn, outbox *Outbox, dispatcher *Dispatcher, onMessage func(MessageFrame), logger *slog.Logger) *MessageLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageLoop{conn: conn, outbox: outbox, dispatcher: dispatcher, onMessage: onMessage, logger: logger}
}

// WithMetrics attaches the frames-sent/received counters. metrics may be nil.
func (l *MessageLoop) WithMetrics(metrics *a2aotel.Metrics) *MessageLoop {
	l.metrics = metrics
	return l
}

// Run reads frames until ctx is cancelled or the connection errors. Each
// task is dispatched in its own goroutine so a slow handler never blocks
// the reader from seeing the next frame (pings keep flowing).
func (l *MessageLoop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var raw json.RawMessage
		if err := wsjson.Read(ctx, l.conn, &raw); err != nil {
			return Wrap(KindTransient, "message loop read failed", err)
		}

		var disc RawFrame
		if err := json.Unmarshal(raw, &disc); err != nil {
			l.logger.Warn("dropping frame with malformed type discriminator", "error", err)
			continue
		}
		if l.metrics != nil {
			l.metrics.FramesReceivedTotal.Add(ctx, 1)
		}

		switch disc.Type {
		case FrameTypePing:
			l.outbox.PushJSON(FrameTypePong, NewPongFrame())
		case FrameTypePong:
			// no-op: liveness is inferred from any successful read.
		case FrameTypeTask:
			var frame TaskFrame
			if err := json.Unmarshal(raw, &frame); err != nil {
				l.logger.Warn("dropping malformed task frame", "error", err)
				continue
			}
			go func() {
				taskCtx := shared.WithTraceID(ctx, shared.NewTraceID())
				update := l.dispatcher.Dispatch(taskCtx, frame)
				l.outbox.PushJSON(FrameTypeTaskUpdate, update)
			}()
		case FrameTypeMessage:
			var frame MessageFrame
			if err := json.Unmarshal(raw, &frame); err != nil {
				l.logger.Warn("dropping malformed message frame", "error", err)
				continue
			}
			if l.onMessage != nil {
				l.onMessage(frame)
			}
		default:
			l.logger.Info("ignoring unknown frame type", "type", disc.Type)
		}
	}
}

// Drain flushes the outbox to the connection until empty or ctx ends.
// Run alongside Run in its own goroutine - reads and writes on a
// websocket.Conn are safe to do concurrently, one of each.
func (l *MessageLoop) Drain(ctx context.Context, pingInterval time.Duration) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.outbox.PushJSON(FrameTypePing, NewPingFrame())
		default:
		}

		_, payload, ok := l.outbox.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}
		var raw json.RawMessage = payload
		if err := wsjson.Write(ctx, l.conn, raw); err != nil {
			return Wrap(KindTransient, "message loop write failed", err)
		}
		if l.metrics != nil {
			l.metrics.FramesSentTotal.Add(ctx, 1)
		}
	}
}
