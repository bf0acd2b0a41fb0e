package a2a

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/basket/a2a-agent/internal/bus"
	a2aotel "github.com/basket/a2a-agent/internal/otel"
)

// Registry is the process-wide set of skills indexed by name and
// category, with a single lookup point for execution. Each agent process
// owns exactly one Registry - no cross-process coordination is needed.
type Registry struct {
	mu      sync.RWMutex
	skills  map[string]*Skill
	tracker *Tracker
	logger  *slog.Logger
	bus     publisher
	tracer  trace.Tracer
	metrics *a2aotel.Metrics

	// syncWorkers runs IsAsync=false handlers off whatever goroutine
	// called Execute, so a blocking handler never stalls a message loop
	// that happens to call Execute directly.
	syncWorkers    chan func()
	workerOnce     sync.Once
	workersRunning atomic.Bool
}

// NewRegistry builds an empty Registry backed by tracker.
func NewRegistry(tracker *Tracker, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		skills:      make(map[string]*Skill),
		tracker:     tracker,
		logger:      logger,
		syncWorkers: make(chan func(), 64),
	}
	return r
}

// WithTelemetry attaches a bus publisher, tracer, and metrics instruments
// used to observe skill execution. Any of the three may be nil.
func (r *Registry) WithTelemetry(b publisher, tracer trace.Tracer, metrics *a2aotel.Metrics) *Registry {
	r.bus = b
	r.tracer = tracer
	r.metrics = metrics
	return r
}

// StartWorkers launches n goroutines draining the sync-skill work queue.
// Call once at runtime startup; without it, IsAsync=false skills still
// execute (Execute falls back to running inline) but lose the
// off-message-loop guarantee.
func (r *Registry) StartWorkers(ctx context.Context, n int) {
	if n <= 0 {
		n = 4
	}
	r.workerOnce.Do(func() {
		r.workersRunning.Store(true)
		for i := 0; i < n; i++ {
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case fn := <-r.syncWorkers:
						fn()
					}
				}
			}()
		}
	})
}

// Register adds a skill, compiling its schemas. Idempotent by name:
// re-registration overwrites and logs a warning.
func (r *Registry) Register(skill *Skill) error {
	if skill.Name == "" {
		return NewError(KindValidation, "skill name must not be empty")
	}
	if err := skill.Compile(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.skills[skill.Name]; exists {
		r.logger.Warn("skill already registered, overwriting", "skill", skill.Name)
	}
	r.skills[skill.Name] = skill
	return nil
}

// UpdateMetadata overrides a registered skill's descriptive fields from
// an external manifest. Handler, schemas, and execution flags are never
// touched here - only what an Agent Card displays. Returns false if no
// skill with that name is registered.
func (r *Registry) UpdateMetadata(name, description string, categories []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.skills[name]
	if !ok {
		return false
	}
	if description != "" {
		s.Description = description
	}
	if categories != nil {
		s.Categories = categories
	}
	return true
}

// Get returns the named skill, or false if absent.
func (r *Registry) Get(name string) (*Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	return s, ok
}

// ByCategory returns all skills tagged with category.
func (r *Registry) ByCategory(category string) []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Skill
	for _, s := range r.skills {
		for _, c := range s.Categories {
			if c == category {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// List returns every registered skill.
func (r *Registry) List() []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	return out
}

// Execute looks up name and runs it, tracking the task's lifecycle. A
// missing skill is a terminal FAILED/NOT_FOUND result, not an error
// return - callers build a task_update from the SkillResult either way.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]interface{}, taskID string) SkillResult {
	if taskID == "" {
		taskID = uuid.NewString()
	}

	if r.tracer != nil {
		var span trace.Span
		ctx, span = a2aotel.StartSpan(ctx, r.tracer, "skill.execute",
			a2aotel.AttrSkillName.String(name), a2aotel.AttrTaskID.String(taskID))
		defer span.End()
	}

	skill, ok := r.Get(name)
	if !ok {
		if _, created := r.tracker.Create(taskID, name, input); !created {
			return r.failCollision(taskID, name)
		}
		err := NewError(KindNotFound, fmt.Sprintf("skill %q not found", name))
		r.tracker.UpdateStatus(taskID, TaskFailed, nil, err)
		r.publishExecutionEvent(taskID, name, "failed", err.Error())
		return SkillResult{SkillName: name, TaskID: taskID, Status: TaskFailed, Err: err}
	}

	if _, created := r.tracker.Create(taskID, name, input); !created {
		return r.failCollision(taskID, name)
	}
	r.tracker.UpdateStatus(taskID, TaskRunning, nil, nil)
	r.publishExecutionEvent(taskID, name, "running", "")
	if r.metrics != nil {
		r.metrics.TasksActive.Add(ctx, 1)
		defer r.metrics.TasksActive.Add(ctx, -1)
	}

	var result SkillResult
	if skill.IsAsync {
		result = skill.Execute(ctx, taskID, input)
		r.tracker.UpdateStatus(taskID, result.Status, result.Result, result.Err)
		r.recordCompletion(ctx, result)
		return result
	}

	// is_async=false: run on the sync worker pool so the caller (often
	// the message loop) never blocks on it directly.
	done := make(chan SkillResult, 1)
	work := func() { done <- skill.Execute(ctx, taskID, input) }
	if !r.workersRunning.Load() {
		// No worker pool started: run inline rather than enqueue work
		// nothing will ever drain.
		work()
	} else {
		select {
		case r.syncWorkers <- work:
		default:
			// Pool queue saturated: run inline rather than drop the task.
			work()
		}
	}

	select {
	case result = <-done:
		r.tracker.UpdateStatus(taskID, result.Status, result.Result, result.Err)
		r.recordCompletion(ctx, result)
		return result
	case <-ctx.Done():
		err := Wrap(KindTimeout, "skill execution cancelled", ctx.Err())
		r.tracker.UpdateStatus(taskID, TaskFailed, nil, err)
		r.publishExecutionEvent(taskID, name, "failed", err.Error())
		return SkillResult{SkillName: name, TaskID: taskID, Status: TaskFailed, Err: err}
	}
}

// failCollision is the terminal result for a reused task_id. The
// existing record is left untouched so a retry never clobbers an
// earlier task's outcome.
func (r *Registry) failCollision(taskID, name string) SkillResult {
	err := NewError(KindProtocol, fmt.Sprintf("task id %q already used", taskID))
	r.publishExecutionEvent(taskID, name, "failed", err.Error())
	return SkillResult{SkillName: name, TaskID: taskID, Status: TaskFailed, Err: err}
}

// recordCompletion publishes the terminal bus event and records duration
// and completed/failed metrics for a finished skill execution.
func (r *Registry) recordCompletion(ctx context.Context, result SkillResult) {
	status := "completed"
	errText := ""
	if result.Err != nil {
		status = "failed"
		errText = result.Err.Error()
	}
	r.publishExecutionEvent(result.TaskID, result.SkillName, status, errText)
	if r.metrics == nil {
		return
	}
	r.metrics.TaskDuration.Record(ctx, result.ExecutionTime.Seconds(),
		metric.WithAttributes(a2aotel.AttrSkillName.String(result.SkillName)))
	if result.Err != nil {
		r.metrics.TasksFailedTotal.Add(ctx, 1)
	} else {
		r.metrics.TasksCompletedTotal.Add(ctx, 1)
	}
}

func (r *Registry) publishExecutionEvent(taskID, skillName, status, errText string) {
	if r.bus == nil {
		return
	}
	topic := bus.TopicSkillExecutionStarted
	switch status {
	case "completed":
		topic = bus.TopicSkillExecutionCompleted
	case "failed":
		topic = bus.TopicSkillExecutionFailed
	}
	r.bus.Publish(topic, bus.SkillExecutionEvent{
		TaskID: taskID, SkillName: skillName, Status: status, Error: errText,
	})
}

// TaskStatus returns the current snapshot of a tracked task.
func (r *Registry) TaskStatus(taskID string) (TaskRecord, bool) {
	return r.tracker.Get(taskID)
}

// CancelTask moves a tracked non-terminal task to CANCELLED. Returns
// false if the task is unknown or already finished.
func (r *Registry) CancelTask(taskID string) bool {
	if !r.tracker.Cancel(taskID) {
		return false
	}
	r.publishExecutionEvent(taskID, "", "failed", "cancelled by caller")
	return true
}

// MarkTimeout closes out a still-running tracked task as a TIMEOUT
// failure. It is a no-op once the task has already reached a terminal
// status, so a handler that finishes naturally just after the deadline
// can't clobber the timeout outcome the caller already saw.
func (r *Registry) MarkTimeout(taskID string) {
	err := NewError(KindTimeout, "task exceeded its execution timeout")
	r.tracker.UpdateStatus(taskID, TaskFailed, nil, err)
	r.publishExecutionEvent(taskID, "", "failed", err.Error())
}
