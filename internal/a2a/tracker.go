package a2a

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/basket/a2a-agent/internal/cron"
)

// TaskRecord is the tracker's per-task ledger entry.
type TaskRecord struct {
	TaskID        string
	SkillName     string
	Status        TaskStatus
	Input         map[string]interface{}
	Result        map[string]interface{}
	Err           error
	StartTime     time.Time
	EndTime       time.Time
	ExecutionTime time.Duration
}

// Tracker stores per-task records keyed by task_id, bounded by a
// per-skill retention ceiling and a TTL past reaching a terminal state.
// In-flight tasks are never evicted.
type Tracker struct {
	mu            sync.RWMutex
	bySkill       map[string][]*TaskRecord // insertion order, oldest first
	byID          map[string]*TaskRecord
	retentionSize int
	retentionTTL  time.Duration
	logger        *slog.Logger

	sweeper *cron.Scheduler
}

// NewTracker builds a Tracker with the given retention policy.
func NewTracker(retentionSize int, retentionTTL time.Duration, logger *slog.Logger) *Tracker {
	if retentionSize <= 0 {
		retentionSize = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		bySkill:       make(map[string][]*TaskRecord),
		byID:          make(map[string]*TaskRecord),
		retentionSize: retentionSize,
		retentionTTL:  retentionTTL,
		logger:        logger,
	}
}

// StartEvictionSweep runs a recurring sweep that evicts terminal tasks
// past retentionTTL, on the given cron spec (e.g. "@every 1m"). Callers
// must Stop() the returned scheduler on shutdown.
func (t *Tracker) StartEvictionSweep(ctx context.Context, spec string) (*cron.Scheduler, error) {
	sched, err := cron.NewScheduler(cron.Config{
		Spec:   spec,
		Logger: t.logger,
		Fire:   func(context.Context) { t.evictExpired() },
	})
	if err != nil {
		return nil, err
	}
	sched.Start(ctx)
	t.sweeper = sched
	return sched, nil
}

// Create inserts a PENDING record for a new task. A task_id that is
// already tracked is a collision: the existing record is returned
// untouched and created is false.
func (t *Tracker) Create(taskID, skillName string, input map[string]interface{}) (rec *TaskRecord, created bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.byID[taskID]; ok {
		t.logger.Warn("task id collision, keeping existing record", "task_id", taskID, "skill", skillName)
		return existing, false
	}
	rec = &TaskRecord{
		TaskID:    taskID,
		SkillName: skillName,
		Status:    TaskPending,
		Input:     input,
		StartTime: time.Now(),
	}
	t.byID[taskID] = rec
	t.bySkill[skillName] = append(t.bySkill[skillName], rec)
	t.evictLocked(skillName)
	return rec, true
}

// UpdateStatus transitions a tracked task. Terminal statuses are
// immutable - once set, further calls are no-ops.
func (t *Tracker) UpdateStatus(taskID string, status TaskStatus, result map[string]interface{}, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.byID[taskID]
	if !ok || rec.Status.Terminal() {
		return
	}
	rec.Status = status
	rec.Result = result
	rec.Err = err
	if status.Terminal() {
		rec.EndTime = time.Now()
		rec.ExecutionTime = rec.EndTime.Sub(rec.StartTime)
	}
}

// Cancel moves a non-terminal task to CANCELLED. Returns false if the
// task is unknown or already terminal. The handler, if running, is not
// interrupted - its eventual result is discarded by the terminal-state
// guard in UpdateStatus.
func (t *Tracker) Cancel(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.byID[taskID]
	if !ok || rec.Status.Terminal() {
		return false
	}
	rec.Status = TaskCancelled
	rec.EndTime = time.Now()
	rec.ExecutionTime = rec.EndTime.Sub(rec.StartTime)
	return true
}

// Get returns the current snapshot of a task, or false if absent
// (either never created or already evicted).
func (t *Tracker) Get(taskID string) (TaskRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.byID[taskID]
	if !ok {
		return TaskRecord{}, false
	}
	return *rec, true
}

// ActiveCount returns the number of tasks not yet in a terminal state,
// across all skills.
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, rec := range t.byID {
		if !rec.Status.Terminal() {
			n++
		}
	}
	return n
}

// List returns a snapshot of all tracked tasks for a skill, oldest first.
func (t *Tracker) List(skillName string) []TaskRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	recs := t.bySkill[skillName]
	out := make([]TaskRecord, len(recs))
	for i, r := range recs {
		out[i] = *r
	}
	return out
}

// evictLocked drops the oldest terminal tasks for skillName once the
// retention ceiling is exceeded. Must be called with t.mu held.
func (t *Tracker) evictLocked(skillName string) {
	recs := t.bySkill[skillName]
	if len(recs) <= t.retentionSize {
		return
	}
	kept := recs[:0]
	evicted := 0
	for _, r := range recs {
		if evicted < len(recs)-t.retentionSize && r.Status.Terminal() {
			delete(t.byID, r.TaskID)
			evicted++
			continue
		}
		kept = append(kept, r)
	}
	t.bySkill[skillName] = kept
}

// evictExpired drops terminal tasks whose terminal state has outlived
// retentionTTL. PENDING/RUNNING tasks are never touched.
func (t *Tracker) evictExpired() {
	if t.retentionTTL <= 0 {
		return
	}
	cutoff := time.Now().Add(-t.retentionTTL)
	t.mu.Lock()
	defer t.mu.Unlock()
	for skill, recs := range t.bySkill {
		kept := recs[:0]
		for _, r := range recs {
			if r.Status.Terminal() && r.EndTime.Before(cutoff) {
				delete(t.byID, r.TaskID)
				continue
			}
			kept = append(kept, r)
		}
		t.bySkill[skill] = kept
	}
}
