package jit

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Task is a unit of deferred cleanup. Its finalizer runs exactly once,
// either when Finalize is called directly or when Eval drains the queue it
// was scheduled on, whichever comes first.
type Task struct {
	id       uuid.UUID
	label    string
	once     sync.Once
	done     atomic.Bool
	finalize func()
}

// NewTask creates a task that runs fn when finalized. fn may be nil.
func NewTask(label string, fn func()) *Task {
	return &Task{
		id:       uuid.New(),
		label:    label,
		finalize: fn,
	}
}

// ID returns the task's unique id.
func (t *Task) ID() uuid.UUID { return t.id }

// Label returns the label given at creation.
func (t *Task) Label() string { return t.label }

// Finalized reports whether the finalizer has run.
func (t *Task) Finalized() bool { return t.done.Load() }

// Finalize runs the finalizer if it has not run yet.
func (t *Task) Finalize() {
	t.once.Do(func() {
		if t.finalize != nil {
			t.finalize()
		}
		t.done.Store(true)
		finalizedTasks.Inc()
	})
}

// Schedule queues t for finalization by the next Eval.
func Schedule(t *Task) {
	if t == nil {
		return
	}
	g := current()
	g.mu.Lock()
	g.pending = append(g.pending, t)
	n := len(g.pending)
	g.mu.Unlock()

	pendingTasks.Set(float64(n))
	g.logger.Debug("task scheduled", "task", t.label, "id", t.id.String(), "pending", n)
}

// Pending returns the number of scheduled tasks not yet drained by Eval.
func Pending() int {
	g := current()
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Eval finalizes every scheduled task in the order they were scheduled and
// returns how many were drained. Tasks scheduled by a finalizer are kept for
// the next Eval.
func Eval() int {
	g := current()
	g.mu.Lock()
	tasks := g.pending
	g.pending = nil
	g.mu.Unlock()

	for _, t := range tasks {
		t.Finalize()
	}
	pendingTasks.Set(float64(Pending()))
	if len(tasks) > 0 {
		g.logger.Debug("eval finalized tasks", "count", len(tasks))
	}
	return len(tasks)
}
