package jit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskFinalizesOnce(t *testing.T) {
	setup(t)

	calls := 0
	task := NewTask("cleanup", func() { calls++ })
	assert.Equal(t, "cleanup", task.Label())
	assert.NotEqual(t, task.ID(), NewTask("other", nil).ID())

	task.Finalize()
	task.Finalize()
	assert.Equal(t, 1, calls)
	assert.True(t, task.Finalized())
}

func TestEvalDrainsInOrder(t *testing.T) {
	setup(t)

	var order []string
	Schedule(NewTask("first", func() { order = append(order, "first") }))
	Schedule(NewTask("second", func() { order = append(order, "second") }))
	assert.Equal(t, 2, Pending())
	assert.Empty(t, order)

	assert.Equal(t, 2, Eval())
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, 0, Pending())
	assert.Equal(t, 0, Eval())
}

func TestScheduledTaskFinalizedEarly(t *testing.T) {
	setup(t)

	calls := 0
	task := NewTask("early", func() { calls++ })
	Schedule(task)
	task.Finalize()
	Eval()

	assert.Equal(t, 1, calls)
}

func TestTaskScheduledDuringEval(t *testing.T) {
	setup(t)

	inner := NewTask("inner", nil)
	Schedule(NewTask("outer", func() { Schedule(inner) }))

	assert.Equal(t, 1, Eval())
	assert.False(t, inner.Finalized())
	assert.Equal(t, 1, Pending())

	Eval()
	assert.True(t, inner.Finalized())
}

func TestShutdownFinalizesPending(t *testing.T) {
	setup(t)

	task := NewTask("pending", nil)
	Schedule(task)
	Shutdown()
	assert.True(t, task.Finalized())
}
