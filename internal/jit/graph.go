// Package jit implements the process-wide trace-variable graph.
//
// Every variable has a uint32 id (0 means "none"), a reference count and a
// value. Operations evaluate eagerly on the CPU backend and return a fresh
// id carrying one reference that the caller owns. Ids are never reused
// within a graph's lifetime.
//
// The graph also hosts the per-domain instance registry used by vectorized
// calls and the queue of deferred tasks finalized by Eval.
package jit

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/born-ml/tracejit/internal/backend/cpu"
	"github.com/born-ml/tracejit/internal/config"
	"github.com/born-ml/tracejit/internal/tensor"
)

// ErrUninitialized is returned (or carried by panics) when id 0 is used as an operand.
var ErrUninitialized = errors.New("uninitialized variable")

type variable struct {
	refs  int32
	value *tensor.RawTensor
}

type graph struct {
	mu       sync.Mutex
	cfg      config.Config
	logger   *slog.Logger
	backend  *cpu.CPUBackend
	vars     map[uint32]*variable
	nextID   uint32
	registry *registry
	pending  []*Task
}

func newGraph(cfg config.Config, logger *slog.Logger) *graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &graph{
		cfg:      cfg,
		logger:   logger,
		backend:  cpu.NewWithConfig(cfg.ParallelConfig()),
		vars:     make(map[uint32]*variable),
		registry: newRegistry(),
	}
}

var (
	stateMu sync.RWMutex
	state   *graph
)

// current returns the active graph, creating one from the default config on first use.
func current() *graph {
	stateMu.RLock()
	g := state
	stateMu.RUnlock()
	if g != nil {
		return g
	}

	stateMu.Lock()
	defer stateMu.Unlock()
	if state == nil {
		state = newGraph(config.Default(), nil)
	}
	return state
}

// Init replaces the process-wide graph with a fresh one built from cfg.
// Variables of a previous graph are dropped without finalizing its tasks;
// call Shutdown first to account for them.
func Init(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	g := newGraph(cfg, logger)

	stateMu.Lock()
	state = g
	stateMu.Unlock()

	liveVariables.Set(0)
	pendingTasks.Set(0)
	g.logger.Debug("jit graph initialized",
		"backend", cfg.BackendType().String(),
		"cpu", g.backend.Name(),
		"deferred", cfg.Calls.AllowDeferred)
	return nil
}

// Shutdown finalizes pending tasks, then drops every remaining variable and
// registered instance. It returns the number of variables that were still
// alive, which is zero for a program that released everything it owned.
func Shutdown() (leaked int) {
	Eval()

	g := current()
	g.mu.Lock()
	leaked = len(g.vars)
	for id, v := range g.vars {
		v.value.Release()
		delete(g.vars, id)
	}
	g.registry = newRegistry()
	g.mu.Unlock()

	liveVariables.Set(0)
	if leaked > 0 {
		g.logger.Warn("jit shutdown with live variables", "leaked", leaked)
	}
	return leaked
}

// Config returns the active configuration.
func Config() config.Config {
	return current().cfg
}

// Logger returns the graph's logger.
func Logger() *slog.Logger {
	return current().logger
}

// CPU returns the kernel backend used for evaluation.
func CPU() *cpu.CPUBackend {
	return current().backend
}

// Backend returns the configured JIT backend identifier.
func Backend() tensor.Backend {
	return current().cfg.BackendType()
}

// Live returns the number of variables currently alive.
func Live() int {
	g := current()
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.vars)
}

// IncRef adds one reference to id. Id 0 is ignored.
func IncRef(id uint32) {
	if id == 0 {
		return
	}
	g := current()
	g.mu.Lock()
	defer g.mu.Unlock()
	v := g.lookup("inc_ref", id)
	v.refs++
}

// DecRef drops one reference from id and frees the variable when none remain.
// Id 0 is ignored.
func DecRef(id uint32) {
	if id == 0 {
		return
	}
	g := current()
	g.mu.Lock()
	v := g.lookup("dec_ref", id)
	v.refs--
	if v.refs > 0 {
		g.mu.Unlock()
		return
	}
	delete(g.vars, id)
	g.mu.Unlock()

	v.value.Release()
	liveVariables.Dec()
}

// RefCount returns the reference count of id, or 0 if it is not alive.
func RefCount(id uint32) int32 {
	g := current()
	g.mu.Lock()
	defer g.mu.Unlock()
	if v, ok := g.vars[id]; ok {
		return v.refs
	}
	return 0
}

// lookup must be called with g.mu held.
func (g *graph) lookup(op string, id uint32) *variable {
	if id == 0 {
		panic(fmt.Sprintf("%s: %v", op, ErrUninitialized))
	}
	v, ok := g.vars[id]
	if !ok {
		panic(fmt.Sprintf("%s: unknown variable r%d", op, id))
	}
	return v
}

// put registers value as a new variable with one reference.
func (g *graph) put(value *tensor.RawTensor) uint32 {
	g.mu.Lock()
	g.nextID++
	id := g.nextID
	g.vars[id] = &variable{refs: 1, value: value}
	g.mu.Unlock()

	liveVariables.Inc()
	createdVariables.Inc()
	return id
}

// operand returns a shared handle on the value of id. The caller must Release it.
func (g *graph) operand(op string, id uint32) *tensor.RawTensor {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lookup(op, id).value.Clone()
}

// FromRaw registers r as a new variable and takes ownership of it.
func FromRaw(r *tensor.RawTensor) uint32 {
	return current().put(r)
}

// FromSlice creates a variable holding a copy of data.
func FromSlice[T tensor.DType](data []T) uint32 {
	return FromRaw(tensor.FromSlice(data))
}

// Literal creates a variable of the given width with every element set to v.
func Literal(dtype tensor.DataType, width int, v float64) uint32 {
	r, err := tensor.Full(dtype, width, v)
	if err != nil {
		panic(fmt.Sprintf("literal: %v", err))
	}
	return FromRaw(r)
}

// Value returns the value of id. The returned tensor is shared and must not be modified.
func Value(id uint32) *tensor.RawTensor {
	g := current()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lookup("value", id).value
}

// Width returns the number of elements of id.
func Width(id uint32) int {
	return Value(id).Len()
}

// Type returns the element type of id.
func Type(id uint32) tensor.DataType {
	return Value(id).DType()
}

// Read returns a copy of the elements of id.
func Read[T tensor.DType](id uint32) []T {
	return tensor.ToSlice[T](Value(id))
}
