// Package ad implements the reverse-mode automatic differentiation graph
// that sits on top of the trace graph.
//
// A combined index.Handle carries a trace-variable id in its low half and an
// AD-node id in its high half. IncRef and DecRef act on both halves, so a
// handle can be owned without knowing whether it is differentiable.
//
// Nodes are created only by operations on tracked inputs. Each node keeps a
// reference on its input nodes and on the trace variables its backward rule
// needs; both are dropped when the node's own count reaches zero. Node ids
// grow monotonically, so descending id order is a valid reverse topological
// order for the backward pass.
package ad

import (
	"fmt"
	"slices"
	"sync"

	"github.com/born-ml/tracejit/internal/index"
	"github.com/born-ml/tracejit/internal/jit"
	"github.com/born-ml/tracejit/internal/tensor"
)

// operation is the backward rule attached to a non-leaf node.
type operation interface {
	// Name identifies the operation in logs and errors.
	Name() string

	// Inputs returns the node ids of the operands (0 for untracked operands).
	Inputs() []uint32

	// Backward returns one gradient per input, each holding a fresh reference
	// (0 where the input is untracked). grad is borrowed.
	Backward(grad uint32) []uint32

	// Release drops the trace references captured for Backward.
	Release()
}

type node struct {
	refs int32
	op   operation // nil for leaves
	grad uint32    // accumulated gradient of a leaf
}

type graph struct {
	mu     sync.Mutex
	nodes  map[uint32]*node
	nextID uint32
}

var g = &graph{nodes: make(map[uint32]*node)}

// Reset drops every node without touching the trace graph. Intended for use
// after jit.Init, which discards the variables the nodes referenced.
func Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[uint32]*node)
	g.nextID = 0
}

// Live returns the number of AD nodes currently alive.
func Live() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// IncRef adds a reference to both halves of h and returns h.
func IncRef(h index.Handle) index.Handle {
	jit.IncRef(h.Trace())
	if id := h.Node(); id != 0 {
		g.mu.Lock()
		g.lookup("inc_ref", id).refs++
		g.mu.Unlock()
	}
	return h
}

// DecRef drops a reference from both halves of h.
func DecRef(h index.Handle) {
	jit.DecRef(h.Trace())
	decNode(h.Node())
}

// NodeRefCount returns the reference count of node id, or 0 if it is not alive.
func NodeRefCount(id uint32) int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id]; ok {
		return n.refs
	}
	return 0
}

// lookup must be called with g.mu held.
func (gr *graph) lookup(op string, id uint32) *node {
	n, ok := gr.nodes[id]
	if !ok {
		panic(fmt.Sprintf("%s: unknown ad node a%d", op, id))
	}
	return n
}

// decNode releases a node reference. Freed nodes release their inputs in
// turn; an explicit stack keeps long chains from recursing.
func decNode(id uint32) {
	stack := []uint32{id}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == 0 {
			continue
		}

		g.mu.Lock()
		n := g.lookup("dec_ref", id)
		n.refs--
		if n.refs > 0 {
			g.mu.Unlock()
			continue
		}
		delete(g.nodes, id)
		g.mu.Unlock()

		jit.DecRef(n.grad)
		if n.op != nil {
			n.op.Release()
			stack = append(stack, n.op.Inputs()...)
		}
	}
}

// newNode registers a node with one reference. Input nodes gain one reference each.
func newNode(op operation) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if op != nil {
		for _, in := range op.Inputs() {
			if in != 0 {
				g.lookup(op.Name(), in).refs++
			}
		}
	}
	g.nextID++
	g.nodes[g.nextID] = &node{refs: 1, op: op}
	return g.nextID
}

// record attaches op to the freshly computed trace variable out and returns
// the owned combined handle.
func record(out uint32, op operation) index.Handle {
	return index.Combine(out, newNode(op))
}

// NewLeaf makes h differentiable. Ownership of h's trace reference moves to
// the returned handle. A handle that is already tracked is returned as-is.
func NewLeaf(h index.Handle) index.Handle {
	if h.IsDiff() || h.Trace() == 0 {
		return h
	}
	floatType("new_leaf", jit.Type(h.Trace()))
	return index.Combine(h.Trace(), newNode(nil))
}

// Grad returns the accumulated gradient of leaf h with a fresh reference,
// or 0 if none has been computed.
func Grad(h index.Handle) uint32 {
	if !h.IsDiff() {
		return 0
	}
	g.mu.Lock()
	grad := g.lookup("grad", h.Node()).grad
	g.mu.Unlock()
	jit.IncRef(grad)
	return grad
}

// SetGrad replaces the gradient of h with a borrowed trace variable.
func SetGrad(h index.Handle, grad uint32) {
	if !h.IsDiff() {
		return
	}
	jit.IncRef(grad)
	g.mu.Lock()
	n := g.lookup("set_grad", h.Node())
	old := n.grad
	n.grad = grad
	g.mu.Unlock()
	jit.DecRef(old)
}

// ClearGrad drops the gradient of h.
func ClearGrad(h index.Handle) {
	SetGrad(h, 0)
}

// Backward seeds the gradient of h with ones and propagates it to every leaf
// reachable from h, accumulating into their stored gradients.
func Backward(h index.Handle) {
	if !h.IsDiff() {
		return
	}
	root := h.Node()
	order := reachable(root)

	grads := map[uint32]uint32{
		root: jit.Literal(jit.Type(h.Trace()), jit.Width(h.Trace()), 1),
	}
	for _, id := range order {
		grad, ok := grads[id]
		if !ok {
			continue
		}
		delete(grads, id)

		g.mu.Lock()
		n := g.lookup("backward", id)
		g.mu.Unlock()

		if n.op == nil {
			leaf := index.Combine(0, id)
			sum := accumulate(Grad(leaf), grad)
			SetGrad(leaf, sum)
			jit.DecRef(sum)
			continue
		}
		inputGrads := n.op.Backward(grad)
		jit.DecRef(grad)
		for j, in := range n.op.Inputs() {
			if j >= len(inputGrads) || inputGrads[j] == 0 {
				continue
			}
			if in == 0 {
				jit.DecRef(inputGrads[j])
				continue
			}
			if existing, ok := grads[in]; ok {
				grads[in] = accumulate(existing, inputGrads[j])
			} else {
				grads[in] = inputGrads[j]
			}
		}
	}
}

// accumulate returns a + b, consuming a reference to each. Either may be 0.
func accumulate(a, b uint32) uint32 {
	switch {
	case a == 0:
		return b
	case b == 0:
		return a
	}
	sum := jit.Add(a, b)
	jit.DecRef(a)
	jit.DecRef(b)
	return sum
}

// reachable returns the nodes reachable from root in descending id order.
func reachable(root uint32) []uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := map[uint32]bool{root: true}
	stack := []uint32{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := g.lookup("backward", id)
		if n.op == nil {
			continue
		}
		for _, in := range n.op.Inputs() {
			if in != 0 && !seen[in] {
				seen[in] = true
				stack = append(stack, in)
			}
		}
	}

	order := make([]uint32, 0, len(seen))
	for id := range seen {
		order = append(order, id)
	}
	slices.Sort(order)
	slices.Reverse(order)
	return order
}

// floatType panics unless dtype can carry gradients.
func floatType(op string, dtype tensor.DataType) {
	if !dtype.IsFloat() {
		panic(fmt.Sprintf("%s: gradients need a float type, got %s", op, dtype))
	}
}
