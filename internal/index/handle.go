// Package index defines the combined trace/AD index handle.
//
// A Handle names a value in two process-wide graphs at once: the lower 32
// bits are the trace-variable id and the upper 32 bits the AD-node id.
// Either half may be zero. A Handle owns nothing; ownership is expressed
// only through explicit IncRef/DecRef calls on the graphs that issued it.
package index

import "fmt"

// Handle is a combined 64-bit trace/AD index. The zero Handle means "no value".
type Handle uint64

// Combine packs a trace-variable id and an AD-node id.
func Combine(trace, node uint32) Handle {
	return Handle(uint64(node)<<32 | uint64(trace))
}

// FromTrace wraps a plain trace-variable id.
func FromTrace(id uint32) Handle {
	return Handle(id)
}

// Trace returns the trace-variable id (lower 32 bits).
func (h Handle) Trace() uint32 {
	return uint32(h)
}

// Node returns the AD-node id (upper 32 bits).
func (h Handle) Node() uint32 {
	return uint32(h >> 32)
}

// IsZero reports whether h refers to nothing.
func (h Handle) IsZero() bool {
	return h == 0
}

// IsDiff reports whether h is tracked by the AD graph.
func (h Handle) IsDiff() bool {
	return h.Node() != 0
}

// WithTrace returns h with its trace half replaced.
func (h Handle) WithTrace(id uint32) Handle {
	return Combine(id, h.Node())
}

// String formats h as "trace:node" (e.g. "r12:a3"), or "r12" without an AD node.
func (h Handle) String() string {
	if h.Node() == 0 {
		return fmt.Sprintf("r%d", h.Trace())
	}
	return fmt.Sprintf("r%d:a%d", h.Trace(), h.Node())
}
