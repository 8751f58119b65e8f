package vcall

import (
	"github.com/born-ml/tracejit/internal/ad"
	"github.com/born-ml/tracejit/internal/traverse"
)

// CallState holds the argument snapshot and return slot of one dispatch.
// It owns one reference to every index in both until cleanup runs.
type CallState[R any] struct {
	args []any
	rv   R
}

// newCallState snapshots args. The caller keeps its own references.
func newCallState[R any](args []any) *CallState[R] {
	return &CallState[R]{args: traverse.Clone(args)}
}

// updateArgs relinks the snapshot to the indices of the current group.
func (s *CallState[R]) updateArgs(indices ad.Indices) error {
	return traverse.Update(&s.args, indices)
}

// collectRV stores r, taking over its references, and appends its indices
// to rv. They stay valid until the next collectRV or cleanup.
func (s *CallState[R]) collectRV(r R, rv *ad.Indices) {
	traverse.Free(&s.rv)
	s.rv = r
	*rv = append(*rv, traverse.Collect(s.rv, false)...)
}

// collectZeros stores width-1 zeros with the leaf layout of the previous
// result, or of the zero R when no group has returned yet.
func (s *CallState[R]) collectZeros(rv *ad.Indices) {
	s.collectRV(traverse.ZeroLiterals(s.rv), rv)
}

// takeRV moves the stored result out.
func (s *CallState[R]) takeRV() R {
	r := s.rv
	var zero R
	s.rv = zero
	return r
}

func (s *CallState[R]) cleanup() {
	traverse.Free(&s.args)
	traverse.Free(&s.rv)
	s.args = nil
}
