package ad

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/born-ml/tracejit/internal/index"
	"github.com/born-ml/tracejit/internal/jit"
	"github.com/born-ml/tracejit/internal/tensor"
)

// ErrInconsistentCall is returned when groups of one call disagree on the
// number of returned indices.
var ErrInconsistentCall = errors.New("inconsistent call results")

// CallFunc is invoked once per group of a vectorized call.
//
// self is the group's instance, or nil for the fallback group formed by
// inactive and unset lanes. args holds the group's argument indices; they are
// borrowed for the duration of the call. The callback appends its result
// indices to rv. Those are borrowed too: the caller must keep them alive
// until the callback returns, and Call takes its own references.
type CallFunc func(state any, self any, args Indices, rv *Indices) error

// CallRequest describes one vectorized call.
type CallRequest struct {
	// Backend is the JIT backend the call is recorded for.
	Backend tensor.Backend

	// Domain names the instance registry that resolves ids in Self.
	Domain string

	// Name is the method name, used in errors and logs.
	Name string

	// IsGetter marks calls that read a field and take no arguments.
	IsGetter bool

	// Self is a Uint32 trace variable of instance ids. Id 0 means unset.
	Self uint32

	// Mask is a Bool trace variable of active lanes, or 0 for all lanes.
	// It may have width 1.
	Mask uint32

	// Args are the flattened argument indices. Width-1 arguments are
	// passed to every group as-is; others are gathered per group.
	Args Indices

	// State is passed through to Callback unchanged.
	State any

	// Callback runs once per group.
	Callback CallFunc

	// Task holds the cleanup of State. It is scheduled on the trace graph
	// when the call is deferred and left to the caller otherwise.
	Task *jit.Task

	// AllowDeferred permits deferral when the configuration enables it.
	AllowDeferred bool
}

type group struct {
	id    uint32
	lanes []uint32
}

// Call invokes req.Callback once per distinct instance id in req.Self, in
// ascending id order, then once for the fallback group if any lane is
// inactive or unset. Each result index is merged across groups into a
// full-width handle appended to rv; rv owns them.
//
// It returns done=false when the call was deferred, in which case req.Task
// has been scheduled and finalizes on the next jit.Eval. Callback errors are
// returned unchanged. Every intermediate index is released on all paths,
// including panics raised by the callback.
func Call(req CallRequest, rv *OwnedIndices) (done bool, err error) {
	if req.Callback == nil {
		return false, fmt.Errorf("%s.%s: nil callback", req.Domain, req.Name)
	}
	if req.Self == 0 {
		return false, fmt.Errorf("%s.%s: self: %w", req.Domain, req.Name, jit.ErrUninitialized)
	}

	width := jit.Width(req.Self)
	groups, err := partition(req, width)
	if err != nil {
		return false, err
	}
	for i, arg := range req.Args {
		if arg.Trace() == 0 {
			continue
		}
		if w := jit.Width(arg.Trace()); w != 1 && w != width {
			return false, fmt.Errorf("%s.%s: argument %d has width %d, expected 1 or %d",
				req.Domain, req.Name, i, w, width)
		}
	}

	lanes := make([]uint32, 0, len(groups))
	results := make([]*OwnedIndices, 0, len(groups))
	defer func() {
		for _, r := range results {
			r.Release()
		}
		for _, id := range lanes {
			jit.DecRef(id)
		}
	}()

	for _, grp := range groups {
		idx := jit.FromSlice(grp.lanes)
		lanes = append(lanes, idx)

		out, err := runGroup(req, grp, idx, width)
		if err != nil {
			return false, err
		}
		results = append(results, out)
		if out.Len() != results[0].Len() {
			return false, fmt.Errorf("%s.%s: group %d returned %d indices, expected %d: %w",
				req.Domain, req.Name, grp.id, out.Len(), results[0].Len(), ErrInconsistentCall)
		}
	}

	if len(results) > 0 {
		parts := make([]index.Handle, len(results))
		for k := range results[0].Items {
			for g, r := range results {
				parts[g] = r.Items[k]
			}
			rv.Append(Merge(width, parts, lanes))
		}
	}

	deferred := req.AllowDeferred && req.Task != nil && jit.Config().Calls.AllowDeferred
	jit.Logger().Debug("vectorized call",
		"domain", req.Domain,
		"method", req.Name,
		"getter", req.IsGetter,
		"backend", req.Backend.String(),
		"width", width,
		"groups", len(groups),
		"outputs", rv.Len(),
		"deferred", deferred)

	if deferred {
		jit.Schedule(req.Task)
		return false, nil
	}
	return true, nil
}

// runGroup gathers the group's arguments, invokes the callback and returns
// owned references to its results.
func runGroup(req CallRequest, grp group, idx uint32, width int) (*OwnedIndices, error) {
	var self any
	if grp.id != 0 {
		obj, err := jit.Instance(req.Domain, grp.id)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", req.Domain, req.Name, err)
		}
		self = obj
	}

	args := &OwnedIndices{Items: make(Indices, 0, len(req.Args))}
	defer args.Release()
	for _, arg := range req.Args {
		switch {
		case arg.Trace() == 0:
			args.Append(0)
		case jit.Width(arg.Trace()) == 1 && width != 1:
			args.Append(IncRef(arg))
		default:
			args.Append(Gather(arg, idx))
		}
	}

	var out Indices
	if err := req.Callback(req.State, self, args.Items, &out); err != nil {
		return nil, err
	}

	owned := &OwnedIndices{Items: make(Indices, 0, len(out))}
	for _, h := range out {
		owned.Append(IncRef(h))
	}
	return owned, nil
}

// partition splits the lanes of req.Self by instance id. Inactive lanes and
// lanes with id 0 form a trailing fallback group with id 0.
func partition(req CallRequest, width int) ([]group, error) {
	if dt := jit.Type(req.Self); dt != tensor.Uint32 {
		return nil, fmt.Errorf("%s.%s: self must be uint32, got %s", req.Domain, req.Name, dt)
	}
	ids := jit.Read[uint32](req.Self)

	var active []bool
	if req.Mask != 0 {
		if dt := jit.Type(req.Mask); dt != tensor.Bool {
			return nil, fmt.Errorf("%s.%s: mask must be bool, got %s", req.Domain, req.Name, dt)
		}
		active = jit.Read[bool](req.Mask)
		if len(active) != 1 && len(active) != width {
			return nil, fmt.Errorf("%s.%s: mask has width %d, expected 1 or %d",
				req.Domain, req.Name, len(active), width)
		}
	}

	byID := make(map[uint32][]uint32)
	var fallback []uint32
	for i, id := range ids {
		on := active == nil || active[min(i, len(active)-1)]
		if !on || id == 0 {
			fallback = append(fallback, uint32(i))
			continue
		}
		byID[id] = append(byID[id], uint32(i))
	}

	groups := make([]group, 0, len(byID)+1)
	for _, id := range slices.Sorted(maps.Keys(byID)) {
		groups = append(groups, group{id: id, lanes: byID[id]})
	}
	if len(fallback) > 0 {
		groups = append(groups, group{lanes: fallback})
	}
	return groups, nil
}
