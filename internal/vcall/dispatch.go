package vcall

import (
	"context"
	"fmt"
	"time"

	"github.com/born-ml/tracejit/internal/ad"
	"github.com/born-ml/tracejit/internal/array"
	"github.com/born-ml/tracejit/internal/jit"
	"github.com/born-ml/tracejit/internal/tensor"
	"github.com/born-ml/tracejit/internal/traverse"
)

// binding is one method of a class. Every Define* function builds one and
// the exported wrappers only adapt its signature.
type binding[C comparable, R any] struct {
	class   *Class[C]
	name    string
	getter  bool
	returns bool
	fn      func(obj C, args []any) (R, error)
}

func newBinding[C comparable, R any](c *Class[C], name string, k kind, fn func(C, []any) (R, error)) binding[C, R] {
	c.bind(name, k)
	return binding[C, R]{
		class:   c,
		name:    name,
		getter:  k == kindGetter,
		returns: k != kindProcedure,
		fn:      fn,
	}
}

// Method is a bound method returning R.
type Method[C comparable, R any] struct {
	b binding[C, R]
}

// DefineMethod binds fn as name. fn receives the arguments of its group;
// they stay owned by the call and must be cloned to be kept. fn transfers
// ownership of its result to the call.
func DefineMethod[C comparable, R any](c *Class[C], name string, fn func(obj C, args []any) (R, error)) *Method[C, R] {
	return &Method[C, R]{newBinding(c, name, kindMethod, fn)}
}

// Name returns the method name.
func (m *Method[C, R]) Name() string { return m.b.name }

// Call invokes the method on every lane of self. A trailing array.Mask
// argument selects the active lanes. The caller keeps ownership of args and
// owns the result.
func (m *Method[C, R]) Call(ctx context.Context, self array.Array[uint32], args ...any) (R, error) {
	return m.b.dispatch(ctx, self, args)
}

// Procedure is a bound method without a result.
type Procedure[C comparable] struct {
	b binding[C, struct{}]
}

// DefineProcedure binds fn as name.
func DefineProcedure[C comparable](c *Class[C], name string, fn func(obj C, args []any) error) *Procedure[C] {
	return &Procedure[C]{newBinding(c, name, kindProcedure, func(obj C, args []any) (struct{}, error) {
		return struct{}{}, fn(obj, args)
	})}
}

// Name returns the procedure name.
func (p *Procedure[C]) Name() string { return p.b.name }

// Call invokes the procedure on every active lane of self.
func (p *Procedure[C]) Call(ctx context.Context, self array.Array[uint32], args ...any) error {
	_, err := p.b.dispatch(ctx, self, args)
	return err
}

// Getter reads a per-object value.
type Getter[C comparable, R any] struct {
	b binding[C, R]
}

// DefineGetter binds get as name. get transfers ownership of its result.
func DefineGetter[C comparable, R any](c *Class[C], name string, get func(obj C) R) *Getter[C, R] {
	return &Getter[C, R]{newBinding(c, name, kindGetter, func(obj C, _ []any) (R, error) {
		return get(obj), nil
	})}
}

// DefineScalarGetter binds a getter of a host value, broadcast to the lanes
// of each object.
func DefineScalarGetter[C comparable, T tensor.DType](c *Class[C], name string, get func(obj C) T) *Getter[C, array.Array[T]] {
	return DefineGetter(c, name, func(obj C) array.Array[T] {
		return array.Literal(get(obj))
	})
}

// Name returns the getter name.
func (g *Getter[C, R]) Name() string { return g.b.name }

// Get reads the value for every lane of self. Unset lanes read zeros.
func (g *Getter[C, R]) Get(ctx context.Context, self array.Array[uint32]) (R, error) {
	return g.b.dispatch(ctx, self, nil)
}

// GetMasked is Get restricted to the lanes where mask is true. Masked-off
// lanes read zeros.
func (g *Getter[C, R]) GetMasked(ctx context.Context, self array.Array[uint32], mask array.Mask) (R, error) {
	return g.b.dispatch(ctx, self, []any{mask})
}

// splitMask extracts a trailing mask argument. The returned arguments
// carry a true literal in its place, owned by the caller of splitMask.
func splitMask(args []any) (mask uint32, out []any, literal *array.Mask) {
	if len(args) == 0 {
		return 0, args, nil
	}
	m, ok := args[len(args)-1].(array.Mask)
	if !ok {
		return 0, args, nil
	}
	t := array.Literal(true)
	out = append(args[:len(args)-1:len(args)-1], t)
	return m.Index().Trace(), out, &t
}

func (b *binding[C, R]) dispatch(ctx context.Context, self array.Array[uint32], args []any) (result R, err error) {
	domain := b.class.domain
	ctx, span := startDispatchSpan(ctx, domain, b.name, self.Width())
	defer span.End()

	start := time.Now()
	groups, deferred := 0, false
	defer func() {
		status := err
		p := recover()
		if p != nil {
			status = fmt.Errorf("%s.%s: panic: %v", domain, b.name, p)
		}
		setDispatchSpanResult(span, groups, deferred, status)
		recordDispatchMetrics(ctx, domain, b.name, time.Since(start), groups, status == nil)
		if p != nil {
			panic(p)
		}
	}()

	mask, args, literal := splitMask(args)
	if literal != nil {
		defer literal.Free()
	}

	state := newCallState[R](args)
	task := jit.NewTask(domain+"."+b.name, state.cleanup)
	defer func() {
		if !deferred {
			task.Finalize()
		}
	}()

	in := ad.Own(traverse.Collect(state.args, true))
	defer in.Release()

	var rv ad.OwnedIndices
	defer rv.Release()

	done, err := ad.Call(ad.CallRequest{
		Backend:  jit.Backend(),
		Domain:   domain,
		Name:     b.name,
		IsGetter: b.getter,
		Self:     self.Index().Trace(),
		Mask:     mask,
		Args:     in.Items,
		State:    state,
		Callback: func(st any, obj any, args ad.Indices, out *ad.Indices) error {
			groups++
			s := st.(*CallState[R])
			if err := s.updateArgs(args); err != nil {
				return err
			}
			if obj == nil {
				if b.returns {
					s.collectZeros(out)
				}
				return nil
			}
			r, err := b.fn(obj.(C), s.args)
			if err != nil {
				traverse.Free(&r)
				return err
			}
			if b.returns {
				s.collectRV(r, out)
			}
			return nil
		},
		Task:          task,
		AllowDeferred: true,
	}, &rv)
	if err != nil {
		jit.Logger().Debug("vectorized call failed", "domain", domain, "method", b.name, "error", err)
		return result, err
	}
	deferred = !done

	result = state.takeRV()
	if groups == 0 || !b.returns {
		return result, nil
	}
	if err := traverse.Update(&result, rv.Items); err != nil {
		traverse.Free(&result)
		var zero R
		return zero, err
	}
	return result, nil
}
