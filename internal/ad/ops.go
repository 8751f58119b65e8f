package ad

import (
	"fmt"
	"slices"

	"github.com/born-ml/tracejit/internal/index"
	"github.com/born-ml/tracejit/internal/jit"
	"github.com/born-ml/tracejit/internal/tensor"
)

// All operations borrow their operands and return an owned handle. A node is
// attached only when at least one operand is tracked.

// base holds the operand nodes, their widths for broadcast reduction, and
// the trace variables kept alive for the backward pass.
type base struct {
	name   string
	inputs []uint32
	widths []int
	saved  []uint32
}

func newBase(name string, operands []index.Handle, saved ...uint32) base {
	b := base{
		name:   name,
		inputs: make([]uint32, len(operands)),
		widths: make([]int, len(operands)),
		saved:  saved,
	}
	for i, h := range operands {
		b.inputs[i] = h.Node()
		if h.Trace() != 0 {
			b.widths[i] = jit.Width(h.Trace())
		}
	}
	for _, id := range saved {
		jit.IncRef(id)
	}
	return b
}

func (b *base) Name() string { return b.name }

func (b *base) Inputs() []uint32 { return b.inputs }

func (b *base) Release() {
	for _, id := range b.saved {
		jit.DecRef(id)
	}
	b.saved = nil
}

// grad evaluates f for a tracked input and reduces the result to the
// input's width. Untracked inputs get no gradient.
func (b *base) grad(i int, f func() uint32) uint32 {
	if b.inputs[i] == 0 {
		return 0
	}
	return reduceBroadcast(f(), b.widths[i])
}

// reduceBroadcast sums grad down to width 1 when the operand was broadcast.
// It consumes grad.
func reduceBroadcast(grad uint32, width int) uint32 {
	w := jit.Width(grad)
	if w == width {
		return grad
	}
	if width != 1 {
		panic(fmt.Sprintf("reduce_broadcast: cannot reduce width %d to %d", w, width))
	}
	sum := jit.Sum(grad)
	jit.DecRef(grad)
	return sum
}

func anyDiff(hs ...index.Handle) bool {
	for _, h := range hs {
		if h.IsDiff() {
			return true
		}
	}
	return false
}

func share(id uint32) uint32 {
	jit.IncRef(id)
	return id
}

// then applies f to x and releases x.
func then(x uint32, f func(uint32) uint32) uint32 {
	defer jit.DecRef(x)
	return f(x)
}

// scalar returns a width-1 constant of the same type as like.
func scalar(like uint32, v float64) uint32 {
	return jit.Literal(jit.Type(like), 1, v)
}

// masked returns select(mask, g, 0) or select(mask, 0, g).
func masked(mask, grad uint32, keepWhenSet bool) uint32 {
	zero := scalar(grad, 0)
	defer jit.DecRef(zero)
	if keepWhenSet {
		return jit.Select(mask, grad, zero)
	}
	return jit.Select(mask, zero, grad)
}

type addOp struct{ base }

// Add returns a + b.
func Add(a, b index.Handle) index.Handle {
	out := jit.Add(a.Trace(), b.Trace())
	if !anyDiff(a, b) {
		return index.FromTrace(out)
	}
	return record(out, &addOp{newBase("add", []index.Handle{a, b})})
}

func (op *addOp) Backward(grad uint32) []uint32 {
	return []uint32{
		op.grad(0, func() uint32 { return share(grad) }),
		op.grad(1, func() uint32 { return share(grad) }),
	}
}

type subOp struct{ base }

// Sub returns a - b.
func Sub(a, b index.Handle) index.Handle {
	out := jit.Sub(a.Trace(), b.Trace())
	if !anyDiff(a, b) {
		return index.FromTrace(out)
	}
	return record(out, &subOp{newBase("sub", []index.Handle{a, b})})
}

func (op *subOp) Backward(grad uint32) []uint32 {
	return []uint32{
		op.grad(0, func() uint32 { return share(grad) }),
		op.grad(1, func() uint32 { return jit.Neg(grad) }),
	}
}

// mulOp: d(a*b)/da = b, d(a*b)/db = a.
type mulOp struct {
	base
	a, b uint32
}

// Mul returns a * b.
func Mul(a, b index.Handle) index.Handle {
	out := jit.Mul(a.Trace(), b.Trace())
	if !anyDiff(a, b) {
		return index.FromTrace(out)
	}
	return record(out, &mulOp{
		base: newBase("mul", []index.Handle{a, b}, a.Trace(), b.Trace()),
		a:    a.Trace(),
		b:    b.Trace(),
	})
}

func (op *mulOp) Backward(grad uint32) []uint32 {
	return []uint32{
		op.grad(0, func() uint32 { return jit.Mul(grad, op.b) }),
		op.grad(1, func() uint32 { return jit.Mul(grad, op.a) }),
	}
}

// divOp: d(a/b)/da = 1/b, d(a/b)/db = -out/b.
type divOp struct {
	base
	b, out uint32
}

// Div returns a / b.
func Div(a, b index.Handle) index.Handle {
	out := jit.Div(a.Trace(), b.Trace())
	if !anyDiff(a, b) {
		return index.FromTrace(out)
	}
	return record(out, &divOp{
		base: newBase("div", []index.Handle{a, b}, b.Trace(), out),
		b:    b.Trace(),
		out:  out,
	})
}

func (op *divOp) Backward(grad uint32) []uint32 {
	return []uint32{
		op.grad(0, func() uint32 { return jit.Div(grad, op.b) }),
		op.grad(1, func() uint32 {
			return then(jit.Mul(grad, op.out), func(t uint32) uint32 {
				return then(jit.Div(t, op.b), jit.Neg)
			})
		}),
	}
}

type negOp struct{ base }

// Neg returns -x.
func Neg(x index.Handle) index.Handle {
	out := jit.Neg(x.Trace())
	if !x.IsDiff() {
		return index.FromTrace(out)
	}
	return record(out, &negOp{newBase("neg", []index.Handle{x})})
}

func (op *negOp) Backward(grad uint32) []uint32 {
	return []uint32{op.grad(0, func() uint32 { return jit.Neg(grad) })}
}

type absOp struct {
	base
	x uint32
}

// Abs returns |x|.
func Abs(x index.Handle) index.Handle {
	out := jit.Abs(x.Trace())
	if !x.IsDiff() {
		return index.FromTrace(out)
	}
	return record(out, &absOp{newBase("abs", []index.Handle{x}, x.Trace()), x.Trace()})
}

func (op *absOp) Backward(grad uint32) []uint32 {
	return []uint32{op.grad(0, func() uint32 {
		zero := scalar(op.x, 0)
		defer jit.DecRef(zero)
		negative := jit.Lt(op.x, zero)
		defer jit.DecRef(negative)
		return then(jit.Neg(grad), func(ng uint32) uint32 {
			return jit.Select(negative, ng, grad)
		})
	})}
}

// unaryOutOp covers unary functions whose derivative is expressed through
// their own output.
type unaryOutOp struct {
	base
	out      uint32
	backward func(grad, out uint32) uint32
}

func unaryOut(name string, x index.Handle, out uint32, backward func(grad, out uint32) uint32) index.Handle {
	if !x.IsDiff() {
		return index.FromTrace(out)
	}
	return record(out, &unaryOutOp{
		base:     newBase(name, []index.Handle{x}, out),
		out:      out,
		backward: backward,
	})
}

func (op *unaryOutOp) Backward(grad uint32) []uint32 {
	return []uint32{op.grad(0, func() uint32 { return op.backward(grad, op.out) })}
}

// Sqrt returns sqrt(x). d/dx = 1 / (2*out).
func Sqrt(x index.Handle) index.Handle {
	return unaryOut("sqrt", x, jit.Sqrt(x.Trace()), func(grad, out uint32) uint32 {
		return then(jit.Add(out, out), func(d uint32) uint32 { return jit.Div(grad, d) })
	})
}

// Rcp returns 1/x. d/dx = -out^2.
func Rcp(x index.Handle) index.Handle {
	return unaryOut("rcp", x, jit.Rcp(x.Trace()), func(grad, out uint32) uint32 {
		return then(jit.Mul(grad, out), func(t uint32) uint32 {
			return then(jit.Mul(t, out), jit.Neg)
		})
	})
}

// Rsqrt returns 1/sqrt(x). d/dx = -0.5 * out^3.
func Rsqrt(x index.Handle) index.Handle {
	return unaryOut("rsqrt", x, jit.Rsqrt(x.Trace()), func(grad, out uint32) uint32 {
		half := scalar(out, -0.5)
		defer jit.DecRef(half)
		t := jit.Mul(grad, half)
		for range 3 {
			t = then(t, func(t uint32) uint32 { return jit.Mul(t, out) })
		}
		return t
	})
}

// Cbrt returns the cube root of x. d/dx = 1 / (3*out^2).
func Cbrt(x index.Handle) index.Handle {
	return unaryOut("cbrt", x, jit.Cbrt(x.Trace()), func(grad, out uint32) uint32 {
		three := scalar(out, 3)
		defer jit.DecRef(three)
		d := then(jit.Mul(out, out), func(sq uint32) uint32 { return jit.Mul(sq, three) })
		return then(d, func(d uint32) uint32 { return jit.Div(grad, d) })
	})
}

// pickOp routes the gradient to whichever operand was chosen by mask.
type pickOp struct {
	base
	mask uint32
}

func (op *pickOp) Backward(grad uint32) []uint32 {
	return []uint32{
		op.grad(0, func() uint32 { return masked(op.mask, grad, true) }),
		op.grad(1, func() uint32 { return masked(op.mask, grad, false) }),
	}
}

func pick(name string, a, b index.Handle, out uint32, cmp func(a, b uint32) uint32) index.Handle {
	if !anyDiff(a, b) {
		return index.FromTrace(out)
	}
	mask := cmp(a.Trace(), b.Trace())
	defer jit.DecRef(mask)
	return record(out, &pickOp{newBase(name, []index.Handle{a, b}, mask), mask})
}

// Min returns the element-wise minimum. Ties send the gradient to a.
func Min(a, b index.Handle) index.Handle {
	return pick("min", a, b, jit.Min(a.Trace(), b.Trace()), jit.Le)
}

// Max returns the element-wise maximum. Ties send the gradient to a.
func Max(a, b index.Handle) index.Handle {
	return pick("max", a, b, jit.Max(a.Trace(), b.Trace()), jit.Ge)
}

// Select returns t where mask is set and f elsewhere. The mask is a plain
// trace variable and never carries gradients.
func Select(mask uint32, t, f index.Handle) index.Handle {
	out := jit.Select(mask, t.Trace(), f.Trace())
	if !anyDiff(t, f) {
		return index.FromTrace(out)
	}
	return record(out, &pickOp{newBase("select", []index.Handle{t, f}, mask), mask})
}

type fmaOp struct {
	base
	a, b uint32
}

// Fma returns a*b + c.
func Fma(a, b, c index.Handle) index.Handle {
	out := jit.Fma(a.Trace(), b.Trace(), c.Trace())
	if !anyDiff(a, b, c) {
		return index.FromTrace(out)
	}
	return record(out, &fmaOp{
		base: newBase("fma", []index.Handle{a, b, c}, a.Trace(), b.Trace()),
		a:    a.Trace(),
		b:    b.Trace(),
	})
}

func (op *fmaOp) Backward(grad uint32) []uint32 {
	return []uint32{
		op.grad(0, func() uint32 { return jit.Mul(grad, op.b) }),
		op.grad(1, func() uint32 { return jit.Mul(grad, op.a) }),
		op.grad(2, func() uint32 { return share(grad) }),
	}
}

type castOp struct {
	base
	from tensor.DataType
}

// Cast converts x to dtype. Gradients flow only through value conversions
// between float types.
func Cast(x index.Handle, dtype tensor.DataType, reinterpret bool) index.Handle {
	from := jit.Type(x.Trace())
	out := jit.Cast(x.Trace(), dtype, reinterpret)
	if !x.IsDiff() || reinterpret || !dtype.IsFloat() || !from.IsFloat() {
		return index.FromTrace(out)
	}
	return record(out, &castOp{newBase("cast", []index.Handle{x}), from})
}

func (op *castOp) Backward(grad uint32) []uint32 {
	return []uint32{op.grad(0, func() uint32 { return jit.Cast(grad, op.from, false) })}
}

// gatherOp scatters the gradient back to the gathered lanes.
type gatherOp struct {
	base
	idx uint32
}

// Gather returns x[idx[i]] for every lane of the Uint32 trace variable idx.
func Gather(x index.Handle, idx uint32) index.Handle {
	out := jit.Gather(x.Trace(), idx)
	if !x.IsDiff() {
		return index.FromTrace(out)
	}
	return record(out, &gatherOp{newBase("gather", []index.Handle{x}, idx), idx})
}

func (op *gatherOp) Backward(grad uint32) []uint32 {
	// Scatter lands at the operand's full width, so reduction is a no-op.
	return []uint32{op.grad(0, func() uint32 {
		zeros := jit.Literal(jit.Type(grad), op.widths[0], 0)
		defer jit.DecRef(zeros)
		return jit.ScatterAdd(zeros, grad, op.idx)
	})}
}

// mergeOp gathers the gradient of each part back from its lanes.
type mergeOp struct {
	base
	lanes []uint32
}

// Merge builds a width-wide variable from parts, writing parts[i] to the
// lanes listed in the Uint32 trace variable lanes[i]. Lanes not covered by
// any part are zero. Zero handles in parts are skipped. The result is the
// zero handle if every part is.
func Merge(width int, parts []index.Handle, lanes []uint32) index.Handle {
	if len(parts) != len(lanes) {
		panic(fmt.Sprintf("merge: %d parts for %d lane sets", len(parts), len(lanes)))
	}
	lanes = slices.Clone(lanes)
	var acc uint32
	for i, p := range parts {
		if p.Trace() == 0 {
			continue
		}
		if acc == 0 {
			acc = jit.Literal(jit.Type(p.Trace()), width, 0)
		}
		acc = then(acc, func(acc uint32) uint32 { return jit.Scatter(acc, p.Trace(), lanes[i]) })
	}
	if acc == 0 {
		return 0
	}
	if !anyDiff(parts...) {
		return index.FromTrace(acc)
	}
	return record(acc, &mergeOp{newBase("merge", parts, lanes...), lanes})
}

func (op *mergeOp) Backward(grad uint32) []uint32 {
	out := make([]uint32, len(op.inputs))
	for i := range op.inputs {
		out[i] = op.grad(i, func() uint32 { return jit.Gather(grad, op.lanes[i]) })
	}
	return out
}
