// Package array provides Array, a typed owner of one combined trace/AD index.
//
// An Array holds exactly one reference to its handle. Go has no destructors,
// so ownership is explicit: every Array obtained from a constructor or an
// operation must eventually be released with Free (usually via defer), handed
// off with Move or Release, or overwritten with AssignMove.
//
//	x := array.FromSlice([]float32{1, 2, 3})
//	defer x.Free()
//	y := x.Mul(x)
//	defer y.Free()
//
// The zero Array is empty and owns nothing.
package array

import (
	"fmt"

	"github.com/born-ml/tracejit/internal/ad"
	"github.com/born-ml/tracejit/internal/index"
	"github.com/born-ml/tracejit/internal/jit"
	"github.com/born-ml/tracejit/internal/tensor"
)

// Array is a one-dimensional array of T backed by a trace variable and,
// for float types with gradients enabled, an AD node.
type Array[T tensor.DType] struct {
	index index.Handle
	k     kernels
}

// Mask is a boolean array. It never carries gradients.
type Mask = Array[bool]

// Steal wraps h, taking over the caller's reference.
func Steal[T tensor.DType](h index.Handle) Array[T] {
	return Array[T]{index: h, k: kernelsFor[T]()}
}

// Borrow wraps h, taking a new reference.
func Borrow[T tensor.DType](h index.Handle) Array[T] {
	a := Steal[T](h)
	a.kern().incRef(h)
	return a
}

func (a Array[T]) kern() kernels {
	if a.k == nil {
		return kernelsFor[T]()
	}
	return a.k
}

// Index returns the held handle. The reference stays with a.
func (a Array[T]) Index() index.Handle {
	return a.index
}

// IsEmpty reports whether a holds no handle.
func (a Array[T]) IsEmpty() bool {
	return a.index.IsZero()
}

// IsDiff reports whether a is tracked by the AD graph.
func (a Array[T]) IsDiff() bool {
	return a.index.IsDiff()
}

// Type returns the element type.
func (a Array[T]) Type() tensor.DataType {
	return tensor.TypeOf[T]()
}

// Width returns the number of elements, or 0 for an empty array.
func (a Array[T]) Width() int {
	if a.IsEmpty() {
		return 0
	}
	return jit.Width(a.index.Trace())
}

// Data returns a copy of the elements, or nil for an empty array.
func (a Array[T]) Data() []T {
	if a.IsEmpty() {
		return nil
	}
	return jit.Read[T](a.index.Trace())
}

// String formats the elements.
func (a Array[T]) String() string {
	return fmt.Sprint(a.Data())
}

// Clone returns a second owner of the same handle.
func (a Array[T]) Clone() Array[T] {
	return Borrow[T](a.index)
}

// Move transfers the handle to the returned array and leaves a empty.
func (a *Array[T]) Move() Array[T] {
	out := Array[T]{index: a.index, k: a.kern()}
	a.index = 0
	return out
}

// Assign makes a share b's handle. The new reference is taken before the
// old one is dropped, so self-assignment is safe.
func (a *Array[T]) Assign(b Array[T]) {
	a.SetBorrowed(b.index)
}

// AssignMove swaps the handles of a and b. b ends up owning a's previous
// handle and is responsible for releasing it.
func (a *Array[T]) AssignMove(b *Array[T]) {
	a.index, b.index = b.index, a.index
}

// Release gives up the handle without dropping its reference. The caller owns it.
func (a *Array[T]) Release() index.Handle {
	h := a.index
	a.index = 0
	return h
}

// Free drops the reference and leaves a empty. Freeing an empty or
// moved-from array does nothing.
func (a *Array[T]) Free() {
	if a.index == 0 {
		return
	}
	h := a.index
	a.index = 0
	a.kern().decRef(h)
}

// SetBorrowed replaces the held handle with h, taking a new reference to h.
func (a *Array[T]) SetBorrowed(h index.Handle) {
	k := a.kern()
	k.incRef(h)
	old := a.index
	a.index = h
	a.k = k
	k.decRef(old)
}

// SetZero replaces the held handle with zeros of the same width, or width 1
// if a is empty.
func (a *Array[T]) SetZero() {
	a.setZeros(max(a.Width(), 1))
}

// SetZeroLiteral replaces the held handle with a width-1 zero, which
// broadcasts to any width.
func (a *Array[T]) SetZeroLiteral() {
	a.setZeros(1)
}

func (a *Array[T]) setZeros(width int) {
	zeros := Zeros[T](width)
	a.Free()
	*a = zeros
}

// EnableGrad starts tracking gradients for a. It panics for non-float types.
func (a *Array[T]) EnableGrad() {
	if !a.kern().diff() {
		panic(fmt.Sprintf("enable_grad: %s arrays cannot carry gradients", a.Type()))
	}
	a.index = ad.NewLeaf(a.index)
}

// Grad returns the accumulated gradient of a, or zeros if none exists.
func (a Array[T]) Grad() Array[T] {
	if id := ad.Grad(a.index); id != 0 {
		return Steal[T](index.FromTrace(id))
	}
	return Zeros[T](max(a.Width(), 1))
}

// ClearGrad drops the accumulated gradient of a.
func (a Array[T]) ClearGrad() {
	ad.ClearGrad(a.index)
}

// Backward propagates a gradient of ones from a to every leaf it depends on.
func (a Array[T]) Backward() {
	ad.Backward(a.index)
}

// Detach returns an untracked array with the same values.
func (a Array[T]) Detach() Array[T] {
	return Borrow[T](index.FromTrace(a.index.Trace()))
}

// FromSlice creates an array holding a copy of data.
func FromSlice[T tensor.DType](data []T) Array[T] {
	return Steal[T](index.FromTrace(jit.FromSlice(data)))
}

// Full creates an array of the given width with every element set to v.
func Full[T tensor.DType](v T, width int) Array[T] {
	data := make([]T, width)
	for i := range data {
		data[i] = v
	}
	return FromSlice(data)
}

// Literal creates a width-1 array holding v. It broadcasts against any width.
func Literal[T tensor.DType](v T) Array[T] {
	return Full(v, 1)
}

// Zeros creates an array of zeros.
func Zeros[T tensor.DType](width int) Array[T] {
	return Steal[T](index.FromTrace(jit.Literal(tensor.TypeOf[T](), width, 0)))
}

// Cast converts the elements of a to To. The result owns a separate handle.
func Cast[To, From tensor.DType](a Array[From]) Array[To] {
	return Steal[To](a.kern().cast(a.index, tensor.TypeOf[To](), false))
}

// Reinterpret reuses the bits of a as To, which must have the same size as From.
func Reinterpret[To, From tensor.DType](a Array[From]) Array[To] {
	return Steal[To](a.kern().cast(a.index, tensor.TypeOf[To](), true))
}
