package array

import (
	"github.com/born-ml/tracejit/internal/index"
	"github.com/born-ml/tracejit/internal/jit"
	"github.com/born-ml/tracejit/internal/tensor"
)

// Operations borrow their operands and return a new owner. Width-1 operands
// broadcast against wider ones.

func (a Array[T]) unary(op unaryOp) Array[T] {
	return Steal[T](a.kern().unary(op, a.index))
}

func (a Array[T]) binary(op binaryOp, b Array[T]) Array[T] {
	return Steal[T](a.kern().binary(op, a.index, b.index))
}

// Add returns a + b.
func (a Array[T]) Add(b Array[T]) Array[T] { return a.binary(opAdd, b) }

// Sub returns a - b.
func (a Array[T]) Sub(b Array[T]) Array[T] { return a.binary(opSub, b) }

// Mul returns a * b.
func (a Array[T]) Mul(b Array[T]) Array[T] { return a.binary(opMul, b) }

// Div returns a / b.
func (a Array[T]) Div(b Array[T]) Array[T] { return a.binary(opDiv, b) }

// Min returns the element-wise minimum.
func (a Array[T]) Min(b Array[T]) Array[T] { return a.binary(opMin, b) }

// Max returns the element-wise maximum.
func (a Array[T]) Max(b Array[T]) Array[T] { return a.binary(opMax, b) }

// Mod returns the element-wise remainder. It does not propagate gradients.
func (a Array[T]) Mod(b Array[T]) Array[T] { return a.binary(opMod, b) }

// Mulhi returns the high half of the integer product.
func (a Array[T]) Mulhi(b Array[T]) Array[T] { return a.binary(opMulhi, b) }

// Neg returns -a.
func (a Array[T]) Neg() Array[T] { return a.unary(opNeg) }

// Abs returns |a|.
func (a Array[T]) Abs() Array[T] { return a.unary(opAbs) }

// Sqrt returns the square root of a.
func (a Array[T]) Sqrt() Array[T] { return a.unary(opSqrt) }

// Rcp returns 1/a.
func (a Array[T]) Rcp() Array[T] { return a.unary(opRcp) }

// Rsqrt returns 1/sqrt(a).
func (a Array[T]) Rsqrt() Array[T] { return a.unary(opRsqrt) }

// Cbrt returns the cube root of a.
func (a Array[T]) Cbrt() Array[T] { return a.unary(opCbrt) }

// Not returns the logical (bool) or bitwise (integer) complement.
func (a Array[T]) Not() Array[T] { return a.unary(opNot) }

// Fma returns a*b + c.
func (a Array[T]) Fma(b, c Array[T]) Array[T] {
	return Steal[T](a.kern().fma(a.index, b.index, c.index))
}

// Sum returns a width-1 array holding the sum of a. It does not propagate gradients.
func (a Array[T]) Sum() Array[T] {
	return Steal[T](index.FromTrace(jit.Sum(a.index.Trace())))
}

func (a Array[T]) compare(b Array[T], f func(a, b uint32) uint32) Mask {
	return Steal[bool](index.FromTrace(f(a.index.Trace(), b.index.Trace())))
}

// Eq returns the mask a == b.
func (a Array[T]) Eq(b Array[T]) Mask { return a.compare(b, jit.Eq) }

// Neq returns the mask a != b.
func (a Array[T]) Neq(b Array[T]) Mask { return a.compare(b, jit.Neq) }

// Lt returns the mask a < b.
func (a Array[T]) Lt(b Array[T]) Mask { return a.compare(b, jit.Lt) }

// Le returns the mask a <= b.
func (a Array[T]) Le(b Array[T]) Mask { return a.compare(b, jit.Le) }

// Gt returns the mask a > b.
func (a Array[T]) Gt(b Array[T]) Mask { return a.compare(b, jit.Gt) }

// Ge returns the mask a >= b.
func (a Array[T]) Ge(b Array[T]) Mask { return a.compare(b, jit.Ge) }

// Select returns t where mask is set and f elsewhere.
func Select[T tensor.DType](mask Mask, t, f Array[T]) Array[T] {
	return Steal[T](t.kern().selectOp(mask.index.Trace(), t.index, f.index))
}

// Gather returns a[idx[i]] for every lane of idx.
func Gather[T tensor.DType](a Array[T], idx Array[uint32]) Array[T] {
	return Steal[T](a.kern().gather(a.index, idx.index.Trace()))
}

// And returns the logical AND of two masks.
func And(a, b Mask) Mask {
	return Steal[bool](index.FromTrace(jit.And(a.index.Trace(), b.index.Trace())))
}

// Or returns the logical OR of two masks.
func Or(a, b Mask) Mask {
	return Steal[bool](index.FromTrace(jit.Or(a.index.Trace(), b.index.Trace())))
}
