package jit

import (
	"github.com/born-ml/tracejit/internal/backend/cpu"
	"github.com/born-ml/tracejit/internal/tensor"
)

// Every operation below borrows its operands and returns a new variable
// holding one reference owned by the caller.

type (
	unaryKernel   func(x *tensor.RawTensor) *tensor.RawTensor
	binaryKernel  func(a, b *tensor.RawTensor) *tensor.RawTensor
	ternaryKernel func(a, b, c *tensor.RawTensor) *tensor.RawTensor
)

func unary(op string, id uint32, k func(*cpu.CPUBackend) unaryKernel) uint32 {
	g := current()
	x := g.operand(op, id)
	defer x.Release()
	return g.put(k(g.backend)(x))
}

func binary(op string, a, b uint32, k func(*cpu.CPUBackend) binaryKernel) uint32 {
	g := current()
	x := g.operand(op, a)
	defer x.Release()
	y := g.operand(op, b)
	defer y.Release()
	return g.put(k(g.backend)(x, y))
}

func ternary(op string, a, b, c uint32, k func(*cpu.CPUBackend) ternaryKernel) uint32 {
	g := current()
	x := g.operand(op, a)
	defer x.Release()
	y := g.operand(op, b)
	defer y.Release()
	z := g.operand(op, c)
	defer z.Release()
	return g.put(k(g.backend)(x, y, z))
}

// Add returns a + b.
func Add(a, b uint32) uint32 {
	return binary("add", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Add })
}

// Sub returns a - b.
func Sub(a, b uint32) uint32 {
	return binary("sub", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Sub })
}

// Mul returns a * b.
func Mul(a, b uint32) uint32 {
	return binary("mul", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Mul })
}

// Div returns a / b.
func Div(a, b uint32) uint32 {
	return binary("div", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Div })
}

// Min returns the element-wise minimum.
func Min(a, b uint32) uint32 {
	return binary("min", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Min })
}

// Max returns the element-wise maximum.
func Max(a, b uint32) uint32 {
	return binary("max", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Max })
}

// Mod returns the element-wise remainder.
func Mod(a, b uint32) uint32 {
	return binary("mod", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Mod })
}

// Mulhi returns the high half of the integer product.
func Mulhi(a, b uint32) uint32 {
	return binary("mulhi", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Mulhi })
}

// And returns the logical AND of two masks.
func And(a, b uint32) uint32 {
	return binary("and", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.And })
}

// Or returns the logical OR of two masks.
func Or(a, b uint32) uint32 {
	return binary("or", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Or })
}

// Neg returns -x.
func Neg(x uint32) uint32 {
	return unary("neg", x, func(k *cpu.CPUBackend) unaryKernel { return k.Neg })
}

// Abs returns |x|.
func Abs(x uint32) uint32 {
	return unary("abs", x, func(k *cpu.CPUBackend) unaryKernel { return k.Abs })
}

// Sqrt returns the square root of x.
func Sqrt(x uint32) uint32 {
	return unary("sqrt", x, func(k *cpu.CPUBackend) unaryKernel { return k.Sqrt })
}

// Rcp returns 1/x.
func Rcp(x uint32) uint32 {
	return unary("rcp", x, func(k *cpu.CPUBackend) unaryKernel { return k.Rcp })
}

// Rsqrt returns 1/sqrt(x).
func Rsqrt(x uint32) uint32 {
	return unary("rsqrt", x, func(k *cpu.CPUBackend) unaryKernel { return k.Rsqrt })
}

// Cbrt returns the cube root of x.
func Cbrt(x uint32) uint32 {
	return unary("cbrt", x, func(k *cpu.CPUBackend) unaryKernel { return k.Cbrt })
}

// Not returns the logical (bool) or bitwise (integer) complement.
func Not(x uint32) uint32 {
	return unary("not", x, func(k *cpu.CPUBackend) unaryKernel { return k.Not })
}

// Sum reduces x to a width-1 variable.
func Sum(x uint32) uint32 {
	return unary("sum", x, func(k *cpu.CPUBackend) unaryKernel { return k.Sum })
}

// Fma returns a*b + c.
func Fma(a, b, c uint32) uint32 {
	return ternary("fma", a, b, c, func(k *cpu.CPUBackend) ternaryKernel { return k.Fma })
}

// Select returns t where mask is set and f elsewhere.
func Select(mask, t, f uint32) uint32 {
	return ternary("select", mask, t, f, func(k *cpu.CPUBackend) ternaryKernel { return k.Select })
}

// Eq returns the mask a == b.
func Eq(a, b uint32) uint32 {
	return binary("eq", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Eq })
}

// Neq returns the mask a != b.
func Neq(a, b uint32) uint32 {
	return binary("neq", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Neq })
}

// Lt returns the mask a < b.
func Lt(a, b uint32) uint32 {
	return binary("lt", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Lt })
}

// Le returns the mask a <= b.
func Le(a, b uint32) uint32 {
	return binary("le", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Le })
}

// Gt returns the mask a > b.
func Gt(a, b uint32) uint32 {
	return binary("gt", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Gt })
}

// Ge returns the mask a >= b.
func Ge(a, b uint32) uint32 {
	return binary("ge", a, b, func(k *cpu.CPUBackend) binaryKernel { return k.Ge })
}

// Cast converts x to dtype. With reinterpret set the bits are reused as-is,
// which requires equal element sizes.
func Cast(x uint32, dtype tensor.DataType, reinterpret bool) uint32 {
	return unary("cast", x, func(k *cpu.CPUBackend) unaryKernel {
		return func(r *tensor.RawTensor) *tensor.RawTensor { return k.Cast(r, dtype, reinterpret) }
	})
}

// Gather returns x[idx[i]] for every lane of the Uint32 variable idx.
func Gather(x, idx uint32) uint32 {
	return binary("gather", x, idx, func(k *cpu.CPUBackend) binaryKernel { return k.Gather })
}

// Scatter returns a copy of dst with dst[idx[i]] = src[i].
func Scatter(dst, src, idx uint32) uint32 {
	return ternary("scatter", dst, src, idx, func(k *cpu.CPUBackend) ternaryKernel { return k.Scatter })
}

// ScatterAdd returns a copy of dst with src[i] added at dst[idx[i]].
func ScatterAdd(dst, src, idx uint32) uint32 {
	return ternary("scatter_add", dst, src, idx, func(k *cpu.CPUBackend) ternaryKernel { return k.ScatterAdd })
}
