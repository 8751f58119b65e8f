package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/tracejit/internal/parallel"
	"github.com/born-ml/tracejit/internal/tensor"
)

type unaryOp int

const (
	opNeg unaryOp = iota
	opAbs
	opSqrt
	opRcp
	opRsqrt
	opCbrt
)

func (op unaryOp) String() string {
	return [...]string{"neg", "abs", "sqrt", "rcp", "rsqrt", "cbrt"}[op]
}

func (op unaryOp) floatOnly() bool {
	return op >= opSqrt
}

// Neg computes -x.
func (cpu *CPUBackend) Neg(x *tensor.RawTensor) *tensor.RawTensor { return cpu.unary(opNeg, x) }

// Abs computes |x|.
func (cpu *CPUBackend) Abs(x *tensor.RawTensor) *tensor.RawTensor { return cpu.unary(opAbs, x) }

// Sqrt computes the element-wise square root.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor { return cpu.unary(opSqrt, x) }

// Rcp computes the reciprocal 1/x.
func (cpu *CPUBackend) Rcp(x *tensor.RawTensor) *tensor.RawTensor { return cpu.unary(opRcp, x) }

// Rsqrt computes the reciprocal square root 1/sqrt(x).
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor { return cpu.unary(opRsqrt, x) }

// Cbrt computes the cube root.
func (cpu *CPUBackend) Cbrt(x *tensor.RawTensor) *tensor.RawTensor { return cpu.unary(opCbrt, x) }

func (cpu *CPUBackend) unary(op unaryOp, x *tensor.RawTensor) *tensor.RawTensor {
	name := op.String()
	if op.floatOnly() && !x.DType().IsFloat() {
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", name, x.DType()))
	}
	result := cpu.alloc(name, x.Len(), x.DType())

	switch x.DType() {
	case tensor.Float32:
		runUnary(cpu.cfg, result, x, floatUnary[float32](op))
	case tensor.Float64:
		runUnary(cpu.cfg, result, x, floatUnary[float64](op))
	case tensor.Int32:
		runUnary(cpu.cfg, result, x, intUnary[int32](op))
	case tensor.Uint32:
		runUnary(cpu.cfg, result, x, intUnary[uint32](op))
	case tensor.Int64:
		runUnary(cpu.cfg, result, x, intUnary[int64](op))
	case tensor.Uint64:
		runUnary(cpu.cfg, result, x, intUnary[uint64](op))
	case tensor.Uint8:
		runUnary(cpu.cfg, result, x, intUnary[uint8](op))
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}
	return result
}

func runUnary[T tensor.DType](cfg parallel.Config, out, x *tensor.RawTensor, f func(v T) T) {
	dst, src := tensor.Slice[T](out), tensor.Slice[T](x)
	parallel.For(len(dst), func(i int) {
		dst[i] = f(src[i])
	}, cfg)
}

func floatUnary[T tensor.Float](op unaryOp) func(v T) T {
	switch op {
	case opNeg:
		return func(v T) T { return -v }
	case opAbs:
		return func(v T) T { return T(math.Abs(float64(v))) }
	case opSqrt:
		return func(v T) T { return T(math.Sqrt(float64(v))) }
	case opRcp:
		return func(v T) T { return 1 / v }
	case opRsqrt:
		return func(v T) T { return T(1 / math.Sqrt(float64(v))) }
	case opCbrt:
		return func(v T) T { return T(math.Cbrt(float64(v))) }
	default:
		panic(fmt.Sprintf("unknown unary op %d", int(op)))
	}
}

func intUnary[T integer](op unaryOp) func(v T) T {
	switch op {
	case opNeg:
		return func(v T) T { return -v }
	case opAbs:
		return func(v T) T {
			if v < 0 {
				return -v
			}
			return v
		}
	default:
		panic(fmt.Sprintf("%s: unsupported for integer types", op))
	}
}

// Not computes logical NOT for Bool tensors and bitwise complement for integers.
func (cpu *CPUBackend) Not(x *tensor.RawTensor) *tensor.RawTensor {
	result := cpu.alloc("not", x.Len(), x.DType())

	switch x.DType() {
	case tensor.Bool:
		runUnary(cpu.cfg, result, x, func(v bool) bool { return !v })
	case tensor.Uint8:
		runUnary(cpu.cfg, result, x, complement[uint8])
	case tensor.Int32:
		runUnary(cpu.cfg, result, x, complement[int32])
	case tensor.Uint32:
		runUnary(cpu.cfg, result, x, complement[uint32])
	case tensor.Int64:
		runUnary(cpu.cfg, result, x, complement[int64])
	case tensor.Uint64:
		runUnary(cpu.cfg, result, x, complement[uint64])
	default:
		panic(fmt.Sprintf("not: unsupported dtype %s (bool/integer types only)", x.DType()))
	}
	return result
}

func complement[T integer](v T) T {
	return ^v
}

// And computes logical AND of two Bool tensors.
func (cpu *CPUBackend) And(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.logical("and", a, b, func(x, y bool) bool { return x && y })
}

// Or computes logical OR of two Bool tensors.
func (cpu *CPUBackend) Or(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.logical("or", a, b, func(x, y bool) bool { return x || y })
}

func (cpu *CPUBackend) logical(name string, a, b *tensor.RawTensor, f func(x, y bool) bool) *tensor.RawTensor {
	if a.DType() != tensor.Bool || b.DType() != tensor.Bool {
		panic(fmt.Sprintf("%s: both inputs must be bool, got %s and %s", name, a.DType(), b.DType()))
	}
	n := broadcastLen(name, a.Len(), b.Len())
	result := cpu.alloc(name, n, tensor.Bool)
	runBinary(cpu.cfg, result, a, b, f)
	return result
}
