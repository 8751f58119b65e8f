package cpu

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/born-ml/tracejit/internal/parallel"
	"github.com/born-ml/tracejit/internal/tensor"
)

type number interface {
	~uint8 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

type integer interface {
	~uint8 | ~int32 | ~uint32 | ~int64 | ~uint64
}

type binaryOp int

const (
	opAdd binaryOp = iota
	opSub
	opMul
	opDiv
	opMin
	opMax
	opMod
	opMulhi
)

func (op binaryOp) String() string {
	return [...]string{"add", "sub", "mul", "div", "min", "max", "mod", "mulhi"}[op]
}

// Add performs element-wise addition.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(opAdd, a, b)
}

// Sub performs element-wise subtraction.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(opSub, a, b)
}

// Mul performs element-wise multiplication.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(opMul, a, b)
}

// Div performs element-wise division. Integer division truncates.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(opDiv, a, b)
}

// Min returns the element-wise minimum.
func (cpu *CPUBackend) Min(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(opMin, a, b)
}

// Max returns the element-wise maximum.
func (cpu *CPUBackend) Max(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(opMax, a, b)
}

// Mod returns the element-wise remainder (math.Mod semantics for floats).
func (cpu *CPUBackend) Mod(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(opMod, a, b)
}

// Mulhi returns the high half of the full-width integer product.
func (cpu *CPUBackend) Mulhi(a, b *tensor.RawTensor) *tensor.RawTensor {
	if !a.DType().IsInteger() {
		panic(fmt.Sprintf("mulhi: unsupported dtype %s (integer types only)", a.DType()))
	}
	return cpu.binary(opMulhi, a, b)
}

func (cpu *CPUBackend) binary(op binaryOp, a, b *tensor.RawTensor) *tensor.RawTensor {
	name := op.String()
	checkSameType(name, a, b)
	n := broadcastLen(name, a.Len(), b.Len())
	result := cpu.alloc(name, n, a.DType())

	switch a.DType() {
	case tensor.Float32:
		runBinary(cpu.cfg, result, a, b, binaryFunc[float32](op))
	case tensor.Float64:
		runBinary(cpu.cfg, result, a, b, binaryFunc[float64](op))
	case tensor.Int32:
		runBinary(cpu.cfg, result, a, b, binaryFunc[int32](op))
	case tensor.Uint32:
		runBinary(cpu.cfg, result, a, b, binaryFunc[uint32](op))
	case tensor.Int64:
		runBinary(cpu.cfg, result, a, b, binaryFunc[int64](op))
	case tensor.Uint64:
		runBinary(cpu.cfg, result, a, b, binaryFunc[uint64](op))
	case tensor.Uint8:
		runBinary(cpu.cfg, result, a, b, binaryFunc[uint8](op))
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
	return result
}

func runBinary[T tensor.DType](cfg parallel.Config, out, a, b *tensor.RawTensor, f func(x, y T) T) {
	dst, x, y := tensor.Slice[T](out), tensor.Slice[T](a), tensor.Slice[T](b)
	sx, sy := stride(len(x)), stride(len(y))
	parallel.For(len(dst), func(i int) {
		dst[i] = f(x[i*sx], y[i*sy])
	}, cfg)
}

func binaryFunc[T number](op binaryOp) func(x, y T) T {
	switch op {
	case opAdd:
		return func(x, y T) T { return x + y }
	case opSub:
		return func(x, y T) T { return x - y }
	case opMul:
		return func(x, y T) T { return x * y }
	case opDiv:
		return func(x, y T) T { return x / y }
	case opMin:
		return func(x, y T) T { return min(x, y) }
	case opMax:
		return func(x, y T) T { return max(x, y) }
	case opMod:
		return modFunc[T]()
	case opMulhi:
		return mulhiFunc[T]()
	default:
		panic(fmt.Sprintf("unknown binary op %d", int(op)))
	}
}

func modFunc[T number]() func(x, y T) T {
	var zero T
	var f any
	switch any(zero).(type) {
	case float32:
		f = func(x, y float32) float32 { return float32(math.Mod(float64(x), float64(y))) }
	case float64:
		f = math.Mod
	case uint8:
		f = intMod[uint8]
	case int32:
		f = intMod[int32]
	case uint32:
		f = intMod[uint32]
	case int64:
		f = intMod[int64]
	case uint64:
		f = intMod[uint64]
	}
	return f.(func(x, y T) T)
}

func intMod[T integer](x, y T) T {
	return x % y
}

func mulhiFunc[T number]() func(x, y T) T {
	var zero T
	var f any
	switch any(zero).(type) {
	case uint8:
		f = func(x, y uint8) uint8 { return uint8((uint16(x) * uint16(y)) >> 8) }
	case int32:
		f = func(x, y int32) int32 { return int32((int64(x) * int64(y)) >> 32) }
	case uint32:
		f = func(x, y uint32) uint32 { return uint32((uint64(x) * uint64(y)) >> 32) }
	case uint64:
		f = func(x, y uint64) uint64 {
			hi, _ := bits.Mul64(x, y)
			return hi
		}
	case int64:
		f = func(x, y int64) int64 {
			hi, _ := bits.Mul64(uint64(x), uint64(y))
			if x < 0 {
				hi -= uint64(y)
			}
			if y < 0 {
				hi -= uint64(x)
			}
			return int64(hi)
		}
	default:
		panic(fmt.Sprintf("mulhi: unsupported type %T", zero))
	}
	return f.(func(x, y T) T)
}

// Fma computes a*b + c element-wise.
func (cpu *CPUBackend) Fma(a, b, c *tensor.RawTensor) *tensor.RawTensor {
	checkSameType("fma", a, b)
	checkSameType("fma", a, c)
	n := broadcastLen("fma", a.Len(), b.Len(), c.Len())
	result := cpu.alloc("fma", n, a.DType())

	switch a.DType() {
	case tensor.Float32:
		runFma[float32](cpu.cfg, result, a, b, c)
	case tensor.Float64:
		runFma[float64](cpu.cfg, result, a, b, c)
	case tensor.Int32:
		runFma[int32](cpu.cfg, result, a, b, c)
	case tensor.Uint32:
		runFma[uint32](cpu.cfg, result, a, b, c)
	case tensor.Int64:
		runFma[int64](cpu.cfg, result, a, b, c)
	case tensor.Uint64:
		runFma[uint64](cpu.cfg, result, a, b, c)
	default:
		panic(fmt.Sprintf("fma: unsupported dtype %s", a.DType()))
	}
	return result
}

func runFma[T number](cfg parallel.Config, out, a, b, c *tensor.RawTensor) {
	dst := tensor.Slice[T](out)
	x, y, z := tensor.Slice[T](a), tensor.Slice[T](b), tensor.Slice[T](c)
	sx, sy, sz := stride(len(x)), stride(len(y)), stride(len(z))
	parallel.For(len(dst), func(i int) {
		dst[i] = x[i*sx]*y[i*sy] + z[i*sz]
	}, cfg)
}
