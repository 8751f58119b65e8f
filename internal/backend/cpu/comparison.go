package cpu

import (
	"cmp"
	"fmt"

	"github.com/born-ml/tracejit/internal/parallel"
	"github.com/born-ml/tracejit/internal/tensor"
)

// Comparison operations - return bool tensors.

type compareOp int

const (
	opEq compareOp = iota
	opNeq
	opLt
	opLe
	opGt
	opGe
)

func (op compareOp) String() string {
	return [...]string{"eq", "neq", "lt", "le", "gt", "ge"}[op]
}

// Eq returns a == b element-wise.
func (cpu *CPUBackend) Eq(a, b *tensor.RawTensor) *tensor.RawTensor { return cpu.compare(opEq, a, b) }

// Neq returns a != b element-wise.
func (cpu *CPUBackend) Neq(a, b *tensor.RawTensor) *tensor.RawTensor { return cpu.compare(opNeq, a, b) }

// Lt returns a < b element-wise.
func (cpu *CPUBackend) Lt(a, b *tensor.RawTensor) *tensor.RawTensor { return cpu.compare(opLt, a, b) }

// Le returns a <= b element-wise.
func (cpu *CPUBackend) Le(a, b *tensor.RawTensor) *tensor.RawTensor { return cpu.compare(opLe, a, b) }

// Gt returns a > b element-wise.
func (cpu *CPUBackend) Gt(a, b *tensor.RawTensor) *tensor.RawTensor { return cpu.compare(opGt, a, b) }

// Ge returns a >= b element-wise.
func (cpu *CPUBackend) Ge(a, b *tensor.RawTensor) *tensor.RawTensor { return cpu.compare(opGe, a, b) }

func (cpu *CPUBackend) compare(op compareOp, a, b *tensor.RawTensor) *tensor.RawTensor {
	name := op.String()
	checkSameType(name, a, b)
	n := broadcastLen(name, a.Len(), b.Len())
	result := cpu.alloc(name, n, tensor.Bool)

	switch a.DType() {
	case tensor.Bool:
		switch op {
		case opEq:
			runCompare(cpu.cfg, result, a, b, func(x, y bool) bool { return x == y })
		case opNeq:
			runCompare(cpu.cfg, result, a, b, func(x, y bool) bool { return x != y })
		default:
			panic(fmt.Sprintf("%s: unsupported dtype bool", name))
		}
	case tensor.Float32:
		runCompare(cpu.cfg, result, a, b, compareFunc[float32](op))
	case tensor.Float64:
		runCompare(cpu.cfg, result, a, b, compareFunc[float64](op))
	case tensor.Int32:
		runCompare(cpu.cfg, result, a, b, compareFunc[int32](op))
	case tensor.Uint32:
		runCompare(cpu.cfg, result, a, b, compareFunc[uint32](op))
	case tensor.Int64:
		runCompare(cpu.cfg, result, a, b, compareFunc[int64](op))
	case tensor.Uint64:
		runCompare(cpu.cfg, result, a, b, compareFunc[uint64](op))
	case tensor.Uint8:
		runCompare(cpu.cfg, result, a, b, compareFunc[uint8](op))
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
	return result
}

func runCompare[T tensor.DType](cfg parallel.Config, out, a, b *tensor.RawTensor, f func(x, y T) bool) {
	dst, x, y := out.AsBool(), tensor.Slice[T](a), tensor.Slice[T](b)
	sx, sy := stride(len(x)), stride(len(y))
	parallel.For(len(dst), func(i int) {
		dst[i] = f(x[i*sx], y[i*sy])
	}, cfg)
}

func compareFunc[T cmp.Ordered](op compareOp) func(x, y T) bool {
	switch op {
	case opEq:
		return func(x, y T) bool { return x == y }
	case opNeq:
		return func(x, y T) bool { return x != y }
	case opLt:
		return func(x, y T) bool { return x < y }
	case opLe:
		return func(x, y T) bool { return x <= y }
	case opGt:
		return func(x, y T) bool { return x > y }
	case opGe:
		return func(x, y T) bool { return x >= y }
	default:
		panic(fmt.Sprintf("unknown comparison %d", int(op)))
	}
}
