package array

import (
	"github.com/born-ml/tracejit/internal/ad"
	"github.com/born-ml/tracejit/internal/index"
	"github.com/born-ml/tracejit/internal/jit"
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
	opNot
)

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

var (
	traceUnary = [...]func(uint32) uint32{
		opNeg:   jit.Neg,
		opAbs:   jit.Abs,
		opSqrt:  jit.Sqrt,
		opRcp:   jit.Rcp,
		opRsqrt: jit.Rsqrt,
		opCbrt:  jit.Cbrt,
		opNot:   jit.Not,
	}
	traceBinary = [...]func(a, b uint32) uint32{
		opAdd:   jit.Add,
		opSub:   jit.Sub,
		opMul:   jit.Mul,
		opDiv:   jit.Div,
		opMin:   jit.Min,
		opMax:   jit.Max,
		opMod:   jit.Mod,
		opMulhi: jit.Mulhi,
	}

	// Entries left nil have no derivative and fall back to the trace kernels.
	diffUnary = [...]func(index.Handle) index.Handle{
		opNeg:   ad.Neg,
		opAbs:   ad.Abs,
		opSqrt:  ad.Sqrt,
		opRcp:   ad.Rcp,
		opRsqrt: ad.Rsqrt,
		opCbrt:  ad.Cbrt,
		opNot:   nil,
	}
	diffBinary = [...]func(a, b index.Handle) index.Handle{
		opAdd:   ad.Add,
		opSub:   ad.Sub,
		opMul:   ad.Mul,
		opDiv:   ad.Div,
		opMin:   ad.Min,
		opMax:   ad.Max,
		opMod:   nil,
		opMulhi: nil,
	}
)

// kernels is the reference-counting and arithmetic capability of an array
// type. It is chosen once per element type: float arrays use the AD-aware
// implementation, all others the trace-only one.
type kernels interface {
	incRef(h index.Handle)
	decRef(h index.Handle)
	unary(op unaryOp, x index.Handle) index.Handle
	binary(op binaryOp, a, b index.Handle) index.Handle
	fma(a, b, c index.Handle) index.Handle
	selectOp(mask uint32, t, f index.Handle) index.Handle
	cast(x index.Handle, dtype tensor.DataType, reinterpret bool) index.Handle
	gather(x index.Handle, idx uint32) index.Handle
	diff() bool
}

// traceKernels touches only the trace half of a handle.
type traceKernels struct{}

func (traceKernels) incRef(h index.Handle) { jit.IncRef(h.Trace()) }
func (traceKernels) decRef(h index.Handle) { jit.DecRef(h.Trace()) }
func (traceKernels) diff() bool            { return false }

func (traceKernels) unary(op unaryOp, x index.Handle) index.Handle {
	return index.FromTrace(traceUnary[op](x.Trace()))
}

func (traceKernels) binary(op binaryOp, a, b index.Handle) index.Handle {
	return index.FromTrace(traceBinary[op](a.Trace(), b.Trace()))
}

func (traceKernels) fma(a, b, c index.Handle) index.Handle {
	return index.FromTrace(jit.Fma(a.Trace(), b.Trace(), c.Trace()))
}

func (traceKernels) selectOp(mask uint32, t, f index.Handle) index.Handle {
	return index.FromTrace(jit.Select(mask, t.Trace(), f.Trace()))
}

func (traceKernels) cast(x index.Handle, dtype tensor.DataType, reinterpret bool) index.Handle {
	return index.FromTrace(jit.Cast(x.Trace(), dtype, reinterpret))
}

func (traceKernels) gather(x index.Handle, idx uint32) index.Handle {
	return index.FromTrace(jit.Gather(x.Trace(), idx))
}

// diffKernels maintains both halves and records AD nodes.
type diffKernels struct{ traceKernels }

func (diffKernels) incRef(h index.Handle) { ad.IncRef(h) }
func (diffKernels) decRef(h index.Handle) { ad.DecRef(h) }
func (diffKernels) diff() bool            { return true }

func (k diffKernels) unary(op unaryOp, x index.Handle) index.Handle {
	if f := diffUnary[op]; f != nil {
		return f(x)
	}
	return k.traceKernels.unary(op, x)
}

func (k diffKernels) binary(op binaryOp, a, b index.Handle) index.Handle {
	if f := diffBinary[op]; f != nil {
		return f(a, b)
	}
	return k.traceKernels.binary(op, a, b)
}

func (diffKernels) fma(a, b, c index.Handle) index.Handle { return ad.Fma(a, b, c) }

func (diffKernels) selectOp(mask uint32, t, f index.Handle) index.Handle {
	return ad.Select(mask, t, f)
}

func (diffKernels) cast(x index.Handle, dtype tensor.DataType, reinterpret bool) index.Handle {
	return ad.Cast(x, dtype, reinterpret)
}

func (diffKernels) gather(x index.Handle, idx uint32) index.Handle { return ad.Gather(x, idx) }

func kernelsFor[T tensor.DType]() kernels {
	if tensor.TypeOf[T]().IsFloat() {
		return diffKernels{}
	}
	return traceKernels{}
}
