// Package cpu implements the element-wise kernels that evaluate trace variables on the host.
package cpu

import (
	"fmt"
	"strings"

	xcpu "golang.org/x/sys/cpu"

	"github.com/born-ml/tracejit/internal/parallel"
	"github.com/born-ml/tracejit/internal/tensor"
)

// CPUBackend evaluates element-wise kernels over flat RawTensors.
// Operands of width 1 broadcast against wider operands.
type CPUBackend struct {
	cfg      parallel.Config
	features []string
}

// New creates a new CPU backend with default parallelism.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend using the given parallel configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		cfg:      cfg,
		features: detectFeatures(),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	if len(cpu.features) == 0 {
		return "CPU"
	}
	return "CPU(" + strings.Join(cpu.features, ",") + ")"
}

// Features returns the SIMD extensions reported by the host.
func (cpu *CPUBackend) Features() []string {
	return append([]string(nil), cpu.features...)
}

// Parallel returns the parallel configuration used by the kernels.
func (cpu *CPUBackend) Parallel() parallel.Config {
	return cpu.cfg
}

func detectFeatures() []string {
	var out []string
	if xcpu.X86.HasAVX2 {
		out = append(out, "avx2")
	}
	if xcpu.X86.HasAVX512F {
		out = append(out, "avx512f")
	}
	if xcpu.X86.HasFMA {
		out = append(out, "fma")
	}
	if xcpu.ARM64.HasASIMD {
		out = append(out, "asimd")
	}
	if xcpu.ARM64.HasSVE {
		out = append(out, "sve")
	}
	return out
}

// broadcastLen returns the output width for operands of widths a and b.
func broadcastLen(op string, widths ...int) int {
	n := 1
	for _, w := range widths {
		switch {
		case w == n || w == 1:
		case n == 1:
			n = w
		default:
			panic(fmt.Sprintf("%s: width mismatch %d vs %d", op, n, w))
		}
	}
	return n
}

// stride is 0 for broadcast operands so that x[i*stride] always reads element 0.
func stride(n int) int {
	if n == 1 {
		return 0
	}
	return 1
}

func (cpu *CPUBackend) alloc(op string, n int, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(n, dtype)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}

func checkSameType(op string, a, b *tensor.RawTensor) {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}
}
