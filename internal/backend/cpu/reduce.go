package cpu

import (
	"fmt"

	"github.com/born-ml/tracejit/internal/tensor"
)

// Sum reduces x to a width-1 tensor holding the sum of all elements.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := cpu.alloc("sum", 1, x.DType())

	switch x.DType() {
	case tensor.Float32:
		sumInto[float32](result, x)
	case tensor.Float64:
		sumInto[float64](result, x)
	case tensor.Int32:
		sumInto[int32](result, x)
	case tensor.Uint32:
		sumInto[uint32](result, x)
	case tensor.Int64:
		sumInto[int64](result, x)
	case tensor.Uint64:
		sumInto[uint64](result, x)
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}
	return result
}

func sumInto[T number](out, x *tensor.RawTensor) {
	var acc T
	for _, v := range tensor.Slice[T](x) {
		acc += v
	}
	tensor.Slice[T](out)[0] = acc
}
