package cpu

import (
	"fmt"

	"github.com/born-ml/tracejit/internal/tensor"
)

// Cast converts x to dtype. With reinterpret set, the bits are copied
// unchanged, which requires equal element sizes.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType, reinterpret bool) *tensor.RawTensor {
	if reinterpret {
		if x.DType().Size() != dtype.Size() {
			panic(fmt.Sprintf("cast: cannot reinterpret %s as %s (size %d vs %d)",
				x.DType(), dtype, x.DType().Size(), dtype.Size()))
		}
		result := cpu.alloc("cast", x.Len(), dtype)
		copy(result.Data(), x.Data())
		return result
	}

	result := cpu.alloc("cast", x.Len(), dtype)
	if x.DType() == dtype {
		copy(result.Data(), x.Data())
		return result
	}

	switch x.DType() {
	case tensor.Bool:
		src := x.AsBool()
		tmp := make([]uint8, len(src))
		for i, v := range src {
			if v {
				tmp[i] = 1
			}
		}
		convertFrom(tmp, result)
	case tensor.Uint8:
		convertFrom(x.AsUint8(), result)
	case tensor.Int32:
		convertFrom(x.AsInt32(), result)
	case tensor.Uint32:
		convertFrom(x.AsUint32(), result)
	case tensor.Int64:
		convertFrom(x.AsInt64(), result)
	case tensor.Uint64:
		convertFrom(x.AsUint64(), result)
	case tensor.Float32:
		convertFrom(x.AsFloat32(), result)
	case tensor.Float64:
		convertFrom(x.AsFloat64(), result)
	default:
		panic(fmt.Sprintf("cast: unsupported source dtype %s", x.DType()))
	}
	return result
}

func convertFrom[S number](src []S, out *tensor.RawTensor) {
	switch out.DType() {
	case tensor.Bool:
		dst := out.AsBool()
		for i, v := range src {
			dst[i] = v != 0
		}
	case tensor.Uint8:
		convertInto(out.AsUint8(), src)
	case tensor.Int32:
		convertInto(out.AsInt32(), src)
	case tensor.Uint32:
		convertInto(out.AsUint32(), src)
	case tensor.Int64:
		convertInto(out.AsInt64(), src)
	case tensor.Uint64:
		convertInto(out.AsUint64(), src)
	case tensor.Float32:
		convertInto(out.AsFloat32(), src)
	case tensor.Float64:
		convertInto(out.AsFloat64(), src)
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %s", out.DType()))
	}
}

func convertInto[D, S number](dst []D, src []S) {
	for i, v := range src {
		dst[i] = D(v)
	}
}
