package tensor

import "fmt"

// FromSlice creates a RawTensor holding a copy of data.
func FromSlice[T DType](data []T) *RawTensor {
	r, err := NewRaw(len(data), TypeOf[T]())
	if err != nil {
		panic(fmt.Sprintf("fromSlice: %v", err))
	}
	copy(Slice[T](r), data)
	return r
}

// Full creates a RawTensor of n elements all equal to value (converted to dtype).
func Full(dtype DataType, n int, value float64) (*RawTensor, error) {
	r, err := NewRaw(n, dtype)
	if err != nil {
		return nil, err
	}
	if value == 0 {
		return r, nil
	}
	switch dtype {
	case Bool:
		fill(r.AsBool(), true)
	case Uint8:
		fill(r.AsUint8(), uint8(value))
	case Int32:
		fill(r.AsInt32(), int32(value))
	case Uint32:
		fill(r.AsUint32(), uint32(value))
	case Int64:
		fill(r.AsInt64(), int64(value))
	case Uint64:
		fill(r.AsUint64(), uint64(value))
	case Float32:
		fill(r.AsFloat32(), float32(value))
	case Float64:
		fill(r.AsFloat64(), value)
	default:
		return nil, fmt.Errorf("full: unsupported dtype %s", dtype)
	}
	return r, nil
}

// Arange creates an Uint32 tensor holding 0, 1, ..., n-1.
func Arange(n int) *RawTensor {
	r, err := NewRaw(n, Uint32)
	if err != nil {
		panic(fmt.Sprintf("arange: %v", err))
	}
	data := r.AsUint32()
	for i := range data {
		data[i] = uint32(i)
	}
	return r
}

func fill[T DType](dst []T, v T) {
	for i := range dst {
		dst[i] = v
	}
}
