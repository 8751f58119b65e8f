package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// tensorBuffer is a reference-counted shared buffer for Copy-on-Write semantics.
type tensorBuffer struct {
	data     []byte
	refCount atomic.Int32
	mu       sync.Mutex // For safe deallocation
}

// newTensorBuffer creates a new reference-counted buffer with refCount = 1.
func newTensorBuffer(size int) *tensorBuffer {
	buf := &tensorBuffer{
		data: make([]byte, size),
	}
	buf.refCount.Store(1)
	return buf
}

func (tb *tensorBuffer) addRef() {
	tb.refCount.Add(1)
}

// release decrements the reference count and deallocates if it reaches 0.
func (tb *tensorBuffer) release() {
	if tb.refCount.Add(-1) == 0 {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		tb.data = nil
	}
}

func (tb *tensorBuffer) isUnique() bool {
	return tb.refCount.Load() == 1
}

// RawTensor is the flat storage of one trace variable: a dense 1-D buffer
// of Len() elements of DType().
type RawTensor struct {
	buffer *tensorBuffer
	length int
	dtype  DataType
}

// NewRaw allocates a zero-initialized RawTensor with n elements.
func NewRaw(n int, dtype DataType) (*RawTensor, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid length %d", n)
	}
	return &RawTensor{
		buffer: newTensorBuffer(n * dtype.Size()),
		length: n,
		dtype:  dtype,
	}, nil
}

// Len returns the number of elements.
func (r *RawTensor) Len() int {
	return r.length
}

// DType returns the element type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.length * r.dtype.Size()
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.buffer.data[:r.ByteSize()]
}

// Slice interprets the buffer as []T. Panics if T does not match DType().
func Slice[T DType](r *RawTensor) []T {
	if want := TypeOf[T](); r.dtype != want {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, want))
	}
	if r.length == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by length
	return unsafe.Slice((*T)(unsafe.Pointer(&r.buffer.data[0])), r.length)
}

// AsFloat32 interprets the data as []float32.
func (r *RawTensor) AsFloat32() []float32 { return Slice[float32](r) }

// AsFloat64 interprets the data as []float64.
func (r *RawTensor) AsFloat64() []float64 { return Slice[float64](r) }

// AsInt32 interprets the data as []int32.
func (r *RawTensor) AsInt32() []int32 { return Slice[int32](r) }

// AsUint32 interprets the data as []uint32.
func (r *RawTensor) AsUint32() []uint32 { return Slice[uint32](r) }

// AsInt64 interprets the data as []int64.
func (r *RawTensor) AsInt64() []int64 { return Slice[int64](r) }

// AsUint64 interprets the data as []uint64.
func (r *RawTensor) AsUint64() []uint64 { return Slice[uint64](r) }

// AsUint8 interprets the data as []uint8.
func (r *RawTensor) AsUint8() []uint8 { return Slice[uint8](r) }

// AsBool interprets the data as []bool.
func (r *RawTensor) AsBool() []bool { return Slice[bool](r) }

// Clone creates a shallow copy sharing the buffer (copy-on-write).
func (r *RawTensor) Clone() *RawTensor {
	r.buffer.addRef()
	return &RawTensor{
		buffer: r.buffer,
		length: r.length,
		dtype:  r.dtype,
	}
}

// Copy returns a deep copy with its own buffer.
func (r *RawTensor) Copy() *RawTensor {
	out := &RawTensor{
		buffer: newTensorBuffer(r.ByteSize()),
		length: r.length,
		dtype:  r.dtype,
	}
	copy(out.buffer.data, r.Data())
	return out
}

// Release decrements the reference count and deallocates if it reaches 0.
func (r *RawTensor) Release() {
	r.buffer.release()
}

// IsUnique returns true if this tensor is the only reference to the buffer.
func (r *RawTensor) IsUnique() bool {
	return r.buffer.isUnique()
}

// ToSlice copies the contents into a new []T.
func ToSlice[T DType](r *RawTensor) []T {
	src := Slice[T](r)
	out := make([]T, len(src))
	copy(out, src)
	return out
}
