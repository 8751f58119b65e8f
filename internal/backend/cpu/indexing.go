package cpu

import (
	"fmt"

	"github.com/born-ml/tracejit/internal/parallel"
	"github.com/born-ml/tracejit/internal/tensor"
)

// Select returns t where mask is true and f elsewhere.
// The selection is dtype-agnostic and works on element bytes.
func (cpu *CPUBackend) Select(mask, t, f *tensor.RawTensor) *tensor.RawTensor {
	if mask.DType() != tensor.Bool {
		panic(fmt.Sprintf("select: mask must be bool, got %s", mask.DType()))
	}
	checkSameType("select", t, f)
	n := broadcastLen("select", mask.Len(), t.Len(), f.Len())
	result := cpu.alloc("select", n, t.DType())

	size := t.DType().Size()
	m, dst, td, fd := mask.AsBool(), result.Data(), t.Data(), f.Data()
	sm, st, sf := stride(len(m)), stride(t.Len()), stride(f.Len())
	parallel.For(n, func(i int) {
		src, j := fd, i*sf
		if m[i*sm] {
			src, j = td, i*st
		}
		copy(dst[i*size:(i+1)*size], src[j*size:(j+1)*size])
	}, cpu.cfg)
	return result
}

// Gather returns x[idx[i]] for every i. idx must be Uint32.
func (cpu *CPUBackend) Gather(x, idx *tensor.RawTensor) *tensor.RawTensor {
	if idx.DType() != tensor.Uint32 {
		panic(fmt.Sprintf("gather: index must be uint32, got %s", idx.DType()))
	}
	result := cpu.alloc("gather", idx.Len(), x.DType())

	size := x.DType().Size()
	lanes, dst, src := idx.AsUint32(), result.Data(), x.Data()
	for i, j := range lanes {
		if int(j) >= x.Len() {
			panic(fmt.Sprintf("gather: index %d out of range [0, %d)", j, x.Len()))
		}
		copy(dst[i*size:(i+1)*size], src[int(j)*size:(int(j)+1)*size])
	}
	return result
}

// Scatter returns a copy of dst with dst[idx[i]] = src[i]. A width-1 src
// is broadcast to every index.
func (cpu *CPUBackend) Scatter(dst, src, idx *tensor.RawTensor) *tensor.RawTensor {
	checkSameType("scatter", dst, src)
	checkScatterArgs("scatter", dst, src, idx)
	result := dst.Copy()

	size := dst.DType().Size()
	out, in, ss := result.Data(), src.Data(), stride(src.Len())
	for i, j := range idx.AsUint32() {
		k := i * ss
		copy(out[int(j)*size:(int(j)+1)*size], in[k*size:(k+1)*size])
	}
	return result
}

// ScatterAdd returns a copy of dst with src[i] accumulated into dst[idx[i]].
func (cpu *CPUBackend) ScatterAdd(dst, src, idx *tensor.RawTensor) *tensor.RawTensor {
	checkSameType("scatterAdd", dst, src)
	checkScatterArgs("scatterAdd", dst, src, idx)
	result := dst.Copy()

	switch dst.DType() {
	case tensor.Float32:
		scatterAdd[float32](result, src, idx)
	case tensor.Float64:
		scatterAdd[float64](result, src, idx)
	case tensor.Int32:
		scatterAdd[int32](result, src, idx)
	case tensor.Uint32:
		scatterAdd[uint32](result, src, idx)
	case tensor.Int64:
		scatterAdd[int64](result, src, idx)
	case tensor.Uint64:
		scatterAdd[uint64](result, src, idx)
	default:
		panic(fmt.Sprintf("scatterAdd: unsupported dtype %s", dst.DType()))
	}
	return result
}

func scatterAdd[T number](out, src, idx *tensor.RawTensor) {
	dst, in := tensor.Slice[T](out), tensor.Slice[T](src)
	ss := stride(len(in))
	for i, j := range idx.AsUint32() {
		dst[j] += in[i*ss]
	}
}

func checkScatterArgs(op string, dst, src, idx *tensor.RawTensor) {
	if idx.DType() != tensor.Uint32 {
		panic(fmt.Sprintf("%s: index must be uint32, got %s", op, idx.DType()))
	}
	if src.Len() != 1 && src.Len() != idx.Len() {
		panic(fmt.Sprintf("%s: width mismatch %d vs %d", op, src.Len(), idx.Len()))
	}
	for _, j := range idx.AsUint32() {
		if int(j) >= dst.Len() {
			panic(fmt.Sprintf("%s: index %d out of range [0, %d)", op, j, dst.Len()))
		}
	}
}
