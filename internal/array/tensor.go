package array

import (
	"fmt"

	"github.com/born-ml/tracejit/internal/tensor"
)

// Tensor is a shaped view over a flat Array. Elements are stored in
// row-major order; the shape is host data and never traced.
type Tensor[T tensor.DType] struct {
	shape []int
	array Array[T]
}

// NewTensor creates a tensor holding a copy of data with the given shape.
func NewTensor[T tensor.DType](data []T, shape ...int) (Tensor[T], error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return Tensor[T]{}, fmt.Errorf("new tensor: negative dimension in %v", shape)
		}
		n *= d
	}
	if n != len(data) {
		return Tensor[T]{}, fmt.Errorf("new tensor: shape %v needs %d elements, got %d", shape, n, len(data))
	}
	return Tensor[T]{shape: append([]int(nil), shape...), array: FromSlice(data)}, nil
}

// TensorFrom wraps a, taking over its reference.
func TensorFrom[T tensor.DType](a *Array[T], shape ...int) Tensor[T] {
	return Tensor[T]{shape: append([]int(nil), shape...), array: a.Move()}
}

// Shape returns the dimensions.
func (t Tensor[T]) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Array returns the underlying array. The reference stays with t.
func (t Tensor[T]) Array() Array[T] {
	return t.array
}

// Data returns a copy of the elements in row-major order.
func (t Tensor[T]) Data() []T {
	return t.array.Data()
}

// Free releases the underlying array.
func (t *Tensor[T]) Free() {
	t.array.Free()
}

// TraverseFields exposes the underlying array to index traversal.
func (t *Tensor[T]) TraverseFields() []any {
	return []any{&t.array}
}
