// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package array provides reference-counted arrays backed by the trace graph.
//
// An Array owns exactly one reference to its combined trace/AD handle.
// Ownership is explicit: release every Array obtained from a constructor or
// an operation with Free, usually via defer.
//
// Example:
//
//	x := array.FromSlice([]float32{1, 2, 3})
//	defer x.Free()
//	x.EnableGrad()
//
//	y := x.Mul(x)
//	defer y.Free()
//	y.Backward()
//
//	g := x.Grad()  // [2 4 6]
//	defer g.Free()
//
// Float arrays route every operation through the AD graph; other element
// types record trace variables only. The choice is made once per type.
package array

import (
	"github.com/born-ml/tracejit/internal/array"
	"github.com/born-ml/tracejit/tensor"
)

// Array is a one-dimensional array of T.
type Array[T tensor.DType] = array.Array[T]

// Mask is a boolean array. It never carries gradients.
type Mask = array.Mask

// Tensor is a shaped view over a flat Array.
type Tensor[T tensor.DType] = array.Tensor[T]

// FromSlice creates an array holding a copy of data.
func FromSlice[T tensor.DType](data []T) Array[T] {
	return array.FromSlice(data)
}

// Full creates an array of the given width with every element set to v.
func Full[T tensor.DType](v T, width int) Array[T] {
	return array.Full(v, width)
}

// Literal creates a width-1 array. It broadcasts against any width.
func Literal[T tensor.DType](v T) Array[T] {
	return array.Literal(v)
}

// Zeros creates an array of zeros.
func Zeros[T tensor.DType](width int) Array[T] {
	return array.Zeros[T](width)
}

// Steal wraps h, taking over the caller's reference.
func Steal[T tensor.DType](h tensor.Handle) Array[T] {
	return array.Steal[T](h)
}

// Borrow wraps h, taking a new reference.
func Borrow[T tensor.DType](h tensor.Handle) Array[T] {
	return array.Borrow[T](h)
}

// Cast converts the elements of a to To.
func Cast[To, From tensor.DType](a Array[From]) Array[To] {
	return array.Cast[To](a)
}

// Reinterpret reuses the bits of a as To.
func Reinterpret[To, From tensor.DType](a Array[From]) Array[To] {
	return array.Reinterpret[To](a)
}

// Select returns t where mask is set and f elsewhere.
func Select[T tensor.DType](mask Mask, t, f Array[T]) Array[T] {
	return array.Select(mask, t, f)
}

// Gather returns a[idx[i]] for every lane of idx.
func Gather[T tensor.DType](a Array[T], idx Array[uint32]) Array[T] {
	return array.Gather(a, idx)
}

// And returns the logical AND of two masks.
func And(a, b Mask) Mask {
	return array.And(a, b)
}

// Or returns the logical OR of two masks.
func Or(a, b Mask) Mask {
	return array.Or(a, b)
}

// NewTensor creates a tensor holding a copy of data with the given shape.
func NewTensor[T tensor.DType](data []T, shape ...int) (Tensor[T], error) {
	return array.NewTensor(data, shape...)
}

// TensorFrom wraps a, taking over its reference.
func TensorFrom[T tensor.DType](a *Array[T], shape ...int) Tensor[T] {
	return array.TensorFrom(a, shape...)
}
