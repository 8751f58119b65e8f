// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the element types and backend identifiers shared
// by the tracejit packages.
//
// Example:
//
//	dt := tensor.TypeOf[float32]()  // tensor.Float32
//	dt.IsFloat()                    // true: arrays of dt can carry gradients
//	b, _ := tensor.ParseBackend("cuda")
package tensor

import (
	"github.com/born-ml/tracejit/internal/index"
	"github.com/born-ml/tracejit/internal/tensor"
)

// DType is a constraint for array element types.
// Supported types: bool, uint8, int32, uint32, int64, uint64, float32, float64.
type DType = tensor.DType

// Float is the subset of DType that participates in differentiation.
type Float = tensor.Float

// DataType represents the element type of a variable at runtime.
type DataType = tensor.DataType

// Data type constants.
const (
	Bool    DataType = tensor.Bool
	Uint8   DataType = tensor.Uint8
	Int32   DataType = tensor.Int32
	Uint32  DataType = tensor.Uint32
	Int64   DataType = tensor.Int64
	Uint64  DataType = tensor.Uint64
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Backend identifies the JIT backend variables are recorded on.
type Backend = tensor.Backend

// Backend constants.
const (
	LLVM Backend = tensor.LLVM
	CUDA Backend = tensor.CUDA
)

// Handle is the combined 64-bit index of a value: the trace-variable id in
// the lower 32 bits and the AD-node id in the upper 32 bits.
type Handle = index.Handle

// TypeOf returns the DataType for the Go type T.
func TypeOf[T DType]() DataType {
	return tensor.TypeOf[T]()
}

// ParseBackend converts a configuration string into a Backend.
func ParseBackend(s string) (Backend, error) {
	return tensor.ParseBackend(s)
}

// Combine packs a trace-variable id and an AD-node id into a Handle.
func Combine(trace, node uint32) Handle {
	return index.Combine(trace, node)
}
