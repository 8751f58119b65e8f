// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tracejit/tensor"
)

func TestDataTypeConstants(t *testing.T) {
	tests := []struct {
		dtype tensor.DataType
		name  string
		size  int
		float bool
	}{
		{tensor.Bool, "bool", 1, false},
		{tensor.Uint8, "uint8", 1, false},
		{tensor.Int32, "int32", 4, false},
		{tensor.Uint32, "uint32", 4, false},
		{tensor.Int64, "int64", 8, false},
		{tensor.Uint64, "uint64", 8, false},
		{tensor.Float32, "float32", 4, true},
		{tensor.Float64, "float64", 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.dtype.String())
			assert.Equal(t, tt.size, tt.dtype.Size())
			assert.Equal(t, tt.float, tt.dtype.IsFloat())
		})
	}
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, tensor.Float32, tensor.TypeOf[float32]())
	assert.Equal(t, tensor.Uint32, tensor.TypeOf[uint32]())
	assert.Equal(t, tensor.Bool, tensor.TypeOf[bool]())
}

func TestParseBackend(t *testing.T) {
	b, err := tensor.ParseBackend("cuda")
	require.NoError(t, err)
	assert.Equal(t, tensor.CUDA, b)

	_, err = tensor.ParseBackend("metal")
	assert.Error(t, err)
}

func TestCombine(t *testing.T) {
	h := tensor.Combine(7, 3)
	assert.Equal(t, uint32(7), h.Trace())
	assert.Equal(t, uint32(3), h.Node())
	assert.True(t, h.IsDiff())
}
