package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataTypeProperties(t *testing.T) {
	tests := []struct {
		dt      DataType
		size    int
		name    string
		isFloat bool
		isInt   bool
		signed  bool
	}{
		{Bool, 1, "bool", false, false, false},
		{Uint8, 1, "uint8", false, true, false},
		{Int32, 4, "int32", false, true, true},
		{Uint32, 4, "uint32", false, true, false},
		{Int64, 8, "int64", false, true, true},
		{Uint64, 8, "uint64", false, true, false},
		{Float32, 4, "float32", true, false, true},
		{Float64, 8, "float64", true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.size, tt.dt.Size())
			assert.Equal(t, tt.name, tt.dt.String())
			assert.Equal(t, tt.isFloat, tt.dt.IsFloat())
			assert.Equal(t, tt.isInt, tt.dt.IsInteger())
			assert.Equal(t, tt.signed, tt.dt.IsSigned())
		})
	}
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, Float32, TypeOf[float32]())
	assert.Equal(t, Float64, TypeOf[float64]())
	assert.Equal(t, Uint32, TypeOf[uint32]())
	assert.Equal(t, Bool, TypeOf[bool]())
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("cuda")
	assert.NoError(t, err)
	assert.Equal(t, CUDA, b)

	b, err = ParseBackend("")
	assert.NoError(t, err)
	assert.Equal(t, LLVM, b)

	_, err = ParseBackend("metal")
	assert.Error(t, err)
}
