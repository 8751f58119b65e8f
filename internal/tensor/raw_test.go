package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RawTensor Tests

func TestRawTensorAsInt64(t *testing.T) {
	raw, _ := NewRaw(6, Int64)
	data := raw.AsInt64()

	if len(data) != 6 {
		t.Errorf("AsInt64 length = %d, want 6", len(data))
	}

	// Modify and verify zero-copy
	data[0] = 42
	if raw.AsInt64()[0] != 42 {
		t.Error("AsInt64 should return zero-copy slice")
	}
}

func TestRawTensorAsUint32(t *testing.T) {
	raw, _ := NewRaw(4, Uint32)
	data := raw.AsUint32()
	require.Len(t, data, 4)

	data[3] = 7
	assert.Equal(t, uint32(7), raw.AsUint32()[3])
}

func TestRawTensorAsBool(t *testing.T) {
	raw, _ := NewRaw(4, Bool)
	data := raw.AsBool()

	if len(data) != 4 {
		t.Errorf("AsBool length = %d, want 4", len(data))
	}

	data[0] = true
	if raw.AsBool()[0] != true {
		t.Error("AsBool should return zero-copy slice")
	}
}

func TestRawTensorWrongDTypePanics(t *testing.T) {
	raw, _ := NewRaw(2, Float32)
	assert.PanicsWithValue(t, "tensor dtype is float32, not int32", func() {
		raw.AsInt32()
	})
}

func TestRawTensorEmpty(t *testing.T) {
	raw, err := NewRaw(0, Float64)
	require.NoError(t, err)
	assert.Nil(t, raw.AsFloat64())
	assert.Equal(t, 0, raw.ByteSize())
}

func TestRawTensorNegativeLength(t *testing.T) {
	_, err := NewRaw(-1, Float32)
	assert.Error(t, err)
}

func TestRawTensorCloneSharesBuffer(t *testing.T) {
	a := FromSlice([]float32{1, 2, 3})
	require.True(t, a.IsUnique())

	b := a.Clone()
	assert.False(t, a.IsUnique())
	assert.Equal(t, a.AsFloat32(), b.AsFloat32())

	b.Release()
	assert.True(t, a.IsUnique())
}

func TestRawTensorCopyIsIndependent(t *testing.T) {
	a := FromSlice([]int32{1, 2, 3})
	b := a.Copy()
	b.AsInt32()[0] = 100

	assert.Equal(t, int32(1), a.AsInt32()[0])
	assert.True(t, b.IsUnique())
}

func TestToSlice(t *testing.T) {
	a := FromSlice([]uint64{5, 6})
	out := ToSlice[uint64](a)
	out[0] = 0
	assert.Equal(t, uint64(5), a.AsUint64()[0])
}
