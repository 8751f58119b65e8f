package jit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tracejit/internal/config"
	"github.com/born-ml/tracejit/internal/tensor"
)

func setup(t *testing.T) {
	t.Helper()
	require.NoError(t, Init(config.Default(), nil))
	t.Cleanup(func() { Shutdown() })
}

func TestRefCounting(t *testing.T) {
	setup(t)

	id := FromSlice([]float32{1, 2, 3})
	assert.Equal(t, int32(1), RefCount(id))
	assert.Equal(t, 1, Live())

	IncRef(id)
	assert.Equal(t, int32(2), RefCount(id))

	DecRef(id)
	DecRef(id)
	assert.Equal(t, int32(0), RefCount(id))
	assert.Equal(t, 0, Live())
}

func TestZeroIDIsIgnored(t *testing.T) {
	setup(t)

	assert.NotPanics(t, func() {
		IncRef(0)
		DecRef(0)
	})
	assert.Equal(t, int32(0), RefCount(0))
}

func TestOperandZeroPanics(t *testing.T) {
	setup(t)

	a := Literal(tensor.Float32, 1, 1)
	defer DecRef(a)

	assert.PanicsWithValue(t, "add: uninitialized variable", func() { Add(a, 0) })
}

func TestDecRefUnknownPanics(t *testing.T) {
	setup(t)
	assert.PanicsWithValue(t, "dec_ref: unknown variable r42", func() { DecRef(42) })
}

func TestOpsEvaluate(t *testing.T) {
	setup(t)

	a := FromSlice([]float64{1, 4, 9})
	b := Literal(tensor.Float64, 1, 2)
	defer DecRef(a)
	defer DecRef(b)

	tests := []struct {
		name string
		id   uint32
		want []float64
	}{
		{"add", Add(a, b), []float64{3, 6, 11}},
		{"sub", Sub(a, b), []float64{-1, 2, 7}},
		{"mul", Mul(a, b), []float64{2, 8, 18}},
		{"div", Div(a, b), []float64{0.5, 2, 4.5}},
		{"sqrt", Sqrt(a), []float64{1, 2, 3}},
		{"fma", Fma(a, b, b), []float64{4, 10, 20}},
		{"sum", Sum(a), []float64{14}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDeltaSlice(t, tt.want, Read[float64](tt.id), 1e-12)
			assert.Equal(t, int32(1), RefCount(tt.id))
			DecRef(tt.id)
		})
	}
	assert.Equal(t, 2, Live())
}

func TestComparisonAndSelect(t *testing.T) {
	setup(t)

	a := FromSlice([]int32{1, 5, 3})
	b := Literal(tensor.Int32, 1, 3)
	m := Lt(a, b)
	s := Select(m, a, b)

	assert.Equal(t, tensor.Bool, Type(m))
	assert.Equal(t, []bool{true, false, false}, Read[bool](m))
	assert.Equal(t, []int32{1, 3, 3}, Read[int32](s))
	assert.Equal(t, 3, Width(s))

	for _, id := range []uint32{a, b, m, s} {
		DecRef(id)
	}
	assert.Equal(t, 0, Live())
}

func TestGatherScatter(t *testing.T) {
	setup(t)

	x := FromSlice([]float32{10, 20, 30})
	idx := FromSlice([]uint32{2, 0})
	g := Gather(x, idx)
	assert.Equal(t, []float32{30, 10}, Read[float32](g))

	zeros := Literal(tensor.Float32, 3, 0)
	s := ScatterAdd(zeros, g, idx)
	assert.Equal(t, []float32{10, 0, 30}, Read[float32](s))

	for _, id := range []uint32{x, idx, g, zeros, s} {
		DecRef(id)
	}
}

func TestCast(t *testing.T) {
	setup(t)

	x := FromSlice([]float32{1.5, -2})
	c := Cast(x, tensor.Int32, false)
	assert.Equal(t, []int32{1, -2}, Read[int32](c))

	DecRef(x)
	DecRef(c)
}

func TestShutdownReportsLeaks(t *testing.T) {
	require.NoError(t, Init(config.Default(), nil))

	FromSlice([]uint32{1})
	Literal(tensor.Bool, 4, 1)

	assert.Equal(t, 2, Shutdown())
	assert.Equal(t, 0, Live())
}

func TestInitRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = "metal"
	assert.Error(t, Init(cfg, nil))
}
