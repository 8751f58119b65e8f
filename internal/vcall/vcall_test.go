package vcall

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/born-ml/tracejit/internal/ad"
	"github.com/born-ml/tracejit/internal/array"
	"github.com/born-ml/tracejit/internal/config"
	"github.com/born-ml/tracejit/internal/jit"
)

func setup(t *testing.T) {
	t.Helper()
	setupWith(t, config.Default())
}

func setupWith(t *testing.T, cfg config.Config) {
	t.Helper()
	require.NoError(t, jit.Init(cfg, nil))
	ad.Reset()
	t.Cleanup(func() {
		ad.Reset()
		jit.Shutdown()
	})
}

func assertNoLeaks(t *testing.T) {
	t.Helper()
	assert.Equal(t, 0, jit.Live(), "trace variables alive")
	assert.Equal(t, 0, ad.Live(), "ad nodes alive")
}

type scaler struct {
	name   string
	factor float32
	calls  int
	fail   bool
}

type pair struct {
	Scaled array.Array[float32]
	Offset array.Array[float32]
}

type fixture struct {
	class *Class[*scaler]
	scale *Method[*scaler, array.Array[float32]]
	a, b  *scaler
	self  array.Array[uint32]
}

var (
	recorderOnce sync.Once
	recorder     *tracetest.SpanRecorder
)

// spanRecorder installs a recording tracer provider for the test binary.
func spanRecorder() *tracetest.SpanRecorder {
	recorderOnce.Do(func() {
		recorder = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	})
	return recorder
}

// lastDispatchSpan returns the most recent ended dispatch span of method.
func lastDispatchSpan(t *testing.T, method string) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := spanRecorder().Ended()
	for i := len(spans) - 1; i >= 0; i-- {
		for _, kv := range spans[i].Attributes() {
			if kv.Key == attribute.Key("vcall.method") && kv.Value.AsString() == method {
				return spans[i]
			}
		}
	}
	require.FailNow(t, "no dispatch span", "method %q", method)
	return nil
}

func split(s *scaler, args []any) (pair, error) {
	x := Arg[array.Array[float32]](args, 0)
	k := array.Literal(s.factor)
	defer k.Free()
	return pair{Scaled: x.Mul(k), Offset: x.Add(k)}, nil
}

func scale(s *scaler, args []any) (array.Array[float32], error) {
	s.calls++
	if s.fail {
		return array.Array[float32]{}, errors.New("boom")
	}
	x := Arg[array.Array[float32]](args, 0)
	k := array.Literal(s.factor)
	defer k.Free()
	return x.Mul(k), nil
}

// newFixture registers A (factor 2) and B (factor 10) and builds the lane
// layout [B, A, unset, A].
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		class: NewClass[*scaler]("Scaler"),
		a:     &scaler{name: "A", factor: 2},
		b:     &scaler{name: "B", factor: 10},
	}
	f.scale = DefineMethod(f.class, "scale", scale)

	_, err := f.class.Register(f.a)
	require.NoError(t, err)
	_, err = f.class.Register(f.b)
	require.NoError(t, err)

	f.self, err = f.class.Pointers(f.b, f.a, nil, f.a)
	require.NoError(t, err)
	t.Cleanup(f.self.Free)
	return f
}

func TestDispatchGroups(t *testing.T) {
	setup(t)
	spanRecorder()
	f := newFixture(t)

	x := array.FromSlice([]float32{1, 2, 3, 4})
	out, err := f.scale.Call(context.Background(), f.self, x)
	require.NoError(t, err)

	assert.Equal(t, []float32{10, 4, 0, 8}, out.Data())
	assert.Equal(t, 1, f.a.calls)
	assert.Equal(t, 1, f.b.calls)
	assert.Equal(t, 0, jit.Pending())
	assert.Equal(t, codes.Unset, lastDispatchSpan(t, "scale").Status().Code)

	out.Free()
	x.Free()
	f.self.Free()
	assertNoLeaks(t)
}

func TestDispatchKeepsCallerArguments(t *testing.T) {
	setup(t)
	f := newFixture(t)

	x := array.FromSlice([]float32{1, 2, 3, 4})
	before := jit.RefCount(x.Index().Trace())
	out, err := f.scale.Call(context.Background(), f.self, x)
	require.NoError(t, err)
	assert.Equal(t, before, jit.RefCount(x.Index().Trace()))

	out.Free()
	x.Free()
}

func TestDispatchBroadcastsScalarArguments(t *testing.T) {
	setup(t)
	f := newFixture(t)

	x := array.Literal[float32](3)
	out, err := f.scale.Call(context.Background(), f.self, x)
	require.NoError(t, err)
	assert.Equal(t, []float32{30, 6, 0, 6}, out.Data())

	out.Free()
	x.Free()
}

func TestDispatchMask(t *testing.T) {
	setup(t)
	f := newFixture(t)

	x := array.FromSlice([]float32{1, 2, 3, 4})
	mask := array.FromSlice([]bool{true, false, true, true})
	out, err := f.scale.Call(context.Background(), f.self, x, mask)
	require.NoError(t, err)

	assert.Equal(t, []float32{10, 0, 0, 8}, out.Data())
	assert.Equal(t, 1, f.a.calls, "lane 3 still routes to A")

	off := array.FromSlice([]bool{false, false, false, false})
	zeros, err := f.scale.Call(context.Background(), f.self, x, off)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, zeros.Data())
	assert.Equal(t, 1, f.a.calls, "masked-off objects are not invoked")
	assert.Equal(t, 1, f.b.calls)

	for _, m := range []*array.Mask{&mask, &off} {
		m.Free()
	}
	for _, a := range []*array.Array[float32]{&x, &out, &zeros} {
		a.Free()
	}
	f.self.Free()
	assertNoLeaks(t)
}

func TestDispatchGradients(t *testing.T) {
	setup(t)
	f := newFixture(t)

	x := array.FromSlice([]float32{1, 2, 3, 4})
	x.EnableGrad()
	out, err := f.scale.Call(context.Background(), f.self, x)
	require.NoError(t, err)
	require.True(t, out.IsDiff())

	out.Backward()
	g := x.Grad()
	assert.Equal(t, []float32{10, 2, 0, 2}, g.Data())

	for _, a := range []*array.Array[float32]{&x, &out, &g} {
		a.Free()
	}
	f.self.Free()
	assertNoLeaks(t)
}

func TestDispatchStructResult(t *testing.T) {
	setup(t)
	f := newFixture(t)

	splitter := DefineMethod(f.class, "split", split)
	assert.Equal(t, []string{"scale", "split"}, f.class.Methods())

	x := array.FromSlice([]float32{1, 2, 3, 4})
	out, err := splitter.Call(context.Background(), f.self, x)
	require.NoError(t, err)
	assert.Equal(t, []float32{10, 4, 0, 8}, out.Scaled.Data())
	assert.Equal(t, []float32{11, 4, 0, 6}, out.Offset.Data())

	x.Free()
	out.Scaled.Free()
	out.Offset.Free()
	f.self.Free()
	assertNoLeaks(t)
}

func TestDispatchFallbackWidth(t *testing.T) {
	tests := []struct {
		name   string
		lanes  func(f *fixture) []*scaler
		mask   []bool
		want   []float32
		offset []float32
		grad   []float32
	}{
		{
			name:   "three lanes then one unset",
			lanes:  func(f *fixture) []*scaler { return []*scaler{f.a, f.a, f.a, nil} },
			want:   []float32{2, 4, 6, 0},
			offset: []float32{3, 4, 5, 0},
			grad:   []float32{2, 2, 2, 0},
		},
		{
			name:   "two lanes then three unset",
			lanes:  func(f *fixture) []*scaler { return []*scaler{f.a, f.a, nil, nil, nil} },
			want:   []float32{2, 4, 0, 0, 0},
			offset: []float32{3, 4, 0, 0, 0},
			grad:   []float32{2, 2, 0, 0, 0},
		},
		{
			name:   "two groups then two unset",
			lanes:  func(f *fixture) []*scaler { return []*scaler{f.b, nil, f.b, f.a, nil} },
			want:   []float32{10, 0, 30, 8, 0},
			offset: []float32{11, 0, 13, 6, 0},
			grad:   []float32{10, 0, 10, 2, 0},
		},
		{
			name:   "one masked lane",
			lanes:  func(f *fixture) []*scaler { return []*scaler{f.a, f.a, f.a, f.a} },
			mask:   []bool{true, true, true, false},
			want:   []float32{2, 4, 6, 0},
			offset: []float32{3, 4, 5, 0},
			grad:   []float32{2, 2, 2, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setup(t)
			f := newFixture(t)
			splitter := DefineMethod(f.class, "split", split)

			self, err := f.class.Pointers(tt.lanes(f)...)
			require.NoError(t, err)

			data := make([]float32, len(tt.want))
			for i := range data {
				data[i] = float32(i + 1)
			}
			x := array.FromSlice(data)
			x.EnableGrad()

			args := []any{x}
			var mask array.Mask
			if tt.mask != nil {
				mask = array.FromSlice(tt.mask)
				args = append(args, mask)
			}

			out, err := f.scale.Call(context.Background(), self, args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Data())

			out.Backward()
			g := x.Grad()
			assert.Equal(t, tt.grad, g.Data())

			p, err := splitter.Call(context.Background(), self, args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Scaled.Data())
			assert.Equal(t, tt.offset, p.Offset.Data())

			for _, a := range []*array.Array[float32]{&x, &out, &g, &p.Scaled, &p.Offset} {
				a.Free()
			}
			mask.Free()
			self.Free()
			f.self.Free()
			assertNoLeaks(t)
		})
	}
}

func TestDispatchError(t *testing.T) {
	setup(t)
	f := newFixture(t)
	f.b.fail = true

	x := array.FromSlice([]float32{1, 2, 3, 4})
	out, err := f.scale.Call(context.Background(), f.self, x)
	require.Error(t, err)
	assert.EqualError(t, err, "boom")
	assert.True(t, out.IsEmpty())
	assert.Equal(t, 0, jit.Pending())

	x.Free()
	f.self.Free()
	assertNoLeaks(t)
}

func TestDispatchPanicReleases(t *testing.T) {
	setup(t)
	f := newFixture(t)

	explode := DefineMethod(f.class, "explode", func(s *scaler, args []any) (array.Array[float32], error) {
		panic("explode: " + s.name)
	})

	spanRecorder()
	x := array.FromSlice([]float32{1, 2, 3, 4})
	assert.PanicsWithValue(t, "explode: A", func() {
		_, _ = explode.Call(context.Background(), f.self, x)
	})

	span := lastDispatchSpan(t, "explode")
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "Scaler.explode: panic: explode: A", span.Status().Description)

	x.Free()
	f.self.Free()
	assertNoLeaks(t)
}

func TestDispatchUnknownInstance(t *testing.T) {
	setup(t)
	f := newFixture(t)

	self := PointersFromIDs(1, 99)
	defer self.Free()
	x := array.Literal[float32](1)
	defer x.Free()

	_, err := f.scale.Call(context.Background(), self, x)
	assert.ErrorIs(t, err, jit.ErrUnknownInstance)
}

func TestDispatchDeferred(t *testing.T) {
	cfg := config.Default()
	cfg.Calls.AllowDeferred = true
	setupWith(t, cfg)
	f := newFixture(t)

	x := array.FromSlice([]float32{1, 2, 3, 4})
	out, err := f.scale.Call(context.Background(), f.self, x)
	require.NoError(t, err)
	assert.Equal(t, []float32{10, 4, 0, 8}, out.Data(), "result is usable before evaluation")
	require.Equal(t, 1, jit.Pending())

	live := jit.Live()
	assert.Equal(t, 1, jit.Eval())
	assert.Equal(t, 0, jit.Pending())
	assert.Less(t, jit.Live(), live, "snapshot released on evaluation")
	assert.Equal(t, 0, jit.Eval(), "cleanup runs once")

	out.Free()
	x.Free()
	f.self.Free()
	assertNoLeaks(t)
}

func TestProcedure(t *testing.T) {
	setup(t)
	f := newFixture(t)

	var seen []float32
	record := DefineProcedure(f.class, "record", func(s *scaler, args []any) error {
		x := Arg[array.Array[float32]](args, 0)
		seen = append(seen, x.Data()...)
		return nil
	})

	x := array.FromSlice([]float32{1, 2, 3, 4})
	require.NoError(t, record.Call(context.Background(), f.self, x))
	assert.Equal(t, []float32{2, 4, 1}, seen, "A sees lanes 1 and 3, then B sees lane 0")

	x.Free()
	f.self.Free()
	assertNoLeaks(t)
}

func TestGetter(t *testing.T) {
	setup(t)
	f := newFixture(t)

	factor := DefineScalarGetter(f.class, "factor", func(s *scaler) float32 { return s.factor })
	assert.Equal(t, "factor", factor.Name())

	all, err := factor.Get(context.Background(), f.self)
	require.NoError(t, err)
	assert.Equal(t, []float32{10, 2, 0, 2}, all.Data())

	mask := array.FromSlice([]bool{false, true, true, true})
	some, err := factor.GetMasked(context.Background(), f.self, mask)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 2, 0, 2}, some.Data())

	all.Free()
	some.Free()
	mask.Free()
	f.self.Free()
	assertNoLeaks(t)
}

func TestClassRegistration(t *testing.T) {
	setup(t)
	f := newFixture(t)

	assert.Equal(t, "Scaler", f.class.Domain())
	assert.PanicsWithValue(t, "Scaler.scale: method already defined", func() {
		DefineMethod(f.class, "scale", scale)
	})

	stranger := &scaler{name: "C"}
	_, err := f.class.Pointers(f.a, stranger)
	assert.ErrorIs(t, err, jit.ErrUnknownInstance)
	assert.ErrorIs(t, f.class.Unregister(stranger), jit.ErrUnknownInstance)

	require.NoError(t, f.class.Unregister(f.a))
	_, err = f.class.Pointers(f.a)
	assert.ErrorIs(t, err, jit.ErrUnknownInstance)
}

func TestArg(t *testing.T) {
	args := []any{1.5, "x"}
	assert.Equal(t, 1.5, Arg[float64](args, 0))
	assert.PanicsWithValue(t, "vcall: argument 1 is string, not int", func() {
		Arg[int](args, 1)
	})
	assert.PanicsWithValue(t, "vcall: argument 2 out of range [0, 2)", func() {
		Arg[int](args, 2)
	})
}

func TestCallStateCleanupOnce(t *testing.T) {
	setup(t)

	x := array.FromSlice([]float32{1, 2})
	s := newCallState[array.Array[float32]]([]any{x})
	assert.Equal(t, int32(2), jit.RefCount(x.Index().Trace()))

	var rv ad.Indices
	s.collectRV(x.Clone(), &rv)
	require.Len(t, rv, 1)
	assert.Equal(t, int32(3), jit.RefCount(x.Index().Trace()))

	task := jit.NewTask("state", s.cleanup)
	task.Finalize()
	task.Finalize()
	assert.Equal(t, int32(1), jit.RefCount(x.Index().Trace()))

	x.Free()
	assertNoLeaks(t)
}
