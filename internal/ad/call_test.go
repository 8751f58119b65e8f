package ad

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tracejit/internal/config"
	"github.com/born-ml/tracejit/internal/index"
	"github.com/born-ml/tracejit/internal/jit"
	"github.com/born-ml/tracejit/internal/tensor"
)

type scaler struct {
	name   string
	factor float32
}

// recorder keeps callback results alive until the call returns, as the
// vectorized-call state does.
type recorder struct {
	calls []string
	keep  []index.Handle
	argW  []int
}

func (r *recorder) release() {
	release(r.keep...)
	r.keep = nil
}

func scaleCallback(state any, self any, args Indices, rv *Indices) error {
	r := state.(*recorder)
	r.argW = append(r.argW, jit.Width(args[0].Trace()))

	var out index.Handle
	if self == nil {
		r.calls = append(r.calls, "fallback")
		out = index.FromTrace(jit.Literal(tensor.Float32, 1, 0))
	} else {
		s := self.(*scaler)
		r.calls = append(r.calls, s.name)
		f := index.FromTrace(jit.Literal(tensor.Float32, 1, float64(s.factor)))
		out = Mul(args[0], f)
		DecRef(f)
	}
	r.keep = append(r.keep, out)
	*rv = append(*rv, out)
	return nil
}

func registerScalers(t *testing.T) (uint32, uint32) {
	t.Helper()
	idA, err := jit.RegisterInstance("Scaler", &scaler{"A", 2})
	require.NoError(t, err)
	idB, err := jit.RegisterInstance("Scaler", &scaler{"B", 10})
	require.NoError(t, err)
	return idA, idB
}

func TestCallGroupsByInstance(t *testing.T) {
	setup(t)
	idA, idB := registerScalers(t)

	self := jit.FromSlice([]uint32{idB, idA, 0, idA})
	x := leaf[float32](1, 2, 3, 4)
	rec := &recorder{}

	var rv OwnedIndices
	done, err := Call(CallRequest{
		Domain:   "Scaler",
		Name:     "scale",
		Self:     self,
		Args:     Indices{x},
		State:    rec,
		Callback: scaleCallback,
	}, &rv)
	require.NoError(t, err)
	assert.True(t, done)
	rec.release()

	assert.Equal(t, []string{"A", "B", "fallback"}, rec.calls)
	require.Equal(t, 1, rv.Len())
	out := rv.Items[0]
	assert.Equal(t, []float32{10, 4, 0, 8}, jit.Read[float32](out.Trace()))

	Backward(out)
	assert.Equal(t, []float32{10, 2, 0, 2}, gradOf[float32](t, x))

	rv.Release()
	jit.DecRef(self)
	release(x)
	assertNoLeaks(t)
}

func TestCallMaskRoutesToFallback(t *testing.T) {
	setup(t)
	idA, _ := registerScalers(t)

	self := jit.FromSlice([]uint32{idA, idA, idA})
	mask := jit.FromSlice([]bool{true, false, true})
	x := constant[float32](1, 2, 3)
	rec := &recorder{}

	var rv OwnedIndices
	_, err := Call(CallRequest{
		Domain:   "Scaler",
		Self:     self,
		Mask:     mask,
		Args:     Indices{x},
		State:    rec,
		Callback: scaleCallback,
	}, &rv)
	require.NoError(t, err)
	rec.release()

	assert.Equal(t, []string{"A", "fallback"}, rec.calls)
	assert.Equal(t, []float32{2, 0, 6}, jit.Read[float32](rv.Items[0].Trace()))

	rv.Release()
	jit.DecRef(self)
	jit.DecRef(mask)
	release(x)
	assertNoLeaks(t)
}

func TestCallSkipsEmptyFallback(t *testing.T) {
	setup(t)
	idA, idB := registerScalers(t)

	self := jit.FromSlice([]uint32{idA, idB})
	x := constant[float32](7)
	rec := &recorder{}

	var rv OwnedIndices
	_, err := Call(CallRequest{
		Domain:   "Scaler",
		Self:     self,
		Args:     Indices{x},
		State:    rec,
		Callback: scaleCallback,
	}, &rv)
	require.NoError(t, err)
	rec.release()

	assert.Equal(t, []string{"A", "B"}, rec.calls)
	assert.Equal(t, []int{1, 1}, rec.argW, "width-1 arguments are broadcast")
	assert.Equal(t, []float32{14, 70}, jit.Read[float32](rv.Items[0].Trace()))

	rv.Release()
	jit.DecRef(self)
	release(x)
	assertNoLeaks(t)
}

func TestCallInconsistentResults(t *testing.T) {
	setup(t)
	idA, idB := registerScalers(t)

	self := jit.FromSlice([]uint32{idA, idB})
	var keep []index.Handle
	cb := func(state any, self any, args Indices, rv *Indices) error {
		n := 1
		if self.(*scaler).name == "B" {
			n = 2
		}
		for range n {
			h := index.FromTrace(jit.Literal(tensor.Float32, 1, 1))
			keep = append(keep, h)
			*rv = append(*rv, h)
		}
		return nil
	}

	var rv OwnedIndices
	_, err := Call(CallRequest{Domain: "Scaler", Self: self, Callback: cb}, &rv)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistentCall))
	assert.Zero(t, rv.Len())

	release(keep...)
	jit.DecRef(self)
	assertNoLeaks(t)
}

func TestCallPropagatesCallbackError(t *testing.T) {
	setup(t)
	idA, _ := registerScalers(t)

	boom := errors.New("boom")
	self := jit.FromSlice([]uint32{idA, 0})
	x := leaf[float32](1, 2)

	var rv OwnedIndices
	_, err := Call(CallRequest{
		Domain: "Scaler",
		Self:   self,
		Args:   Indices{x},
		Callback: func(state any, self any, args Indices, rv *Indices) error {
			return boom
		},
	}, &rv)
	assert.ErrorIs(t, err, boom)

	jit.DecRef(self)
	release(x)
	assertNoLeaks(t)
}

func TestCallReleasesOnPanic(t *testing.T) {
	setup(t)
	idA, _ := registerScalers(t)

	self := jit.FromSlice([]uint32{idA, idA})
	x := leaf[float32](1, 2)

	var rv OwnedIndices
	assert.PanicsWithValue(t, "method failed", func() {
		_, _ = Call(CallRequest{
			Domain: "Scaler",
			Self:   self,
			Args:   Indices{x},
			Callback: func(state any, self any, args Indices, rv *Indices) error {
				panic("method failed")
			},
		}, &rv)
	})

	jit.DecRef(self)
	release(x)
	assertNoLeaks(t)
}

func TestCallUnknownInstance(t *testing.T) {
	setup(t)

	self := jit.FromSlice([]uint32{7})
	var rv OwnedIndices
	_, err := Call(CallRequest{
		Domain:   "Scaler",
		Self:     self,
		Callback: scaleCallback,
		State:    &recorder{},
	}, &rv)
	assert.ErrorIs(t, err, jit.ErrUnknownInstance)

	jit.DecRef(self)
	assertNoLeaks(t)
}

func TestCallRejectsBadArguments(t *testing.T) {
	setup(t)
	idA, _ := registerScalers(t)

	self := jit.FromSlice([]uint32{idA, idA, idA})
	x := constant[float32](1, 2)
	var rv OwnedIndices

	_, err := Call(CallRequest{Domain: "Scaler", Self: self, Args: Indices{x}, Callback: scaleCallback}, &rv)
	assert.ErrorContains(t, err, "argument 0 has width 2")

	_, err = Call(CallRequest{Domain: "Scaler", Self: 0, Callback: scaleCallback}, &rv)
	assert.ErrorIs(t, err, jit.ErrUninitialized)

	jit.DecRef(self)
	release(x)
	assertNoLeaks(t)
}

func TestCallDeferred(t *testing.T) {
	cfg := config.Default()
	cfg.Calls.AllowDeferred = true
	setupWith(t, cfg)
	idA, _ := registerScalers(t)

	self := jit.FromSlice([]uint32{idA})
	x := constant[float32](3)
	rec := &recorder{}
	task := jit.NewTask("scale", rec.release)

	var rv OwnedIndices
	done, err := Call(CallRequest{
		Domain:        "Scaler",
		Self:          self,
		Args:          Indices{x},
		State:         rec,
		Callback:      scaleCallback,
		Task:          task,
		AllowDeferred: true,
	}, &rv)
	require.NoError(t, err)
	assert.False(t, done)
	assert.False(t, task.Finalized())
	assert.Equal(t, 1, jit.Pending())

	jit.Eval()
	assert.True(t, task.Finalized())
	assert.Equal(t, []float32{6}, jit.Read[float32](rv.Items[0].Trace()))

	rv.Release()
	jit.DecRef(self)
	release(x)
	assertNoLeaks(t)
}
