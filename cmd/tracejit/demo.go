package main

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/born-ml/tracejit/array"
	"github.com/born-ml/tracejit/jit"
	"github.com/born-ml/tracejit/vcall"
)

type shape interface {
	area(scale array.Array[float32]) array.Array[float32]
	sides() uint32
}

type square struct{ side float32 }

func (s *square) area(scale array.Array[float32]) array.Array[float32] {
	k := array.Literal(s.side * s.side)
	defer k.Free()
	return scale.Mul(k)
}

func (s *square) sides() uint32 { return 4 }

type circle struct{ radius float32 }

func (c *circle) area(scale array.Array[float32]) array.Array[float32] {
	k := array.Literal(3.14159 * c.radius * c.radius)
	defer k.Free()
	return scale.Mul(k)
}

func (c *circle) sides() uint32 { return 0 }

func runDemo(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	if opts.trace {
		shutdown, err := initTracing(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer shutdown(ctx)
	}

	logger := opts.cfg.NewLogger(cmd.ErrOrStderr())
	if err := jit.Init(opts.cfg, logger); err != nil {
		return err
	}
	defer func() {
		if leaked := jit.Shutdown(); leaked > 0 {
			logger.Warn("demo leaked variables", "count", leaked)
		}
	}()

	shapes := vcall.NewClass[shape]("Shape")
	area := vcall.DefineMethod(shapes, "area", func(s shape, args []any) (array.Array[float32], error) {
		return s.area(vcall.Arg[array.Array[float32]](args, 0)), nil
	})
	sides := vcall.DefineScalarGetter(shapes, "sides", shape.sides)

	sq, ci := &square{side: 2}, &circle{radius: 1}
	for _, s := range []shape{sq, ci} {
		if _, err := shapes.Register(s); err != nil {
			return err
		}
	}

	self, err := shapes.Pointers(sq, ci, nil, ci, sq)
	if err != nil {
		return err
	}
	defer self.Free()

	scale := array.FromSlice([]float32{1, 2, 3, 4, 5})
	defer scale.Free()
	scale.EnableGrad()

	mask := array.FromSlice([]bool{true, true, true, false, true})
	defer mask.Free()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "self:      %v\n", self)
	fmt.Fprintf(out, "scale:     %v\n", scale)
	fmt.Fprintf(out, "mask:      %v\n", mask)

	a, err := area.Call(ctx, self, scale, mask)
	if err != nil {
		return err
	}
	defer a.Free()
	fmt.Fprintf(out, "area:      %v\n", a)

	n, err := sides.Get(ctx, self)
	if err != nil {
		return err
	}
	defer n.Free()
	fmt.Fprintf(out, "sides:     %v\n", n)

	total := a.Sum()
	defer total.Free()
	a.Backward()
	g := scale.Grad()
	defer g.Free()
	fmt.Fprintf(out, "total:     %v\n", total)
	fmt.Fprintf(out, "d/dscale:  %v\n", g)

	return printGraphMetrics(out)
}

// printGraphMetrics prints the trace graph gauges and counters.
func printGraphMetrics(out io.Writer) error {
	reg := prometheus.NewRegistry()
	for _, c := range jit.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "metrics:")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			v := m.GetGauge().GetValue() + m.GetCounter().GetValue()
			fmt.Fprintf(out, "  %-36s %g\n", mf.GetName(), v)
		}
	}
	return nil
}
