// Package vcall dispatches method calls over arrays of object references.
//
// A Class is a registration table for one domain of objects. Methods are
// bound to it with DefineMethod, DefineProcedure and DefineGetter and invoked
// with an Array[uint32] of instance ids: the method runs once per distinct
// object on the lanes that reference it, and the per-object results are
// merged back into full-width arrays. Lanes that are unset (id 0) or masked
// off receive zeros.
//
//	shapes := vcall.NewClass[Shape]("Shape")
//	area := vcall.DefineMethod(shapes, "area", func(s Shape, args []any) (array.Array[float32], error) {
//		return s.Area(vcall.Arg[array.Array[float32]](args, 0)), nil
//	})
//	self, _ := shapes.Pointers(circle, square, nil)
//	out, err := area.Call(ctx, self, scale)
//
// Gradients flow through the call from the result back into the arguments.
package vcall

import (
	"fmt"
	"slices"
	"sync"

	"github.com/born-ml/tracejit/internal/array"
	"github.com/born-ml/tracejit/internal/jit"
)

// Class binds methods to the objects of one instance domain.
type Class[C comparable] struct {
	domain string

	mu      sync.RWMutex
	methods map[string]kind
}

type kind int

const (
	kindMethod kind = iota
	kindProcedure
	kindGetter
)

// NewClass creates the table for domain. Classes sharing a domain share
// instance ids.
func NewClass[C comparable](domain string) *Class[C] {
	return &Class[C]{domain: domain, methods: make(map[string]kind)}
}

// Domain returns the instance domain name.
func (c *Class[C]) Domain() string {
	return c.domain
}

// Register assigns obj an instance id. Registering the same object twice
// returns the same id.
func (c *Class[C]) Register(obj C) (uint32, error) {
	return jit.RegisterInstance(c.domain, obj)
}

// Unregister removes obj. Its id is never handed out again.
func (c *Class[C]) Unregister(obj C) error {
	id, ok := jit.LookupInstance(c.domain, obj)
	if !ok {
		return fmt.Errorf("%s: unregister: %w", c.domain, jit.ErrUnknownInstance)
	}
	return jit.UnregisterInstance(c.domain, id)
}

// Pointers returns the ids of objs as an array. The zero C maps to id 0,
// which is routed to the fallback group.
func (c *Class[C]) Pointers(objs ...C) (array.Array[uint32], error) {
	var zero C
	ids := make([]uint32, len(objs))
	for i, obj := range objs {
		if obj == zero {
			continue
		}
		id, ok := jit.LookupInstance(c.domain, obj)
		if !ok {
			return array.Array[uint32]{}, fmt.Errorf("%s: pointer %d: %w", c.domain, i, jit.ErrUnknownInstance)
		}
		ids[i] = id
	}
	return array.FromSlice(ids), nil
}

// PointersFromIDs wraps raw instance ids.
func PointersFromIDs(ids ...uint32) array.Array[uint32] {
	return array.FromSlice(ids)
}

// Methods returns the names bound to c in sorted order.
func (c *Class[C]) Methods() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.methods))
	for name := range c.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c *Class[C]) bind(name string, k kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.methods[name]; ok {
		panic(fmt.Sprintf("%s.%s: method already defined", c.domain, name))
	}
	c.methods[name] = k
}

// Arg returns argument i converted to T. It panics if the argument has a
// different type.
func Arg[T any](args []any, i int) T {
	if i < 0 || i >= len(args) {
		panic(fmt.Sprintf("vcall: argument %d out of range [0, %d)", i, len(args)))
	}
	v, ok := args[i].(T)
	if !ok {
		var want T
		panic(fmt.Sprintf("vcall: argument %d is %T, not %T", i, args[i], want))
	}
	return v
}
