// Package traverse flattens arbitrary Go values into the index handles of
// the arrays they contain, and writes handles back in the same order.
//
// The walk is depth-first and left-to-right:
//   - a Leaf (any type whose pointer implements Leaf) contributes one index
//   - a Traversable contributes the leaves reachable from TraverseFields
//   - slices and arrays are walked element by element
//   - structs are walked over their exported fields in declaration order
//   - non-nil pointers and interfaces are walked through
//
// Everything else, including maps, functions and unexported fields, is host
// data and contributes nothing.
package traverse

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/born-ml/tracejit/internal/ad"
	"github.com/born-ml/tracejit/internal/index"
)

// Leaf is implemented by the pointer type of every array.
type Leaf interface {
	// Index returns the held handle without changing its reference count.
	Index() index.Handle

	// SetBorrowed replaces the held handle with h, taking a new reference
	// to h before releasing the old one.
	SetBorrowed(h index.Handle)

	// SetZero replaces the held handle with zeros of the same width
	// (width 1 when empty).
	SetZero()

	// SetZeroLiteral replaces the held handle with a width-1 zero.
	SetZeroLiteral()

	// Free releases the held handle and leaves the leaf empty.
	Free()
}

// Traversable is implemented by aggregates that expose their leaves through
// unexported fields. TraverseFields returns pointers into the receiver.
type Traversable interface {
	TraverseFields() []any
}

// ConsistencyError reports a mismatch between the number of leaves of a
// value and the number of indices supplied for it.
type ConsistencyError struct {
	Expected int
	Got      int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("traverse: value has %d leaves, got %d indices", e.Expected, e.Got)
}

var errNotPointer = errors.New("traverse: update target must be a non-nil pointer")

var (
	leafType        = reflect.TypeFor[Leaf]()
	traversableType = reflect.TypeFor[Traversable]()
)

// Collect returns the index of every leaf of v in traversal order. With
// incRef set, each returned index carries a new reference owned by the caller.
func Collect(v any, incRef bool) []index.Handle {
	var out []index.Handle
	_ = walk(reflect.ValueOf(v), func(l Leaf) error {
		h := l.Index()
		if incRef {
			ad.IncRef(h)
		}
		out = append(out, h)
		return nil
	})
	return out
}

// Count returns the number of leaves of v.
func Count(v any) int {
	n := 0
	_ = walk(reflect.ValueOf(v), func(Leaf) error {
		n++
		return nil
	})
	return n
}

// Update assigns indices to the leaves of *ptr in traversal order. Each leaf
// borrows its index. A count mismatch leaves *ptr untouched and returns a
// *ConsistencyError.
func Update(ptr any, indices []index.Handle) error {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return errNotPointer
	}
	if n := Count(ptr); n != len(indices) {
		return &ConsistencyError{Expected: n, Got: len(indices)}
	}
	i := 0
	return walk(v, func(l Leaf) error {
		l.SetBorrowed(indices[i])
		i++
		return nil
	})
}

// Free releases every leaf reachable from v. Leaves reached through
// pointers are left empty.
func Free(v any) {
	_ = walk(reflect.ValueOf(v), func(l Leaf) error {
		l.Free()
		return nil
	})
}

// Clone returns a deep copy of v in which every leaf holds its own reference.
func Clone[T any](v T) T {
	out := deepCopy(reflect.ValueOf(&v).Elem())
	_ = walk(out.Addr(), func(l Leaf) error {
		ad.IncRef(l.Index())
		return nil
	})
	var res T
	reflect.ValueOf(&res).Elem().Set(out)
	return res
}

// ZerosLike returns a deep copy of v with every leaf replaced by zeros.
func ZerosLike[T any](v T) T {
	out := Clone(v)
	_ = walk(reflect.ValueOf(&out), func(l Leaf) error {
		l.SetZero()
		return nil
	})
	return out
}

// ZeroLiterals returns a deep copy of v with every leaf replaced by a
// width-1 zero, so that it broadcasts against any lane count.
func ZeroLiterals[T any](v T) T {
	out := Clone(v)
	_ = walk(reflect.ValueOf(&out), func(l Leaf) error {
		l.SetZeroLiteral()
		return nil
	})
	return out
}

func walk(v reflect.Value, visit func(Leaf) error) error {
	if !v.IsValid() {
		return nil
	}
	t := v.Type()

	if t.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		switch {
		case t.Implements(leafType):
			return visit(v.Interface().(Leaf))
		case t.Implements(traversableType):
			for _, f := range v.Interface().(Traversable).TraverseFields() {
				if err := walk(reflect.ValueOf(f), visit); err != nil {
					return err
				}
			}
			return nil
		}
		return walk(v.Elem(), visit)
	}

	if pt := reflect.PointerTo(t); pt.Implements(leafType) || pt.Implements(traversableType) {
		return walk(addressable(v), visit)
	}

	switch t.Kind() {
	case reflect.Interface:
		return walkInterface(v, visit)
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			if err := walk(v.Index(i), visit); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := range t.NumField() {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := walk(v.Field(i), visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// walkInterface walks the dynamic value of v. Values held directly (not
// through a pointer) are walked on a copy that is stored back when possible.
func walkInterface(v reflect.Value, visit func(Leaf) error) error {
	if v.IsNil() {
		return nil
	}
	e := v.Elem()
	if e.Kind() == reflect.Pointer {
		return walk(e, visit)
	}
	cp := reflect.New(e.Type()).Elem()
	cp.Set(e)
	if err := walk(cp, visit); err != nil {
		return err
	}
	if v.CanSet() {
		v.Set(cp)
	}
	return nil
}

// addressable returns a pointer to v, copying v first if it is not addressable.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v.Addr()
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p
}

// deepCopy copies v, duplicating the slices, arrays, pointers and interfaces
// the walk would follow so that leaves of the copy are distinct from those of v.
// Unexported fields are copied shallowly.
func deepCopy(v reflect.Value) reflect.Value {
	out := reflect.New(v.Type()).Elem()
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			p := reflect.New(v.Type().Elem())
			p.Elem().Set(deepCopy(v.Elem()))
			out.Set(p)
		}
	case reflect.Slice:
		if !v.IsNil() {
			s := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
			for i := range v.Len() {
				s.Index(i).Set(deepCopy(v.Index(i)))
			}
			out.Set(s)
		}
	case reflect.Array:
		for i := range v.Len() {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
	case reflect.Interface:
		if !v.IsNil() {
			out.Set(deepCopy(v.Elem()))
		}
	case reflect.Struct:
		out.Set(v)
		t := v.Type()
		for i := range t.NumField() {
			if t.Field(i).IsExported() {
				out.Field(i).Set(deepCopy(v.Field(i)))
			}
		}
	default:
		out.Set(v)
	}
	return out
}
