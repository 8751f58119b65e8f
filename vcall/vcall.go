// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package vcall dispatches methods over arrays of object references.
//
// A Class registers the objects of one domain. Methods bound to it run once
// per distinct object referenced by a self array, and their results are
// merged into full-width arrays. Unset and masked-off lanes read zeros.
//
// Example:
//
//	type Shape interface{ Area(scale array.Array[float32]) array.Array[float32] }
//
//	shapes := vcall.NewClass[Shape]("Shape")
//	area := vcall.DefineMethod(shapes, "area",
//	    func(s Shape, args []any) (array.Array[float32], error) {
//	        return s.Area(vcall.Arg[array.Array[float32]](args, 0)), nil
//	    })
//
//	shapes.Register(circle)
//	shapes.Register(square)
//	self, _ := shapes.Pointers(circle, square, nil)
//	defer self.Free()
//
//	out, err := area.Call(ctx, self, scale)  // 3 lanes, last one zero
package vcall

import (
	"github.com/born-ml/tracejit/array"
	"github.com/born-ml/tracejit/internal/vcall"
	"github.com/born-ml/tracejit/tensor"
)

// Class binds methods to the objects of one instance domain.
type Class[C comparable] = vcall.Class[C]

// Method is a bound method returning R.
type Method[C comparable, R any] = vcall.Method[C, R]

// Procedure is a bound method without a result.
type Procedure[C comparable] = vcall.Procedure[C]

// Getter reads a per-object value.
type Getter[C comparable, R any] = vcall.Getter[C, R]

// NewClass creates the table for domain.
func NewClass[C comparable](domain string) *Class[C] {
	return vcall.NewClass[C](domain)
}

// DefineMethod binds fn as name on c.
func DefineMethod[C comparable, R any](c *Class[C], name string, fn func(obj C, args []any) (R, error)) *Method[C, R] {
	return vcall.DefineMethod(c, name, fn)
}

// DefineProcedure binds fn as name on c.
func DefineProcedure[C comparable](c *Class[C], name string, fn func(obj C, args []any) error) *Procedure[C] {
	return vcall.DefineProcedure(c, name, fn)
}

// DefineGetter binds get as name on c.
func DefineGetter[C comparable, R any](c *Class[C], name string, get func(obj C) R) *Getter[C, R] {
	return vcall.DefineGetter(c, name, get)
}

// DefineScalarGetter binds a getter of a host value, broadcast to the lanes
// of each object.
func DefineScalarGetter[C comparable, T tensor.DType](c *Class[C], name string, get func(obj C) T) *Getter[C, array.Array[T]] {
	return vcall.DefineScalarGetter(c, name, get)
}

// PointersFromIDs wraps raw instance ids.
func PointersFromIDs(ids ...uint32) array.Array[uint32] {
	return vcall.PointersFromIDs(ids...)
}

// Arg returns argument i converted to T. It panics on a type mismatch.
func Arg[T any](args []any, i int) T {
	return vcall.Arg[T](args, i)
}
