// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package array

import (
	"github.com/born-ml/tracejit/internal/traverse"
	"github.com/born-ml/tracejit/tensor"
)

// Leaf is implemented by handle-owning values such as *Array.
type Leaf = traverse.Leaf

// Traversable is implemented by aggregates that expose their leaves in a
// fixed order instead of through exported fields.
type Traversable = traverse.Traversable

// ConsistencyError reports a leaf count that does not match the number of
// indices supplied to Update.
type ConsistencyError = traverse.ConsistencyError

// Collect returns the handles of every leaf in v in depth-first order.
// With incRef set, each handle carries a new reference owned by the caller.
func Collect(v any, incRef bool) []tensor.Handle {
	return traverse.Collect(v, incRef)
}

// Count returns the number of leaves in v.
func Count(v any) int {
	return traverse.Count(v)
}

// Update relinks every leaf of *ptr to the matching handle, in the order
// Collect produces them.
func Update(ptr any, indices []tensor.Handle) error {
	return traverse.Update(ptr, indices)
}

// Free releases every leaf of v. v must be a pointer or contain pointers
// to the leaves.
func Free(v any) {
	traverse.Free(v)
}

// Clone returns a deep copy of v holding new references.
func Clone[T any](v T) T {
	return traverse.Clone(v)
}

// ZerosLike returns a deep copy of v with every leaf replaced by zeros.
func ZerosLike[T any](v T) T {
	return traverse.ZerosLike(v)
}
