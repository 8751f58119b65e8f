// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff exposes the reference-counted AD graph underneath
// differentiable arrays and the raw vectorized-call primitive.
//
// Most code should use the array and vcall packages. This package is for
// callers that manage combined handles themselves, for example to build a
// custom dispatcher on top of Call.
//
// Example:
//
//	args := autodiff.Own(autodiff.Indices{autodiff.IncRef(x.Index())})
//	defer args.Release()
//
//	var rv autodiff.OwnedIndices
//	defer rv.Release()
//	done, err := autodiff.Call(autodiff.CallRequest{
//	    Domain:   "Shape",
//	    Name:     "area",
//	    Self:     self.Index().Trace(),
//	    Args:     args.Items,
//	    Callback: area,
//	}, &rv)
package autodiff

import (
	"github.com/born-ml/tracejit/internal/ad"
	"github.com/born-ml/tracejit/internal/index"
)

// Handle is a combined trace/AD index.
type Handle = index.Handle

// Indices is a plain sequence of handles. It owns nothing.
type Indices = ad.Indices

// OwnedIndices is a sequence of handles that each hold one reference.
type OwnedIndices = ad.OwnedIndices

// CallFunc is invoked once per group of a vectorized call.
type CallFunc = ad.CallFunc

// CallRequest describes one vectorized call.
type CallRequest = ad.CallRequest

// ErrInconsistentCall is returned when groups of one call disagree on the
// number of returned indices.
var ErrInconsistentCall = ad.ErrInconsistentCall

// Own wraps handles whose references the caller transfers.
func Own(items Indices) *OwnedIndices {
	return ad.Own(items)
}

// IncRef adds a reference to both halves of h and returns h.
func IncRef(h Handle) Handle {
	return ad.IncRef(h)
}

// DecRef drops a reference from both halves of h.
func DecRef(h Handle) {
	ad.DecRef(h)
}

// Call invokes req.Callback once per distinct instance in req.Self and
// appends the merged results to rv.
func Call(req CallRequest, rv *OwnedIndices) (done bool, err error) {
	return ad.Call(req, rv)
}

// Live returns the number of AD nodes alive.
func Live() int {
	return ad.Live()
}

// Reset drops every AD node.
func Reset() {
	ad.Reset()
}
