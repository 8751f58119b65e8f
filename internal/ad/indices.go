package ad

import "github.com/born-ml/tracejit/internal/index"

// Indices is a plain sequence of handles. It owns nothing.
type Indices []index.Handle

// OwnedIndices is a sequence of handles each holding one reference.
// Release drops every reference once; further calls are no-ops.
//
// Example:
//
//	var out OwnedIndices
//	defer out.Release()
type OwnedIndices struct {
	Items Indices
}

// Own wraps handles whose references the caller transfers.
func Own(items Indices) *OwnedIndices {
	return &OwnedIndices{Items: items}
}

// Append adds an owned handle.
func (o *OwnedIndices) Append(h index.Handle) {
	o.Items = append(o.Items, h)
}

// Len returns the number of handles.
func (o *OwnedIndices) Len() int {
	return len(o.Items)
}

// Release drops every reference and empties the sequence.
func (o *OwnedIndices) Release() {
	for _, h := range o.Items {
		DecRef(h)
	}
	o.Items = nil
}
