// Package tensor provides the storage and element types backing trace variables.
package tensor

import "fmt"

// DType is a constraint for supported element types.
// It uses Go generics to ensure compile-time type safety.
type DType interface {
	~bool | ~uint8 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// Float is the subset of DType that participates in differentiation.
type Float interface {
	~float32 | ~float64
}

// DataType represents runtime type information for variables.
type DataType int

// Supported data types. The order matches the variable type table of the
// trace backend and must not change.
const (
	Bool DataType = iota
	Uint8
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Bool, Uint8:
		return 1
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		panic(fmt.Sprintf("unknown data type %d", int(dt)))
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Bool:
		return "bool"
	case Uint8:
		return "uint8"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Int64:
		return "int64"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// IsFloat reports whether values of this type carry AD state.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64
}

// IsInteger reports whether dt is one of the integer types.
func (dt DataType) IsInteger() bool {
	switch dt {
	case Uint8, Int32, Uint32, Int64, Uint64:
		return true
	default:
		return false
	}
}

// IsSigned reports whether dt is a signed numeric type.
func (dt DataType) IsSigned() bool {
	switch dt {
	case Int32, Int64, Float32, Float64:
		return true
	default:
		return false
	}
}

// TypeOf returns the DataType for the Go type T.
func TypeOf[T DType]() DataType {
	var zero T
	switch any(zero).(type) {
	case bool:
		return Bool
	case uint8:
		return Uint8
	case int32:
		return Int32
	case uint32:
		return Uint32
	case int64:
		return Int64
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		panic(fmt.Sprintf("unsupported element type %T", zero))
	}
}

// Backend identifies the JIT backend a variable is recorded on.
type Backend int

// Supported JIT backends.
const (
	LLVM Backend = iota
	CUDA
)

// String returns a human-readable backend name.
func (b Backend) String() string {
	switch b {
	case LLVM:
		return "llvm"
	case CUDA:
		return "cuda"
	default:
		return "unknown"
	}
}

// ParseBackend converts a configuration string into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "llvm", "LLVM", "":
		return LLVM, nil
	case "cuda", "CUDA":
		return CUDA, nil
	default:
		return LLVM, fmt.Errorf("unknown backend %q", s)
	}
}
