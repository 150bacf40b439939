// Package tensor provides the dense tensor representation consumed by the optimizer.
//
// Values are always held as float32. A Float16 tensor keeps every value
// rounded to the nearest IEEE 754 half-precision number, which is how
// mixed-precision gradients overflow to ±Inf and why loss scaling exists.
package tensor

import (
	"github.com/x448/float16"
)

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float16
)

// Size returns the byte size of the data type when encoded.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float16:
		return 2
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	default:
		return "unknown"
	}
}

// Round returns v as representable in dt.
func (dt DataType) Round(v float32) float32 {
	if dt == Float16 {
		return float16.Fromfloat32(v).Float32()
	}
	return v
}
