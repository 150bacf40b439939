package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// Int64s returns the dimensions as int64, the form used in checkpoint headers.
func (s Shape) Int64s() []int64 {
	dims := make([]int64, len(s))
	for i, dim := range s {
		dims[i] = int64(dim)
	}
	return dims
}

// ShapeFromInt64s is the inverse of Shape.Int64s.
func ShapeFromInt64s(dims []int64) Shape {
	s := make(Shape, len(dims))
	for i, dim := range dims {
		s[i] = int(dim)
	}
	return s
}
