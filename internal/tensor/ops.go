package tensor

import (
	"fmt"
	"math"

	"github.com/born-ml/amp/internal/parallel"
)

// Map returns a new tensor with f applied to every element.
// The result keeps t's data type, so Float16 results are rounded.
func (t *Tensor) Map(f func(float32) float32) *Tensor {
	out := &Tensor{data: make([]float32, len(t.data)), shape: t.shape.Clone(), dtype: t.dtype}
	parallel.ForChunks(len(t.data), elementwise, func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = t.dtype.Round(f(t.data[i]))
		}
	})
	return out
}

// MulScalar returns t * s.
func (t *Tensor) MulScalar(s float32) *Tensor {
	return t.Map(func(v float32) float32 { return v * s })
}

// ClipByValue returns t with every element clamped to [lo, hi].
func (t *Tensor) ClipByValue(lo, hi float32) *Tensor {
	return t.Map(func(v float32) float32 {
		return min(max(v, lo), hi)
	})
}

// AddScaled returns t + alpha*other.
func (t *Tensor) AddScaled(other *Tensor, alpha float32) (*Tensor, error) {
	if !t.shape.Equal(other.shape) {
		return nil, fmt.Errorf("shape mismatch: %v vs %v", t.shape, other.shape)
	}
	out := &Tensor{data: make([]float32, len(t.data)), shape: t.shape.Clone(), dtype: t.dtype}
	parallel.ForChunks(len(t.data), elementwise, func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = t.dtype.Round(t.data[i] + alpha*other.data[i])
		}
	})
	return out, nil
}

// CastTo returns a copy of t converted to dtype.
func (t *Tensor) CastTo(dtype DataType) *Tensor {
	out := &Tensor{data: make([]float32, len(t.data)), shape: t.shape.Clone(), dtype: dtype}
	parallel.ForChunks(len(t.data), elementwise, func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = dtype.Round(t.data[i])
		}
	})
	return out
}

// SumSquares returns the sum of squared elements, accumulated in float64.
func (t *Tensor) SumSquares() float64 {
	return parallel.Sum(len(t.data), elementwise, func(start, end int) float64 {
		var s float64
		for _, v := range t.data[start:end] {
			s += float64(v) * float64(v)
		}
		return s
	})
}

// L2Norm returns the Euclidean norm of all elements.
func (t *Tensor) L2Norm() float64 {
	return math.Sqrt(t.SumSquares())
}

// AllFinite reports whether no element is NaN or ±Inf.
func (t *Tensor) AllFinite() bool {
	bad := parallel.Sum(len(t.data), elementwise, func(start, end int) float64 {
		for _, v := range t.data[start:end] {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return 1
			}
		}
		return 0
	})
	return bad == 0
}
