// Package constraint implements post-update projections for trainable variables.
//
// Norm-based constraints follow the usual layer convention: for a rank-2
// kernel of shape [in, out] the norm is taken per output unit (over axis 0);
// for any other rank it is taken over the whole tensor.
package constraint

import (
	"math"

	"github.com/born-ml/amp/internal/parallel"
	"github.com/born-ml/amp/internal/tensor"
)

// epsilon guards the norm division.
const epsilon = 1e-7

var elementwise = parallel.DefaultConfig()

// Constraint maps a variable value to its constrained value.
// Apply must not modify its input.
type Constraint interface {
	Apply(value *tensor.Tensor) *tensor.Tensor
}

// Func adapts an ordinary function to Constraint.
type Func func(value *tensor.Tensor) *tensor.Tensor

// Apply implements Constraint.
func (f Func) Apply(value *tensor.Tensor) *tensor.Tensor {
	return f(value)
}

// NonNeg zeroes negative entries.
type NonNeg struct{}

// Apply implements Constraint.
func (NonNeg) Apply(value *tensor.Tensor) *tensor.Tensor {
	return value.Map(func(v float32) float32 { return max(v, 0) })
}

// MaxNorm rescales each group whose L2 norm exceeds Max down to Max.
type MaxNorm struct {
	Max float64
}

// Apply implements Constraint.
func (c MaxNorm) Apply(value *tensor.Tensor) *tensor.Tensor {
	return rescale(value, func(norm float64) float64 {
		return math.Min(math.Max(norm, 0), c.Max)
	})
}

// UnitNorm rescales each group to unit L2 norm.
type UnitNorm struct{}

// Apply implements Constraint.
func (UnitNorm) Apply(value *tensor.Tensor) *tensor.Tensor {
	return rescale(value, func(float64) float64 { return 1 })
}

// MinMaxNorm pulls each group's L2 norm into [Min, Max].
//
// Rate in (0, 1] controls how far: 1 enforces the bounds exactly, smaller
// values move the norm only part of the way. A zero Rate is treated as 1.
type MinMaxNorm struct {
	Min, Max float64
	Rate     float64
}

// Apply implements Constraint.
func (c MinMaxNorm) Apply(value *tensor.Tensor) *tensor.Tensor {
	rate := c.Rate
	if rate == 0 {
		rate = 1
	}
	return rescale(value, func(norm float64) float64 {
		clipped := math.Min(math.Max(norm, c.Min), c.Max)
		return rate*clipped + (1-rate)*norm
	})
}

// rescale multiplies every group by desired(norm)/(epsilon+norm).
func rescale(value *tensor.Tensor, desired func(norm float64) float64) *tensor.Tensor {
	groupOf, numGroups := groups(value.Shape())
	sums := make([]float64, numGroups)
	for i, v := range value.Data() {
		sums[groupOf(i)] += float64(v) * float64(v)
	}
	scales := make([]float32, numGroups)
	for g, s := range sums {
		norm := math.Sqrt(s)
		scales[g] = float32(desired(norm) / (epsilon + norm))
	}

	out := value.Clone()
	data := out.Data()
	round := value.DType().Round
	parallel.For(len(data), func(i int) {
		data[i] = round(data[i] * scales[groupOf(i)])
	}, elementwise)
	return out
}

// groups returns the element-to-group mapping for norm constraints.
func groups(shape tensor.Shape) (func(i int) int, int) {
	if len(shape) == 2 {
		cols := shape[1]
		return func(i int) int { return i % cols }, cols
	}
	return func(int) int { return 0 }, 1
}
