package optim

import (
	"math"

	"github.com/born-ml/amp/internal/nn"
	"github.com/born-ml/amp/internal/tensor"
)

// gradVar is one surviving (gradient, variable) pair.
// index is the variable's position in the optimizer's tracked list.
type gradVar struct {
	index    int
	grad     *tensor.Tensor
	variable *nn.Variable
}

// clipGradients replaces each pair's gradient by its clipped version.
// Caller-owned gradient tensors are never written.
func clipGradients(pairs []gradVar, cfg Config) {
	switch {
	case cfg.ClipNorm > 0:
		for i := range pairs {
			pairs[i].grad = clipByNorm(pairs[i].grad, cfg.ClipNorm)
		}

	case cfg.GlobalClipNorm > 0:
		var sumSquares float64
		for _, p := range pairs {
			sumSquares += p.grad.SumSquares()
		}
		globalNorm := math.Sqrt(sumSquares)
		if globalNorm <= cfg.GlobalClipNorm {
			return
		}
		scale := float32(cfg.GlobalClipNorm / globalNorm)
		for i := range pairs {
			pairs[i].grad = pairs[i].grad.MulScalar(scale)
		}

	case cfg.ClipValue > 0:
		limit := float32(cfg.ClipValue)
		for i := range pairs {
			pairs[i].grad = pairs[i].grad.ClipByValue(-limit, limit)
		}
	}
}

// clipByNorm rescales g so its L2 norm is at most maxNorm.
func clipByNorm(g *tensor.Tensor, maxNorm float64) *tensor.Tensor {
	norm := g.L2Norm()
	if norm <= maxNorm {
		return g
	}
	return g.MulScalar(float32(maxNorm / norm))
}
