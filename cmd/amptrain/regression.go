package main

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/born-ml/amp/nn"
	"github.com/born-ml/amp/tensor"
)

// regression is a linear model y = x·w + b fitted with mean squared error.
// Gradients are computed analytically on the scaled loss and stored as
// float16, the way a half-precision backward pass would produce them.
type regression struct {
	features int
	w, b     *nn.Variable
}

func newRegression(features int) *regression {
	return &regression{
		features: features,
		w:        nn.NewVariable("linear/w", tensor.Zeros(tensor.Shape{features})),
		b:        nn.NewVariable("linear/b", tensor.Zeros(tensor.Shape{1})),
	}
}

func (r *regression) variables() []*nn.Variable {
	return []*nn.Variable{r.w, r.b}
}

// batch is a set of examples: x is [n, features] row-major, y is [n].
type batch struct {
	x, y []float32
}

// syntheticBatch draws n examples from y = x·trueW + trueB + noise.
func syntheticBatch(rng *rand.Rand, n int, trueW []float32, trueB float32) batch {
	features := len(trueW)
	b := batch{x: make([]float32, n*features), y: make([]float32, n)}
	for i := range n {
		y := trueB
		for j := range features {
			v := float32(rng.NormFloat64())
			b.x[i*features+j] = v
			y += v * trueW[j]
		}
		b.y[i] = y + 0.01*float32(rng.NormFloat64())
	}
	return b
}

// lossAndGrads returns the unscaled MSE and float16 gradients of scale*MSE.
func (r *regression) lossAndGrads(data batch, scale float32) (float32, []*tensor.Tensor, error) {
	n := len(data.y)
	if n == 0 || len(data.x) != n*r.features {
		return 0, nil, errors.Errorf("malformed batch: %d targets, %d inputs for %d features", n, len(data.x), r.features)
	}
	w := r.w.Value().Data()
	bias := r.b.Value().Data()[0]

	gw := make([]float32, r.features)
	var gb, loss float32
	for i := range n {
		pred := bias
		row := data.x[i*r.features : (i+1)*r.features]
		for j, v := range row {
			pred += v * w[j]
		}
		diff := pred - data.y[i]
		loss += diff * diff
		for j, v := range row {
			gw[j] += 2 * diff * v
		}
		gb += 2 * diff
	}
	inv := 1 / float32(n)

	gradW, err := tensor.FromSlice(gw, tensor.Shape{r.features})
	if err != nil {
		return 0, nil, err
	}
	gradB, err := tensor.FromSlice([]float32{gb}, tensor.Shape{1})
	if err != nil {
		return 0, nil, err
	}
	grads := []*tensor.Tensor{
		gradW.MulScalar(scale * inv).CastTo(tensor.Float16),
		gradB.MulScalar(scale * inv).CastTo(tensor.Float16),
	}
	return loss * inv, grads, nil
}
