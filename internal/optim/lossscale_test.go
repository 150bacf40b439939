package optim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/amp/internal/nn"
	"github.com/born-ml/amp/internal/optim"
	"github.com/born-ml/amp/internal/tensor"
)

func newLossScale(t *testing.T, cfg optim.LossScaleConfig, vars ...*nn.Variable) *optim.LossScaleOptimizer {
	t.Helper()
	inner, err := optim.New(optim.NewSGD(optim.SGDConfig{}), optim.Config{LR: 1})
	require.NoError(t, err)
	lso, err := optim.NewLossScaleOptimizer(inner, cfg)
	require.NoError(t, err)
	require.NoError(t, lso.Build(vars))
	return lso
}

func TestLossScale_Defaults(t *testing.T) {
	lso := newLossScale(t, optim.LossScaleConfig{}, newVar("p", 0))
	assert.Equal(t, float32(32768), lso.Scale())
	assert.Equal(t, float32(65536), lso.ScaleLoss(2))
}

func TestLossScale_UnscalesGradients(t *testing.T) {
	p := newVar("p", 0)
	lso := newLossScale(t, optim.LossScaleConfig{InitialScale: 8}, p)

	grad := vec(4).CastTo(tensor.Float16)
	iter, err := lso.Apply([]*tensor.Tensor{grad}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), iter)
	assert.Equal(t, []float32{-0.5}, p.Value().Data())
	assert.Equal(t, []float32{4}, grad.Data(), "caller's gradient must not be modified")
}

func TestLossScale_OverflowSkipsStepAndHalvesScale(t *testing.T) {
	p0, p1 := newVar("p0", 1), newVar("p1", 1)
	lso := newLossScale(t, optim.LossScaleConfig{InitialScale: 1024}, p0, p1)

	// 1e5 overflows float16.
	overflow := vec(1e5).CastTo(tensor.Float16)
	require.True(t, math.IsInf(float64(overflow.Data()[0]), 1))

	iter, err := lso.Apply([]*tensor.Tensor{vec(1), overflow}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), iter)
	assert.Equal(t, float32(512), lso.Scale())
	assert.Equal(t, []float32{1}, p0.Value().Data())
	assert.Equal(t, []float32{1}, p1.Value().Data())
}

func TestLossScale_ScaleNeverDropsBelowOne(t *testing.T) {
	lso := newLossScale(t, optim.LossScaleConfig{InitialScale: 2}, newVar("p", 0))
	nan := vec(float32(math.NaN()))
	for range 3 {
		_, err := lso.Apply([]*tensor.Tensor{nan}, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, float32(1), lso.Scale())
}

func TestLossScale_GrowsAfterFiniteSteps(t *testing.T) {
	p := newVar("p", 0)
	lso := newLossScale(t, optim.LossScaleConfig{InitialScale: 4, GrowthSteps: 3}, p)

	for range 2 {
		_, err := lso.Apply([]*tensor.Tensor{vec(1)}, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, float32(4), lso.Scale())

	// All-empty gradients are a no-op and do not count as a finite step.
	_, err := lso.Apply([]*tensor.Tensor{nil}, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(4), lso.Scale())

	_, err = lso.Apply([]*tensor.Tensor{vec(1)}, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(8), lso.Scale())
	assert.Equal(t, int64(3), lso.Iterations())
}

func TestLossScale_OverflowResetsGrowth(t *testing.T) {
	lso := newLossScale(t, optim.LossScaleConfig{InitialScale: 4, GrowthSteps: 2}, newVar("p", 0))
	inf := vec(float32(math.Inf(1)))

	_, err := lso.Apply([]*tensor.Tensor{vec(1)}, nil)
	require.NoError(t, err)
	_, err = lso.Apply([]*tensor.Tensor{inf}, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(2), lso.Scale())
	_, err = lso.Apply([]*tensor.Tensor{vec(1)}, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(2), lso.Scale(), "growth counter restarts after overflow")
}

func TestLossScale_Static(t *testing.T) {
	p := newVar("p", 0)
	lso := newLossScale(t, optim.LossScaleConfig{InitialScale: 4, GrowthSteps: 1, Static: true}, p)

	_, err := lso.Apply([]*tensor.Tensor{vec(1)}, nil)
	require.NoError(t, err)
	_, err = lso.Apply([]*tensor.Tensor{vec(float32(math.Inf(-1)))}, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(4), lso.Scale())
	assert.Equal(t, int64(1), lso.Iterations())
}

func TestLossScale_PropagatesPairingErrors(t *testing.T) {
	p := newVar("p", 0)
	inner, err := optim.New(optim.NewSGD(optim.SGDConfig{}), optim.Config{})
	require.NoError(t, err)
	lso, err := optim.NewLossScaleOptimizer(inner, optim.LossScaleConfig{})
	require.NoError(t, err)

	_, err = lso.Apply([]*tensor.Tensor{vec(1)}, nil)
	assert.ErrorIs(t, err, optim.ErrUnbuilt)

	require.NoError(t, lso.Build([]*nn.Variable{p}))
	inf := vec(float32(math.Inf(1)))
	_, err = lso.Apply([]*tensor.Tensor{inf, inf}, nil)
	assert.ErrorIs(t, err, optim.ErrCardinalityMismatch)
	_, err = lso.Apply([]*tensor.Tensor{inf}, []*nn.Variable{newVar("q", 0)})
	assert.ErrorIs(t, err, optim.ErrUnknownVariable)
	assert.Equal(t, float32(32768), lso.Scale(), "malformed calls must not adjust the scale")

	iter, err := lso.Apply(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), iter)
}

func TestLossScale_InvalidConfig(t *testing.T) {
	_, err := optim.NewLossScaleOptimizer(nil, optim.LossScaleConfig{})
	assert.ErrorIs(t, err, optim.ErrInvalidConfig)

	inner, err := optim.New(optim.NewSGD(optim.SGDConfig{}), optim.Config{})
	require.NoError(t, err)
	_, err = optim.NewLossScaleOptimizer(inner, optim.LossScaleConfig{InitialScale: 0.5})
	assert.ErrorIs(t, err, optim.ErrInvalidConfig)
}

func TestLossScale_GrowthStopsAtFloat32Limit(t *testing.T) {
	p := newVar("p", 0)
	lso := newLossScale(t, optim.LossScaleConfig{InitialScale: float32(math.Ldexp(1, 126)), GrowthSteps: 1}, p)
	limit := float32(math.Ldexp(1, 127))

	for i := range 5 {
		iter, err := lso.Apply([]*tensor.Tensor{vec(lso.ScaleLoss(1e-30))}, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), iter, "finite steps keep advancing")
		assert.Equal(t, limit, lso.Scale())
	}
	assert.False(t, math.IsInf(float64(lso.ScaleLoss(1)), 0))
}

func TestLossScale_ShapeMismatchReportedOnOverflow(t *testing.T) {
	p := newVar("p", 0, 0)
	lso := newLossScale(t, optim.LossScaleConfig{InitialScale: 4}, p)

	_, err := lso.Apply([]*tensor.Tensor{vec(float32(math.Inf(1)))}, nil)
	assert.ErrorIs(t, err, optim.ErrShapeMismatch)
	assert.Equal(t, float32(4), lso.Scale())
	assert.Equal(t, int64(0), lso.Iterations())
}

func TestLossScale_RejectsNonFiniteScale(t *testing.T) {
	inner, err := optim.New(optim.NewSGD(optim.SGDConfig{}), optim.Config{})
	require.NoError(t, err)
	for _, scale := range []float32{float32(math.NaN()), float32(math.Inf(1))} {
		_, err = optim.NewLossScaleOptimizer(inner, optim.LossScaleConfig{InitialScale: scale})
		assert.ErrorIs(t, err, optim.ErrInvalidConfig, "scale %g", scale)
	}

	lso := newLossScale(t, optim.LossScaleConfig{InitialScale: 8}, newVar("p", 0))
	assert.ErrorIs(t, lso.SetScale(float32(math.NaN())), optim.ErrInvalidConfig)
	assert.ErrorIs(t, lso.SetScale(0.5), optim.ErrInvalidConfig)
	assert.Equal(t, float32(8), lso.Scale())
	require.NoError(t, lso.SetScale(2))
	assert.Equal(t, float32(2), lso.Scale())
}
