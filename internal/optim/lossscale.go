package optim

import (
	"math"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/amp/internal/nn"
	"github.com/born-ml/amp/internal/tensor"
)

// LossScaleConfig configures a LossScaleOptimizer.
type LossScaleConfig struct {
	// InitialScale is the starting loss scale (default: 2^15).
	InitialScale float32

	// GrowthSteps is the number of consecutive finite steps after which the
	// scale doubles (default: 2000).
	GrowthSteps int

	// Static disables scale adjustment: overflowing steps are still skipped.
	Static bool
}

// LossScaleOptimizer wraps an Optimizer for training with half-precision gradients.
//
// The loss is multiplied by a scale before differentiation so small
// gradients survive float16, and Apply divides the scale back out. When any
// gradient overflowed the step is skipped and the scale halves; after
// GrowthSteps clean steps it doubles.
//
// Example:
//
//	lso, err := optim.NewLossScaleOptimizer(opt, optim.LossScaleConfig{})
//	loss := lso.ScaleLoss(computeLoss(batch))
//	grads := backward(loss) // float16 gradients of the scaled loss
//	_, err = lso.Apply(grads, nil)
type LossScaleOptimizer struct {
	inner       *Optimizer
	scale       float32
	growthSteps int
	goodSteps   int
	static      bool
}

// NewLossScaleOptimizer wraps inner, which may or may not be built yet.
func NewLossScaleOptimizer(inner *Optimizer, config LossScaleConfig) (*LossScaleOptimizer, error) {
	if inner == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "inner optimizer is nil")
	}
	if config.InitialScale == 0 {
		config.InitialScale = 1 << 15
	}
	if config.GrowthSteps == 0 {
		config.GrowthSteps = 2000
	}
	if err := CheckLossScale(config.InitialScale); err != nil {
		return nil, err
	}
	if config.GrowthSteps < 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "growth steps must be >= 0, got %d", config.GrowthSteps)
	}
	return &LossScaleOptimizer{
		inner:       inner,
		scale:       config.InitialScale,
		growthSteps: config.GrowthSteps,
		static:      config.Static,
	}, nil
}

// Inner returns the wrapped optimizer.
func (l *LossScaleOptimizer) Inner() *Optimizer {
	return l.inner
}

// Build builds the wrapped optimizer.
func (l *LossScaleOptimizer) Build(vars []*nn.Variable) error {
	return l.inner.Build(vars)
}

// Iterations returns the wrapped optimizer's iteration count.
func (l *LossScaleOptimizer) Iterations() int64 {
	return l.inner.Iterations()
}

// Scale returns the current loss scale.
func (l *LossScaleOptimizer) Scale() float32 {
	return l.scale
}

// CheckLossScale returns ErrInvalidConfig unless scale is finite and >= 1.
func CheckLossScale(scale float32) error {
	if !(scale >= 1) || math.IsInf(float64(scale), 1) {
		return errors.Wrapf(ErrInvalidConfig, "loss scale must be finite and >= 1, got %g", scale)
	}
	return nil
}

// SetScale overrides the loss scale and resets the growth counter, for restoring checkpoints.
func (l *LossScaleOptimizer) SetScale(scale float32) error {
	if err := CheckLossScale(scale); err != nil {
		return errors.WithMessagef(err, "optimizer %q", l.inner.Name())
	}
	l.scale = scale
	l.goodSteps = 0
	return nil
}

// ScaleLoss multiplies loss by the current scale.
func (l *LossScaleOptimizer) ScaleLoss(loss float32) float32 {
	return loss * l.scale
}

// Apply unscales grads and applies them through the wrapped optimizer.
//
// grads are gradients of the scaled loss, in any data type; they are
// converted to float32 before unscaling and are not modified. Pairing
// errors are reported exactly as Optimizer.Apply reports them, even on a
// step that overflowed. An overflowing step changes no variable and does
// not advance the iteration count.
func (l *LossScaleOptimizer) Apply(grads []*tensor.Tensor, vars []*nn.Variable) (int64, error) {
	if len(grads) == 0 {
		return l.inner.Iterations(), nil
	}
	resolved, err := l.inner.resolveVariables(grads, vars)
	if err != nil {
		return l.inner.Iterations(), err
	}
	for i, g := range grads {
		if g == nil {
			continue
		}
		if err := l.inner.checkGradientShape(g, resolved[i]); err != nil {
			return l.inner.Iterations(), err
		}
	}

	inv := 1 / l.scale
	unscaled := make([]*tensor.Tensor, len(grads))
	finite := true
	for i, g := range grads {
		if g == nil {
			continue
		}
		if !g.AllFinite() {
			finite = false
			break
		}
		unscaled[i] = g.CastTo(tensor.Float32).MulScalar(inv)
	}

	if !finite {
		l.onOverflow()
		return l.inner.Iterations(), nil
	}

	before := l.inner.Iterations()
	iterations, err := l.inner.Apply(unscaled, vars)
	if err != nil {
		return iterations, err
	}
	if iterations > before {
		l.onFiniteStep()
	}
	return iterations, nil
}

func (l *LossScaleOptimizer) onOverflow() {
	l.goodSteps = 0
	if l.static {
		klog.Warningf("optimizer %q: non-finite gradients at static loss scale %g, skipping step",
			l.inner.Name(), l.scale)
		return
	}
	l.scale = max(l.scale/2, 1)
	klog.Warningf("optimizer %q: non-finite gradients, skipping step and reducing loss scale to %g",
		l.inner.Name(), l.scale)
}

func (l *LossScaleOptimizer) onFiniteStep() {
	if l.static {
		return
	}
	l.goodSteps++
	if l.goodSteps < l.growthSteps {
		return
	}
	l.goodSteps = 0
	grown := l.scale * 2
	if math.IsInf(float64(grown), 1) {
		klog.V(1).Infof("optimizer %q: loss scale %g is at the float32 limit, not increasing",
			l.inner.Name(), l.scale)
		return
	}
	l.scale = grown
	klog.V(1).Infof("optimizer %q: %d finite steps, increasing loss scale to %g",
		l.inner.Name(), l.growthSteps, l.scale)
}
