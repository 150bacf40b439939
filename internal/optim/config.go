package optim

import (
	"github.com/pkg/errors"
)

// Config holds the settings shared by every optimizer, independent of the update rule.
//
// Zero values select defaults, as in SGDConfig and AdamConfig.
type Config struct {
	// Name scopes slot variables and log lines (default: the update rule's name).
	Name string

	// LR is the constant learning rate (default: 0.001). Ignored when Schedule is set.
	LR float32

	// Schedule, if set, gives the learning rate as a function of the iteration count.
	Schedule Schedule

	// ClipNorm clips each gradient to this L2 norm (0: disabled).
	ClipNorm float64

	// GlobalClipNorm clips all gradients jointly so their global L2 norm is at most this (0: disabled).
	GlobalClipNorm float64

	// ClipValue clamps every gradient element to [-ClipValue, ClipValue] (0: disabled).
	ClipValue float64

	// WeightDecay is the decoupled decay rate: v -= v * lr * WeightDecay (0: disabled).
	WeightDecay float32

	// ExcludeFromWeightDecay lists substrings; variables whose name contains one are not decayed.
	ExcludeFromWeightDecay []string
}

// Validate checks for conflicting or out-of-range settings.
func (c Config) Validate() error {
	set := 0
	for _, v := range []float64{c.ClipNorm, c.GlobalClipNorm, c.ClipValue} {
		if v != 0 {
			set++
		}
	}
	if set > 1 {
		return errors.Wrap(ErrInvalidConfig, "only one of ClipNorm, GlobalClipNorm and ClipValue can be set")
	}
	if c.ClipNorm < 0 || c.GlobalClipNorm < 0 || c.ClipValue < 0 {
		return errors.Wrapf(ErrInvalidConfig, "clipping thresholds must be non-negative, got ClipNorm=%g GlobalClipNorm=%g ClipValue=%g",
			c.ClipNorm, c.GlobalClipNorm, c.ClipValue)
	}
	if c.LR < 0 {
		return errors.Wrapf(ErrInvalidConfig, "learning rate must be non-negative, got %g", c.LR)
	}
	if c.WeightDecay < 0 {
		return errors.Wrapf(ErrInvalidConfig, "weight decay must be non-negative, got %g", c.WeightDecay)
	}
	return nil
}

func (c Config) withDefaults(rule UpdateRule) Config {
	if c.Name == "" {
		c.Name = rule.Name()
	}
	if c.LR == 0 {
		c.LR = 0.001
	}
	if c.Schedule == nil {
		c.Schedule = Constant(c.LR)
	}
	return c
}
