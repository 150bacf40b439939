// Package optim implements gradient application for training neural networks.
//
// This package provides:
//   - Optimizer: validates gradient/variable pairing, clips gradients, applies
//     weight decay, delegates to an UpdateRule and enforces constraints
//   - UpdateRule implementations: SGD (with momentum / Nesterov) and Adam (with AMSGrad)
//   - LossScaleOptimizer: dynamic loss scaling for half-precision gradients
//   - Schedule implementations for the learning rate
//
// Example usage:
//
//	opt, err := optim.New(optim.NewAdam(optim.AdamConfig{}), optim.Config{
//	    LR:          0.001,
//	    WeightDecay: 0.004,
//	})
//	if err := opt.Build(model.Variables()); err != nil { ... }
//
//	for step := range steps {
//	    grads := computeGradients(model, batch) // one per variable, nil if none
//	    if _, err := opt.Apply(grads, nil); err != nil { ... }
//	}
//
// An Optimizer is not safe for concurrent use: callers serialize Apply.
package optim

import (
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/amp/internal/nn"
	"github.com/born-ml/amp/internal/tensor"
)

// Optimizer applies gradients to the variables it was built with.
//
// Lifecycle is two-phase: Build registers the variables once, in a fixed
// order, and every Apply afterwards binds gradients to them by position.
type Optimizer struct {
	cfg  Config
	rule UpdateRule

	built      bool
	variables  []*nn.Variable
	index      map[uuid.UUID]int
	iterations int64
}

// New creates an unbuilt optimizer that delegates updates to rule.
func New(rule UpdateRule, config Config) (*Optimizer, error) {
	if rule == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "update rule is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Optimizer{
		cfg:  config.withDefaults(rule),
		rule: rule,
	}, nil
}

// Name returns the optimizer's scope name.
func (o *Optimizer) Name() string {
	return o.cfg.Name
}

// Built reports whether Build has been called.
func (o *Optimizer) Built() bool {
	return o.built
}

// Iterations returns the number of successful updates applied so far.
func (o *Optimizer) Iterations() int64 {
	return o.iterations
}

// Variables returns the tracked variables in build order.
func (o *Optimizer) Variables() []*nn.Variable {
	return slices.Clone(o.variables)
}

// Rule returns the update rule.
func (o *Optimizer) Rule() UpdateRule {
	return o.rule
}

// LearningRate returns the learning rate the next Apply will use.
func (o *Optimizer) LearningRate() float32 {
	return o.cfg.Schedule.LearningRate(o.iterations)
}

// Build registers vars as the optimizer's trainable variables and lets the
// update rule allocate its slots. It must be called exactly once, before Apply.
func (o *Optimizer) Build(vars []*nn.Variable) error {
	if o.built {
		return errors.Wrapf(ErrAlreadyBuilt, "optimizer %q", o.cfg.Name)
	}

	index := make(map[uuid.UUID]int, len(vars))
	var numParams int
	for i, v := range vars {
		if !v.Trainable() {
			return errors.Wrapf(ErrNotTrainable, "optimizer %q: variable %q", o.cfg.Name, v.Name())
		}
		if _, found := index[v.ID()]; found {
			return errors.Wrapf(ErrDuplicateVariable, "optimizer %q: variable %q", o.cfg.Name, v.Name())
		}
		index[v.ID()] = i
		numParams += v.Value().NumElements()
	}

	tracked := slices.Clone(vars)
	if err := o.rule.Build(tracked); err != nil {
		return errors.WithMessagef(err, "optimizer %q: building %s slots", o.cfg.Name, o.rule.Name())
	}

	o.variables = tracked
	o.index = index
	o.built = true
	klog.V(1).Infof("optimizer %q: built %s rule for %d variables (%s parameters)",
		o.cfg.Name, o.rule.Name(), len(vars), humanize.Comma(int64(numParams)))
	return nil
}

// Apply applies one update step.
//
// grads[i] is the gradient for vars[i]; a nil gradient means "no update for
// this variable". If vars is nil the variables given to Build are used, and
// grads must match them one-to-one.
//
// Order of operations: drop nil gradients, clip, decay variables, delegate
// to the update rule, then project constrained variables. Validation happens
// before any mutation, so a failed call changes nothing.
//
// It returns the iteration count after the call. An empty grads slice, or
// one holding only nil gradients, is a no-op that returns the unchanged count.
func (o *Optimizer) Apply(grads []*tensor.Tensor, vars []*nn.Variable) (int64, error) {
	if len(grads) == 0 {
		return o.iterations, nil
	}

	vars, err := o.resolveVariables(grads, vars)
	if err != nil {
		return o.iterations, err
	}

	pairs, err := o.filterEmptyGradients(grads, vars)
	if err != nil {
		return o.iterations, err
	}
	if len(pairs) == 0 {
		klog.V(1).Infof("optimizer %q: all %d gradients are empty, skipping update", o.cfg.Name, len(grads))
		return o.iterations, nil
	}

	lr := o.LearningRate()
	clipGradients(pairs, o.cfg)
	if err := o.applyWeightDecay(pairs, lr); err != nil {
		return o.iterations, errors.WithMessagef(err, "optimizer %q: weight decay", o.cfg.Name)
	}

	step := o.iterations + 1
	for _, p := range pairs {
		if err := o.rule.Update(p.index, p.grad, p.variable, lr, step); err != nil {
			return o.iterations, errors.WithMessagef(err, "optimizer %q: updating %q", o.cfg.Name, p.variable.Name())
		}
	}
	o.iterations = step

	if err := applyConstraints(pairs); err != nil {
		return o.iterations, errors.WithMessagef(err, "optimizer %q", o.cfg.Name)
	}
	klog.V(2).Infof("optimizer %q: step %d applied to %d variables (lr=%g)", o.cfg.Name, step, len(pairs), lr)
	return o.iterations, nil
}

// resolveVariables returns the variables grads binds to, or the reason the
// pairing is malformed.
func (o *Optimizer) resolveVariables(grads []*tensor.Tensor, vars []*nn.Variable) ([]*nn.Variable, error) {
	if !o.built {
		if vars == nil {
			return nil, errors.Wrapf(ErrUnbuilt,
				"optimizer %q: gradients passed without variables, call Build(variables) first", o.cfg.Name)
		}
		return nil, errors.Wrapf(ErrUnbuilt, "optimizer %q: call Build(variables) before Apply", o.cfg.Name)
	}

	if vars == nil {
		if len(grads) != len(o.variables) {
			return nil, errors.Wrapf(ErrCardinalityMismatch,
				"optimizer %q: received %d gradients, but the optimizer is tracking %d trainable variables",
				o.cfg.Name, len(grads), len(o.variables))
		}
		return o.variables, nil
	}

	vars = slices.Clone(vars)
	if err := o.checkVariablesAreKnown(vars); err != nil {
		return nil, err
	}
	if len(grads) != len(vars) {
		return nil, errors.Wrapf(ErrCardinalityMismatch,
			"optimizer %q: received %d gradients for %d variables", o.cfg.Name, len(grads), len(vars))
	}
	return vars, nil
}

func (o *Optimizer) checkVariablesAreKnown(vars []*nn.Variable) error {
	for _, v := range vars {
		if _, found := o.index[v.ID()]; !found {
			return errors.Wrapf(ErrUnknownVariable,
				"optimizer %q: variable %q was not passed to Build", o.cfg.Name, v.Name())
		}
	}
	return nil
}

// filterEmptyGradients pairs non-nil gradients with their variables and
// checks their shapes.
func (o *Optimizer) filterEmptyGradients(grads []*tensor.Tensor, vars []*nn.Variable) ([]gradVar, error) {
	pairs := make([]gradVar, 0, len(grads))
	var missing []string
	for i, g := range grads {
		v := vars[i]
		if g == nil {
			missing = append(missing, v.Name())
			continue
		}
		if err := o.checkGradientShape(g, v); err != nil {
			return nil, err
		}
		pairs = append(pairs, gradVar{index: o.index[v.ID()], grad: g, variable: v})
	}
	if len(missing) > 0 && len(pairs) > 0 {
		klog.Warningf("optimizer %q: gradients do not exist for variables %v", o.cfg.Name, missing)
	}
	return pairs, nil
}

func (o *Optimizer) checkGradientShape(g *tensor.Tensor, v *nn.Variable) error {
	if !g.Shape().Equal(v.Shape()) {
		return errors.Wrapf(ErrShapeMismatch, "optimizer %q: variable %q has shape %v, gradient has %v",
			o.cfg.Name, v.Name(), v.Shape(), g.Shape())
	}
	return nil
}

// applyWeightDecay applies decoupled decay, v -= v * lr * WeightDecay, in place.
func (o *Optimizer) applyWeightDecay(pairs []gradVar, lr float32) error {
	if o.cfg.WeightDecay == 0 {
		return nil
	}
	for _, p := range pairs {
		if o.excludedFromWeightDecay(p.variable) {
			continue
		}
		value := p.variable.Value()
		decayed, err := value.AddScaled(value, -lr*o.cfg.WeightDecay)
		if err != nil {
			return err
		}
		if err := p.variable.Assign(decayed); err != nil {
			return err
		}
	}
	return nil
}

func (o *Optimizer) excludedFromWeightDecay(v *nn.Variable) bool {
	for _, pattern := range o.cfg.ExcludeFromWeightDecay {
		if strings.Contains(v.Name(), pattern) {
			return true
		}
	}
	return false
}

// applyConstraints projects every constrained variable after its update.
func applyConstraints(pairs []gradVar) error {
	for _, p := range pairs {
		c := p.variable.Constraint()
		if c == nil {
			continue
		}
		if err := p.variable.Assign(c.Apply(p.variable.Value())); err != nil {
			return errors.WithMessage(err, "applying constraint")
		}
	}
	return nil
}
