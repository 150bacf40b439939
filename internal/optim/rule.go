package optim

import (
	"fmt"
	"maps"
	"slices"

	"github.com/pkg/errors"

	"github.com/born-ml/amp/internal/nn"
	"github.com/born-ml/amp/internal/tensor"
)

// UpdateRule is the numeric update primitive an Optimizer delegates to.
//
// The Optimizer owns validation, clipping, weight decay, the iteration
// counter and constraints; an UpdateRule only turns one (gradient, variable)
// pair into a new variable value, keeping whatever per-variable state
// ("slots") it needs.
type UpdateRule interface {
	// Name identifies the rule (e.g., "adam").
	Name() string

	// Build allocates slots for vars. index in Update refers to positions in vars.
	Build(vars []*nn.Variable) error

	// Update applies one step to v in place.
	//
	// grad has v's shape. step is the 1-based number of this update, used
	// for bias correction.
	Update(index int, grad *tensor.Tensor, v *nn.Variable, lr float32, step int64) error

	// Slots returns the rule's state tensors keyed "<slot>/<index>".
	// The returned tensors are live: writing to them restores state.
	Slots() map[string]*tensor.Tensor
}

// KnownRules maps rule names to constructors with default hyperparameters.
var KnownRules = map[string]func() UpdateRule{
	"sgd":      func() UpdateRule { return NewSGD(SGDConfig{}) },
	"momentum": func() UpdateRule { return NewSGD(SGDConfig{Momentum: 0.9}) },
	"nesterov": func() UpdateRule { return NewSGD(SGDConfig{Momentum: 0.9, Nesterov: true}) },
	"adam":     func() UpdateRule { return NewAdam(AdamConfig{}) },
	"amsgrad":  func() UpdateRule { return NewAdam(AdamConfig{AMSGrad: true}) },
}

// RuleByName returns a KnownRules entry.
func RuleByName(name string) (UpdateRule, error) {
	ctor, found := KnownRules[name]
	if !found {
		return nil, errors.Errorf("unknown update rule %q, valid values are %v",
			name, slices.Sorted(maps.Keys(KnownRules)))
	}
	return ctor(), nil
}

// slotKey names a slot tensor for checkpoints.
func slotKey(slot string, index int) string {
	return fmt.Sprintf("%s/%d", slot, index)
}

// zerosLike allocates a Float32 slot shaped like v.
func zerosLike(v *nn.Variable) *tensor.Tensor {
	return tensor.Zeros(v.Shape())
}
