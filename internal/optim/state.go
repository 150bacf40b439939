package optim

import (
	"github.com/pkg/errors"

	"github.com/born-ml/amp/internal/tensor"
)

// StateDict returns the update rule's slot tensors keyed "<name>/<slot>/<index>".
//
// The tensors are live; use Clone before mutating a copy.
func (o *Optimizer) StateDict() map[string]*tensor.Tensor {
	slots := o.rule.Slots()
	state := make(map[string]*tensor.Tensor, len(slots))
	for key, t := range slots {
		state[o.cfg.Name+"/"+key] = t
	}
	return state
}

// LoadStateDict restores slot tensors saved by StateDict.
//
// The optimizer must be built with variables of the same shapes, in the same
// order. Keys missing from state leave the slot untouched; unknown keys are
// an error.
func (o *Optimizer) LoadStateDict(state map[string]*tensor.Tensor) error {
	if !o.built {
		return errors.Wrapf(ErrUnbuilt, "optimizer %q: build before loading state", o.cfg.Name)
	}

	live := o.StateDict()
	for key, saved := range state {
		slot, found := live[key]
		if !found {
			return errors.Errorf("optimizer %q: unexpected state entry %q", o.cfg.Name, key)
		}
		if !slot.Shape().Equal(saved.Shape()) {
			return errors.Errorf("optimizer %q: state entry %q has shape %v, expected %v",
				o.cfg.Name, key, saved.Shape(), slot.Shape())
		}
	}
	for key, saved := range state {
		if err := live[key].CopyFrom(saved); err != nil {
			return errors.Wrapf(err, "optimizer %q: restoring %q", o.cfg.Name, key)
		}
	}
	return nil
}

// SetIterations overrides the iteration counter, for restoring checkpoints.
func (o *Optimizer) SetIterations(iterations int64) {
	o.iterations = iterations
}
