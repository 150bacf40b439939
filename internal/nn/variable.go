// Package nn holds the trainable variable type shared by optimizers and models.
package nn

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/born-ml/amp/internal/constraint"
	"github.com/born-ml/amp/internal/tensor"
)

// Variable is a trainable parameter: a mutable tensor with a stable identity.
//
// Optimizers bind gradients to variables by position and track them by ID,
// so two variables with the same name are still distinct.
//
// Example:
//
//	w := nn.NewVariable("dense/kernel", kernel).
//	    WithConstraint(constraint.MaxNorm{Max: 2})
type Variable struct {
	id         uuid.UUID
	name       string
	value      *tensor.Tensor
	trainable  bool
	constraint constraint.Constraint // nil when unconstrained
}

// NewVariable creates a trainable variable that owns value.
func NewVariable(name string, value *tensor.Tensor) *Variable {
	return &Variable{
		id:        uuid.New(),
		name:      name,
		value:     value,
		trainable: true,
	}
}

// ID returns the variable's unique identity.
func (v *Variable) ID() uuid.UUID {
	return v.id
}

// Name returns the variable name (e.g., "dense/kernel").
func (v *Variable) Name() string {
	return v.name
}

// Value returns the variable's tensor. Writes to it mutate the variable.
func (v *Variable) Value() *tensor.Tensor {
	return v.value
}

// Shape returns the shape of the variable's value.
func (v *Variable) Shape() tensor.Shape {
	return v.value.Shape()
}

// Trainable reports whether optimizers may update this variable.
func (v *Variable) Trainable() bool {
	return v.trainable
}

// SetTrainable marks the variable as trainable or frozen. It returns v for chaining.
func (v *Variable) SetTrainable(trainable bool) *Variable {
	v.trainable = trainable
	return v
}

// Constraint returns the post-update projection, or nil.
func (v *Variable) Constraint() constraint.Constraint {
	return v.constraint
}

// WithConstraint sets the post-update projection. Pass nil to remove it.
func (v *Variable) WithConstraint(c constraint.Constraint) *Variable {
	v.constraint = c
	return v
}

// Assign copies t into the variable's storage in place.
func (v *Variable) Assign(t *tensor.Tensor) error {
	if err := v.value.CopyFrom(t); err != nil {
		return errors.Wrapf(err, "assign to variable %q", v.name)
	}
	return nil
}

// String implements fmt.Stringer.
func (v *Variable) String() string {
	return fmt.Sprintf("Variable(%s, %v)", v.name, v.value.Shape())
}
