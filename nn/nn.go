// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides trainable variables and the constraints that bound them.
//
// Example:
//
//	kernel := nn.NewVariable("dense/kernel", tensor.Zeros(tensor.Shape{784, 10})).
//	    WithConstraint(nn.MaxNorm{Max: 3})
package nn

import (
	"github.com/born-ml/amp/internal/constraint"
	"github.com/born-ml/amp/internal/nn"
	"github.com/born-ml/amp/tensor"
)

// Variable is a trainable parameter with a stable identity and an optional constraint.
type Variable = nn.Variable

// NewVariable creates a trainable variable that owns value.
func NewVariable(name string, value *tensor.Tensor) *Variable {
	return nn.NewVariable(name, value)
}

// Constraint maps a variable value to its constrained value, applied after each update.
type Constraint = constraint.Constraint

// ConstraintFunc adapts a function to Constraint.
type ConstraintFunc = constraint.Func

// Built-in constraints.
type (
	// NonNeg zeroes negative entries.
	NonNeg = constraint.NonNeg
	// MaxNorm caps the L2 norm (per output unit for rank-2 kernels).
	MaxNorm = constraint.MaxNorm
	// UnitNorm rescales to unit L2 norm.
	UnitNorm = constraint.UnitNorm
	// MinMaxNorm pulls the L2 norm into [Min, Max].
	MinMaxNorm = constraint.MinMaxNorm
)
