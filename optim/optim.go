// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/amp/internal/optim"
)

// Optimizer applies gradients to the variables it was built with.
type Optimizer = optim.Optimizer

// Config holds the settings shared by every optimizer.
type Config = optim.Config

// New creates an unbuilt optimizer that delegates updates to rule.
func New(rule UpdateRule, config Config) (*Optimizer, error) {
	return optim.New(rule, config)
}

// Update rules

// UpdateRule is the numeric update primitive an Optimizer delegates to.
type UpdateRule = optim.UpdateRule

// SGD represents the SGD update rule with optional (Nesterov) momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD update rule.
//
// Example:
//
//	opt, err := optim.New(optim.NewSGD(optim.SGDConfig{Momentum: 0.9}), optim.Config{LR: 0.01})
func NewSGD(config SGDConfig) *SGD {
	return optim.NewSGD(config)
}

// Adam represents the Adam update rule.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam update rule with bias correction.
//
// Example:
//
//	opt, err := optim.New(
//	    optim.NewAdam(optim.AdamConfig{Betas: [2]float32{0.9, 0.999}}),
//	    optim.Config{LR: 0.001, WeightDecay: 0.004}, // AdamW
//	)
func NewAdam(config AdamConfig) *Adam {
	return optim.NewAdam(config)
}

// RuleByName returns an update rule with default hyperparameters:
// "sgd", "momentum", "nesterov", "adam" or "amsgrad".
func RuleByName(name string) (UpdateRule, error) {
	return optim.RuleByName(name)
}

// Loss scaling

// LossScaleOptimizer wraps an Optimizer with dynamic loss scaling.
type LossScaleOptimizer = optim.LossScaleOptimizer

// LossScaleConfig configures a LossScaleOptimizer.
type LossScaleConfig = optim.LossScaleConfig

// NewLossScaleOptimizer wraps inner.
func NewLossScaleOptimizer(inner *Optimizer, config LossScaleConfig) (*LossScaleOptimizer, error) {
	return optim.NewLossScaleOptimizer(inner, config)
}

// CheckLossScale reports whether scale is a usable loss scale.
func CheckLossScale(scale float32) error {
	return optim.CheckLossScale(scale)
}

// Learning-rate schedules

// Schedule gives the learning rate for an iteration count.
type Schedule = optim.Schedule

// Constant is a fixed learning rate.
type Constant = optim.Constant

// ExponentialDecay decays the learning rate geometrically.
type ExponentialDecay = optim.ExponentialDecay

// CosineDecay anneals the learning rate with warm-up and restarts.
type CosineDecay = optim.CosineDecay

// Errors

// Errors returned by Build and Apply. Test with errors.Is.
var (
	ErrUnbuilt             = optim.ErrUnbuilt
	ErrAlreadyBuilt        = optim.ErrAlreadyBuilt
	ErrCardinalityMismatch = optim.ErrCardinalityMismatch
	ErrUnknownVariable     = optim.ErrUnknownVariable
	ErrShapeMismatch       = optim.ErrShapeMismatch
	ErrInvalidConfig       = optim.ErrInvalidConfig
	ErrNotTrainable        = optim.ErrNotTrainable
	ErrDuplicateVariable   = optim.ErrDuplicateVariable
)
