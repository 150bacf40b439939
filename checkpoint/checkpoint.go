// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package checkpoint saves and restores optimizer state in SafeTensors layout.
//
// Example:
//
//	if err := checkpoint.SaveLossScaled("opt.safetensors", lso); err != nil {
//	    return err
//	}
package checkpoint

import (
	"github.com/born-ml/amp/internal/checkpoint"
	"github.com/born-ml/amp/optim"
)

// Save writes opt's slot tensors and iteration count to path.
func Save(path string, opt *optim.Optimizer) error {
	return checkpoint.Save(path, opt)
}

// Load restores state saved by Save into a built opt.
func Load(path string, opt *optim.Optimizer) error {
	return checkpoint.Load(path, opt)
}

// SaveLossScaled is Save for a LossScaleOptimizer; it also records the loss scale.
func SaveLossScaled(path string, lso *optim.LossScaleOptimizer) error {
	return checkpoint.SaveLossScaled(path, lso)
}

// LoadLossScaled restores state saved by SaveLossScaled, including the loss scale.
func LoadLossScaled(path string, lso *optim.LossScaleOptimizer) error {
	return checkpoint.LoadLossScaled(path, lso)
}

// Errors returned by Load. Test with errors.Is.
var (
	ErrChecksumMismatch  = checkpoint.ErrChecksumMismatch
	ErrNotCheckpoint     = checkpoint.ErrNotCheckpoint
	ErrOptimizerMismatch = checkpoint.ErrOptimizerMismatch
)
