// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim applies gradients to trainable variables.
//
// # Overview
//
// An Optimizer validates that gradients and variables pair up one-to-one,
// drops variables without a gradient, clips gradients, applies decoupled
// weight decay, delegates the numeric update to an UpdateRule (SGD or Adam)
// and finally projects constrained variables.
//
// A LossScaleOptimizer wraps an Optimizer for half-precision training: it
// unscales gradients, skips steps whose gradients overflowed and adapts the
// loss scale.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/amp/nn"
//	    "github.com/born-ml/amp/optim"
//	)
//
//	func main() {
//	    vars := []*nn.Variable{kernel, bias}
//
//	    opt, err := optim.New(optim.NewAdam(optim.AdamConfig{}), optim.Config{
//	        LR:             0.001,
//	        WeightDecay:    0.004,
//	        GlobalClipNorm: 1.0,
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    lso, err := optim.NewLossScaleOptimizer(opt, optim.LossScaleConfig{})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := lso.Build(vars); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    for step := range steps {
//	        loss := lso.ScaleLoss(forward(batch))
//	        grads := backward(loss) // one per variable, nil if none
//	        if _, err := lso.Apply(grads, nil); err != nil {
//	            log.Fatal(err)
//	        }
//	    }
//	}
//
// # Errors
//
// Malformed calls fail with ErrUnbuilt, ErrCardinalityMismatch,
// ErrUnknownVariable or ErrShapeMismatch and leave every variable untouched.
// Calls with nothing to do (no gradients, or only nil gradients) are no-ops.
package optim
