// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types consumed by the optimizers.
//
// Tensors are dense, row-major and hold float32 values. Float16 tensors keep
// their values rounded to half precision, so gradients computed "in float16"
// overflow exactly where real half-precision arithmetic would.
//
// Example:
//
//	w, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
//	g := w.MulScalar(0.5).CastTo(tensor.Float16)
package tensor

import (
	"github.com/born-ml/amp/internal/tensor"
)

// Tensor is a dense tensor. A nil *Tensor is the "no gradient" signal.
type Tensor = tensor.Tensor

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// DataType represents the data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float16 DataType = tensor.Float16
)

// New creates a zero-filled tensor.
func New(shape Shape, dtype DataType) (*Tensor, error) {
	return tensor.New(shape, dtype)
}

// FromSlice creates a Float32 tensor holding a copy of data.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// Zeros creates a Float32 tensor filled with zeros. It panics on an invalid shape.
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Full creates a Float32 tensor filled with value. It panics on an invalid shape.
func Full(shape Shape, value float32) *Tensor {
	return tensor.Full(shape, value)
}
