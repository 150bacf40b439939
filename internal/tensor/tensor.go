package tensor

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"

	"github.com/born-ml/amp/internal/parallel"
)

// elementwise is the fan-out configuration for element-wise helpers.
var elementwise = parallel.DefaultConfig()

// Tensor is a dense, row-major tensor.
//
// A nil *Tensor is the "empty gradient" signal: it marks a parameter that
// received no gradient and must not be updated.
type Tensor struct {
	data  []float32
	shape Shape
	dtype DataType
}

// New creates a zero-filled tensor with the given shape and type.
func New(shape Shape, dtype DataType) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if dtype != Float32 && dtype != Float16 {
		return nil, fmt.Errorf("unsupported data type %d", dtype)
	}
	return &Tensor{
		data:  make([]float32, shape.NumElements()),
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// FromSlice creates a Float32 tensor holding a copy of data.
//
// Example:
//
//	w, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	t, err := New(shape, Float32)
	if err != nil {
		return nil, err
	}
	if len(data) != len(t.data) {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, len(t.data))
	}
	copy(t.data, data)
	return t, nil
}

// Zeros creates a Float32 tensor filled with zeros.
// It panics on an invalid shape.
func Zeros(shape Shape) *Tensor {
	t, err := New(shape, Float32)
	if err != nil {
		panic(err)
	}
	return t
}

// Full creates a Float32 tensor filled with value.
// It panics on an invalid shape.
func Full(shape Shape, value float32) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.dtype
}

// NumElements returns the number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Data returns the underlying storage. Writes are visible to the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{data: data, shape: t.shape.Clone(), dtype: t.dtype}
}

// CopyFrom overwrites t's values with src's, rounding to t's data type.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if src == nil {
		return fmt.Errorf("copy from nil tensor")
	}
	if !t.shape.Equal(src.shape) {
		return fmt.Errorf("shape mismatch: expected %v, got %v", t.shape, src.shape)
	}
	if t.dtype == Float32 {
		copy(t.data, src.data)
		return nil
	}
	parallel.ForChunks(len(t.data), elementwise, func(start, end int) {
		for i := start; i < end; i++ {
			t.data[i] = t.dtype.Round(src.data[i])
		}
	})
	return nil
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if len(t.data) <= 8 {
		return fmt.Sprintf("Tensor(%s%v, %v)", t.dtype, t.shape, t.data)
	}
	return fmt.Sprintf("Tensor(%s%v, %v...)", t.dtype, t.shape, t.data[:8])
}

// Bytes encodes the values little-endian in the tensor's data type.
func (t *Tensor) Bytes() []byte {
	size := t.dtype.Size()
	buf := make([]byte, len(t.data)*size)
	for i, v := range t.data {
		switch t.dtype {
		case Float16:
			binary.LittleEndian.PutUint16(buf[i*size:], float16.Fromfloat32(v).Bits())
		default:
			binary.LittleEndian.PutUint32(buf[i*size:], math.Float32bits(v))
		}
	}
	return buf
}

// FromBytes decodes data produced by Tensor.Bytes.
func FromBytes(data []byte, shape Shape, dtype DataType) (*Tensor, error) {
	t, err := New(shape, dtype)
	if err != nil {
		return nil, err
	}
	size := dtype.Size()
	if len(data) != len(t.data)*size {
		return nil, fmt.Errorf("expected %d bytes for %s%v, got %d",
			len(t.data)*size, dtype, shape, len(data))
	}
	for i := range t.data {
		switch dtype {
		case Float16:
			t.data[i] = float16.Frombits(binary.LittleEndian.Uint16(data[i*size:])).Float32()
		default:
			t.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*size:]))
		}
	}
	return t, nil
}
