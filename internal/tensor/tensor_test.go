package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
	assert.NoError(t, Shape{2, 3}.Validate())
	assert.Error(t, Shape{2, 0}.Validate())
	assert.True(t, Shape{2, 3}.Equal(Shape{2, 3}))
	assert.False(t, Shape{2, 3}.Equal(Shape{3, 2}))
	assert.False(t, Shape{2}.Equal(Shape{2, 1}))
	assert.Equal(t, Shape{4, 5}, ShapeFromInt64s(Shape{4, 5}.Int64s()))
}

func TestFromSlice(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	x, err := FromSlice(data, Shape{2, 3})
	require.NoError(t, err)

	data[0] = 100
	assert.Equal(t, float32(1), x.Data()[0], "FromSlice must copy its input")
	assert.Equal(t, Float32, x.DType())
	assert.Equal(t, 6, x.NumElements())

	_, err = FromSlice([]float32{1, 2}, Shape{3})
	assert.Error(t, err)

	_, err = FromSlice(nil, Shape{-1})
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	x := Full(Shape{3}, 2)
	y := x.Clone()
	y.Data()[0] = -1
	assert.Equal(t, []float32{2, 2, 2}, x.Data())
}

func TestCopyFrom(t *testing.T) {
	dst := Zeros(Shape{2})
	src := Full(Shape{2}, 3)
	require.NoError(t, dst.CopyFrom(src))
	assert.Equal(t, []float32{3, 3}, dst.Data())

	assert.Error(t, dst.CopyFrom(Zeros(Shape{3})))
	assert.Error(t, dst.CopyFrom(nil))
}

func TestFloat16Rounding(t *testing.T) {
	x, err := FromSlice([]float32{1.0001, 70000, -70000, 0.5}, Shape{4})
	require.NoError(t, err)

	h := x.CastTo(Float16)
	assert.Equal(t, Float16, h.DType())
	assert.Equal(t, float32(1), h.Data()[0])
	assert.True(t, math.IsInf(float64(h.Data()[1]), 1), "65504 is the largest finite float16")
	assert.True(t, math.IsInf(float64(h.Data()[2]), -1))
	assert.Equal(t, float32(0.5), h.Data()[3])
	assert.False(t, h.AllFinite())
	assert.True(t, x.AllFinite())
}

func TestOps(t *testing.T) {
	x, err := FromSlice([]float32{3, -4}, Shape{2})
	require.NoError(t, err)

	assert.InDelta(t, 25.0, x.SumSquares(), 1e-9)
	assert.InDelta(t, 5.0, x.L2Norm(), 1e-9)
	assert.Equal(t, []float32{1.5, -2}, x.MulScalar(0.5).Data())
	assert.Equal(t, []float32{1, -1}, x.ClipByValue(-1, 1).Data())

	y, err := x.AddScaled(Full(Shape{2}, 1), 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, -2}, y.Data())

	_, err = x.AddScaled(Zeros(Shape{3}), 1)
	assert.Error(t, err)

	nan := x.Map(func(float32) float32 { return float32(math.NaN()) })
	assert.False(t, nan.AllFinite())
}

func TestLargeTensorOpsMatchSequential(t *testing.T) {
	n := 1 << 16
	data := make([]float32, n)
	var want float64
	for i := range data {
		data[i] = float32(i%7) - 3
		want += float64(data[i]) * float64(data[i])
	}
	x, err := FromSlice(data, Shape{n})
	require.NoError(t, err)

	assert.InDelta(t, want, x.SumSquares(), 1e-6)
	doubled := x.MulScalar(2)
	for i, v := range doubled.Data() {
		if v != 2*data[i] {
			t.Fatalf("element %d: got %f, want %f", i, v, 2*data[i])
		}
	}
}

func TestBytesRoundTrip(t *testing.T) {
	x, err := FromSlice([]float32{1.5, -2.25, 1e-3}, Shape{3})
	require.NoError(t, err)

	for _, dt := range []DataType{Float32, Float16} {
		src := x.CastTo(dt)
		buf := src.Bytes()
		assert.Len(t, buf, 3*dt.Size())

		back, err := FromBytes(buf, Shape{3}, dt)
		require.NoError(t, err)
		assert.Equal(t, src.Data(), back.Data(), dt.String())
	}

	_, err = FromBytes([]byte{1, 2, 3}, Shape{3}, Float32)
	assert.Error(t, err)
}
