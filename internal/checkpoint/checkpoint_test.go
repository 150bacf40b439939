package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/amp/internal/nn"
	"github.com/born-ml/amp/internal/optim"
	"github.com/born-ml/amp/internal/tensor"
)

func newVariables() []*nn.Variable {
	return []*nn.Variable{
		nn.NewVariable("dense/kernel", must.M1(tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}))),
		nn.NewVariable("dense/bias", must.M1(tensor.FromSlice([]float32{0, 0}, tensor.Shape{2}))),
	}
}

func newAdam(t *testing.T, vars []*nn.Variable) *optim.Optimizer {
	t.Helper()
	opt := must.M1(optim.New(optim.NewAdam(optim.AdamConfig{}), optim.Config{LR: 0.01}))
	require.NoError(t, opt.Build(vars))
	return opt
}

func grads() []*tensor.Tensor {
	return []*tensor.Tensor{
		must.M1(tensor.FromSlice([]float32{0.1, -0.2, 0.3, -0.4}, tensor.Shape{2, 2})),
		must.M1(tensor.FromSlice([]float32{1, -1}, tensor.Shape{2})),
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.safetensors")

	half := must.M1(tensor.FromSlice([]float32{0.5, -1.25}, tensor.Shape{2})).CastTo(tensor.Float16)
	full := must.M1(tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}))
	require.NoError(t, Write(path, map[string]*tensor.Tensor{
		"a/half": half,
		"b/full": full,
	}, map[string]string{"note": "hello"}))

	tensors, meta, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", meta["note"])
	assert.NotEmpty(t, meta[MetaChecksum])

	require.Contains(t, tensors, "a/half")
	assert.Equal(t, tensor.Float16, tensors["a/half"].DType())
	assert.Equal(t, half.Data(), tensors["a/half"].Data())
	assert.Equal(t, tensor.Shape{2, 3}, tensors["b/full"].Shape())
	assert.Equal(t, full.Data(), tensors["b/full"].Data())

	matches, err := filepath.Glob(path + ".tmp-*")
	require.NoError(t, err)
	assert.Empty(t, matches, "temporary file must be renamed away")
}

func TestSaveLoad_ResumesTraining(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adam.safetensors")

	// Reference run: three uninterrupted steps.
	refVars := newVariables()
	ref := newAdam(t, refVars)
	for range 3 {
		_ = must.M1(ref.Apply(grads(), nil))
	}

	// Interrupted run: two steps, save, restore into a fresh optimizer, one more step.
	vars := newVariables()
	opt := newAdam(t, vars)
	for range 2 {
		_ = must.M1(opt.Apply(grads(), nil))
	}
	require.NoError(t, Save(path, opt))

	resumed := newAdam(t, vars)
	require.NoError(t, Load(path, resumed))
	assert.Equal(t, int64(2), resumed.Iterations())
	_ = must.M1(resumed.Apply(grads(), nil))

	for i := range vars {
		assert.InDeltaSlice(t, refVars[i].Value().Data(), vars[i].Value().Data(), 1e-6, vars[i].Name())
	}
}

func TestSaveLoad_LossScale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lso.safetensors")
	vars := newVariables()

	inner := must.M1(optim.New(optim.NewSGD(optim.SGDConfig{Momentum: 0.9}), optim.Config{}))
	lso := must.M1(optim.NewLossScaleOptimizer(inner, optim.LossScaleConfig{InitialScale: 256}))
	require.NoError(t, lso.Build(vars))
	require.NoError(t, lso.SetScale(64))
	require.NoError(t, SaveLossScaled(path, lso))

	inner2 := must.M1(optim.New(optim.NewSGD(optim.SGDConfig{Momentum: 0.9}), optim.Config{}))
	lso2 := must.M1(optim.NewLossScaleOptimizer(inner2, optim.LossScaleConfig{}))
	require.NoError(t, lso2.Build(vars))
	require.NoError(t, LoadLossScaled(path, lso2))
	assert.Equal(t, float32(64), lso2.Scale())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	vars := newVariables()
	opt := newAdam(t, vars)
	path := filepath.Join(dir, "adam.safetensors")
	require.NoError(t, Save(path, opt))

	t.Run("different rule", func(t *testing.T) {
		sgd := must.M1(optim.New(optim.NewSGD(optim.SGDConfig{}), optim.Config{Name: "adam"}))
		require.NoError(t, sgd.Build(vars))
		assert.ErrorIs(t, Load(path, sgd), ErrOptimizerMismatch)
	})

	t.Run("unbuilt", func(t *testing.T) {
		unbuilt := must.M1(optim.New(optim.NewAdam(optim.AdamConfig{}), optim.Config{}))
		assert.ErrorIs(t, Load(path, unbuilt), optim.ErrUnbuilt)
	})

	t.Run("not a checkpoint", func(t *testing.T) {
		other := filepath.Join(dir, "other.safetensors")
		require.NoError(t, Write(other, nil, nil))
		assert.ErrorIs(t, Load(other, newAdam(t, newVariables())), ErrNotCheckpoint)
	})

	t.Run("corrupted data", func(t *testing.T) {
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		raw[len(raw)-1] ^= 0xFF
		corrupted := filepath.Join(dir, "corrupted.safetensors")
		require.NoError(t, os.WriteFile(corrupted, raw, 0o600))

		_, _, err = Read(corrupted)
		assert.ErrorIs(t, err, ErrChecksumMismatch)
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, Load(filepath.Join(dir, "nope"), opt))
	})
}

// writeRawHeader writes a file with a hand-built header and data section.
func writeRawHeader(t *testing.T, header map[string]any, data []byte) string {
	t.Helper()
	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)
	buf := binary.LittleEndian.AppendUint64(nil, uint64(len(headerJSON)))
	buf = append(buf, headerJSON...)
	buf = append(buf, data...)
	path := filepath.Join(t.TempDir(), "raw.safetensors")
	require.NoError(t, os.WriteFile(path, buf, 0o600))
	return path
}

func TestRead_Validation(t *testing.T) {
	entry := func(start, end int64) Entry {
		return Entry{DType: "F32", Shape: []int64{(end - start) / 4}, DataOffsets: [2]int64{start, end}}
	}

	_, _, err := Read(writeRawHeader(t, map[string]any{"a": entry(0, 8), "b": entry(4, 12)}, make([]byte, 12)))
	assert.ErrorIs(t, err, ErrOffsetOverlap)

	_, _, err = Read(writeRawHeader(t, map[string]any{"a": entry(0, 16)}, make([]byte, 8)))
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, _, err = Read(writeRawHeader(t, map[string]any{"a": entry(-4, 4)}, make([]byte, 8)))
	assert.ErrorIs(t, err, ErrNegativeOffset)

	_, _, err = Read(writeRawHeader(t, map[string]any{"../a": entry(0, 4)}, make([]byte, 4)))
	assert.ErrorIs(t, err, ErrInvalidTensorName)

	var ve *ValidationError
	_, _, err = Read(writeRawHeader(t, map[string]any{"a": entry(0, 16)}, make([]byte, 8)))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "a", ve.Tensor)
}

func TestWrite_RejectsBadNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.safetensors")
	err := Write(path, map[string]*tensor.Tensor{"a\\b": tensor.Zeros(tensor.Shape{1})}, nil)
	assert.ErrorIs(t, err, ErrInvalidTensorName)
}

func TestLoadLossScaled_RejectsInvalidScale(t *testing.T) {
	dir := t.TempDir()
	vars := newVariables()

	inner := must.M1(optim.New(optim.NewSGD(optim.SGDConfig{Momentum: 0.9}), optim.Config{}))
	lso := must.M1(optim.NewLossScaleOptimizer(inner, optim.LossScaleConfig{InitialScale: 256}))
	require.NoError(t, lso.Build(vars))
	_ = must.M1(lso.Apply(grads(), nil))
	path := filepath.Join(dir, "lso.safetensors")
	require.NoError(t, SaveLossScaled(path, lso))

	tensors, meta, err := Read(path)
	require.NoError(t, err)
	meta[MetaLossScale] = "NaN"
	poisoned := filepath.Join(dir, "nan.safetensors")
	require.NoError(t, Write(poisoned, tensors, meta))

	inner2 := must.M1(optim.New(optim.NewSGD(optim.SGDConfig{Momentum: 0.9}), optim.Config{}))
	lso2 := must.M1(optim.NewLossScaleOptimizer(inner2, optim.LossScaleConfig{InitialScale: 8}))
	require.NoError(t, lso2.Build(newVariables()))
	assert.ErrorIs(t, LoadLossScaled(poisoned, lso2), optim.ErrInvalidConfig)
	assert.Equal(t, float32(8), lso2.Scale())
	assert.Equal(t, int64(0), lso2.Iterations(), "no state is restored from a rejected checkpoint")
}
