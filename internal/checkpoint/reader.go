package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/amp/internal/optim"
	"github.com/born-ml/amp/internal/tensor"
)

// Load restores state saved by Save into opt.
//
// opt must already be built on variables with the same shapes, in the same
// order, and use the same name and update rule.
func Load(path string, opt *optim.Optimizer) error {
	_, err := load(path, opt, nil)
	return err
}

// LoadLossScaled restores state saved by SaveLossScaled, including the loss scale.
// A checkpoint without a loss scale leaves the current scale unchanged.
func LoadLossScaled(path string, lso *optim.LossScaleOptimizer) error {
	var scale float32
	found := false
	_, err := load(path, lso.Inner(), func(meta map[string]string) error {
		s, ok := meta[MetaLossScale]
		if !ok {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return errors.Wrapf(err, "checkpoint %s: invalid %s", path, MetaLossScale)
		}
		if err := optim.CheckLossScale(float32(parsed)); err != nil {
			return errors.WithMessagef(err, "checkpoint %s", path)
		}
		scale, found = float32(parsed), true
		return nil
	})
	if err != nil || !found {
		return err
	}
	return lso.SetScale(scale)
}

// load restores opt from path. check, if set, inspects the metadata before
// any state is written.
func load(path string, opt *optim.Optimizer, check func(meta map[string]string) error) (map[string]string, error) {
	tensors, meta, err := Read(path)
	if err != nil {
		return nil, err
	}
	if meta[MetaFormat] != FormatName {
		return nil, errors.Wrapf(ErrNotCheckpoint, "%s: format %q", path, meta[MetaFormat])
	}
	if meta[MetaOptimizer] != opt.Name() || meta[MetaRule] != opt.Rule().Name() {
		return nil, errors.Wrapf(ErrOptimizerMismatch, "%s: saved by %q (%s), loading into %q (%s)",
			path, meta[MetaOptimizer], meta[MetaRule], opt.Name(), opt.Rule().Name())
	}
	iterations, err := strconv.ParseInt(meta[MetaIterations], 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "checkpoint %s: invalid %s", path, MetaIterations)
	}
	if check != nil {
		if err := check(meta); err != nil {
			return nil, err
		}
	}

	if err := opt.LoadStateDict(tensors); err != nil {
		return nil, errors.WithMessagef(err, "checkpoint %s", path)
	}
	opt.SetIterations(iterations)
	klog.V(1).Infof("checkpoint: restored optimizer %q at iteration %d from %s", opt.Name(), iterations, path)
	return meta, nil
}

// Read reads every tensor and the metadata from a file written by Write.
// The data checksum is verified when present.
func Read(path string) (map[string]*tensor.Tensor, map[string]string, error) {
	//nolint:gosec // G304: checkpoint path is caller-provided.
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open checkpoint")
	}
	defer func() {
		_ = f.Close()
	}()

	var headerSize uint64
	if err := binary.Read(f, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read header size")
	}
	if headerSize > MaxHeaderSize {
		return nil, nil, &ValidationError{
			Err:     ErrHeaderTooLarge,
			Details: strconv.FormatUint(headerSize, 10) + " bytes",
		}
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(f, headerJSON); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read header")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &raw); err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse header")
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read tensor data")
	}

	meta := map[string]string{}
	entries := make([]namedEntry, 0, len(raw))
	for name, msg := range raw {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &meta); err != nil {
				return nil, nil, errors.Wrap(err, "failed to parse metadata")
			}
			continue
		}
		if err := validateTensorName(name); err != nil {
			return nil, nil, err
		}
		var e Entry
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to parse entry %q", name)
		}
		entries = append(entries, namedEntry{name: name, Entry: e})
	}
	if err := validateOffsets(entries, int64(len(data))); err != nil {
		return nil, nil, err
	}
	if stored, found := meta[MetaChecksum]; found {
		if err := validateChecksum(data, stored); err != nil {
			return nil, nil, errors.Wrapf(err, "checkpoint %s", path)
		}
	}

	tensors := make(map[string]*tensor.Tensor, len(entries))
	for _, e := range entries {
		dtype, err := dtypeFromSafeTensors(e.DType)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "tensor %q", e.name)
		}
		t, err := tensor.FromBytes(data[e.DataOffsets[0]:e.DataOffsets[1]], tensor.ShapeFromInt64s(e.Shape), dtype)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "tensor %q", e.name)
		}
		tensors[e.name] = t
	}
	return tensors, meta, nil
}
