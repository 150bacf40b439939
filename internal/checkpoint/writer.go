package checkpoint

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/amp/internal/optim"
	"github.com/born-ml/amp/internal/tensor"
)

// Save writes opt's slot tensors and iteration count to path.
func Save(path string, opt *optim.Optimizer) error {
	return Write(path, opt.StateDict(), optimizerMetadata(opt))
}

// SaveLossScaled is Save for a LossScaleOptimizer; it also records the loss scale.
func SaveLossScaled(path string, lso *optim.LossScaleOptimizer) error {
	meta := optimizerMetadata(lso.Inner())
	meta[MetaLossScale] = strconv.FormatFloat(float64(lso.Scale()), 'g', -1, 32)
	return Write(path, lso.Inner().StateDict(), meta)
}

func optimizerMetadata(opt *optim.Optimizer) map[string]string {
	return map[string]string{
		MetaFormat:     FormatName,
		MetaOptimizer:  opt.Name(),
		MetaRule:       opt.Rule().Name(),
		MetaIterations: strconv.FormatInt(opt.Iterations(), 10),
	}
}

// Write writes tensors and metadata to path in SafeTensors layout.
//
// Tensors are written in alphabetical order by name. A checksum of the data
// section is added to the metadata. The file is written to a temporary
// name and renamed, so a crash never leaves a truncated checkpoint behind.
func Write(path string, tensors map[string]*tensor.Tensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := validateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	var data bytes.Buffer
	for _, name := range names {
		t := tensors[name]
		start := int64(data.Len())
		data.Write(t.Bytes())
		header[name] = Entry{
			DType:       dtypeToSafeTensors(t.DType()),
			Shape:       t.Shape().Int64s(),
			DataOffsets: [2]int64{start, int64(data.Len())},
		}
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[MetaChecksum] = computeChecksum(data.Bytes())
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer func() {
		_ = os.Remove(tmp.Name()) // No-op after a successful rename.
	}()

	if err := binary.Write(tmp, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write header size")
	}
	if _, err := tmp.Write(headerJSON); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write header")
	}
	if _, err := tmp.Write(data.Bytes()); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write tensor data")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to move checkpoint into place at %s", path)
	}

	klog.V(1).Infof("checkpoint: wrote %d tensors (%s) to %s",
		len(names), humanize.Bytes(uint64(8+len(headerJSON)+data.Len())), path)
	return nil
}
