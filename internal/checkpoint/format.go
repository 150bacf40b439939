package checkpoint

import (
	"fmt"

	"github.com/born-ml/amp/internal/tensor"
)

// Metadata keys written by Save.
const (
	MetaFormat     = "format"
	MetaOptimizer  = "optimizer"
	MetaRule       = "rule"
	MetaIterations = "iterations"
	MetaLossScale  = "loss_scale"
	MetaChecksum   = "checksum"

	// FormatName identifies optimizer checkpoints.
	FormatName = "amp-optimizer-v1"

	metadataKey = "__metadata__"
)

// Entry describes one tensor in the header.
type Entry struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// dtypeToSafeTensors converts tensor.DataType to the SafeTensors dtype string.
func dtypeToSafeTensors(dt tensor.DataType) string {
	switch dt {
	case tensor.Float16:
		return "F16"
	default:
		return "F32"
	}
}

// dtypeFromSafeTensors is the inverse of dtypeToSafeTensors.
func dtypeFromSafeTensors(s string) (tensor.DataType, error) {
	switch s {
	case "F32":
		return tensor.Float32, nil
	case "F16":
		return tensor.Float16, nil
	default:
		return 0, fmt.Errorf("unsupported dtype %q", s)
	}
}
