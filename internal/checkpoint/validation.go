package checkpoint

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// namedEntry pairs an Entry with its name for validation.
type namedEntry struct {
	name string
	Entry
}

// validateOffsets checks for overlapping tensor regions and out-of-bounds access.
func validateOffsets(entries []namedEntry, dataSize int64) error {
	if len(entries) > MaxTensorCount {
		return &ValidationError{
			Err:     ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(entries), MaxTensorCount),
		}
	}

	sorted := make([]namedEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DataOffsets[0] < sorted[j].DataOffsets[0]
	})

	for i, e := range sorted {
		start, end := e.DataOffsets[0], e.DataOffsets[1]
		if start < 0 || end < start {
			return &ValidationError{
				Err:     ErrNegativeOffset,
				Tensor:  e.name,
				Details: fmt.Sprintf("offsets [%d, %d)", start, end),
			}
		}
		if end > dataSize {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  e.name,
				Details: fmt.Sprintf("end %d > data_size %d", end, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if end > next.DataOffsets[0] {
				return &ValidationError{
					Err:     ErrOffsetOverlap,
					Tensor:  e.name,
					Tensor2: next.name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						start, end, next.DataOffsets[0], next.DataOffsets[1]),
				}
			}
		}
	}
	return nil
}

// validateTensorName rejects names that could not have been produced by an optimizer.
// Slot names are hierarchical ("adam/m/0"), so '/' is allowed.
func validateTensorName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Err: ErrInvalidTensorName, Details: "empty name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{
			Err:     ErrInvalidTensorName,
			Tensor:  name[:64] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	case strings.Contains(name, ".."), strings.Contains(name, "\\"), strings.Contains(name, "\x00"):
		return &ValidationError{Err: ErrInvalidTensorName, Tensor: name, Details: "contains '..', '\\' or a null byte"}
	}
	return nil
}
