package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
)

// computeChecksum returns the hex SHA-256 of data.
func computeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// validateChecksum compares the checksum of data against stored.
func validateChecksum(data []byte, stored string) error {
	if computeChecksum(data) != stored {
		return ErrChecksumMismatch
	}
	return nil
}
