package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Checksum returns the hex SHA-256 of everything left in r. Callers that reuse
// r afterwards must seek back themselves.
func Checksum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
