// Package sha256 provides the hex SHA-256 digests used for document
// deduplication and URL-derived identifiers.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the lowercase hex SHA-256 digest of data (64 characters).
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
