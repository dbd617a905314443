// Package fingerprint computes deterministic identifiers for text. The
// digest is unkeyed and stable across platforms and restarts, making it
// suitable for deduplication and reproducible identification but not for
// authentication.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Text returns the SHA-256 hex digest of s.
func Text(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
