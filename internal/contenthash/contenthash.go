// Package contenthash computes the canonical identity digest for markdown
// content: NFC-normalize, then SHA-256, lowercase hex.
//
// This is the only hashing use that may be called "the" content hash. The
// DOM Stabilizer's in-browser djb2 signature (internal/stabilizer) is an
// unrelated, non-cryptographic equality check and must never be compared
// against values produced here.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Sum returns the lowercase hex SHA-256 digest of the NFC-normalized form
// of s. Callers pass the already-trimmed, LF-normalized markdown produced
// by internal/markdown.
func Sum(s string) string {
	normalized := norm.NFC.String(s)
	digest := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(digest[:])
}
