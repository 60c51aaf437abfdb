package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// idLength is the number of hex characters kept for hyperedge ids.
const idLength = 16

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HyperedgeID derives a stable id from an ordered symbol path. Symbols are
// joined with the ASCII unit separator so ["a b"] and ["a", "b"] differ.
func HyperedgeID(symbols []string) string {
	return Sum([]byte(strings.Join(symbols, "\x1f")))[:idLength]
}
