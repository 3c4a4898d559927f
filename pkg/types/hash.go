// Package types defines core primitive types for the ledger.
package types

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash represents a 256-bit digest.
type Hash [HashSize]byte

// String returns the lower-case hex-encoded hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// LeadingZeroNibbles returns the number of leading zero hex digits
// in the hash's string form.
func (h Hash) LeadingZeroNibbles() int {
	n := 0
	for _, b := range h {
		if b == 0 {
			n += 2
			continue
		}
		if b>>4 == 0 {
			n++
		}
		break
	}
	return n
}

// HexToHash converts a hex string to a Hash.
// Returns an error if the string is not exactly 64 hex characters.
func HexToHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}
