// Package crypto provides the hash functions used to seal blocks.
package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/zraledger/pkg/types"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// ErrUnknownAlgorithm is returned for an unsupported hash algorithm name.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// Algorithm names a supported hash function.
type Algorithm string

const (
	SHA256  Algorithm = "sha256"
	BLAKE3  Algorithm = "blake3"
	SHA3256 Algorithm = "sha3-256"
)

// HashFunc maps arbitrary input to a 256-bit digest.
type HashFunc func(data []byte) types.Hash

// Hash computes a SHA-256 hash of the input data. This is the default
// block hash.
func Hash(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// Blake3 computes a BLAKE3-256 hash of the input data.
func Blake3(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// SHA3 computes a SHA3-256 hash of the input data.
func SHA3(data []byte) types.Hash {
	return sha3.Sum256(data)
}

// HashFuncFor returns the hash function registered under name.
// An empty name selects SHA-256.
func HashFuncFor(name Algorithm) (HashFunc, error) {
	switch Algorithm(strings.ToLower(string(name))) {
	case "", SHA256:
		return Hash, nil
	case BLAKE3:
		return Blake3, nil
	case SHA3256, "sha3":
		return SHA3, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}
