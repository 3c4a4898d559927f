package block

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/zraledger/pkg/crypto"
	"github.com/Klingon-tech/zraledger/pkg/types"
)

// Validation errors.
var (
	ErrNilBlock         = errors.New("block is nil")
	ErrBadIndex         = errors.New("block index is not parent index + 1")
	ErrBadPrevHash      = errors.New("previous hash does not match parent")
	ErrBadHash          = errors.New("block hash does not match contents")
	ErrInsufficientWork = errors.New("hash does not meet difficulty target")
	ErrZeroDifficulty   = errors.New("difficulty must be > 0")
	ErrBadGenesis       = errors.New("malformed genesis block")
)

// MeetsDifficulty reports whether h has at least difficulty leading zero
// hex digits.
func MeetsDifficulty(h types.Hash, difficulty int) bool {
	return h.LeadingZeroNibbles() >= difficulty
}

// ValidateGenesis checks the fixed genesis sentinels.
func ValidateGenesis(b *Block) error {
	if b == nil {
		return ErrNilBlock
	}
	if b.Index != 0 || b.PrevHash != GenesisPrevHash || b.Hash != GenesisHash {
		return ErrBadGenesis
	}
	return nil
}

// Verify checks that b correctly extends parent: index and hash linkage,
// a hash that recomputes from the block contents, and proof of work at the
// difficulty recorded in the block.
func (b *Block) Verify(parent *Block, fn crypto.HashFunc) error {
	if b == nil || parent == nil {
		return ErrNilBlock
	}
	if b.Index != parent.Index+1 {
		return fmt.Errorf("%w: got %d, parent %d", ErrBadIndex, b.Index, parent.Index)
	}
	if b.PrevHash != parent.Hash {
		return fmt.Errorf("%w: block %d", ErrBadPrevHash, b.Index)
	}
	if b.Difficulty <= 0 {
		return ErrZeroDifficulty
	}
	want, err := types.HexToHash(b.Hash)
	if err != nil {
		return fmt.Errorf("%w: block %d: %v", ErrBadHash, b.Index, err)
	}
	if want.String() != b.Hash {
		return fmt.Errorf("%w: block %d is not lower-case hex", ErrBadHash, b.Index)
	}
	h := b.ComputeHash(fn)
	if h != want {
		return fmt.Errorf("%w: block %d", ErrBadHash, b.Index)
	}
	if !MeetsDifficulty(h, b.Difficulty) {
		return fmt.Errorf("%w: block %d needs %d leading zeros", ErrInsufficientWork, b.Index, b.Difficulty)
	}
	return nil
}
