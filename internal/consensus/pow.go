// Package consensus implements the proof-of-work search and the difficulty
// policies that drive it.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/Klingon-tech/zraledger/internal/log"
	"github.com/Klingon-tech/zraledger/pkg/block"
	"github.com/Klingon-tech/zraledger/pkg/crypto"
	"github.com/Klingon-tech/zraledger/pkg/types"
)

// PoW errors.
var (
	ErrZeroDifficulty      = errors.New("difficulty must be > 0")
	ErrNonceSpaceExhausted = errors.New("nonce space exhausted")
)

// DefaultYieldInterval is the number of nonce attempts between checkpoints.
const DefaultYieldInterval = 100

// ProgressFunc is called at every search checkpoint with the number of
// nonces tried so far. With Threads > 1 it is called from several
// goroutines.
type ProgressFunc func(attempts uint64)

// PoW seals blocks by a linear search over the nonce space. It holds no
// chain state; the difficulty is passed to each Seal call.
type PoW struct {
	HashFn crypto.HashFunc

	// YieldInterval is the number of attempts between checkpoints. At each
	// checkpoint the search checks for cancellation, reports progress and
	// yields the processor. Checkpoints never change which nonce is found.
	YieldInterval uint64

	// Threads controls the number of search goroutines. 0 or 1 searches on
	// the calling goroutine. With more threads each goroutine walks a
	// strided partition and the lowest valid nonce still wins, so the
	// result equals the single-threaded one.
	Threads int

	Progress ProgressFunc
}

// NewPoW creates a PoW sealer. A nil hash function selects SHA-256.
func NewPoW(hashFn crypto.HashFunc, yieldInterval uint64, threads int) *PoW {
	if hashFn == nil {
		hashFn = crypto.Hash
	}
	return &PoW{
		HashFn:        hashFn,
		YieldInterval: yieldInterval,
		Threads:       threads,
	}
}

func (p *PoW) interval() uint64 {
	if p.YieldInterval == 0 {
		return DefaultYieldInterval
	}
	return p.YieldInterval
}

// Seal searches for the lowest nonce whose hash has at least difficulty
// leading zero hex digits and writes Nonce, Hash and Difficulty into blk.
// On error blk is left untouched. Cancellation is observed at checkpoints
// and returns ctx.Err().
func (p *PoW) Seal(ctx context.Context, blk *block.Block, difficulty int) error {
	if blk == nil {
		return block.ErrNilBlock
	}
	if difficulty <= 0 {
		return ErrZeroDifficulty
	}
	if difficulty > 2*types.HashSize {
		return fmt.Errorf("difficulty %d exceeds hash length", difficulty)
	}

	var (
		nonce uint64
		hash  types.Hash
		err   error
	)
	if p.Threads <= 1 {
		nonce, hash, err = p.sealSingle(ctx, blk.HashPrefix(), difficulty)
	} else {
		nonce, hash, err = p.sealParallel(ctx, blk.HashPrefix(), difficulty, p.Threads)
	}
	if err != nil {
		return err
	}

	blk.Nonce = nonce
	blk.Hash = hash.String()
	blk.Difficulty = difficulty

	log.Consensus.Debug().
		Uint64("index", blk.Index).
		Uint64("nonce", nonce).
		Int("difficulty", difficulty).
		Msg("Block sealed")
	return nil
}

// Verify checks blk against its parent with this sealer's hash function.
func (p *PoW) Verify(blk, parent *block.Block) error {
	return blk.Verify(parent, p.HashFn)
}

func (p *PoW) checkpoint(ctx context.Context, attempts uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Progress != nil {
		p.Progress(attempts)
	}
	runtime.Gosched()
	return nil
}

// sealSingle searches on the calling goroutine.
func (p *PoW) sealSingle(ctx context.Context, prefix []byte, difficulty int) (uint64, types.Hash, error) {
	interval := p.interval()
	buf := make([]byte, len(prefix), len(prefix)+20)
	copy(buf, prefix)

	for nonce := uint64(0); ; nonce++ {
		if nonce > 0 && nonce%interval == 0 {
			if err := p.checkpoint(ctx, nonce); err != nil {
				return 0, types.Hash{}, err
			}
		}

		hash := p.HashFn(strconv.AppendUint(buf[:len(prefix)], nonce, 10))
		if block.MeetsDifficulty(hash, difficulty) {
			return nonce, hash, nil
		}
		if nonce == math.MaxUint64 {
			return 0, types.Hash{}, ErrNonceSpaceExhausted
		}
	}
}

// sealParallel searches with several goroutines. Goroutine i starts at
// nonce i and steps by threads. A goroutine stops once its nonce passes the
// best nonce found so far, so every nonce below the winner is tried.
func (p *PoW) sealParallel(ctx context.Context, prefix []byte, difficulty, threads int) (uint64, types.Hash, error) {
	interval := p.interval()

	var (
		mu       sync.Mutex
		found    bool
		bestHash types.Hash
		best     atomic.Uint64
		attempts atomic.Uint64
		wg       sync.WaitGroup
	)
	best.Store(math.MaxUint64)

	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(start, stride uint64) {
			defer wg.Done()
			buf := make([]byte, len(prefix), len(prefix)+20)
			copy(buf, prefix)

			var tried uint64
			for nonce := start; ; nonce += stride {
				if nonce >= best.Load() {
					return
				}
				tried++
				if tried%interval == 0 {
					if p.checkpoint(ctx, attempts.Add(interval)) != nil {
						return
					}
				}

				hash := p.HashFn(strconv.AppendUint(buf[:len(prefix)], nonce, 10))
				if block.MeetsDifficulty(hash, difficulty) {
					mu.Lock()
					if !found || nonce < best.Load() {
						found = true
						bestHash = hash
						best.Store(nonce)
					}
					mu.Unlock()
					return
				}

				// Overflow: would wrap around past max uint64.
				if nonce > math.MaxUint64-stride {
					return
				}
			}
		}(uint64(i), uint64(threads))
	}
	wg.Wait()

	// A cancelled goroutine may have skipped a lower nonce.
	if err := ctx.Err(); err != nil {
		return 0, types.Hash{}, err
	}
	if !found {
		return 0, types.Hash{}, ErrNonceSpaceExhausted
	}
	return best.Load(), bestHash, nil
}
