package consensus

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Klingon-tech/zraledger/pkg/block"
	"github.com/Klingon-tech/zraledger/pkg/crypto"
)

func testCandidate(t *testing.T) (*block.Block, *block.Block) {
	t.Helper()
	parent := block.NewGenesis(1700000000000)
	payload, err := block.EncodePayload(map[string]string{"data": "x"})
	if err != nil {
		t.Fatal(err)
	}
	return parent, block.NewCandidate(parent, 1700000000500, payload, "alice")
}

// linearNonce is the reference search: first nonce meeting difficulty.
func linearNonce(blk *block.Block, difficulty int) uint64 {
	for nonce := uint64(0); ; nonce++ {
		if block.MeetsDifficulty(crypto.Hash(blk.HashInput(nonce)), difficulty) {
			return nonce
		}
	}
}

func TestPoW_SealAndVerify(t *testing.T) {
	pow := NewPoW(nil, 0, 1)
	parent, blk := testCandidate(t)

	if err := pow.Seal(context.Background(), blk, 2); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !strings.HasPrefix(blk.Hash, "00") {
		t.Fatalf("hash %s should start with 00", blk.Hash)
	}
	if blk.Difficulty != 2 {
		t.Fatalf("Difficulty = %d, want 2", blk.Difficulty)
	}
	if err := pow.Verify(blk, parent); err != nil {
		t.Fatalf("Verify after Seal: %v", err)
	}
}

func TestPoW_Seal_FindsLowestNonce(t *testing.T) {
	_, blk := testCandidate(t)
	want := linearNonce(blk, 3)

	pow := NewPoW(crypto.Hash, 7, 1)
	if err := pow.Seal(context.Background(), blk, 3); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if blk.Nonce != want {
		t.Fatalf("Nonce = %d, want %d", blk.Nonce, want)
	}
}

func TestPoW_SealParallel_MatchesSingle(t *testing.T) {
	_, a := testCandidate(t)
	_, b := testCandidate(t)

	single := NewPoW(crypto.Hash, 50, 1)
	parallel := NewPoW(crypto.Hash, 50, 4)

	if err := single.Seal(context.Background(), a, 3); err != nil {
		t.Fatalf("single Seal: %v", err)
	}
	if err := parallel.Seal(context.Background(), b, 3); err != nil {
		t.Fatalf("parallel Seal: %v", err)
	}
	if a.Nonce != b.Nonce || a.Hash != b.Hash {
		t.Fatalf("parallel found nonce %d (%s), single found %d (%s)", b.Nonce, b.Hash, a.Nonce, a.Hash)
	}
}

func TestPoW_Seal_ZeroDifficulty(t *testing.T) {
	pow := NewPoW(nil, 0, 1)
	_, blk := testCandidate(t)
	if err := pow.Seal(context.Background(), blk, 0); !errors.Is(err, ErrZeroDifficulty) {
		t.Fatalf("Seal(difficulty=0) = %v, want ErrZeroDifficulty", err)
	}
	if err := pow.Seal(context.Background(), nil, 1); !errors.Is(err, block.ErrNilBlock) {
		t.Fatalf("Seal(nil) = %v, want ErrNilBlock", err)
	}
	if err := pow.Seal(context.Background(), blk, 65); err == nil {
		t.Fatal("Seal(difficulty=65) should fail")
	}
}

func TestPoW_Seal_Cancelled(t *testing.T) {
	for _, threads := range []int{1, 3} {
		pow := NewPoW(nil, 10, threads)
		_, blk := testCandidate(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// Difficulty 64 never completes; cancellation is the only exit.
		err := pow.Seal(ctx, blk, 64)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("threads=%d: Seal = %v, want context.Canceled", threads, err)
		}
		if blk.Hash != "" || blk.Nonce != 0 || blk.Difficulty != 0 {
			t.Fatalf("threads=%d: cancelled seal mutated block: %+v", threads, blk)
		}
	}
}

func TestPoW_Seal_ProgressCheckpoints(t *testing.T) {
	_, blk := testCandidate(t)
	want := linearNonce(blk, 3)

	var calls atomic.Uint64
	var last atomic.Uint64
	pow := NewPoW(crypto.Hash, 16, 1)
	pow.Progress = func(attempts uint64) {
		calls.Add(1)
		last.Store(attempts)
	}
	if err := pow.Seal(context.Background(), blk, 3); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if got := calls.Load(); got != want/16 {
		t.Fatalf("progress calls = %d, want %d", got, want/16)
	}
	if want >= 16 && last.Load()%16 != 0 {
		t.Fatalf("last checkpoint at %d, want a multiple of 16", last.Load())
	}
}

func TestPoW_Seal_OtherHashes(t *testing.T) {
	for _, fn := range []crypto.HashFunc{crypto.Blake3, crypto.SHA3} {
		pow := NewPoW(fn, 0, 1)
		parent, blk := testCandidate(t)
		if err := pow.Seal(context.Background(), blk, 2); err != nil {
			t.Fatalf("Seal: %v", err)
		}
		if err := pow.Verify(blk, parent); err != nil {
			t.Fatalf("Verify: %v", err)
		}
		// Verifying with a different hash function must fail.
		if err := blk.Verify(parent, crypto.Hash); !errors.Is(err, block.ErrBadHash) {
			t.Fatalf("cross-hash Verify = %v, want ErrBadHash", err)
		}
	}
}
