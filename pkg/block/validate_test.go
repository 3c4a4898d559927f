package block

import (
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/zraledger/pkg/crypto"
)

// sealed returns a child of parent sealed at the given difficulty by a
// plain linear search.
func sealed(t *testing.T, parent *Block, difficulty int) *Block {
	t.Helper()
	payload, err := EncodePayload(map[string]string{"data": "x"})
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	b := NewCandidate(parent, 1700000000000, payload, "alice")
	b.Difficulty = difficulty
	for {
		h := b.ComputeHash(crypto.Hash)
		if MeetsDifficulty(h, difficulty) {
			b.Hash = h.String()
			return b
		}
		b.Nonce++
	}
}

func TestValidateGenesis(t *testing.T) {
	g := NewGenesis(1)
	if err := ValidateGenesis(g); err != nil {
		t.Fatalf("ValidateGenesis: %v", err)
	}
	if !g.IsGenesis() {
		t.Fatal("genesis should report IsGenesis")
	}

	bad := g.Clone()
	bad.Hash = "abc"
	if err := ValidateGenesis(bad); !errors.Is(err, ErrBadGenesis) {
		t.Fatalf("err = %v, want ErrBadGenesis", err)
	}
	if err := ValidateGenesis(nil); !errors.Is(err, ErrNilBlock) {
		t.Fatalf("err = %v, want ErrNilBlock", err)
	}
}

func TestBlock_Verify_Valid(t *testing.T) {
	g := NewGenesis(1)
	b := sealed(t, g, 2)
	if err := b.Verify(g, crypto.Hash); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if b.Hash[:2] != "00" {
		t.Fatalf("hash %s should start with 00", b.Hash)
	}

	c := sealed(t, b, 1)
	if err := c.Verify(b, crypto.Hash); err != nil {
		t.Fatalf("Verify child: %v", err)
	}
}

func TestBlock_Verify_Rejects(t *testing.T) {
	g := NewGenesis(1)
	good := sealed(t, g, 2)

	tests := []struct {
		name   string
		mutate func(b *Block)
		want   error
	}{
		{"bad index", func(b *Block) { b.Index = 5 }, ErrBadIndex},
		{"bad prev", func(b *Block) { b.PrevHash = "ff" }, ErrBadPrevHash},
		{"zero difficulty", func(b *Block) { b.Difficulty = 0 }, ErrZeroDifficulty},
		{"tampered payload", func(b *Block) { b.Payload = []byte(`{"data":"y"}`) }, ErrBadHash},
		{"tampered nonce", func(b *Block) { b.Nonce++ }, ErrBadHash},
		{"malformed hash", func(b *Block) { b.Hash = "zz" + b.Hash[2:] }, ErrBadHash},
		{"short hash", func(b *Block) { b.Hash = b.Hash[:62] }, ErrBadHash},
		{"upper-case hash", func(b *Block) { b.Hash = strings.ToUpper(b.Hash) }, ErrBadHash},
		{"raised difficulty", func(b *Block) { b.Difficulty = 64 }, ErrInsufficientWork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := good.Clone()
			tt.mutate(b)
			if err := b.Verify(g, crypto.Hash); !errors.Is(err, tt.want) {
				t.Fatalf("Verify = %v, want %v", err, tt.want)
			}
		})
	}

	if err := good.Verify(nil, crypto.Hash); !errors.Is(err, ErrNilBlock) {
		t.Fatalf("Verify(nil parent) = %v, want ErrNilBlock", err)
	}
}
