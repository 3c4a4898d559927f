package crypto

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/Klingon-tech/zraledger/pkg/types"
)

func hexToHash(t *testing.T, s string) types.Hash {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	var h types.Hash
	copy(h[:], b)
	return h
}

func TestHashFunctions(t *testing.T) {
	tests := []struct {
		name  string
		fn    HashFunc
		input []byte
		want  string
	}{
		{"sha256 empty", Hash, []byte{}, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"sha256 hello", Hash, []byte("hello"), "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{"blake3 empty", Blake3, []byte{}, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
		{"blake3 hello", Blake3, []byte("hello"), "ea8f163db38682925e4491c5e58d4bb3506ef8c14eb78a86e908c5624a67200f"},
		{"sha3 empty", SHA3, []byte{}, "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn(tt.input)
			want := hexToHash(t, tt.want)
			if got != want {
				t.Errorf("hash(%q) = %x, want %x", tt.input, got, want)
			}
		})
	}
}

func TestHash_Deterministic(t *testing.T) {
	data := []byte("deterministic test input")
	if Hash(data) != Hash(data) {
		t.Error("Hash is not deterministic")
	}
}

func TestHashFuncFor(t *testing.T) {
	in := []byte("zra")
	cases := map[Algorithm]HashFunc{
		"":         Hash,
		"sha256":   Hash,
		"SHA256":   Hash,
		"blake3":   Blake3,
		"sha3-256": SHA3,
		"sha3":     SHA3,
	}
	for name, want := range cases {
		fn, err := HashFuncFor(name)
		if err != nil {
			t.Fatalf("HashFuncFor(%q): %v", name, err)
		}
		if fn(in) != want(in) {
			t.Fatalf("HashFuncFor(%q) returned the wrong function", name)
		}
	}

	if _, err := HashFuncFor("md5"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Fatalf("HashFuncFor(md5) err = %v, want ErrUnknownAlgorithm", err)
	}
}
