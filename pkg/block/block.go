// Package block defines the block type, its canonical hash input and
// validation.
package block

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Klingon-tech/zraledger/pkg/crypto"
	"github.com/Klingon-tech/zraledger/pkg/types"
)

// Genesis sentinels.
const (
	GenesisPrevHash = "0"
	GenesisHash     = "0"
	GenesisMiner    = "Genesis"
	GenesisPayload  = "Genesis Block"
)

// Block is a single link in the chain. A block is never modified after it
// has been committed.
type Block struct {
	Index      uint64          `json:"index"`
	Timestamp  int64           `json:"timestamp"` // Unix milliseconds, taken before sealing.
	Payload    json.RawMessage `json:"payload"`
	PrevHash   string          `json:"previous_hash"`
	Hash       string          `json:"hash"`
	Nonce      uint64          `json:"nonce"`
	Miner      string          `json:"miner"`
	Difficulty int             `json:"difficulty"` // Leading zero hex digits required when sealed.
}

// NewGenesis builds the genesis block at the given timestamp.
func NewGenesis(timestamp int64) *Block {
	payload, _ := json.Marshal(GenesisPayload)
	return &Block{
		Index:     0,
		Timestamp: timestamp,
		Payload:   payload,
		PrevHash:  GenesisPrevHash,
		Hash:      GenesisHash,
		Miner:     GenesisMiner,
	}
}

// NewCandidate builds an unsealed block on top of parent. The nonce starts
// at zero and the hash is empty until the block is sealed.
func NewCandidate(parent *Block, timestamp int64, payload json.RawMessage, miner string) *Block {
	return &Block{
		Index:     parent.Index + 1,
		Timestamp: timestamp,
		Payload:   payload,
		PrevHash:  parent.Hash,
		Miner:     miner,
	}
}

// EncodePayload serializes v into its canonical JSON form. Values that
// already are JSON (json.RawMessage, []byte) are re-encoded so object keys
// come out sorted and whitespace is dropped.
func EncodePayload(v any) (json.RawMessage, error) {
	switch raw := v.(type) {
	case json.RawMessage:
		return canonicalize(raw)
	case []byte:
		return canonicalize(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return canonicalize(b)
}

func canonicalize(raw []byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("encode payload: trailing data after JSON value")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// HashPrefix returns the hash input without the trailing nonce:
// index | prev_hash | timestamp | payload, with integers in decimal.
// Sealers compute it once and only append the nonce per attempt.
func (b *Block) HashPrefix() []byte {
	buf := make([]byte, 0, 64+len(b.PrevHash)+len(b.Payload))
	buf = strconv.AppendUint(buf, b.Index, 10)
	buf = append(buf, b.PrevHash...)
	buf = strconv.AppendInt(buf, b.Timestamp, 10)
	buf = append(buf, b.Payload...)
	return buf
}

// HashInput returns the canonical bytes hashed for the given nonce.
func (b *Block) HashInput(nonce uint64) []byte {
	return strconv.AppendUint(b.HashPrefix(), nonce, 10)
}

// ComputeHash hashes the block with its current nonce.
func (b *Block) ComputeHash(fn crypto.HashFunc) types.Hash {
	return fn(b.HashInput(b.Nonce))
}

// IsGenesis reports whether b is a genesis block.
func (b *Block) IsGenesis() bool {
	return b.Index == 0 && b.PrevHash == GenesisPrevHash
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	c := *b
	if b.Payload != nil {
		c.Payload = append(json.RawMessage(nil), b.Payload...)
	}
	return &c
}
