// Package rewards keeps per-miner balances credited from ledger commit
// events.
package rewards

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/zraledger/internal/ledger"
	"github.com/Klingon-tech/zraledger/internal/log"
	"github.com/Klingon-tech/zraledger/internal/storage"
)

// Key namespaces inside the book's store.
var (
	prefixBalance = []byte("bal/")
	prefixWon     = []byte("won/")
)

// Entry is one miner's standing.
type Entry struct {
	Miner   string
	Balance float64
	Blocks  uint64 // Blocks sealed by this miner.
}

// Book credits reward shares to miners. Each commit event is applied as
// one batch, so a crash never leaves half a block credited.
type Book struct {
	mu     sync.Mutex
	db     *storage.PrefixDB
	err    error // First failure seen by the subscription handler.
	logger zerolog.Logger
}

// New creates a book stored under the "rewards/" namespace of db.
func New(db storage.DB) *Book {
	return &Book{
		db:     storage.NewPrefixDB(db, []byte("rewards/")),
		logger: log.Rewards,
	}
}

// Attach subscribes the book to l. Failures to apply an event are logged
// and kept for Err.
func (b *Book) Attach(l *ledger.Ledger) {
	l.Subscribe(func(ev ledger.CommitEvent) {
		if err := b.Apply(ev); err != nil {
			b.logger.Error().Err(err).Uint64("index", ev.Block.Index).Msg("Failed to credit block reward")
			b.mu.Lock()
			if b.err == nil {
				b.err = err
			}
			b.mu.Unlock()
		}
	})
}

// Err returns the first error raised while applying subscribed events.
func (b *Book) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Apply credits the shares of ev.
func (b *Book) Apply(ev ledger.CommitEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	credited := make(map[string]float64, len(ev.Shares))
	batch := b.db.NewBatch()
	for _, s := range ev.Shares {
		key := minerKey(prefixBalance, s.Miner)
		bal, ok := credited[s.Miner]
		if !ok {
			var err error
			if bal, err = b.getFloat(key); err != nil {
				return err
			}
		}
		bal += s.Amount
		credited[s.Miner] = bal
		if err := batch.Put(key, encodeFloat(bal)); err != nil {
			return err
		}
		if s.Winner {
			key := minerKey(prefixWon, s.Miner)
			won, err := b.getUint(key)
			if err != nil {
				return err
			}
			if err := batch.Put(key, encodeUint(won+1)); err != nil {
				return err
			}
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("credit block %d: %w", ev.Block.Index, err)
	}

	b.logger.Debug().
		Uint64("index", ev.Block.Index).
		Int("shares", len(ev.Shares)).
		Float64("reward", ev.Reward).
		Msg("Block reward credited")
	return nil
}

// Balance returns the balance of miner. Unknown miners have zero balance.
func (b *Book) Balance(miner string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getFloat(minerKey(prefixBalance, miner))
}

// Balances returns every miner with a balance, richest first. Ties are
// ordered by miner id.
func (b *Book) Balances() ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var entries []Entry
	err := b.db.ForEach(prefixBalance, func(key, value []byte) error {
		bal, err := decodeFloat(value)
		if err != nil {
			return err
		}
		miner := string(key[len(prefixBalance):])
		won, err := b.getUint(minerKey(prefixWon, miner))
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Miner: miner, Balance: bal, Blocks: won})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Balance != entries[j].Balance {
			return entries[i].Balance > entries[j].Balance
		}
		return entries[i].Miner < entries[j].Miner
	})
	return entries, nil
}

// Total returns the sum of all balances.
func (b *Book) Total() (float64, error) {
	entries, err := b.Balances()
	if err != nil {
		return 0, err
	}
	var total float64
	for _, e := range entries {
		total += e.Balance
	}
	return total, nil
}

// Reset clears every balance.
func (b *Book) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db.DeleteAll()
}

func (b *Book) getFloat(key []byte) (float64, error) {
	v, err := b.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	return decodeFloat(v)
}

func (b *Book) getUint(key []byte) (uint64, error) {
	v, err := b.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("corrupt counter at %s: %d bytes", key, len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func minerKey(prefix []byte, miner string) []byte {
	return append(append([]byte(nil), prefix...), miner...)
}

func encodeFloat(f float64) []byte {
	return encodeUint(math.Float64bits(f))
}

func decodeFloat(v []byte) (float64, error) {
	if len(v) != 8 {
		return 0, fmt.Errorf("corrupt balance: %d bytes", len(v))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(v)), nil
}

func encodeUint(n uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return buf[:]
}
