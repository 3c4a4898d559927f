package ledger

import (
	"sort"

	"github.com/Klingon-tech/zraledger/pkg/block"
)

// Share is the part of a block reward credited to one miner.
type Share struct {
	Miner  string
	Amount float64
	Winner bool // True for the miner that sealed the block.
}

// CommitEvent describes a committed block. The ledger itself keeps no
// per-miner balances; subscribers do.
type CommitEvent struct {
	Block       *block.Block
	Reward      float64 // Amount emitted for this block.
	Shares      []Share // Winner first, then other active miners by id.
	Difficulty  int     // Difficulty after the commit.
	BlockCount  uint64
	MinedSupply float64
}

// CommitHandler receives commit events in commit order. Handlers run on
// the goroutine of a Mine call, outside the ledger lock, so they may read
// the ledger but should return quickly. Handlers must not call Mine.
type CommitHandler func(CommitEvent)

// Subscribe registers h for all blocks committed after the call.
func (l *Ledger) Subscribe(h CommitHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// distribute splits reward: WinnerShare to the sealing miner and the rest
// evenly among the other active miners. With no other miners the remainder
// is not credited. Caller holds mu.
func (l *Ledger) distribute(winner string, reward float64) []Share {
	others := make([]string, 0, len(l.miners))
	for id := range l.miners {
		if id != winner {
			others = append(others, id)
		}
	}
	sort.Strings(others)

	shares := make([]Share, 0, 1+len(others))
	shares = append(shares, Share{Miner: winner, Amount: reward * WinnerShare, Winner: true})

	split := len(l.miners) - 1
	if split < 1 {
		split = 1
	}
	each := reward * (1 - WinnerShare) / float64(split)
	for _, id := range others {
		shares = append(shares, Share{Miner: id, Amount: each})
	}
	return shares
}

// dispatch delivers pending events. Only one goroutine delivers at a time
// and it drains the queue until empty, so events arrive in commit order
// and a Mine call returns only after its own event was delivered.
func (l *Ledger) dispatch() {
	l.dispatchMu.Lock()
	defer l.dispatchMu.Unlock()

	for {
		l.mu.Lock()
		events := l.pending
		l.pending = nil
		handlers := make([]CommitHandler, len(l.handlers))
		copy(handlers, l.handlers)
		l.mu.Unlock()

		if len(events) == 0 {
			return
		}
		for _, ev := range events {
			for _, h := range handlers {
				h(ev)
			}
		}
	}
}
