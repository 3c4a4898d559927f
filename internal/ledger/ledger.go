// Package ledger implements the ledger engine: a single in-memory
// hash-linked chain extended by proof-of-work, with difficulty adjustment,
// a decaying emission reward and a capped total supply.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/zraledger/internal/consensus"
	"github.com/Klingon-tech/zraledger/internal/log"
	"github.com/Klingon-tech/zraledger/pkg/block"
	"github.com/Klingon-tech/zraledger/pkg/crypto"
)

// Ledger errors.
var (
	// ErrExhausted signals that the emission cap has been reached. The
	// ledger is left untouched; callers should stop mining.
	ErrExhausted = errors.New("emission cap reached")
	// ErrStaleTip is returned when another miner extended the chain while
	// a search was running. The search result is discarded.
	ErrStaleTip = errors.New("chain tip moved during search")
	// ErrBlockNotFound is returned for an index beyond the chain tip.
	ErrBlockNotFound = errors.New("block not found")
)

// Emission parameters.
const (
	DefaultInitialDifficulty = 4
	DefaultInitialReward     = 100.0
	DefaultTotalSupply       = 21_000_000.0

	RewardReductionInterval = 50_000 // Committed blocks between reward reductions.
	RewardDecay             = 0.95
	RewardFloor             = 10.0

	WinnerShare = 0.7 // Fraction of each reward credited to the sealing miner.
)

// Options configures a Ledger.
type Options struct {
	InitialDifficulty int
	InitialReward     float64
	TotalSupply       float64

	Policy        consensus.Policy // nil selects consensus.MinerCountPolicy.
	HashFn        crypto.HashFunc  // nil selects SHA-256.
	YieldInterval uint64           // Nonce attempts between search checkpoints.
	Threads       int              // Search goroutines per Mine call.

	Clock func() time.Time // nil selects time.Now.
}

// DefaultOptions returns the standard emission schedule: difficulty 4,
// reward 100, supply 21,000,000, miner-count difficulty policy.
func DefaultOptions() Options {
	return Options{
		InitialDifficulty: DefaultInitialDifficulty,
		InitialReward:     DefaultInitialReward,
		TotalSupply:       DefaultTotalSupply,
		Policy:            consensus.MinerCountPolicy{},
		HashFn:            crypto.Hash,
		YieldInterval:     consensus.DefaultYieldInterval,
		Threads:           1,
	}
}

// Ledger owns the chain and its aggregate statistics. All methods are safe
// for concurrent use; concurrent Mine calls race for the next block.
type Ledger struct {
	mu          sync.Mutex // Protects everything below.
	chain       []*block.Block
	difficulty  int
	reward      float64
	totalSupply float64
	minedSupply float64
	blockCount  uint64
	miners      map[string]int // Active miner id -> in-flight Mine calls.
	handlers    []CommitHandler
	pending     []CommitEvent

	dispatchMu sync.Mutex // Serializes event delivery.

	policy consensus.Policy
	pow    *consensus.PoW
	clock  func() time.Time
	logger zerolog.Logger
}

// New creates a ledger holding only the genesis block.
func New(opts Options) (*Ledger, error) {
	if opts.InitialDifficulty <= 0 {
		return nil, fmt.Errorf("initial difficulty must be > 0, got %d", opts.InitialDifficulty)
	}
	if opts.InitialReward <= 0 {
		return nil, fmt.Errorf("initial reward must be > 0, got %v", opts.InitialReward)
	}
	if opts.TotalSupply <= 0 {
		return nil, fmt.Errorf("total supply must be > 0, got %v", opts.TotalSupply)
	}
	if opts.Policy == nil {
		opts.Policy = consensus.MinerCountPolicy{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	l := &Ledger{
		chain:       []*block.Block{block.NewGenesis(opts.Clock().UnixMilli())},
		difficulty:  consensus.Clamp(opts.Policy, opts.InitialDifficulty),
		reward:      opts.InitialReward,
		totalSupply: opts.TotalSupply,
		miners:      make(map[string]int),
		policy:      opts.Policy,
		pow:         consensus.NewPoW(opts.HashFn, opts.YieldInterval, opts.Threads),
		clock:       opts.Clock,
		logger:      log.Ledger,
	}
	return l, nil
}

// SetProgress installs a hook called at every search checkpoint. It must
// be set before mining starts.
func (l *Ledger) SetProgress(fn consensus.ProgressFunc) {
	l.pow.Progress = fn
}

// Difficulty returns the current number of required leading zero hex digits.
func (l *Ledger) Difficulty() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.difficulty
}

// Reward returns the current per-block emission.
func (l *Ledger) Reward() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reward
}

// MinedSupply returns the total amount emitted so far.
func (l *Ledger) MinedSupply() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minedSupply
}

// TotalSupply returns the emission cap.
func (l *Ledger) TotalSupply() float64 {
	return l.totalSupply
}

// BlockCount returns the number of committed non-genesis blocks.
func (l *Ledger) BlockCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blockCount
}

// ActiveMinerCount returns the number of distinct miners currently mining.
func (l *Ledger) ActiveMinerCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.miners)
}

// ActiveMiners returns the ids of the active miners, sorted.
func (l *Ledger) ActiveMiners() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.miners))
	for id := range l.miners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Policy returns the difficulty policy in use.
func (l *Ledger) Policy() consensus.Policy {
	return l.policy
}

// Tip returns a copy of the latest block.
func (l *Ledger) Tip() *block.Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tip().Clone()
}

// BlockByIndex returns a copy of the block at index i.
func (l *Ledger) BlockByIndex(i uint64) (*block.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i >= uint64(len(l.chain)) {
		return nil, fmt.Errorf("%w: index %d", ErrBlockNotFound, i)
	}
	return l.chain[i].Clone(), nil
}

// Blocks returns copies of all blocks, genesis first.
func (l *Ledger) Blocks() []*block.Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*block.Block, len(l.chain))
	for i, b := range l.chain {
		out[i] = b.Clone()
	}
	return out
}

// AddMiner registers minerID as active and recomputes difficulty. Calls
// nest: a miner stays active until RemoveMiner has been called as often as
// AddMiner.
func (l *Ledger) AddMiner(minerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.join(minerID)
}

// RemoveMiner unregisters one AddMiner call for minerID and recomputes
// difficulty. Unknown ids are ignored.
func (l *Ledger) RemoveMiner(minerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.leave(minerID)
}

// Verify re-checks the whole chain: genesis sentinels, index and hash
// linkage, hash recomputation and proof of work.
func (l *Ledger) Verify() error {
	defer log.Benchmark("verify chain")()
	blocks := l.Blocks()
	if err := block.ValidateGenesis(blocks[0]); err != nil {
		return err
	}
	for i := 1; i < len(blocks); i++ {
		if err := l.pow.Verify(blocks[i], blocks[i-1]); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	return nil
}

func (l *Ledger) tip() *block.Block {
	return l.chain[len(l.chain)-1]
}

func (l *Ledger) exhausted() bool {
	return l.minedSupply >= l.totalSupply
}

func (l *Ledger) join(minerID string) {
	l.miners[minerID]++
	l.logger.Debug().
		Str("miner", minerID).
		Int("active", len(l.miners)).
		Msg("Miner joined")
	l.setDifficulty(l.policy.MinersChanged(l.difficulty, len(l.miners)), "miner joined")
}

func (l *Ledger) leave(minerID string) {
	n, ok := l.miners[minerID]
	if !ok {
		return
	}
	if n <= 1 {
		delete(l.miners, minerID)
	} else {
		l.miners[minerID] = n - 1
	}
	l.logger.Debug().
		Str("miner", minerID).
		Int("active", len(l.miners)).
		Msg("Miner left")
	l.setDifficulty(l.policy.MinersChanged(l.difficulty, len(l.miners)), "miner left")
}

func (l *Ledger) setDifficulty(d int, reason string) {
	d = consensus.Clamp(l.policy, d)
	if d == l.difficulty {
		return
	}
	l.logger.Info().
		Int("from", l.difficulty).
		Int("to", d).
		Str("reason", reason).
		Msg("Difficulty adjusted")
	l.difficulty = d
}

// recentTimestamps returns the timestamps of the last n committed blocks,
// oldest first.
func (l *Ledger) recentTimestamps(n int) []int64 {
	start := len(l.chain) - n
	if start < 1 {
		start = 1
	}
	ts := make([]int64, 0, len(l.chain)-start)
	for _, b := range l.chain[start:] {
		ts = append(ts, b.Timestamp)
	}
	return ts
}

func (l *Ledger) reduceReward() {
	if l.reward <= RewardFloor {
		return
	}
	prev := l.reward
	l.reward = l.reward * RewardDecay
	if l.reward < RewardFloor {
		l.reward = RewardFloor
	}
	l.logger.Info().
		Float64("from", prev).
		Float64("to", l.reward).
		Uint64("block_count", l.blockCount).
		Msg("Block reward reduced")
}
