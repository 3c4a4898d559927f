// Package sim drives a ledger with a set of concurrent miners.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/zraledger/internal/ledger"
	"github.com/Klingon-tech/zraledger/internal/log"
	"github.com/Klingon-tech/zraledger/pkg/block"
)

// ErrNoMiners is returned by Run when no miners are configured.
var ErrNoMiners = errors.New("no miners configured")

// Reasons a run stopped.
const (
	StopTarget    = "target"
	StopExhausted = "exhausted"
	StopCancelled = "cancelled"
)

// Ledger is the part of the ledger engine the simulation uses.
type Ledger interface {
	Mine(ctx context.Context, payload any, minerID string) (*block.Block, error)
	BlockCount() uint64
}

// Energy defaults.
const (
	DefaultEnergyCost     = 10
	DefaultMaxEnergy      = 100
	DefaultEnergyRecovery = 10 * time.Second
)

// Config describes a simulation run.
type Config struct {
	Miners []string
	Blocks uint64 // Blocks to commit; 0 runs until exhaustion or cancellation.

	// Energy throttles miners: every attempt costs EnergyCost out of a
	// pool of MaxEnergy that refills one point per EnergyRecovery. A zero
	// EnergyCost disables throttling.
	EnergyCost     int
	MaxEnergy      int
	EnergyRecovery time.Duration
}

// Stats summarizes a run.
type Stats struct {
	Blocks  map[string]uint64 // Blocks won per miner.
	Stale   map[string]uint64 // Races lost per miner.
	Total   uint64
	Elapsed time.Duration
	Stopped string
}

// Ranking returns miner ids ordered by blocks won, most first.
func (s Stats) Ranking() []string {
	ids := make([]string, 0, len(s.Blocks))
	for id := range s.Blocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if s.Blocks[ids[i]] != s.Blocks[ids[j]] {
			return s.Blocks[ids[i]] > s.Blocks[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Payload is the block payload each simulated miner submits.
type Payload struct {
	Miner string `json:"miner"`
	Seq   uint64 `json:"seq"`
}

// Runner races the configured miners against one ledger.
type Runner struct {
	ledger Ledger
	cfg    Config
	logger zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a runner for l.
func New(l Ledger, cfg Config) *Runner {
	return &Runner{
		ledger: l,
		cfg:    cfg,
		logger: log.Sim,
	}
}

// Run mines until cfg.Blocks blocks were committed, the emission cap is
// reached or ctx is cancelled. Miners that lose a race start over on the
// new tip. A run may overshoot the target by up to one block per miner
// still searching when the target was reached.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	if len(r.cfg.Miners) == 0 {
		return Stats{}, ErrNoMiners
	}

	r.stats = Stats{
		Blocks: make(map[string]uint64, len(r.cfg.Miners)),
		Stale:  make(map[string]uint64, len(r.cfg.Miners)),
	}
	for _, id := range r.cfg.Miners {
		r.stats.Blocks[id] = 0
	}

	start := time.Now()
	base := r.ledger.BlockCount()
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	r.logger.Info().
		Int("miners", len(r.cfg.Miners)).
		Uint64("target", r.cfg.Blocks).
		Msg("Simulation started")

	g, gctx := errgroup.WithContext(runCtx)
	for _, id := range r.cfg.Miners {
		id := id
		g.Go(func() error {
			return r.runMiner(gctx, stop, id, base)
		})
	}
	err := g.Wait()

	r.mu.Lock()
	stats := r.stats
	r.mu.Unlock()
	stats.Total = r.ledger.BlockCount() - base
	stats.Elapsed = time.Since(start)
	if stats.Stopped == "" {
		switch {
		case r.cfg.Blocks > 0 && stats.Total >= r.cfg.Blocks:
			stats.Stopped = StopTarget
		default:
			stats.Stopped = StopCancelled
		}
	}

	r.logger.Info().
		Uint64("blocks", stats.Total).
		Dur("elapsed", stats.Elapsed).
		Str("stopped", stats.Stopped).
		Msg("Simulation finished")
	return stats, err
}

func (r *Runner) runMiner(ctx context.Context, stop context.CancelFunc, id string, base uint64) error {
	e := newEnergy(r.cfg.MaxEnergy, r.cfg.EnergyRecovery)
	var seq uint64
	for {
		if ctx.Err() != nil {
			return nil
		}
		if r.cfg.Blocks > 0 && r.ledger.BlockCount()-base >= r.cfg.Blocks {
			stop()
			return nil
		}
		if r.cfg.EnergyCost > 0 {
			if err := e.spend(ctx, r.cfg.EnergyCost); err != nil {
				return nil
			}
		}

		seq++
		blk, err := r.ledger.Mine(ctx, Payload{Miner: id, Seq: seq}, id)
		switch {
		case err == nil:
			r.mu.Lock()
			r.stats.Blocks[id]++
			r.mu.Unlock()
			r.logger.Debug().
				Str("miner", id).
				Uint64("index", blk.Index).
				Str("hash", blk.Hash).
				Msg("Block won")
		case errors.Is(err, ledger.ErrStaleTip):
			r.mu.Lock()
			r.stats.Stale[id]++
			r.mu.Unlock()
		case errors.Is(err, ledger.ErrExhausted):
			r.mu.Lock()
			r.stats.Stopped = StopExhausted
			r.mu.Unlock()
			stop()
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			return fmt.Errorf("miner %s: %w", id, err)
		}
	}
}

// energy is a refilling budget of mining attempts.
type energy struct {
	level    int
	max      int
	recovery time.Duration
	last     time.Time
	now      func() time.Time
}

func newEnergy(capacity int, recovery time.Duration) *energy {
	if capacity <= 0 {
		capacity = DefaultMaxEnergy
	}
	if recovery <= 0 {
		recovery = DefaultEnergyRecovery
	}
	return &energy{level: capacity, max: capacity, recovery: recovery, last: time.Now(), now: time.Now}
}

// refill credits one point per elapsed recovery period.
func (e *energy) refill() {
	n := int(e.now().Sub(e.last) / e.recovery)
	if n <= 0 {
		return
	}
	e.last = e.last.Add(time.Duration(n) * e.recovery)
	e.level = min(e.max, e.level+n)
}

// spend waits until energy is above zero, then deducts cost. The level
// never drops below zero.
func (e *energy) spend(ctx context.Context, cost int) error {
	for {
		e.refill()
		if e.level > 0 {
			e.level = max(0, e.level-cost)
			return nil
		}
		wait := e.recovery - e.now().Sub(e.last)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
