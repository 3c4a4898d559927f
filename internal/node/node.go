// Package node assembles a ledger, its rewards book and the mining
// simulation from a configuration.
package node

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/zraledger/config"
	"github.com/Klingon-tech/zraledger/internal/ledger"
	zlog "github.com/Klingon-tech/zraledger/internal/log"
	"github.com/Klingon-tech/zraledger/internal/rewards"
	"github.com/Klingon-tech/zraledger/internal/sim"
	"github.com/Klingon-tech/zraledger/internal/storage"
)

// Node is a fully-initialized simulation.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	db     storage.DB
	ledger *ledger.Ledger
	book   *rewards.Book
	runner *sim.Runner
}

// Summary reports the outcome of a run.
type Summary struct {
	Stats    sim.Stats
	State    ledger.State
	Balances []rewards.Entry
}

// New creates and wires every component. It does not start mining; call
// Run for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	if err := zlog.Init(cfg.Log.Level, cfg.Log.JSON, expandHome(cfg.Log.File)); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := zlog.WithComponent("node")

	// ── 2. Ledger ───────────────────────────────────────────────────
	opts, err := ledgerOptions(cfg)
	if err != nil {
		return nil, err
	}
	l, err := ledger.New(opts)
	if err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}
	logger.Info().
		Str("policy", l.Policy().Name()).
		Str("hash", cfg.Ledger.Hash).
		Int("difficulty", l.Difficulty()).
		Float64("reward", l.Reward()).
		Float64("supply", l.TotalSupply()).
		Msg("Ledger created")

	// ── 3. Rewards book ─────────────────────────────────────────────
	dir := ""
	if cfg.Rewards.Backend == storage.BackendBadger {
		dir = expandHome(cfg.RewardsDir())
	}
	db, err := storage.Open(cfg.Rewards.Backend, dir)
	if err != nil {
		return nil, fmt.Errorf("open rewards store: %w", err)
	}
	book := rewards.New(db)
	book.Attach(l)
	logger.Info().Str("backend", cfg.Rewards.Backend).Str("path", dir).Msg("Rewards book opened")

	// ── 4. Simulation ───────────────────────────────────────────────
	simCfg := sim.Config{
		Miners: cfg.Sim.Miners,
		Blocks: cfg.Sim.Blocks,
	}
	if cfg.Sim.Energy {
		simCfg.EnergyCost = sim.DefaultEnergyCost
		simCfg.MaxEnergy = sim.DefaultMaxEnergy
		simCfg.EnergyRecovery = sim.DefaultEnergyRecovery
	}

	return &Node{
		cfg:    cfg,
		logger: logger,
		db:     db,
		ledger: l,
		book:   book,
		runner: sim.New(l, simCfg),
	}, nil
}

// Run mines until the configured block target, supply exhaustion or ctx
// cancellation, then verifies the chain.
func (n *Node) Run(ctx context.Context) (Summary, error) {
	stats, err := n.runner.Run(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("simulation: %w", err)
	}
	if err := n.ledger.Verify(); err != nil {
		return Summary{}, fmt.Errorf("chain verification: %w", err)
	}
	if err := n.book.Err(); err != nil {
		return Summary{}, fmt.Errorf("rewards book: %w", err)
	}
	balances, err := n.book.Balances()
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Stats: stats, State: n.ledger.State(), Balances: balances}
	n.logger.Info().
		Uint64("height", sum.State.Height).
		Str("tip", sum.State.TipHash).
		Float64("mined_supply", sum.State.MinedSupply).
		Msg("Chain verified")
	return sum, nil
}

// Ledger returns the node's ledger.
func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

// Book returns the node's rewards book.
func (n *Node) Book() *rewards.Book {
	return n.book
}

// Stop releases the rewards store.
func (n *Node) Stop() {
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Error().Err(err).Msg("Failed to close rewards store")
		}
	}
	n.logger.Info().Msg("Goodbye!")
}
