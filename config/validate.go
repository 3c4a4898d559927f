package config

import (
	"fmt"
	"strings"

	"github.com/Klingon-tech/zraledger/internal/consensus"
	"github.com/Klingon-tech/zraledger/internal/log"
	"github.com/Klingon-tech/zraledger/pkg/crypto"
)

// MaxThreads caps search goroutines per block.
const MaxThreads = 64

// Validate checks the config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	l := cfg.Ledger
	if l.InitialDifficulty < 1 || l.InitialDifficulty > 64 {
		return fmt.Errorf("ledger.difficulty must be in range [1, 64]")
	}
	if l.InitialReward <= 0 {
		return fmt.Errorf("ledger.reward must be positive")
	}
	if l.TotalSupply <= 0 {
		return fmt.Errorf("ledger.supply must be positive")
	}
	if _, err := consensus.ParsePolicy(l.Policy); err != nil {
		return fmt.Errorf("ledger.policy: %w", err)
	}
	if _, err := crypto.HashFuncFor(crypto.Algorithm(l.Hash)); err != nil {
		return fmt.Errorf("ledger.hash: %w", err)
	}
	if l.YieldInterval == 0 {
		return fmt.Errorf("ledger.yield must be at least 1")
	}
	if l.Threads < 1 || l.Threads > MaxThreads {
		return fmt.Errorf("ledger.threads must be in range [1, %d]", MaxThreads)
	}

	switch cfg.Rewards.Backend {
	case "memory":
	case "badger":
		if cfg.RewardsDir() == "" {
			return fmt.Errorf("rewards.backend=badger requires a data directory")
		}
	default:
		return fmt.Errorf("rewards.backend must be memory or badger")
	}

	if len(cfg.Sim.Miners) == 0 {
		return fmt.Errorf("sim.miners must name at least one miner")
	}
	seen := make(map[string]struct{}, len(cfg.Sim.Miners))
	for i, id := range cfg.Sim.Miners {
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("sim.miners[%d] is empty", i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("sim.miners has duplicate miner %q", id)
		}
		seen[id] = struct{}{}
		cfg.Sim.Miners[i] = id
	}

	if !log.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn, error or disabled")
	}
	return nil
}
