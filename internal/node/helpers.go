package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/zraledger/config"
	"github.com/Klingon-tech/zraledger/internal/consensus"
	"github.com/Klingon-tech/zraledger/internal/ledger"
	"github.com/Klingon-tech/zraledger/pkg/crypto"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// ledgerOptions translates the ledger section of cfg.
func ledgerOptions(cfg *config.Config) (ledger.Options, error) {
	policy, err := consensus.ParsePolicy(cfg.Ledger.Policy)
	if err != nil {
		return ledger.Options{}, err
	}
	hashFn, err := crypto.HashFuncFor(crypto.Algorithm(cfg.Ledger.Hash))
	if err != nil {
		return ledger.Options{}, err
	}
	if cfg.Ledger.Threads < 1 {
		return ledger.Options{}, fmt.Errorf("ledger.threads must be at least 1")
	}

	opts := ledger.DefaultOptions()
	opts.InitialDifficulty = cfg.Ledger.InitialDifficulty
	opts.InitialReward = cfg.Ledger.InitialReward
	opts.TotalSupply = cfg.Ledger.TotalSupply
	opts.Policy = policy
	opts.HashFn = hashFn
	opts.YieldInterval = cfg.Ledger.YieldInterval
	opts.Threads = cfg.Ledger.Threads
	return opts, nil
}
