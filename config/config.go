// Package config handles application configuration.
//
// Settings come from three layers, later ones winning:
//   - Built-in defaults
//   - A key = value config file
//   - Command-line flags
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Config holds the runtime configuration of zrasimd.
type Config struct {
	// Core
	DataDir string `conf:"datadir"`

	// Ledger engine
	Ledger LedgerConfig

	// Reward balances
	Rewards RewardsConfig

	// Mining simulation
	Sim SimConfig

	// Logging
	Log LogConfig
}

// LedgerConfig holds the emission schedule and proof-of-work settings.
type LedgerConfig struct {
	InitialDifficulty int     `conf:"ledger.difficulty"`
	InitialReward     float64 `conf:"ledger.reward"`
	TotalSupply       float64 `conf:"ledger.supply"`
	Policy            string  `conf:"ledger.policy"`  // miners or cadence
	Hash              string  `conf:"ledger.hash"`    // sha256, blake3 or sha3-256
	YieldInterval     uint64  `conf:"ledger.yield"`   // Nonce attempts between checkpoints
	Threads           int     `conf:"ledger.threads"` // Search goroutines per block
}

// RewardsConfig selects where miner balances are kept.
type RewardsConfig struct {
	Backend string `conf:"rewards.backend"` // memory or badger
	DataDir string `conf:"rewards.datadir"` // Badger directory (default: <datadir>/rewards)
}

// SimConfig describes the simulated miners.
type SimConfig struct {
	Miners []string `conf:"sim.miners"`
	Blocks uint64   `conf:"sim.blocks"` // 0 mines until the supply is exhausted
	Energy bool     `conf:"sim.energy"` // Throttle miners with an energy budget
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.zraledger
//	macOS:   ~/Library/Application Support/Zraledger
//	Windows: %APPDATA%\Zraledger
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zraledger"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Zraledger")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Zraledger")
		}
		return filepath.Join(home, "AppData", "Roaming", "Zraledger")
	default:
		return filepath.Join(home, ".zraledger")
	}
}

// RewardsDir returns the directory of the on-disk rewards book.
func (c *Config) RewardsDir() string {
	if c.Rewards.DataDir != "" {
		return c.Rewards.DataDir
	}
	return filepath.Join(c.DataDir, "rewards")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "zraledger.conf")
}
