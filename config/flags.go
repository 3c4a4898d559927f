package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// Version is the zrasimd release.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help        bool
	Version     bool
	WriteConfig bool

	// Core
	DataDir string
	Config  string

	// Ledger
	Difficulty int
	Reward     float64
	Supply     float64
	Policy     string
	Hash       string
	Yield      uint64
	Threads    int

	// Rewards
	Backend    string
	RewardsDir string

	// Simulation
	Miners string
	Blocks uint64
	Energy bool

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set flags whose zero value is meaningful.
	SetBlocks  bool
	SetEnergy  bool
	SetLogJSON bool
}

// ParseFlags parses command-line arguments, without the program name.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("zrasimd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")
	fs.BoolVar(&f.WriteConfig, "write-config", false, "Write a default config file and exit")

	// Core
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Ledger
	fs.IntVar(&f.Difficulty, "difficulty", 0, "Initial difficulty")
	fs.Float64Var(&f.Reward, "reward", 0, "Initial block reward")
	fs.Float64Var(&f.Supply, "supply", 0, "Total supply")
	fs.StringVar(&f.Policy, "policy", "", "Difficulty policy (miners or cadence)")
	fs.StringVar(&f.Hash, "hash", "", "Block hash function (sha256, blake3, sha3-256)")
	fs.Uint64Var(&f.Yield, "yield", 0, "Nonce attempts between checkpoints")
	fs.IntVar(&f.Threads, "threads", 0, "Search goroutines per block")

	// Rewards
	fs.StringVar(&f.Backend, "rewards-backend", "", "Balance storage (memory or badger)")
	fs.StringVar(&f.RewardsDir, "rewards-dir", "", "Badger directory for balances")

	// Simulation
	fs.StringVar(&f.Miners, "miners", "", "Comma-separated miner ids")
	fs.Uint64Var(&f.Blocks, "blocks", 0, "Blocks to mine (0 = until supply is exhausted)")
	fs.BoolVar(&f.Energy, "energy", false, "Throttle miners with an energy budget")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			f.Help = true
			return f, nil
		}
		return nil, err
	}

	f.SetBlocks = isFlagSet(fs, "blocks")
	f.SetEnergy = isFlagSet(fs, "energy")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()

	// A positional argument stops flag parsing; anything flag-like after
	// it was silently skipped.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Ledger
	if f.Difficulty != 0 {
		cfg.Ledger.InitialDifficulty = f.Difficulty
	}
	if f.Reward != 0 {
		cfg.Ledger.InitialReward = f.Reward
	}
	if f.Supply != 0 {
		cfg.Ledger.TotalSupply = f.Supply
	}
	if f.Policy != "" {
		cfg.Ledger.Policy = strings.ToLower(f.Policy)
	}
	if f.Hash != "" {
		cfg.Ledger.Hash = strings.ToLower(f.Hash)
	}
	if f.Yield != 0 {
		cfg.Ledger.YieldInterval = f.Yield
	}
	if f.Threads != 0 {
		cfg.Ledger.Threads = f.Threads
	}

	// Rewards
	if f.Backend != "" {
		cfg.Rewards.Backend = strings.ToLower(f.Backend)
	}
	if f.RewardsDir != "" {
		cfg.Rewards.DataDir = f.RewardsDir
	}

	// Simulation
	if f.Miners != "" {
		cfg.Sim.Miners = parseStringList(f.Miners)
	}
	if f.SetBlocks {
		cfg.Sim.Blocks = f.Blocks
	}
	if f.SetEnergy {
		cfg.Sim.Energy = f.Energy
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// PrintUsage writes the help text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, `zrasimd - simulated proof-of-work ledger

Usage:
  zrasimd [options]
  zrasimd --help

Commands:
  --help, -h         Show this help message
  --version, -v      Show version information
  --write-config     Write a default config file to --config and exit

Core Options:
  --datadir          Data directory (default: ~/.zraledger)
  --config, -c       Config file path (default: <datadir>/zraledger.conf)

Ledger Options:
  --difficulty       Initial difficulty in leading zero hex digits (default: 4)
  --reward           Initial block reward (default: 100)
  --supply           Total supply (default: 21000000)
  --policy           Difficulty policy: miners (default) or cadence
  --hash             Block hash: sha256 (default), blake3 or sha3-256
  --yield            Nonce attempts between checkpoints (default: 100)
  --threads          Search goroutines per block (default: 1)

Rewards Options:
  --rewards-backend  Balance storage: memory (default) or badger
  --rewards-dir      Badger directory (default: <datadir>/rewards)

Simulation Options:
  --miners           Comma-separated miner ids (default: alice,bob,carol)
  --blocks           Blocks to mine, 0 for all remaining supply (default: 10)
  --energy           Throttle miners with an energy budget

Logging Options:
  --log-level        Log level: debug, info, warn, error (default: info)
  --log-file         Also write JSON logs to this file
  --log-json         Output logs as JSON

Examples:
  # Race five miners for 50 blocks
  zrasimd --miners=a,b,c,d,e --blocks=50

  # Cadence policy with BLAKE3 and persistent balances
  zrasimd --policy=cadence --hash=blake3 --rewards-backend=badger
`)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Config file
// 3. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}

	cfg := Default()
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory and, when balances live on
// disk, the rewards directory.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{cfg.DataDir}
	if cfg.Rewards.Backend == "badger" {
		dirs = append(dirs, cfg.RewardsDir())
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}
