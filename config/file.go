package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile reads a .conf file into raw key/value pairs. A missing file
// yields no values.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%s:%d: invalid format (expected key = value)", path, lineNum)
		}
		values[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "datadir":
		cfg.DataDir = value

	// Ledger
	case "ledger.difficulty":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Ledger.InitialDifficulty = n
	case "ledger.reward":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		cfg.Ledger.InitialReward = f
	case "ledger.supply":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		cfg.Ledger.TotalSupply = f
	case "ledger.policy":
		cfg.Ledger.Policy = strings.ToLower(value)
	case "ledger.hash":
		cfg.Ledger.Hash = strings.ToLower(value)
	case "ledger.yield":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Ledger.YieldInterval = n
	case "ledger.threads":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Ledger.Threads = n

	// Rewards
	case "rewards.backend":
		cfg.Rewards.Backend = strings.ToLower(value)
	case "rewards.datadir":
		cfg.Rewards.DataDir = value

	// Simulation
	case "sim.miners", "miners":
		cfg.Sim.Miners = parseStringList(value)
	case "sim.blocks":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Sim.Blocks = n
	case "sim.energy":
		cfg.Sim.Energy = parseBool(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// unquote strips one pair of matching single or double quotes.
func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a commented default configuration file.
func WriteDefaultConfig(path string) error {
	content := `# zraledger configuration
#
# Format: key = value, one per line. Command-line flags override
# values set here.

# Data directory (default: ~/.zraledger)
# datadir = ~/.zraledger

# ============================================================================
# Ledger
# ============================================================================

# Difficulty of the first block (leading zero hex digits)
ledger.difficulty = 4

# Initial block reward and total emission
ledger.reward = 100
ledger.supply = 21000000

# Difficulty policy: miners (by active miner count) or cadence (60s blocks)
ledger.policy = miners

# Block hash function: sha256, blake3 or sha3-256
ledger.hash = sha256

# Nonce attempts between cancellation checkpoints
# ledger.yield = 100

# Search goroutines per block
# ledger.threads = 1

# ============================================================================
# Rewards
# ============================================================================

# Balance storage: memory or badger
rewards.backend = memory
# rewards.datadir = ~/.zraledger/rewards

# ============================================================================
# Simulation
# ============================================================================

# Miner ids (comma-separated)
sim.miners = alice,bob,carol

# Blocks to mine (0 = until the supply is exhausted)
sim.blocks = 10

# Throttle miners with an energy budget
# sim.energy = false

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
