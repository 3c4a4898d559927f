package config

// Default returns the default configuration: the standard emission
// schedule, in-memory balances and three simulated miners.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Ledger: LedgerConfig{
			InitialDifficulty: 4,
			InitialReward:     100,
			TotalSupply:       21_000_000,
			Policy:            "miners",
			Hash:              "sha256",
			YieldInterval:     100,
			Threads:           1,
		},
		Rewards: RewardsConfig{
			Backend: "memory",
		},
		Sim: SimConfig{
			Miners: []string{"alice", "bob", "carol"},
			Blocks: 10,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
