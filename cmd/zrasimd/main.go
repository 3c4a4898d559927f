// zrasimd runs a simulated proof-of-work ledger with competing miners.
//
// Usage:
//
//	zrasimd [--miners=a,b,c --blocks=N]  Run the simulation
//	zrasimd --help                       Show help
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Klingon-tech/zraledger/config"
	"github.com/Klingon-tech/zraledger/internal/node"
)

func main() {
	cfg, flags, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	switch {
	case flags.Help:
		config.PrintUsage(os.Stdout)
		return
	case flags.Version:
		fmt.Println("zrasimd version " + config.Version)
		return
	case flags.WriteConfig:
		if err := writeConfig(cfg, flags.Config); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	n, err := node.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := n.Run(ctx)
	n.Stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printSummary(os.Stdout, sum)
}

func writeConfig(cfg *config.Config, path string) error {
	if path == "" {
		if err := config.EnsureDataDirs(cfg); err != nil {
			return err
		}
		path = cfg.ConfigFile()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.WriteDefaultConfig(path); err != nil {
		return err
	}
	fmt.Println("Wrote " + path)
	return nil
}

func printSummary(w io.Writer, sum node.Summary) {
	st := sum.State
	fmt.Fprintf(w, "\nStopped:       %s after %s\n", sum.Stats.Stopped, sum.Stats.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Height:        %d\n", st.Height)
	fmt.Fprintf(w, "Tip:           %s\n", st.TipHash)
	fmt.Fprintf(w, "Difficulty:    %d (%s)\n", st.Difficulty, st.Policy)
	fmt.Fprintf(w, "Reward:        %.2f\n", st.Reward)
	fmt.Fprintf(w, "Mined supply:  %.2f / %.2f\n", st.MinedSupply, st.TotalSupply)

	fmt.Fprintf(w, "\n%-16s %8s %8s %14s\n", "MINER", "BLOCKS", "STALE", "BALANCE")
	seen := make(map[string]bool, len(sum.Balances))
	for _, e := range sum.Balances {
		seen[e.Miner] = true
		fmt.Fprintf(w, "%-16s %8d %8d %14.2f\n", e.Miner, sum.Stats.Blocks[e.Miner], sum.Stats.Stale[e.Miner], e.Balance)
	}
	for _, id := range sum.Stats.Ranking() {
		if !seen[id] {
			fmt.Fprintf(w, "%-16s %8d %8d %14.2f\n", id, sum.Stats.Blocks[id], sum.Stats.Stale[id], 0.0)
		}
	}
}
