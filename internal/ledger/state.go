package ledger

// State is a point-in-time snapshot of the ledger's aggregate values.
type State struct {
	Height       uint64
	TipHash      string
	Difficulty   int
	Reward       float64
	MinedSupply  float64
	TotalSupply  float64
	BlockCount   uint64
	ActiveMiners int
	Policy       string
}

// State returns a consistent snapshot of the ledger.
func (l *Ledger) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	tip := l.tip()
	return State{
		Height:       tip.Index,
		TipHash:      tip.Hash,
		Difficulty:   l.difficulty,
		Reward:       l.reward,
		MinedSupply:  l.minedSupply,
		TotalSupply:  l.totalSupply,
		BlockCount:   l.blockCount,
		ActiveMiners: len(l.miners),
		Policy:       l.policy.Name(),
	}
}

// Exhausted reports whether the emission cap has been reached.
func (s State) Exhausted() bool {
	return s.MinedSupply >= s.TotalSupply
}
