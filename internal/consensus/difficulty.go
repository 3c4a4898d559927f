package consensus

import (
	"errors"
	"fmt"
	"math/bits"
)

// Difficulty adjustment parameters.
const (
	RetargetInterval = 10     // Committed blocks between scheduled retargets.
	TargetBlockTime  = 60_000 // Target milliseconds between blocks (cadence policy).
	CadenceTolerance = 5_000  // Dead band around TargetBlockTime.

	MinerPolicyFloor   = 4
	MinerPolicyCeiling = 8
)

// Policy names accepted by ParsePolicy.
const (
	PolicyMiners  = "miners"
	PolicyCadence = "cadence"
)

// ErrUnknownPolicy is returned by ParsePolicy for an unsupported name.
var ErrUnknownPolicy = errors.New("unknown difficulty policy")

// Policy decides the number of leading zero hex digits a block hash needs.
// A ledger runs exactly one policy; the two implementations are never
// combined.
type Policy interface {
	Name() string

	// Floor is the smallest difficulty the policy yields (always >= 1).
	Floor() int
	// Ceiling is the largest difficulty the policy yields, 0 if unbounded.
	Ceiling() int

	// MinersChanged is called whenever a miner joins or leaves.
	MinersChanged(current, active int) int

	// Retarget is called every RetargetInterval committed blocks with the
	// timestamps (ms) of the most recent blocks, oldest first.
	Retarget(current, active int, timestamps []int64) int
}

// ShouldRetarget reports whether a scheduled retarget is due after
// blockCount committed blocks.
func ShouldRetarget(blockCount uint64) bool {
	return blockCount > 0 && blockCount%RetargetInterval == 0
}

// Clamp bounds d to the policy's floor and ceiling.
func Clamp(p Policy, d int) int {
	floor := p.Floor()
	if floor < 1 {
		floor = 1
	}
	if d < floor {
		d = floor
	}
	if c := p.Ceiling(); c > 0 && d > c {
		d = c
	}
	return d
}

// ParsePolicy returns the policy registered under name.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", PolicyMiners:
		return MinerCountPolicy{}, nil
	case PolicyCadence:
		return CadencePolicy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// MinerCountPolicy derives difficulty from the number of active miners:
// 4 up to five miners, 5 up to ten, then 6 + floor(log2(n-10)) capped at 8.
type MinerCountPolicy struct{}

// Name implements Policy.
func (MinerCountPolicy) Name() string { return PolicyMiners }

// Floor implements Policy.
func (MinerCountPolicy) Floor() int { return MinerPolicyFloor }

// Ceiling implements Policy.
func (MinerCountPolicy) Ceiling() int { return MinerPolicyCeiling }

// MinersChanged implements Policy.
func (MinerCountPolicy) MinersChanged(_, active int) int {
	return DifficultyForMiners(active)
}

// Retarget implements Policy.
func (MinerCountPolicy) Retarget(_, active int, _ []int64) int {
	return DifficultyForMiners(active)
}

// DifficultyForMiners maps an active miner count to a difficulty.
func DifficultyForMiners(active int) int {
	switch {
	case active <= 5:
		return MinerPolicyFloor
	case active <= 10:
		return 5
	}
	// floor(log2(x)) for x >= 1.
	log2 := bits.Len(uint(active-10)) - 1
	d := 6 + log2
	if d > MinerPolicyCeiling {
		d = MinerPolicyCeiling
	}
	return d
}

// CadencePolicy moves difficulty one step at a time toward a target block
// time. Miner joins and leaves do not affect it.
type CadencePolicy struct {
	// Target and Tolerance in milliseconds. Zero values select
	// TargetBlockTime and CadenceTolerance.
	Target    int64
	Tolerance int64
}

// Name implements Policy.
func (CadencePolicy) Name() string { return PolicyCadence }

// Floor implements Policy.
func (CadencePolicy) Floor() int { return 1 }

// Ceiling implements Policy.
func (CadencePolicy) Ceiling() int { return 0 }

// MinersChanged implements Policy.
func (c CadencePolicy) MinersChanged(current, _ int) int {
	return Clamp(c, current)
}

// Retarget implements Policy. It averages the deltas between the given
// timestamps; fewer than two timestamps leave difficulty unchanged.
func (c CadencePolicy) Retarget(current, _ int, timestamps []int64) int {
	if len(timestamps) < 2 {
		return Clamp(c, current)
	}
	target, tol := c.Target, c.Tolerance
	if target <= 0 {
		target = TargetBlockTime
	}
	if tol <= 0 {
		tol = CadenceTolerance
	}

	// Compare the span against the band scaled by the delta count so a
	// fractional average is not truncated.
	span := timestamps[len(timestamps)-1] - timestamps[0]
	n := int64(len(timestamps) - 1)
	switch {
	case span < (target-tol)*n:
		current++
	case span > (target+tol)*n:
		current--
	}
	return Clamp(c, current)
}
