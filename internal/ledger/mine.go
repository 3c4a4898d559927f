package ledger

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/zraledger/internal/consensus"
	"github.com/Klingon-tech/zraledger/pkg/block"
)

// Mine seals a new block carrying payload on top of the current tip and
// credits it to minerID.
//
// The miner is active for the duration of the call. The difficulty in
// effect when the search starts governs it, even if other miners change
// difficulty meanwhile. If another block is committed first the result is
// discarded with ErrStaleTip. Once the emission cap is reached Mine
// returns ErrExhausted. On any error the chain, block count, reward and
// mined supply are unchanged.
func (l *Ledger) Mine(ctx context.Context, payload any, minerID string) (*block.Block, error) {
	l.mu.Lock()
	if l.exhausted() {
		l.mu.Unlock()
		return nil, ErrExhausted
	}
	data, err := block.EncodePayload(payload)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.join(minerID)
	parent := l.tip()
	difficulty := l.difficulty
	l.mu.Unlock()

	candidate := block.NewCandidate(parent, l.clock().UnixMilli(), data, minerID)
	l.logger.Debug().
		Str("miner", minerID).
		Uint64("index", candidate.Index).
		Int("difficulty", difficulty).
		Msg("Mining started")

	if err := l.pow.Seal(ctx, candidate, difficulty); err != nil {
		l.RemoveMiner(minerID)
		return nil, fmt.Errorf("seal block %d: %w", candidate.Index, err)
	}

	l.mu.Lock()
	if l.tip() != parent {
		l.leave(minerID)
		l.mu.Unlock()
		l.logger.Debug().
			Str("miner", minerID).
			Uint64("index", candidate.Index).
			Msg("Discarding stale block")
		return nil, fmt.Errorf("%w: block %d", ErrStaleTip, candidate.Index)
	}
	if l.exhausted() {
		l.leave(minerID)
		l.mu.Unlock()
		return nil, ErrExhausted
	}
	ev := l.commit(candidate)
	l.leave(minerID)
	ev.Difficulty = l.difficulty
	l.pending = append(l.pending, ev)
	l.mu.Unlock()

	l.dispatch()
	return candidate.Clone(), nil
}

// commit appends blk and updates the aggregate counters. Caller holds mu.
func (l *Ledger) commit(blk *block.Block) CommitEvent {
	l.chain = append(l.chain, blk)
	l.blockCount++

	reward := l.reward
	if remaining := l.totalSupply - l.minedSupply; reward >= remaining {
		reward = remaining
		l.minedSupply = l.totalSupply
	} else {
		l.minedSupply += reward
	}
	shares := l.distribute(blk.Miner, reward)

	l.logger.Info().
		Uint64("index", blk.Index).
		Str("hash", blk.Hash).
		Uint64("nonce", blk.Nonce).
		Str("miner", blk.Miner).
		Float64("reward", reward).
		Float64("mined_supply", l.minedSupply).
		Msg("Block committed")
	for _, s := range shares {
		l.logger.Debug().
			Str("miner", s.Miner).
			Float64("amount", s.Amount).
			Bool("winner", s.Winner).
			Msg("Reward share")
	}

	if consensus.ShouldRetarget(l.blockCount) {
		next := l.policy.Retarget(l.difficulty, len(l.miners), l.recentTimestamps(consensus.RetargetInterval))
		l.setDifficulty(next, "retarget")
	}
	if l.blockCount%RewardReductionInterval == 0 {
		l.reduceReward()
	}

	return CommitEvent{
		Block:       blk.Clone(),
		Reward:      reward,
		Shares:      shares,
		BlockCount:  l.blockCount,
		MinedSupply: l.minedSupply,
	}
}
