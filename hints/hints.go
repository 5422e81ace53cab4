// Package hints approximates insertion points in the ledger's
// collateral-ratio-sorted trove list. A full scan against the ledger is
// prohibitively expensive, so the search samples random candidates in
// bounded rounds and then resolves the exact neighbours from the best
// candidate found.
package hints

import (
	"context"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"hydroclient/decimal"
	"hydroclient/ledger"
)

// MaxTrialsPerRound caps how many candidates a single sampling call may
// draw; larger budgets are split across rounds.
const MaxTrialsPerRound = 2500

// trialsPerSqrtTrove scales the total trial budget with the square root of
// the list size.
const trialsPerSqrtTrove = 10

// ErrNegativeBudget reports a negative trial budget.
var ErrNegativeBudget = fmt.Errorf("hints: negative trial budget")

// TotalTrials returns the sampling budget for a list of the given size:
// ceil(10 * sqrt(numTroves)).
func TotalTrials(numTroves uint64) int {
	if numTroves == 0 {
		return 0
	}
	return int(math.Ceil(trialsPerSqrtTrove * math.Sqrt(float64(numTroves))))
}

// TrialBatches splits a total trial budget into per-round batch sizes, each
// no larger than MaxTrialsPerRound and summing exactly to the budget. The
// split is purely computed from the budget: dropping a consumed prefix and
// recomputing from the remaining budget yields the same tail, so a search
// can be restarted from any unconsumed remainder.
func TrialBatches(budget int) ([]int, error) {
	if budget < 0 {
		return nil, ErrNegativeBudget
	}
	if budget == 0 {
		return nil, nil
	}
	batches := make([]int, 0, (budget+MaxTrialsPerRound-1)/MaxTrialsPerRound)
	for remaining := budget; remaining > 0; {
		batch := remaining
		if batch > MaxTrialsPerRound {
			batch = MaxTrialsPerRound
		}
		batches = append(batches, batch)
		remaining -= batch
	}
	return batches, nil
}

// Sampler is the subset of the ledger read API the search needs. A full
// ledger.Reader satisfies it.
type Sampler interface {
	ApproxHint(ctx context.Context, tag ledger.BlockTag, target decimal.Decimal, trials int, seed uint64) (ledger.HintCandidate, error)
	FindInsertPosition(ctx context.Context, tag ledger.BlockTag, target decimal.Decimal, approx common.Address) (prev, next common.Address, err error)
}

// Hint is the result of a completed search: the best sampled candidate and
// the exact neighbours resolved from it.
type Hint struct {
	// Approx is the sampled trove whose nominal collateral ratio is closest
	// to the target.
	Approx common.Address
	// Diff is the ratio distance of Approx from the target.
	Diff decimal.Decimal
	// Prev and Next are the exact neighbours the new or adjusted trove
	// should be inserted between.
	Prev common.Address
	Next common.Address
	// Rounds counts the sampling calls performed.
	Rounds int
}

// Search locates the insertion point for a trove with the given target
// nominal collateral ratio. Each sampling round receives the seed returned
// by the previous one, so no two rounds draw the same candidates; the best
// candidate across all rounds seeds the exact neighbour lookup.
func Search(ctx context.Context, reader Sampler, tag ledger.BlockTag, target decimal.Decimal, numTroves uint64, seed uint64) (Hint, error) {
	if target.Sign() <= 0 {
		return Hint{}, fmt.Errorf("hints: target ratio must be positive")
	}

	batches, err := TrialBatches(TotalTrials(numTroves))
	if err != nil {
		return Hint{}, err
	}

	hint := Hint{}
	best := decimal.Decimal{}
	haveBest := false
	for _, trials := range batches {
		candidate, err := reader.ApproxHint(ctx, tag, target, trials, seed)
		if err != nil {
			return Hint{}, fmt.Errorf("hints: sampling round %d: %w", hint.Rounds+1, err)
		}
		hint.Rounds++
		seed = candidate.NextSeed
		if !haveBest || candidate.Diff.LT(best) {
			best = candidate.Diff
			hint.Approx = candidate.Address
			hint.Diff = candidate.Diff
			haveBest = true
		}
	}

	prev, next, err := reader.FindInsertPosition(ctx, tag, target, hint.Approx)
	if err != nil {
		return Hint{}, fmt.Errorf("hints: exact position: %w", err)
	}
	hint.Prev = prev
	hint.Next = next
	return hint, nil
}
