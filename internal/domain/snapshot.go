package domain

import (
	"math"
	"math/big"
	"time"
)

// Outcome identifies one of the two mutually exclusive results a share can
// represent. The numeric values match the settlement engine's enum.
type Outcome uint8

const (
	OutcomeYes Outcome = 0
	OutcomeNo  Outcome = 1
)

// Other returns the opposing outcome.
func (o Outcome) Other() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// Valid reports whether o is one of the two defined outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// SnapshotVersion is a monotonically increasing counter bumped on every
// successful snapshot refresh. Quotes record the version they were fetched
// under; a version mismatch at submission time marks the quote stale.
type SnapshotVersion uint64

// MarketSnapshot is an immutable-until-refetched view of the settlement
// engine's public market state, decoded from a single multi-value read. It is
// replaced wholesale on every refresh so reserve fields from different block
// heights are never mixed.
//
// All amounts are fixed-point integers in 18-decimal base units (wei).
type MarketSnapshot struct {
	Version   SnapshotVersion `json:"version"`
	FetchedAt time.Time       `json:"fetchedAt"`

	Question           string      `json:"question"`
	OutcomeLabels      [2]string   `json:"outcomeLabels"`
	Oracle             string      `json:"oracle"`
	InitialTokenValue  *big.Int    `json:"initialTokenValue"`
	Reserves           [2]*big.Int `json:"reserves"`
	IsResolved         bool        `json:"isResolved"`
	OutcomeTokens      [2]string   `json:"outcomeTokens"`
	WinningToken       string      `json:"winningToken"` // meaningful only when IsResolved
	Collateral         *big.Int    `json:"collateral"`
	LiquidityRevenue   *big.Int    `json:"liquidityRevenue"`
	Owner              string      `json:"owner"`
	InitialProbability uint64      `json:"initialProbability"`
	PercentageLocked   uint64      `json:"percentageLocked"`
}

// Probability returns the implied probability of the given outcome as a
// percentage rounded to two decimals. Pricing is inverse-reserve weighted: the
// larger one side's reserve, the lower its implied probability. When both
// reserves are zero (a market with no liquidity yet) both outcomes are 50.00.
func (s MarketSnapshot) Probability(o Outcome) float64 {
	r0, r1 := s.Reserves[0], s.Reserves[1]
	if r0 == nil || r1 == nil {
		return 50.00
	}

	total := new(big.Float).Add(new(big.Float).SetInt(r0), new(big.Float).SetInt(r1))
	if total.Sign() == 0 {
		return 50.00
	}

	other := new(big.Float).SetInt(s.Reserves[o.Other()])
	frac, _ := new(big.Float).Quo(other, total).Float64()
	return round2(frac * 100)
}

// Probabilities returns both outcome probabilities in outcome order.
func (s MarketSnapshot) Probabilities() [2]float64 {
	return [2]float64{s.Probability(OutcomeYes), s.Probability(OutcomeNo)}
}

// WinningOutcome returns the outcome whose token was declared winning, or
// false when the market is unresolved or the winning token does not match
// either outcome token.
func (s MarketSnapshot) WinningOutcome() (Outcome, bool) {
	if !s.IsResolved || s.WinningToken == "" {
		return 0, false
	}
	switch s.WinningToken {
	case s.OutcomeTokens[OutcomeYes]:
		return OutcomeYes, true
	case s.OutcomeTokens[OutcomeNo]:
		return OutcomeNo, true
	default:
		return 0, false
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
