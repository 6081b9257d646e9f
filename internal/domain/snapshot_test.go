package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func TestProbability_EmptyReserves(t *testing.T) {
	snap := MarketSnapshot{Reserves: [2]*big.Int{big.NewInt(0), big.NewInt(0)}}

	assert.Equal(t, 50.00, snap.Probability(OutcomeYes))
	assert.Equal(t, 50.00, snap.Probability(OutcomeNo))
}

func TestProbability_NilReserves(t *testing.T) {
	var snap MarketSnapshot
	assert.Equal(t, 50.00, snap.Probability(OutcomeYes))
}

func TestProbability_InverseReserveWeighting(t *testing.T) {
	// A larger YES reserve means YES is cheaper, i.e. less probable.
	snap := MarketSnapshot{Reserves: [2]*big.Int{eth(75), eth(25)}}

	assert.Equal(t, 25.00, snap.Probability(OutcomeYes))
	assert.Equal(t, 75.00, snap.Probability(OutcomeNo))
}

func TestProbability_SumsToHundred(t *testing.T) {
	cases := [][2]int64{{1, 1}, {3, 7}, {1, 999}, {123456, 654321}, {1, 0}}
	for _, c := range cases {
		snap := MarketSnapshot{Reserves: [2]*big.Int{eth(c[0]), eth(c[1])}}
		p := snap.Probabilities()
		assert.InDelta(t, 100.00, p[0]+p[1], 0.01, "reserves %v", c)
	}
}

func TestWinningOutcome(t *testing.T) {
	snap := MarketSnapshot{
		OutcomeTokens: [2]string{"0xyes", "0xno"},
		WinningToken:  "0xyes",
	}

	_, ok := snap.WinningOutcome()
	assert.False(t, ok, "unresolved market has no winner")

	snap.IsResolved = true
	o, ok := snap.WinningOutcome()
	require.True(t, ok)
	assert.Equal(t, OutcomeYes, o)

	snap.WinningToken = "0xother"
	_, ok = snap.WinningOutcome()
	assert.False(t, ok, "unknown winning token")
}

func TestOutcomeOther(t *testing.T) {
	assert.Equal(t, OutcomeNo, OutcomeYes.Other())
	assert.Equal(t, OutcomeYes, OutcomeNo.Other())
	assert.False(t, Outcome(2).Valid())
}
