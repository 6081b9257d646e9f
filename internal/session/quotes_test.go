package session

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictlabs/marketd/internal/domain"
)

func TestQuoteRequest_RejectsInvalidQuantity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, qty := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		_, err := f.quotes.Request(ctx, domain.SideBuy, domain.OutcomeYes, qty)
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity, "quantity %v", qty)
	}
}

func TestQuoteRequest_SellUsesProceedsSemantic(t *testing.T) {
	f := newFixture()

	q, err := f.quotes.Request(context.Background(), domain.SideSell, domain.OutcomeNo, big.NewInt(9))
	require.NoError(t, err)
	assert.Equal(t, int64(3), q.Price.Int64(), "sell price comes from the proceeds query")
	assert.Equal(t, domain.SideSell, q.Side)
}

func TestQuoteRequest_SupersededResultDiscarded(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// The first request blocks in the engine until released; the second
	// (the user edited "10" to "20") completes first.
	started := make(chan struct{})
	release := make(chan struct{})
	f.engine.buyPriceFn = func(o domain.Outcome, q *big.Int) (*big.Int, error) {
		if q.Int64() == 10 {
			close(started)
			<-release
		}
		return big.NewInt(q.Int64() / 2), nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = f.quotes.Request(ctx, domain.SideBuy, domain.OutcomeYes, big.NewInt(10))
	}()
	<-started

	// Second request supersedes the first, then releases it.
	second, err := f.quotes.Request(ctx, domain.SideBuy, domain.OutcomeYes, big.NewInt(20))
	require.NoError(t, err)
	close(release)
	wg.Wait()

	assert.ErrorIs(t, firstErr, domain.ErrQuoteSuperseded, "stale result discarded on arrival")
	assert.Equal(t, int64(10), second.Price.Int64())

	// Only the second quote is resolvable.
	got, ok := f.quotes.Lookup(second.ID)
	require.True(t, ok)
	assert.Zero(t, got.Quantity.Cmp(big.NewInt(20)))
}

func TestQuoteRequest_DifferentOutcomesDoNotSupersede(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	qYes, err := f.quotes.Request(ctx, domain.SideBuy, domain.OutcomeYes, big.NewInt(10))
	require.NoError(t, err)
	qNo, err := f.quotes.Request(ctx, domain.SideBuy, domain.OutcomeNo, big.NewInt(10))
	require.NoError(t, err)

	_, ok := f.quotes.Lookup(qYes.ID)
	assert.True(t, ok)
	_, ok = f.quotes.Lookup(qNo.ID)
	assert.True(t, ok)
}

func TestQuoteLookup_UnknownID(t *testing.T) {
	f := newFixture()
	_, ok := f.quotes.Lookup("nope")
	assert.False(t, ok)
}
