package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr error
	}{
		{"buy ok", Action{Type: ActionBuy, Outcome: OutcomeYes, Quantity: big.NewInt(1)}, nil},
		{"buy zero quantity", Action{Type: ActionBuy, Outcome: OutcomeYes, Quantity: big.NewInt(0)}, ErrInvalidQuantity},
		{"buy negative quantity", Action{Type: ActionBuy, Outcome: OutcomeNo, Quantity: big.NewInt(-5)}, ErrInvalidQuantity},
		{"sell nil quantity", Action{Type: ActionSell, Outcome: OutcomeNo}, ErrInvalidQuantity},
		{"add liquidity ok", Action{Type: ActionAddLiquidity, Quantity: big.NewInt(7)}, nil},
		{"redeem nil quantity", Action{Type: ActionRedeem}, ErrInvalidQuantity},
		{"report ok without quantity", Action{Type: ActionReport, Outcome: OutcomeNo}, nil},
		{"resolve ok without payload", Action{Type: ActionResolveAndWithdraw}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestAction_ValidateBadInputs(t *testing.T) {
	assert.Error(t, Action{Type: "stake"}.Validate())
	assert.Error(t, Action{Type: ActionBuy, Outcome: Outcome(9), Quantity: big.NewInt(1)}.Validate())
}

func TestAction_NeedsQuote(t *testing.T) {
	assert.True(t, Action{Type: ActionBuy}.NeedsQuote())
	for _, typ := range []ActionType{ActionSell, ActionAddLiquidity, ActionRemoveLiquidity, ActionRedeem, ActionReport, ActionResolveAndWithdraw} {
		assert.False(t, Action{Type: typ}.NeedsQuote(), string(typ))
	}
}

func TestQuote_FreshFor(t *testing.T) {
	q := Quote{
		Side:             SideBuy,
		Outcome:          OutcomeYes,
		Quantity:         big.NewInt(10),
		Price:            big.NewInt(5),
		FetchedAtVersion: 3,
	}

	assert.True(t, q.FreshFor(SideBuy, OutcomeYes, big.NewInt(10), 3))
	assert.False(t, q.FreshFor(SideBuy, OutcomeYes, big.NewInt(20), 3), "quantity edited")
	assert.False(t, q.FreshFor(SideBuy, OutcomeYes, big.NewInt(10), 4), "snapshot moved")
	assert.False(t, q.FreshFor(SideBuy, OutcomeNo, big.NewInt(10), 3), "outcome switched")
	assert.False(t, q.FreshFor(SideSell, OutcomeYes, big.NewInt(10), 3), "side switched")
	assert.False(t, Quote{}.FreshFor(SideBuy, OutcomeYes, big.NewInt(10), 0), "empty quote")
}
