package domain

import (
	"fmt"
	"math/big"
)

// ActionType enumerates the fixed set of state-changing requests the
// controller can submit to the settlement engine.
type ActionType string

const (
	ActionBuy                ActionType = "buy"
	ActionSell               ActionType = "sell"
	ActionAddLiquidity       ActionType = "add_liquidity"
	ActionRemoveLiquidity    ActionType = "remove_liquidity"
	ActionRedeem             ActionType = "redeem"
	ActionReport             ActionType = "report"
	ActionResolveAndWithdraw ActionType = "resolve_and_withdraw"
)

// Action is a tagged variant over the engine's write surface. Which fields
// are meaningful depends on Type:
//
//	Buy, Sell            Outcome + Quantity
//	AddLiquidity         Quantity (the value to contribute)
//	RemoveLiquidity      Quantity (LP tokens to burn)
//	Redeem               Quantity (winning tokens to burn)
//	Report               Outcome
//	ResolveAndWithdraw   no payload
type Action struct {
	Type     ActionType `json:"type"`
	Outcome  Outcome    `json:"outcome"`
	Quantity *big.Int   `json:"quantity"`
}

// NeedsQuote reports whether the action type requires a fresh quote before
// submission. Only buys attach a quoted value bound; sells surrender tokens
// and receive whatever the curve pays out.
func (a Action) NeedsQuote() bool {
	return a.Type == ActionBuy
}

// NeedsQuantity reports whether the action type carries an amount.
func (a Action) NeedsQuantity() bool {
	switch a.Type {
	case ActionBuy, ActionSell, ActionAddLiquidity, ActionRemoveLiquidity, ActionRedeem:
		return true
	default:
		return false
	}
}

// NeedsOutcome reports whether the action type carries an outcome selector.
func (a Action) NeedsOutcome() bool {
	switch a.Type {
	case ActionBuy, ActionSell, ActionReport:
		return true
	default:
		return false
	}
}

// Validate checks the action's payload locally. Quantity must be a positive
// integer amount wherever one is required; a zero or negative quantity is
// ErrInvalidQuantity. Role gating (oracle for Report, owner for
// ResolveAndWithdraw) is NOT checked here: the engine's own access control is
// the authoritative guard, any local role check is advisory UX only.
func (a Action) Validate() error {
	switch a.Type {
	case ActionBuy, ActionSell, ActionAddLiquidity, ActionRemoveLiquidity,
		ActionRedeem, ActionReport, ActionResolveAndWithdraw:
	default:
		return fmt.Errorf("domain: unknown action type %q", a.Type)
	}

	if a.NeedsOutcome() && !a.Outcome.Valid() {
		return fmt.Errorf("domain: action %s: invalid outcome %d", a.Type, a.Outcome)
	}
	if a.NeedsQuantity() {
		if a.Quantity == nil || a.Quantity.Sign() <= 0 {
			return fmt.Errorf("domain: action %s: %w", a.Type, ErrInvalidQuantity)
		}
	}
	return nil
}
