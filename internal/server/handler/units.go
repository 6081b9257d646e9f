package handler

import (
	"fmt"
	"math/big"
	"strings"
)

// tokenDecimals is the fixed decimal scale of both outcome tokens and the
// settlement currency.
const tokenDecimals = 18

var unitScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(tokenDecimals), nil)

// parseAmount converts a human-decimal string ("1.5") into base units.
// Amounts travel as decimals only at the HTTP edge; everything inside works
// in base units.
func parseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("invalid amount %q", s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > tokenDecimals {
		return nil, fmt.Errorf("amount %q exceeds %d decimal places", s, tokenDecimals)
	}
	frac += strings.Repeat("0", tokenDecimals-len(frac))

	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// formatAmount renders base units as a human-decimal string with trailing
// zeros trimmed.
func formatAmount(v *big.Int) string {
	if v == nil {
		return ""
	}
	q, r := new(big.Int).QuoRem(v, unitScale, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := strings.TrimRight(fmt.Sprintf("%018s", r.String()), "0")
	return q.String() + "." + frac
}

// baseUnits renders base units as a decimal integer string, or "" for nil.
func baseUnits(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
