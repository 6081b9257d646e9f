package handler

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"1.5", "1500000000000000000"},
		{"0.000000000000000001", "1"},
		{"0", "0"},
		{".25", "250000000000000000"},
		{"100.", "100000000000000000000"},
	}
	for _, tc := range cases {
		got, err := parseAmount(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got.String(), tc.in)
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{"", "-1", "abc", "1.2.3", "0.0000000000000000001"} {
		_, err := parseAmount(in)
		assert.Error(t, err, in)
	}
}

func TestFormatAmount_RoundTrip(t *testing.T) {
	for _, in := range []string{"1", "1.5", "0.000000000000000001", "12345.678900001"} {
		v, err := parseAmount(in)
		require.NoError(t, err)
		assert.Equal(t, in, formatAmount(v))
	}

	assert.Equal(t, "0", formatAmount(big.NewInt(0)))
	assert.Equal(t, "", formatAmount(nil))
}
