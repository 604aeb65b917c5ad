package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"50", "50", true},
		{"0", "0", true},
		{"0.5", "0.5", true},
		{"1,23", "1.23", true},
		{"12,5", "12.5", true},
		{"1,000", "", false},
		{"1,000.50", "", false},
		{"1.000,50", "", false},
		{"1,2,3", "", false},
		{"5,", "", false},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{".5", "0.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"1e3", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{".", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParsePrice(tc.in)
		if !tc.ok {
			assert.ErrorIs(t, err, ErrInvalidPrice, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.out)), "%q expected %s, got %s", tc.in, tc.out, got)
	}
}

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity(" 3 ")
	require.NoError(t, err)
	assert.Equal(t, 3, q)

	for _, in := range []string{"0", "-2", "1.5", "", "x"} {
		_, err := ParseQuantity(in)
		assert.ErrorIs(t, err, ErrInvalidQuantity, "input %q", in)
	}
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "₹100.00", FormatCurrency(decimal.NewFromInt(100)))
	assert.Equal(t, "₹0.50", FormatCurrency(decimal.RequireFromString("0.5")))
	assert.Equal(t, "₹0.00", FormatCurrency(decimal.Zero))
	assert.Equal(t, "-₹3.10", FormatCurrency(decimal.RequireFromString("-3.1")))
}
