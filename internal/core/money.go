// Package core provides the sale record model and money handling utilities.
//
// This file contains functions for parsing form amounts and formatting them
// with the fixed currency symbol used across the UI.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every amount shown to the user.
const CurrencySymbol = "₹"

// ParsePrice converts a decimal string to a price rounded to hundredths.
//
// A dot is the decimal separator. A single comma is read as one too, but only
// when no dot is present and at most two digits follow it, so grouped input
// like "1,000" is rejected rather than read as 1.00. Zero is a valid price;
// signs, exponents and anything other than digits are rejected.
//
// Examples:
//
//	ParsePrice("12.5")  -> 12.50, nil
//	ParsePrice("12,34") -> 12.34, nil
//	ParsePrice("1,000") -> error
//	ParsePrice("0")     -> 0.00, nil
//	ParsePrice("-1")    -> error
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidPrice
	}
	if strings.Contains(s, ",") {
		whole, frac, _ := strings.Cut(s, ",")
		if strings.Contains(s, ".") || strings.Contains(frac, ",") || len(frac) == 0 || len(frac) > 2 {
			return decimal.Zero, ErrInvalidPrice
		}
		s = whole + "." + frac
	}
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidPrice
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidPrice
		}
	}
	if s == "." {
		return decimal.Zero, ErrInvalidPrice
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidPrice
	}
	return d.Round(2), nil
}

// ParseQuantity parses a whole number of units, at least 1.
func ParseQuantity(s string) (int, error) {
	q, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || q < 1 {
		return 0, ErrInvalidQuantity
	}
	return q, nil
}

// FormatCurrency renders an amount as "₹1234.50".
func FormatCurrency(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + CurrencySymbol + d.Neg().StringFixed(2)
	}
	return CurrencySymbol + d.StringFixed(2)
}
