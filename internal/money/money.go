// Package money holds the numeric and formatting helpers shared by the
// aggregator and the renderers.
//
// Rounding happens exactly once, in the aggregator, through Round. Renderers
// only ever call the Format* helpers on values that are already rounded.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places every finalized total carries.
const Places = 2

// RoundingMode names the rounding rule recorded in package metadata.
const RoundingMode = "half-away-from-zero"

// ErrInvalidAmount is returned by Parse for input that is not a number.
var ErrInvalidAmount = errors.New("invalid amount")

// Round rounds d to Places using half-away-from-zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Parse reads a user-entered amount. It accepts an optional leading "$",
// thousands separators and surrounding whitespace, and keeps the sign so
// negative amounts reach the validator instead of being rejected here.
// Empty input is reported as (zero, false, nil).
func Parse(s string) (decimal.Decimal, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, true, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, true, ErrInvalidAmount
	}
	if negative {
		d = d.Neg()
	}
	return d, true, nil
}

// Format renders an already-rounded value with exactly two decimals and no
// thousands separators ("1050.00", "-40.00").
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// FormatUSD renders an already-rounded value for human-readable documents:
// "$1,050.00", "-$40.00".
func FormatUSD(d decimal.Decimal) string {
	s := d.Abs().StringFixed(Places)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// Float returns the value as a float64 for spreadsheet cells. The value is
// already rounded to cents, so the conversion is exact to display precision.
func Float(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// FormatEntered renders a row value as the user entered it: at least two
// decimals, more only when the input carried them. Row values are never
// rounded; only totals are.
func FormatEntered(d decimal.Decimal) string {
	if d.Exponent() >= -Places {
		return d.StringFixed(Places)
	}
	return d.String()
}
