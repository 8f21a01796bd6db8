// Package money centralizes fixed-point monetary arithmetic. Every money
// value in this service is a decimal.Decimal; float64 never appears on a
// money path.
package money

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Round2 rounds half-up to 2 fractional digits, matching spec §4.1's
// "rounded half-up to 2 decimals after each component calculation" rule.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Zero is the additive identity, useful as a starting accumulator.
var Zero = decimal.Zero

// ToNumeric converts a decimal.Decimal into a pgtype.Numeric suitable for
// binding as a query parameter against a NUMERIC(12,2) column.
func ToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	// decimal.Decimal always round-trips through its string form without
	// precision loss; pgtype.Numeric.Scan accepts that form directly.
	_ = n.Scan(d.StringFixed(2))
	return n
}

// Equal reports whether a and b are equal within the ±0.01 tolerance spec §8
// uses for invariant checks (e.g. total = subtotal + delivery_fee + service_fee).
func Equal(a, b decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	return diff.LessThanOrEqual(decimal.NewFromFloat(0.01))
}
