package shared

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Monetary amounts are stored as int64 minor units (cents). Conversion in
// and out of the engine goes through shopspring/decimal so binary-float
// rounding drift never reaches the ledger.

// ToCents converts a currency amount expressed as float64 to minor units,
// rounding half-up at two decimal places.
func ToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

// LineCents computes quantity times unit price in minor units. The unit
// price is fixed to cents before the multiplication, so no binary-float
// product precedes the rounding step.
func LineCents(qty, unitPrice float64) int64 {
	price := decimal.NewFromFloat(unitPrice).Round(2)
	return price.Mul(decimal.NewFromFloat(qty)).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromCents converts minor units back to a float64 currency amount.
func FromCents(cents int64) float64 {
	f, _ := decimal.New(cents, -2).Float64()
	return f
}

// FormatAmount renders minor units as a plain two-decimal string.
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// ParseAmount parses a decimal string into minor units. Amounts with more
// than two fractional digits are rejected.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q", ErrValidation, s)
	}
	if d.Exponent() < -2 {
		return 0, fmt.Errorf("%w: amount %q has sub-cent precision", ErrValidation, s)
	}
	return d.Mul(decimal.NewFromInt(100)).IntPart(), nil
}
