package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ToDecimal converts an amount in minor units to major units using precision,
// e.g. (500, 100) is 5.
func ToDecimal(minor, precision int64) decimal.Decimal {
	if precision <= 0 {
		return decimal.NewFromInt(minor)
	}
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(precision))
}

// FormatAmount renders minor units as a fixed point string with as many
// decimal places as precision implies (100 gives two places).
func FormatAmount(minor, precision int64) string {
	return ToDecimal(minor, precision).StringFixed(decimalPlaces(precision))
}

// decimalPlaces returns the number of places implied by a power-of-ten
// precision. Other precisions fall back to two places.
func decimalPlaces(precision int64) int32 {
	var places int32
	for p := precision; p > 1; p /= 10 {
		if p%10 != 0 {
			return 2
		}
		places++
	}
	return places
}

// DisplayAmount returns the transaction amount in major units.
func (t *Transaction) DisplayAmount() string {
	return FormatAmount(t.Amount, t.Precision)
}

// AddAmount returns a+b. A sum outside the int64 range is rejected with a
// ValidationError on amount instead of wrapping.
func AddAmount(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, NewValidationError("amount", fmt.Sprintf("%d + %d overflows the balance range", a, b))
	}
	return a + b, nil
}

// SubAmount returns a-b with the same range check as AddAmount.
func SubAmount(a, b int64) (int64, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, NewValidationError("amount", fmt.Sprintf("%d - %d overflows the balance range", a, b))
	}
	return a - b, nil
}
