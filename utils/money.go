package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ToDecimal parses currency-like input. Strings may carry a "$" and thousands
// separators. ok is false for nil, blank or unparseable input; it never panics.
func ToDecimal(value any) (d decimal.Decimal, ok bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, false
		}
		return *v, true
	case decimal.NullDecimal:
		return v.Decimal, v.Valid
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		return parseDecimalString(v)
	case *string:
		if v == nil {
			return decimal.Zero, false
		}
		return parseDecimalString(*v)
	}
	return decimal.Zero, false
}

func parseDecimalString(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FormatCurrency renders the storage form: two places, half away from zero,
// no symbol and no separators.
func FormatCurrency(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// CurrencyString parses value and returns its storage form, or nil when the
// value is blank or unparseable.
func CurrencyString(value any) *string {
	d, ok := ToDecimal(value)
	if !ok {
		return nil
	}
	s := FormatCurrency(d)
	return &s
}

// UnitValue divides a total across |change| units.
func UnitValue(total decimal.Decimal, change int) (decimal.Decimal, bool) {
	if change < 0 {
		change = -change
	}
	if change == 0 {
		return decimal.Zero, false
	}
	return total.Div(decimal.NewFromInt(int64(change))), true
}

// NullDecimal wraps an optional value for nullable decimal columns.
func NullDecimal(d decimal.Decimal, ok bool) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}
