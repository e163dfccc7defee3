package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDecimal(t *testing.T) {
	cases := []struct {
		in       any
		expected string
		ok       bool
	}{
		{"$1,234.50", "1234.5", true},
		{"  42 ", "42", true},
		{"", "0", false},
		{"$", "0", false},
		{"abc", "0", false},
		{nil, "0", false},
		{12, "12", true},
		{2.5, "2.5", true},
		{decimal.RequireFromString("7.25"), "7.25", true},
	}
	for _, tc := range cases {
		d, ok := ToDecimal(tc.in)
		assert.Equal(t, tc.ok, ok, "ToDecimal(%v) ok", tc.in)
		assert.Equal(t, tc.expected, d.String(), "ToDecimal(%v)", tc.in)
	}
}

func TestFormatCurrency_RoundsHalfUp(t *testing.T) {
	assert.Equal(t, "1234.50", FormatCurrency(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "0.13", FormatCurrency(decimal.RequireFromString("0.125")))
	assert.Equal(t, "2250.00", FormatCurrency(decimal.NewFromInt(2250)))
}

func TestCurrencyString(t *testing.T) {
	got := CurrencyString("$19.9")
	require.NotNil(t, got)
	assert.Equal(t, "19.90", *got)
	assert.Nil(t, CurrencyString("  "))
	assert.Nil(t, CurrencyString("n/a"))
}

func TestUnitValue(t *testing.T) {
	v, ok := UnitValue(decimal.NewFromInt(100), 4)
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(25)))

	v, ok = UnitValue(decimal.NewFromInt(60), -3)
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(20)))

	_, ok = UnitValue(decimal.NewFromInt(60), 0)
	assert.False(t, ok)
}
