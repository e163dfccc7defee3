package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBarcode(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"", ""},
		{"   ", ""},
		{" 123456789012 ", "0123456789012"},
		{"0123456789012", "0123456789012"},
		{"12-34 56", "123456"},
		{"abc  123", "ABC 123"},
		{"sku-9x", "SKU-9X"},
		{"4006381333931", "4006381333931"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, NormalizeBarcode(tc.in), "NormalizeBarcode(%q)", tc.in)
	}
}

func TestNormalizeBarcode_Idempotent(t *testing.T) {
	for _, in := range []string{"123456789012", " 0-12345-67890-5 ", "987654", "4006381333931"} {
		once := NormalizeBarcode(in)
		assert.Equal(t, once, NormalizeBarcode(once), "NormalizeBarcode not idempotent for %q", in)
	}
}

func TestNormalizeBarcode_LettersSkipDigitProcessing(t *testing.T) {
	// twelve digits plus a letter must not be padded or stripped
	assert.Equal(t, "A123456789012", NormalizeBarcode("a123456789012"))
}

func TestNormalizeBarcode_OnlyASCIILettersCount(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"№123456789012", "0123456789012"},
		{"é 4006381333931", "4006381333931"},
		{"ÄB-12", "ÄB-12"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, NormalizeBarcode(tc.in), "NormalizeBarcode(%q)", tc.in)
	}
	assert.Equal(t, []string{"0123456789012", "123456789012", "№123456789012"}, BarcodeAliases("№123456789012"))
}

func TestBarcodeAliases(t *testing.T) {
	assert.Equal(t,
		[]string{"0123456789012", "123456789012"},
		BarcodeAliases("123456789012"))
	assert.Equal(t,
		[]string{"0123456789012", "123456789012"},
		BarcodeAliases("0123456789012"))
	assert.Equal(t, []string{"ABC-1"}, BarcodeAliases(" abc-1 "))
	assert.Equal(t, []string{"123456", "12-34-56"}, BarcodeAliases("12-34-56"))
	assert.Nil(t, BarcodeAliases("  "))
}
