package utils

import (
	"strings"
)

// collapseBarcode trims and folds internal whitespace runs to one space.
func collapseBarcode(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// hasLetter looks for ASCII letters only; other scripts count as separators.
func hasLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeBarcode returns the canonical form used for uniqueness and lookup.
// Values without letters are reduced to digits and 12-digit UPC-A codes are
// padded to EAN-13. Anything containing a letter is upper-cased as is.
// Returns "" for empty input.
func NormalizeBarcode(raw string) string {
	cleaned := collapseBarcode(raw)
	if cleaned == "" {
		return ""
	}
	if !hasLetter(cleaned) {
		if digits := digitsOnly(cleaned); digits != "" {
			if len(digits) == 12 {
				digits = "0" + digits
			}
			return digits
		}
	}
	return strings.ToUpper(cleaned)
}

// BarcodeAliases lists every stored form a lookup should try, canonical first:
// raw digits, the zero-padded 13-digit form, the zero-stripped 12-digit form
// and finally the upper-cased input.
func BarcodeAliases(raw string) []string {
	cleaned := collapseBarcode(raw)
	if cleaned == "" {
		return nil
	}

	var aliases []string
	seen := make(map[string]bool)
	add := func(candidate string) {
		if candidate == "" || seen[candidate] {
			return
		}
		seen[candidate] = true
		aliases = append(aliases, candidate)
	}

	add(NormalizeBarcode(cleaned))
	if !hasLetter(cleaned) {
		if digits := digitsOnly(cleaned); digits != "" {
			add(digits)
			if len(digits) == 12 {
				add("0" + digits)
			}
			if len(digits) == 13 && strings.HasPrefix(digits, "0") {
				add(digits[1:])
			}
		}
	}
	add(strings.ToUpper(cleaned))

	return aliases
}
