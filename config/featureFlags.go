package config

import (
	"os"
	"strings"
)

// BarcodeSelfHealOnRead restores the legacy behaviour where hardware list/get
// rewrite non-canonical barcodes in place. Off by default: reads stay
// side-effect free and the repair runs through cmd/barcode-repair.
//
// Set via env:
// - BARCODE_SELF_HEAL_ON_READ=true
func BarcodeSelfHealOnRead() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("BARCODE_SELF_HEAL_ON_READ")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
