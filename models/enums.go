package models

import (
	"encoding/json"
	"strings"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
)

type EntryType string

const (
	EntryTypeTime               EntryType = "time"
	EntryTypeHardware           EntryType = "hardware"
	EntryTypeDeploymentFlatRate EntryType = "deployment_flat_rate"
	EntryTypeSoftware           EntryType = "software"
	EntryTypeComponent          EntryType = "component"
	EntryTypeAccessory          EntryType = "accessory"
)

var EntryTypeChoices = []EntryType{
	EntryTypeTime,
	EntryTypeHardware,
	EntryTypeDeploymentFlatRate,
	EntryTypeSoftware,
	EntryTypeComponent,
	EntryTypeAccessory,
}

// BillingMode is the closed set of ways a ticket is priced. Every entry type
// maps to exactly one mode.
type BillingMode int

const (
	BillingModeTime BillingMode = iota
	BillingModeHardware
	BillingModeFlatRate
)

func (m BillingMode) String() string {
	switch m {
	case BillingModeHardware:
		return "hardware"
	case BillingModeFlatRate:
		return "flat_rate"
	default:
		return "time"
	}
}

// ParseEntryType lower-cases and validates raw; blank means time.
func ParseEntryType(raw string) (EntryType, error) {
	value := EntryType(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return EntryTypeTime, nil
	}
	for _, choice := range EntryTypeChoices {
		if value == choice {
			return value, nil
		}
	}
	return "", utils.NewValidationError("entry_type", "invalid entry type %q", raw)
}

func (t EntryType) Mode() BillingMode {
	switch t {
	case EntryTypeHardware, EntryTypeSoftware, EntryTypeComponent, EntryTypeAccessory:
		return BillingModeHardware
	case EntryTypeDeploymentFlatRate:
		return BillingModeFlatRate
	default:
		return BillingModeTime
	}
}

// IsHardwareLike reports entry types billed as unit price x quantity.
func (t EntryType) IsHardwareLike() bool {
	return t.Mode() == BillingModeHardware
}

func (t *EntryType) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return utils.NewValidationError("entry_type", "entry type must be string")
	}
	parsed, err := ParseEntryType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// inventory event provenance
type InventorySource string

const (
	InventorySourceManual     InventorySource = "manual"
	InventorySourceUIReceive  InventorySource = "ui:receive"
	InventorySourceUIUse      InventorySource = "ui:use"
	InventorySourceAPIReceive InventorySource = "api:receive"
	InventorySourceAPIUse     InventorySource = "api:use"
	InventorySourceTicket     InventorySource = "ticket"
)

type CounterpartyType string

const (
	CounterpartyTypeVendor CounterpartyType = "vendor"
	CounterpartyTypeClient CounterpartyType = "client"
)

type ProjectStatus string

const (
	ProjectStatusOpen      ProjectStatus = "open"
	ProjectStatusFinalized ProjectStatus = "finalized"
)
