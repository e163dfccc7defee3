package models

import (
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ContractClientNotePrefix opens the note of every ticket for a contract client.
const ContractClientNotePrefix = "Contract client: covered under support agreement. Do not bill hourly."

// billingEngine derives every computed ticket field. apply only reads from the
// database; writes happen in the caller once apply has succeeded.
type billingEngine struct {
	tx      *gorm.DB
	clients ClientDirectory
	loc     *time.Location
}

func newBillingEngine(tx *gorm.DB, clients ClientDirectory) *billingEngine {
	if clients == nil {
		clients = ClientTable{}
	}
	return &billingEngine{
		tx:      tx,
		clients: clients,
		loc:     config.GetSettings().Location(),
	}
}

// apply validates input and recomputes t in memory. The returned hardware
// item is the resolved catalog link, if any, for the inventory sync.
func (e *billingEngine) apply(t *Ticket, input *TicketUpdate, creating bool) (*HardwareItem, error) {
	previousType := t.EntryType
	if err := e.applyScalars(t, input); err != nil {
		return nil, err
	}
	entry, err := e.applyClientLink(t, input, creating)
	if err != nil {
		return nil, err
	}
	if err := e.applyTimeMath(t); err != nil {
		return nil, err
	}
	hw, err := e.applyTypeFields(t, input, creating || previousType != t.EntryType)
	if err != nil {
		return nil, err
	}
	applyContractNote(t, entry)
	applyCalculatedValue(t, entry)
	return hw, nil
}

func (e *billingEngine) applyScalars(t *Ticket, input *TicketUpdate) error {
	if input.EntryType != nil {
		entryType, err := ParseEntryType(string(*input.EntryType))
		if err != nil {
			return err
		}
		t.EntryType = entryType
	}
	if t.EntryType == "" {
		t.EntryType = EntryTypeTime
	}
	if input.StartIso != nil {
		start := strings.TrimSpace(*input.StartIso)
		if start == "" {
			return utils.NewValidationError("start_iso", "is required")
		}
		t.StartIso = start
	}
	if input.EndIso != nil {
		t.EndIso = utils.TrimToNil(input.EndIso)
	}
	if input.Note != nil {
		t.Note = utils.TrimToNil(input.Note)
	}
	if input.Completed != nil {
		t.Completed = *input.Completed
	}
	if input.Sent != nil {
		t.Sent = *input.Sent
	}
	if input.InvoiceNumber != nil {
		t.InvoiceNumber = utils.TrimToNil(input.InvoiceNumber)
	}
	if input.InvoicedTotal != nil {
		total, err := moneyField("invoiced_total", input.InvoicedTotal)
		if err != nil {
			return err
		}
		t.InvoicedTotal = total
	}
	if input.Minutes != nil {
		if *input.Minutes < 0 {
			return utils.NewValidationError("minutes", "must not be negative")
		}
		t.Minutes = *input.Minutes
	}
	if input.ProjectId != nil {
		if *input.ProjectId <= 0 {
			t.ProjectId = nil
		} else {
			project, err := utils.FetchModelTx[Project](e.tx, "project", *input.ProjectId)
			if err != nil {
				return err
			}
			if project.IsFinalized() && (t.ProjectId == nil || *t.ProjectId != project.ID) {
				return utils.NewValidationError("project_id", "project %d is already finalized", project.ID)
			}
			projectId := *input.ProjectId
			t.ProjectId = &projectId
		}
	}
	if input.ProjectPosted != nil {
		t.ProjectPosted = *input.ProjectPosted
	}
	return nil
}

// applyClientLink resolves the display name when the key is new and returns
// the directory entry used for pricing. The entry may be nil for a client
// since removed from the directory.
func (e *billingEngine) applyClientLink(t *Ticket, input *TicketUpdate, creating bool) (*ClientEntry, error) {
	key := t.ClientKey
	if input.ClientKey != nil {
		key = strings.TrimSpace(*input.ClientKey)
	}
	if key == "" {
		return nil, utils.NewValidationError("client_key", "is required")
	}
	if creating || input.ClientKey != nil {
		name, ok := e.clients.ResolveName(key)
		if !ok || strings.TrimSpace(name) == "" {
			return nil, utils.NewValidationError("client_key", "unknown client %q", key)
		}
		t.ClientKey = key
		t.Client = name
	}
	entry, _ := e.clients.GetEntry(t.ClientKey)
	return entry, nil
}

// applyTimeMath records elapsed and rounded minutes for every entry type.
// Without an end timestamp the manually entered minutes are rounded instead.
func (e *billingEngine) applyTimeMath(t *Ticket) error {
	if _, err := utils.ParseISO(t.StartIso, e.loc); err != nil {
		return utils.NewValidationError("start_iso", "%s", err.Error())
	}
	endIso := utils.DerefString(t.EndIso)
	if endIso != "" {
		if _, err := utils.ParseISO(endIso, e.loc); err != nil {
			return utils.NewValidationError("end_iso", "%s", err.Error())
		}
	}
	elapsed, err := utils.ComputeMinutes(t.StartIso, endIso, e.loc)
	if err != nil {
		return utils.NewValidationError("end_iso", "%s", err.Error())
	}
	t.ElapsedMinutes = elapsed
	base := t.Minutes
	if endIso != "" {
		t.Minutes = elapsed
		base = elapsed
	}
	t.RoundedMinutes = utils.RoundMinutes(base)
	t.RoundedHours = utils.HoursString(t.RoundedMinutes)
	return nil
}

// applyTypeFields keeps exactly the payload of the ticket's billing mode and
// clears the others.
func (e *billingEngine) applyTypeFields(t *Ticket, input *TicketUpdate, typeChanged bool) (*HardwareItem, error) {
	switch t.EntryType.Mode() {
	case BillingModeHardware:
		t.FlatRateDetails = FlatRateDetails{}
		return e.syncHardware(t, input, typeChanged)
	case BillingModeFlatRate:
		t.HardwareDetails = HardwareDetails{}
		return nil, e.syncFlatRate(t, input)
	default:
		t.HardwareDetails = HardwareDetails{}
		t.FlatRateDetails = FlatRateDetails{}
		return nil, nil
	}
}

func positiveQuantity(field string, current *int, supplied *int) (int, error) {
	quantity := 1
	if current != nil {
		quantity = *current
	}
	if supplied != nil {
		quantity = *supplied
	}
	if quantity <= 0 {
		return 0, utils.NewValidationError(field, "must be a positive integer")
	}
	return quantity, nil
}

func (e *billingEngine) syncHardware(t *Ticket, input *TicketUpdate, typeChanged bool) (*HardwareItem, error) {
	quantity, err := positiveQuantity("hardware_quantity", t.HardwareQuantity, input.HardwareQuantity)
	if err != nil {
		return nil, err
	}
	var priceOverride *string
	if input.HardwareSalesPrice != nil {
		if priceOverride, err = moneyField("hardware_sales_price", input.HardwareSalesPrice); err != nil {
			return nil, err
		}
	}
	var descriptionOverride *string
	if input.HardwareDescription != nil {
		descriptionOverride = utils.TrimToNil(input.HardwareDescription)
	}

	var hw *HardwareItem
	if typeChanged || input.touchesHardwareLink() {
		barcode := t.HardwareBarcode
		if input.HardwareBarcode != nil {
			barcode = utils.TrimToNil(input.HardwareBarcode)
		}
		id := t.HardwareId
		if input.HardwareId != nil {
			id = input.HardwareId
			if *id <= 0 && input.HardwareBarcode == nil {
				barcode = nil
			}
		}
		if hw, err = e.resolveHardware(barcode, id); err != nil {
			return nil, err
		}
		if hw != nil {
			hardwareId, code, description := hw.ID, hw.Barcode, hw.Description
			t.HardwareId = &hardwareId
			t.HardwareBarcode = &code
			t.HardwareDescription = utils.StringPtr(description)
			t.HardwareSalesPrice = copyString(hw.SalesPrice)
		} else {
			t.HardwareId = nil
			t.HardwareBarcode = nil
			if barcode != nil {
				t.HardwareBarcode = utils.StringPtr(utils.NormalizeBarcode(*barcode))
			}
		}
	} else if t.HardwareId != nil {
		hw, err = utils.FetchModelTx[HardwareItem](e.tx, "hardware", *t.HardwareId)
		if err != nil {
			if !utils.IsNotFoundError(err) {
				return nil, err
			}
			hw = nil
			t.HardwareId = nil
		}
	}

	if input.HardwareDescription != nil {
		t.HardwareDescription = descriptionOverride
	}
	if input.HardwareSalesPrice != nil {
		t.HardwareSalesPrice = priceOverride
	}
	t.HardwareQuantity = &quantity
	return hw, nil
}

// resolveHardware tries the barcode aliases first, then the id. A missing
// item is not an error.
func (e *billingEngine) resolveHardware(barcode *string, id *int) (*HardwareItem, error) {
	if code := utils.DerefString(barcode); strings.TrimSpace(code) != "" {
		hw, err := FindHardwareByBarcodeTx(e.tx, code)
		if err != nil || hw != nil {
			return hw, err
		}
	}
	if id != nil && *id > 0 {
		hw, err := utils.FetchModelTx[HardwareItem](e.tx, "hardware", *id)
		if err != nil {
			if utils.IsNotFoundError(err) {
				return nil, nil
			}
			return nil, err
		}
		return hw, nil
	}
	return nil, nil
}

func (e *billingEngine) syncFlatRate(t *Ticket, input *TicketUpdate) error {
	amount := t.FlatRateAmount
	if input.FlatRateAmount != nil {
		amount = input.FlatRateAmount
	}
	canonical, err := moneyField("flat_rate_amount", amount)
	if err != nil {
		return err
	}
	if canonical == nil {
		return utils.NewValidationError("flat_rate_amount", "is required")
	}
	quantity, err := positiveQuantity("flat_rate_quantity", t.FlatRateQuantity, input.FlatRateQuantity)
	if err != nil {
		return err
	}
	t.FlatRateAmount = canonical
	t.FlatRateQuantity = &quantity
	return nil
}

func applyContractNote(t *Ticket, entry *ClientEntry) {
	if entry == nil || !entry.Contract {
		return
	}
	note := utils.DerefString(t.Note)
	if strings.HasPrefix(note, ContractClientNotePrefix) {
		return
	}
	if note == "" {
		note = ContractClientNotePrefix
	} else {
		note = ContractClientNotePrefix + "\n" + note
	}
	t.Note = &note
}

// TicketValue prices a ticket under its billing mode. ok is false when a
// price, amount or support rate is missing.
func TicketValue(t *Ticket, entry *ClientEntry) (decimal.Decimal, bool) {
	switch t.EntryType.Mode() {
	case BillingModeHardware:
		price, ok := utils.ToDecimal(t.HardwareSalesPrice)
		if !ok {
			return decimal.Zero, false
		}
		return price.Mul(decimal.NewFromInt(int64(derefQuantity(t.HardwareQuantity)))), true
	case BillingModeFlatRate:
		amount, ok := utils.ToDecimal(t.FlatRateAmount)
		if !ok {
			return decimal.Zero, false
		}
		return amount.Mul(decimal.NewFromInt(int64(derefQuantity(t.FlatRateQuantity)))), true
	case BillingModeTime:
		if !entry.HasSupportRate() {
			return decimal.Zero, false
		}
		return t.BillableHours().Mul(entry.SupportRate.Decimal), true
	}
	return decimal.Zero, false
}

// applyCalculatedValue refreshes CalculatedValue and seeds InvoicedTotal
// while it is still blank. A running time ticket has nothing to invoice yet,
// so seeding waits until it is closed with billable time.
func applyCalculatedValue(t *Ticket, entry *ClientEntry) {
	t.CalculatedValue = nil
	if value, ok := TicketValue(t, entry); ok {
		t.CalculatedValue = utils.CurrencyString(value)
	}
	if utils.TrimToNil(t.InvoicedTotal) == nil && invoiceReady(t) {
		t.InvoicedTotal = copyString(t.CalculatedValue)
	}
}

func invoiceReady(t *Ticket) bool {
	if t.EntryType.Mode() != BillingModeTime {
		return true
	}
	return !t.IsOpen() && t.BillableHours().IsPositive()
}

// syncInventory keeps the ticket's consumption event in step with its
// hardware link. It runs after the ticket row is written so the id exists.
func (e *billingEngine) syncInventory(t *Ticket, hw *HardwareItem) error {
	if !t.EntryType.IsHardwareLike() || t.HardwareId == nil || hw == nil {
		return DeleteTicketEventTx(e.tx, t.ID)
	}
	quantity := derefQuantity(t.HardwareQuantity)
	usage := &TicketUsage{
		TicketId:   t.ID,
		HardwareId: hw.ID,
		Quantity:   quantity,
		Note:       utils.StringPtr(fmt.Sprintf("Ticket #%d for %s", t.ID, t.Client)),
	}
	units := decimal.NewFromInt(int64(quantity))
	if price, ok := utils.ToDecimal(t.HardwareSalesPrice); ok {
		usage.SalePrice = utils.NullDecimal(price.Mul(units), true)
	}
	if cost, ok := utils.ToDecimal(hw.AcquisitionCost); ok {
		usage.AcquisitionCost = utils.NullDecimal(cost.Mul(units), true)
	}
	_, err := EnsureTicketUsageEventTx(e.tx, usage)
	return err
}

func derefQuantity(q *int) int {
	if q == nil || *q <= 0 {
		return 1
	}
	return *q
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
