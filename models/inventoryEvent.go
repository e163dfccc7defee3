package models

import (
	"context"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// InventoryEvent is one signed stock change for a hardware item. Positive
// changes are receipts, negative changes are usage. Costs and sale prices are
// stored as totals with the per-unit value derived from them.
type InventoryEvent struct {
	ID               int                 `gorm:"primary_key" json:"id"`
	HardwareId       int                 `gorm:"index;not null" json:"hardware_id"`
	Change           int                 `gorm:"column:quantity_change;not null" json:"change"`
	Source           InventorySource     `gorm:"size:32;not null;default:manual" json:"source"`
	Note             *string             `gorm:"type:text" json:"note"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	TicketId         *int                `gorm:"index" json:"ticket_id"`
	CounterpartyName *string             `gorm:"size:255" json:"counterparty_name"`
	CounterpartyType *CounterpartyType   `gorm:"size:16" json:"counterparty_type"`
	ActualCost       decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"actual_cost"`
	UnitCost         decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"unit_cost"`
	SalePriceTotal   decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"sale_price_total"`
	SaleUnitPrice    decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"sale_unit_price"`

	HardwareBarcode     *string `gorm:"-" json:"hardware_barcode"`
	HardwareDescription *string `gorm:"-" json:"hardware_description"`
}

func (InventoryEvent) TableName() string {
	return "inventory_events"
}

// ProfitTotal is sale total minus cost total when both are recorded.
func (e *InventoryEvent) ProfitTotal() decimal.NullDecimal {
	if !e.SalePriceTotal.Valid || !e.ActualCost.Valid {
		return decimal.NullDecimal{}
	}
	return utils.NullDecimal(e.SalePriceTotal.Decimal.Sub(e.ActualCost.Decimal), true)
}

func (e *InventoryEvent) ProfitUnit() decimal.NullDecimal {
	total := e.ProfitTotal()
	if !total.Valid {
		return total
	}
	return utils.NullDecimal(utils.UnitValue(total.Decimal, e.Change))
}

type NewInventoryEvent struct {
	HardwareId       int               `json:"hardware_id" validate:"required"`
	Change           int               `json:"change"`
	Source           InventorySource   `json:"source"`
	Note             *string           `json:"note"`
	TicketId         *int              `json:"ticket_id"`
	CounterpartyName *string           `json:"counterparty_name"`
	CounterpartyType *CounterpartyType `json:"counterparty_type" validate:"omitempty,oneof=vendor client"`
	// totals for the whole change, not per unit
	ActualCost decimal.NullDecimal `json:"actual_cost"`
	SalePrice  decimal.NullDecimal `json:"sale_price"`
}

func (input *NewInventoryEvent) validate(tx *gorm.DB) error {
	if input.Change == 0 {
		return utils.NewValidationError("change", "must be non-zero")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	_, err := utils.FetchModelTx[HardwareItem](tx, "hardware", input.HardwareId)
	return err
}

func (input *NewInventoryEvent) toEvent() *InventoryEvent {
	source := input.Source
	if source == "" {
		source = InventorySourceManual
	}
	event := &InventoryEvent{
		HardwareId:       input.HardwareId,
		Change:           input.Change,
		Source:           source,
		Note:             utils.TrimToNil(input.Note),
		TicketId:         input.TicketId,
		CounterpartyName: utils.TrimToNil(input.CounterpartyName),
		CounterpartyType: input.CounterpartyType,
	}
	if event.CounterpartyName == nil {
		event.CounterpartyType = nil
	}
	event.setTotals(input.ActualCost, input.SalePrice)
	return event
}

// setTotals stores cost and sale totals and derives their unit values.
func (e *InventoryEvent) setTotals(actualCost decimal.NullDecimal, salePrice decimal.NullDecimal) {
	e.ActualCost = actualCost
	e.UnitCost = decimal.NullDecimal{}
	if actualCost.Valid {
		e.UnitCost = utils.NullDecimal(utils.UnitValue(actualCost.Decimal, e.Change))
	}
	e.SalePriceTotal = salePrice
	e.SaleUnitPrice = decimal.NullDecimal{}
	if salePrice.Valid {
		e.SaleUnitPrice = utils.NullDecimal(utils.UnitValue(salePrice.Decimal, e.Change))
	}
}

func RecordInventoryEventTx(tx *gorm.DB, input *NewInventoryEvent) (*InventoryEvent, error) {
	if err := input.validate(tx); err != nil {
		return nil, err
	}
	event := input.toEvent()
	if err := tx.Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func RecordInventoryEvent(ctx context.Context, input *NewInventoryEvent) (*InventoryEvent, error) {
	var event *InventoryEvent
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		event, err = RecordInventoryEventTx(tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// NewInventoryAdjustment is a receive or use request addressed by hardware id
// or barcode. Cost and sale price are per unit.
type NewInventoryAdjustment struct {
	HardwareId *int    `json:"hardware_id"`
	Barcode    *string `json:"barcode"`
	Quantity   int     `json:"quantity" validate:"gt=0"`
	Note       *string `json:"note"`
	VendorName *string `json:"vendor_name"`
	ClientName *string `json:"client_name"`
	ActualCost *string `json:"actual_cost"`
	SalePrice  *string `json:"sale_price"`
}

func (input *NewInventoryAdjustment) resolveHardware(tx *gorm.DB) (*HardwareItem, error) {
	if input.HardwareId != nil && *input.HardwareId > 0 {
		item, err := utils.FetchModelTx[HardwareItem](tx, "hardware", *input.HardwareId)
		if err == nil {
			return item, nil
		}
		if !utils.IsNotFoundError(err) {
			return nil, err
		}
	}
	barcode := strings.TrimSpace(utils.DerefString(input.Barcode))
	if barcode != "" {
		item, err := FindHardwareByBarcodeTx(tx, barcode)
		if err != nil {
			return nil, err
		}
		if item != nil {
			return item, nil
		}
	}
	if input.HardwareId == nil && barcode == "" {
		return nil, utils.NewValidationError("hardware_id", "hardware_id or barcode is required")
	}
	key := any(barcode)
	if input.HardwareId != nil {
		key = *input.HardwareId
	}
	return nil, utils.NewNotFoundError("hardware", key)
}

func perUnitTotal(field string, raw *string, quantity int) (decimal.NullDecimal, error) {
	value, err := moneyField(field, raw)
	if err != nil || value == nil {
		return decimal.NullDecimal{}, err
	}
	unit, _ := utils.ToDecimal(*value)
	return utils.NullDecimal(unit.Mul(decimal.NewFromInt(int64(quantity))), true), nil
}

func adjustInventory(ctx context.Context, input *NewInventoryAdjustment, receive bool) (*InventoryEvent, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	var event *InventoryEvent
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := input.resolveHardware(tx)
		if err != nil {
			return err
		}
		cost, err := perUnitTotal("actual_cost", input.ActualCost, input.Quantity)
		if err != nil {
			return err
		}
		sale, err := perUnitTotal("sale_price", input.SalePrice, input.Quantity)
		if err != nil {
			return err
		}
		record := &NewInventoryEvent{
			HardwareId: item.ID,
			Note:       input.Note,
			ActualCost: cost,
			SalePrice:  sale,
		}
		if receive {
			vendor := CounterpartyTypeVendor
			record.Change = input.Quantity
			record.Source = InventorySourceAPIReceive
			record.CounterpartyName = input.VendorName
			record.CounterpartyType = &vendor
		} else {
			client := CounterpartyTypeClient
			record.Change = -input.Quantity
			record.Source = InventorySourceAPIUse
			record.CounterpartyName = input.ClientName
			record.CounterpartyType = &client
		}
		event, err = RecordInventoryEventTx(tx, record)
		return err
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// ReceiveInventory records stock arriving, attributed to the vendor if named.
func ReceiveInventory(ctx context.Context, input *NewInventoryAdjustment) (*InventoryEvent, error) {
	return adjustInventory(ctx, input, true)
}

// UseInventory records stock consumed, attributed to the client if named.
func UseInventory(ctx context.Context, input *NewInventoryAdjustment) (*InventoryEvent, error) {
	return adjustInventory(ctx, input, false)
}

func GetInventoryEvent(ctx context.Context, id int) (*InventoryEvent, error) {
	event, err := utils.FetchModel[InventoryEvent](ctx, "inventory event", id)
	if err != nil {
		return nil, err
	}
	if err := attachHardwareInfo(config.GetDB().WithContext(ctx), []*InventoryEvent{event}); err != nil {
		return nil, err
	}
	return event, nil
}

// ListInventoryEvents returns the newest events first.
func ListInventoryEvents(ctx context.Context, limit int, offset int) ([]*InventoryEvent, error) {
	db := config.GetDB().WithContext(ctx)
	var results []*InventoryEvent
	err := db.Order("created_at DESC").Order("id DESC").
		Scopes(paginate(limit, offset)).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	if err := attachHardwareInfo(db, results); err != nil {
		return nil, err
	}
	return results, nil
}

func attachHardwareInfo(tx *gorm.DB, events []*InventoryEvent) error {
	if len(events) == 0 {
		return nil
	}
	var ids []int
	for _, event := range events {
		ids = append(ids, event.HardwareId)
	}
	var items []*HardwareItem
	if err := tx.Where("id IN ?", utils.UniqueSlice(ids)).Find(&items).Error; err != nil {
		return err
	}
	byId := make(map[int]*HardwareItem, len(items))
	for _, item := range items {
		byId[item.ID] = item
	}
	for _, event := range events {
		if item, ok := byId[event.HardwareId]; ok {
			barcode, description := item.Barcode, item.Description
			event.HardwareBarcode = &barcode
			event.HardwareDescription = &description
		}
	}
	return nil
}

// DeleteInventoryEvent hard-deletes one event with no other side effects.
func DeleteInventoryEvent(ctx context.Context, id int) (*InventoryEvent, error) {
	event, err := utils.FetchModel[InventoryEvent](ctx, "inventory event", id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

type InventorySummaryItem struct {
	HardwareId   int        `json:"hardware_id"`
	Barcode      string     `json:"barcode"`
	Description  string     `json:"description"`
	Quantity     int        `json:"quantity"`
	LastActivity *time.Time `json:"last_activity"`
}

// GetInventorySummary folds the ledger into on-hand counts per item, ordered
// by description. Events for deleted items are left out. A negative count is
// kept and logged.
func GetInventorySummary(ctx context.Context) ([]*InventorySummaryItem, error) {
	db := config.GetDB().WithContext(ctx)

	var events []*InventoryEvent
	err := db.Select("id", "hardware_id", "quantity_change", "created_at").Find(&events).Error
	if err != nil {
		return nil, err
	}

	rows := make(map[int]*InventorySummaryItem)
	var ids []int
	for _, event := range events {
		row, ok := rows[event.HardwareId]
		if !ok {
			row = &InventorySummaryItem{HardwareId: event.HardwareId}
			rows[event.HardwareId] = row
			ids = append(ids, event.HardwareId)
		}
		row.Quantity += event.Change
		if row.LastActivity == nil || event.CreatedAt.After(*row.LastActivity) {
			createdAt := event.CreatedAt
			row.LastActivity = &createdAt
		}
	}
	if len(ids) == 0 {
		return []*InventorySummaryItem{}, nil
	}

	var items []*HardwareItem
	if err := db.Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}

	logger := config.LoggerFromContext(ctx)
	results := make([]*InventorySummaryItem, 0, len(items))
	for _, item := range items {
		row := rows[item.ID]
		row.Barcode = item.Barcode
		row.Description = item.Description
		if row.Quantity < 0 {
			config.LogWarning(logger, "InventoryEvent", "GetInventorySummary", "negative on-hand quantity",
				logrus.Fields{"hardware_id": item.ID, "barcode": item.Barcode, "quantity": row.Quantity})
		}
		results = append(results, row)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Description == results[j].Description {
			return results[i].HardwareId < results[j].HardwareId
		}
		return results[i].Description < results[j].Description
	})
	return results, nil
}

/* ticket-driven events */

// GetEventByTicketTx returns the event tied to ticketId, or nil.
func GetEventByTicketTx(tx *gorm.DB, ticketId int) (*InventoryEvent, error) {
	var event InventoryEvent
	err := tx.Where("ticket_id = ?", ticketId).Order("id").Limit(1).Find(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

// DeleteTicketEventTx removes any event tied to ticketId; no-op when none.
func DeleteTicketEventTx(tx *gorm.DB, ticketId int) error {
	return tx.Where("ticket_id = ?", ticketId).Delete(&InventoryEvent{}).Error
}

type TicketUsage struct {
	TicketId   int
	HardwareId int
	Quantity   int
	Note       *string
	// totals for the whole quantity
	SalePrice       decimal.NullDecimal
	AcquisitionCost decimal.NullDecimal
}

// EnsureTicketUsageEventTx upserts the consumption event for a ticket. An
// existing event keeps its id and is overwritten in place. The change is
// always -|quantity|.
func EnsureTicketUsageEventTx(tx *gorm.DB, usage *TicketUsage) (*InventoryEvent, error) {
	change := usage.Quantity
	if change < 0 {
		change = -change
	}
	if change == 0 {
		return nil, utils.NewValidationError("hardware_quantity", "must be a positive integer")
	}
	change = -change

	existing, err := GetEventByTicketTx(tx, usage.TicketId)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		ticketId := usage.TicketId
		return RecordInventoryEventTx(tx, &NewInventoryEvent{
			HardwareId: usage.HardwareId,
			Change:     change,
			Source:     InventorySourceTicket,
			Note:       usage.Note,
			TicketId:   &ticketId,
			ActualCost: usage.AcquisitionCost,
			SalePrice:  usage.SalePrice,
		})
	}

	existing.HardwareId = usage.HardwareId
	existing.Change = change
	existing.Source = InventorySourceTicket
	existing.Note = utils.TrimToNil(usage.Note)
	existing.CounterpartyName = nil
	existing.CounterpartyType = nil
	existing.setTotals(usage.AcquisitionCost, usage.SalePrice)
	err = tx.Model(existing).
		Select("HardwareId", "Change", "Source", "Note", "CounterpartyName", "CounterpartyType",
			"ActualCost", "UnitCost", "SalePriceTotal", "SaleUnitPrice").
		Updates(existing).Error
	if err != nil {
		return nil, err
	}
	return existing, nil
}
