package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type HardwareItem struct {
	ID              int       `gorm:"primary_key" json:"id"`
	Barcode         string    `gorm:"size:64;uniqueIndex;not null" json:"barcode"`
	Description     string    `gorm:"size:255;not null" json:"description"`
	AcquisitionCost *string   `gorm:"size:32" json:"acquisition_cost"`
	SalesPrice      *string   `gorm:"size:32" json:"sales_price"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`

	// read-side enrichment from vendor receipts, never persisted
	CommonVendors   []string            `gorm:"-" json:"common_vendors"`
	AverageUnitCost decimal.NullDecimal `gorm:"-" json:"average_unit_cost"`
}

func (HardwareItem) TableName() string {
	return "hardware"
}

type NewHardwareItem struct {
	Barcode         string  `json:"barcode" validate:"required"`
	Description     string  `json:"description"`
	AcquisitionCost *string `json:"acquisition_cost"`
	SalesPrice      *string `json:"sales_price"`
}

// HardwareUpdate carries only the fields being changed. A cost or price
// pointing at "" clears the stored value.
type HardwareUpdate struct {
	Barcode         *string `json:"barcode"`
	Description     *string `json:"description"`
	AcquisitionCost *string `json:"acquisition_cost"`
	SalesPrice      *string `json:"sales_price"`
}

// NewHardwareUpdateFromMap builds an update from a loose payload. Unknown keys
// are ignored so older clients sending stale fields keep working.
func NewHardwareUpdateFromMap(payload map[string]any) *HardwareUpdate {
	update := &HardwareUpdate{}
	for key, value := range payload {
		switch key {
		case "barcode":
			update.Barcode = looseString(value)
		case "description":
			update.Description = looseString(value)
		case "acquisition_cost":
			update.AcquisitionCost = looseStringOrClear(value)
		case "sales_price":
			update.SalesPrice = looseStringOrClear(value)
		}
	}
	return update
}

// looseString renders scalar payload values as text; nil stays nil.
func looseString(value any) *string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return &v
	case *string:
		return v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	case int:
		s := strconv.Itoa(v)
		return &s
	case int64:
		s := strconv.FormatInt(v, 10)
		return &s
	case decimal.Decimal:
		s := v.String()
		return &s
	default:
		s := fmt.Sprint(v)
		return &s
	}
}

// looseStringOrClear maps an explicit null to "" so the column is cleared.
func looseStringOrClear(value any) *string {
	if value == nil {
		empty := ""
		return &empty
	}
	return looseString(value)
}

// moneyField canonicalises an optional money-as-string input. Blank input
// yields nil; anything unparseable is rejected.
func moneyField(field string, raw *string) (*string, error) {
	trimmed := utils.TrimToNil(raw)
	if trimmed == nil {
		return nil, nil
	}
	value := utils.CurrencyString(*trimmed)
	if value == nil {
		return nil, utils.NewValidationError(field, "invalid amount %q", *trimmed)
	}
	return value, nil
}

// canonicalBarcode normalizes raw and checks that no other item already owns
// it under any alias. id is 0 for create.
func canonicalBarcode(tx *gorm.DB, raw string, id int) (string, error) {
	barcode := utils.NormalizeBarcode(raw)
	if barcode == "" {
		return "", utils.NewValidationError("barcode", "is required")
	}
	count, err := utils.ResourceCountWhere[HardwareItem](tx, "barcode IN ? AND id <> ?", utils.BarcodeAliases(raw), id)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "", utils.NewValidationError("barcode", "%s is already assigned to another item", barcode)
	}
	return barcode, nil
}

func (input *NewHardwareItem) validate(tx *gorm.DB) (*HardwareItem, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	barcode, err := canonicalBarcode(tx, input.Barcode, 0)
	if err != nil {
		return nil, err
	}
	cost, err := moneyField("acquisition_cost", input.AcquisitionCost)
	if err != nil {
		return nil, err
	}
	price, err := moneyField("sales_price", input.SalesPrice)
	if err != nil {
		return nil, err
	}
	return &HardwareItem{
		Barcode:         barcode,
		Description:     strings.TrimSpace(input.Description),
		AcquisitionCost: cost,
		SalesPrice:      price,
	}, nil
}

func CreateHardwareItem(ctx context.Context, input *NewHardwareItem) (*HardwareItem, error) {
	var item *HardwareItem
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = input.validate(tx)
		if err != nil {
			return err
		}
		return tx.Create(item).Error
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func UpdateHardwareItem(ctx context.Context, id int, input *HardwareUpdate) (*HardwareItem, error) {
	var item *HardwareItem
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = utils.FetchModelTx[HardwareItem](tx, "hardware", id)
		if err != nil {
			return err
		}
		if input.Barcode != nil {
			barcode, err := canonicalBarcode(tx, *input.Barcode, id)
			if err != nil {
				return err
			}
			item.Barcode = barcode
		}
		if input.Description != nil {
			item.Description = strings.TrimSpace(*input.Description)
		}
		if input.AcquisitionCost != nil {
			if item.AcquisitionCost, err = moneyField("acquisition_cost", input.AcquisitionCost); err != nil {
				return err
			}
		}
		if input.SalesPrice != nil {
			if item.SalesPrice, err = moneyField("sales_price", input.SalesPrice); err != nil {
				return err
			}
		}
		return tx.Model(item).Select("Barcode", "Description", "AcquisitionCost", "SalesPrice").Updates(item).Error
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteHardwareItem removes only the catalog row. Ledger events and ticket
// snapshots that point at it are left for the caller to reconcile.
func DeleteHardwareItem(ctx context.Context, id int) (*HardwareItem, error) {
	item, err := utils.FetchModel[HardwareItem](ctx, "hardware", id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// FindHardwareByBarcodeTx tries every alias of raw in order and returns the
// first match, or nil.
func FindHardwareByBarcodeTx(tx *gorm.DB, raw string) (*HardwareItem, error) {
	for _, alias := range utils.BarcodeAliases(raw) {
		var item HardwareItem
		err := tx.Where("barcode = ?", alias).Limit(1).Find(&item).Error
		if err != nil {
			return nil, err
		}
		if item.ID > 0 {
			return &item, nil
		}
	}
	return nil, nil
}

func getHardwareTx(tx *gorm.DB, idOrBarcode string) (*HardwareItem, error) {
	key := strings.TrimSpace(idOrBarcode)
	if key == "" {
		return nil, utils.NewValidationError("id", "hardware id or barcode is required")
	}
	if id, err := strconv.Atoi(key); err == nil && id > 0 {
		item, err := utils.FetchModelTx[HardwareItem](tx, "hardware", id)
		if err == nil {
			return item, nil
		}
		if !utils.IsNotFoundError(err) {
			return nil, err
		}
	}
	item, err := FindHardwareByBarcodeTx(tx, key)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, utils.NewNotFoundError("hardware", key)
	}
	return item, nil
}

// GetHardwareItem accepts a numeric id or a barcode. Numeric input that does
// not match an id is retried as a barcode.
func GetHardwareItem(ctx context.Context, idOrBarcode string) (*HardwareItem, error) {
	db := config.GetDB().WithContext(ctx)
	item, err := getHardwareTx(db, idOrBarcode)
	if err != nil {
		return nil, err
	}
	if config.BarcodeSelfHealOnRead() {
		healBarcodes(ctx, db, []*HardwareItem{item})
	}
	if err := enrichHardware(db, []*HardwareItem{item}); err != nil {
		return nil, err
	}
	return item, nil
}

func ListHardwareItems(ctx context.Context, limit int, offset int) ([]*HardwareItem, error) {
	db := config.GetDB().WithContext(ctx)
	var results []*HardwareItem
	err := db.Order("created_at DESC").Order("id DESC").
		Scopes(paginate(limit, offset)).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	if config.BarcodeSelfHealOnRead() {
		healBarcodes(ctx, db, results)
	}
	if err := enrichHardware(db, results); err != nil {
		return nil, err
	}
	return results, nil
}

type vendorCostRow struct {
	HardwareId       int
	CounterpartyName *string
	UnitCost         decimal.NullDecimal
}

// enrichHardware fills CommonVendors and AverageUnitCost from positive,
// vendor-typed ledger events.
func enrichHardware(tx *gorm.DB, items []*HardwareItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]int, 0, len(items))
	byId := make(map[int]*HardwareItem, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
		byId[item.ID] = item
		item.CommonVendors = []string{}
		item.AverageUnitCost = decimal.NullDecimal{}
	}

	var rows []vendorCostRow
	err := tx.Model(&InventoryEvent{}).
		Select("hardware_id, counterparty_name, unit_cost").
		Where("hardware_id IN ? AND counterparty_type = ? AND quantity_change > 0", ids, CounterpartyTypeVendor).
		Order("created_at").Order("id").
		Scan(&rows).Error
	if err != nil {
		return err
	}

	sums := make(map[int]decimal.Decimal)
	counts := make(map[int]int64)
	for _, row := range rows {
		item := byId[row.HardwareId]
		if item == nil {
			continue
		}
		if name := strings.TrimSpace(utils.DerefString(row.CounterpartyName)); name != "" {
			item.CommonVendors = append(item.CommonVendors, name)
		}
		if row.UnitCost.Valid {
			sums[row.HardwareId] = sums[row.HardwareId].Add(row.UnitCost.Decimal)
			counts[row.HardwareId]++
		}
	}
	for id, item := range byId {
		item.CommonVendors = utils.UniqueSlice(item.CommonVendors)
		if item.CommonVendors == nil {
			item.CommonVendors = []string{}
		}
		if counts[id] > 0 {
			item.AverageUnitCost = utils.NullDecimal(sums[id].Div(decimal.NewFromInt(counts[id])), true)
		}
	}
	return nil
}

// healBarcodes rewrites stored barcodes that are not in canonical form.
// Failures never fail the read.
func healBarcodes(ctx context.Context, tx *gorm.DB, items []*HardwareItem) {
	logger := config.LoggerFromContext(ctx)
	for _, item := range items {
		outcome, err := repairBarcode(tx, item)
		if err != nil {
			config.LogError(config.GetLogger(), "Hardware", "healBarcodes", fmt.Sprintf("hardware %d", item.ID), item.Barcode, err)
			continue
		}
		if outcome == barcodeRepairCollision {
			config.LogWarning(logger, "Hardware", "healBarcodes", "barcode self-heal skipped: canonical value owned by another item",
				logrus.Fields{"hardware_id": item.ID, "barcode": item.Barcode})
		}
	}
}

func paginate(limit int, offset int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			limit = 100
		}
		if offset < 0 {
			offset = 0
		}
		return db.Limit(limit).Offset(offset)
	}
}
