package reports

import (
	"context"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InventoryProfitItem struct {
	HardwareId  int             `json:"hardware_id"`
	Barcode     string          `json:"barcode"`
	Description string          `json:"description"`
	Received    int             `json:"received"`
	Used        int             `json:"used"`
	OnHand      int             `json:"on_hand"`
	CostTotal   decimal.Decimal `json:"cost_total"`
	SaleTotal   decimal.Decimal `json:"sale_total"`
	// only events carrying both a cost and a sale price count here
	Profit decimal.Decimal `json:"profit"`
}

type InventoryProfitResponse struct {
	Items     []*InventoryProfitItem `json:"items"`
	CostTotal decimal.Decimal        `json:"cost_total"`
	SaleTotal decimal.Decimal        `json:"sale_total"`
	Profit    decimal.Decimal        `json:"profit"`
}

func (item *InventoryProfitItem) add(e *models.InventoryEvent) {
	if e.Change > 0 {
		item.Received += e.Change
	} else {
		item.Used -= e.Change
	}
	item.OnHand += e.Change
	if e.ActualCost.Valid {
		item.CostTotal = item.CostTotal.Add(e.ActualCost.Decimal)
	}
	if e.SalePriceTotal.Valid {
		item.SaleTotal = item.SaleTotal.Add(e.SalePriceTotal.Decimal)
	}
	if profit := e.ProfitTotal(); profit.Valid {
		item.Profit = item.Profit.Add(profit.Decimal)
	}
}

// InventoryProfitReport summarizes the ledger per hardware item: units in
// and out, on-hand, recorded cost and sale totals, and profit.
func InventoryProfitReport(ctx context.Context) (*InventoryProfitResponse, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "InventoryProfitReport")
	defer span.End()

	db := config.GetDB().WithContext(ctx)

	var hardware []*models.HardwareItem
	if err := db.Order("id").Find(&hardware).Error; err != nil {
		span.RecordError(err)
		return nil, err
	}
	byId := make(map[int]*InventoryProfitItem, len(hardware))
	for _, hw := range hardware {
		byId[hw.ID] = &InventoryProfitItem{HardwareId: hw.ID, Barcode: hw.Barcode, Description: hw.Description}
	}

	var batch []*models.InventoryEvent
	result := db.Order("id").FindInBatches(&batch, 500, func(_ *gorm.DB, _ int) error {
		for _, e := range batch {
			item, ok := byId[e.HardwareId]
			if !ok {
				// events for deleted hardware are still part of the totals
				item = &InventoryProfitItem{HardwareId: e.HardwareId}
				byId[e.HardwareId] = item
			}
			item.add(e)
		}
		return nil
	})
	if result.Error != nil {
		span.RecordError(result.Error)
		return nil, result.Error
	}

	response := &InventoryProfitResponse{Items: make([]*InventoryProfitItem, 0, len(byId))}
	for _, item := range byId {
		response.CostTotal = response.CostTotal.Add(item.CostTotal)
		response.SaleTotal = response.SaleTotal.Add(item.SaleTotal)
		response.Profit = response.Profit.Add(item.Profit)
		item.CostTotal = item.CostTotal.Round(2)
		item.SaleTotal = item.SaleTotal.Round(2)
		item.Profit = item.Profit.Round(2)
		response.Items = append(response.Items, item)
	}
	response.CostTotal = response.CostTotal.Round(2)
	response.SaleTotal = response.SaleTotal.Round(2)
	response.Profit = response.Profit.Round(2)
	sort.SliceStable(response.Items, func(i, j int) bool {
		if response.Items[i].Description != response.Items[j].Description {
			return response.Items[i].Description < response.Items[j].Description
		}
		return response.Items[i].HardwareId < response.Items[j].HardwareId
	})

	logSlowReport(ctx, "InventoryProfitReport", started, nil)
	return response, nil
}
