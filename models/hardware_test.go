package models_test

import (
	"strconv"
	"testing"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/models"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateHardwareItem_NormalizesBarcode(t *testing.T) {
	openTestDB(t, true)
	ctx := testContext()

	item, err := models.CreateHardwareItem(ctx, &models.NewHardwareItem{
		Barcode:     " 123456789012 ",
		Description: "  Switch  ",
		SalesPrice:  utils.StringPtr("$1,299.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "0123456789012", item.Barcode)
	assert.Equal(t, "Switch", item.Description)
	require.NotNil(t, item.SalesPrice)
	assert.Equal(t, "1299.50", *item.SalesPrice)
	assert.Nil(t, item.AcquisitionCost)

	found, err := models.GetHardwareItem(ctx, "123456789012")
	require.NoError(t, err)
	assert.Equal(t, item.ID, found.ID)

	byId, err := models.GetHardwareItem(ctx, strconv.Itoa(item.ID))
	require.NoError(t, err)
	assert.Equal(t, item.ID, byId.ID)
}

func TestCreateHardwareItem_Rejects(t *testing.T) {
	openTestDB(t, true)
	ctx := testContext()

	_, err := models.CreateHardwareItem(ctx, &models.NewHardwareItem{Barcode: "   "})
	assert.True(t, utils.IsValidationError(err), "blank barcode: %v", err)

	_, err = models.CreateHardwareItem(ctx, &models.NewHardwareItem{Barcode: "X1", SalesPrice: utils.StringPtr("lots")})
	assert.True(t, utils.IsValidationError(err), "bad price: %v", err)

	createHardware(t, ctx, "0123456789012", "10", "5")
	_, err = models.CreateHardwareItem(ctx, &models.NewHardwareItem{Barcode: "123456789012"})
	assert.True(t, utils.IsValidationError(err), "alias collision: %v", err)
}

func TestUpdateHardwareItem(t *testing.T) {
	openTestDB(t, true)
	ctx := testContext()
	item := createHardware(t, ctx, "ab-1", "10", "5")
	assert.Equal(t, "AB-1", item.Barcode)

	update := models.NewHardwareUpdateFromMap(map[string]any{
		"description":      " Router ",
		"acquisition_cost": "",
		"sales_price":      "12.5",
		"unknown_field":    "ignored",
	})
	updated, err := models.UpdateHardwareItem(ctx, item.ID, update)
	require.NoError(t, err)
	assert.Equal(t, "Router", updated.Description)
	assert.Nil(t, updated.AcquisitionCost)
	require.NotNil(t, updated.SalesPrice)
	assert.Equal(t, "12.50", *updated.SalesPrice)

	blank := models.NewHardwareUpdateFromMap(map[string]any{"barcode": " "})
	require.NotNil(t, blank.Barcode)
	_, err = models.UpdateHardwareItem(ctx, item.ID, blank)
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "barcode", verr.Field)

	current, err := models.GetHardwareItem(ctx, "AB-1")
	require.NoError(t, err)
	assert.Equal(t, item.ID, current.ID)

	_, err = models.UpdateHardwareItem(ctx, 9999, &models.HardwareUpdate{})
	assert.True(t, utils.IsNotFoundError(err))
}

func TestListHardwareItems_EnrichesFromVendorEvents(t *testing.T) {
	openTestDB(t, true)
	ctx := testContext()
	item := createHardware(t, ctx, "4006381333931", "40", "20")
	vendor := models.CounterpartyTypeVendor

	_, err := models.RecordInventoryEvent(ctx, &models.NewInventoryEvent{
		HardwareId: item.ID, Change: 4, CounterpartyName: utils.StringPtr("Ingram"), CounterpartyType: &vendor,
		ActualCost: utils.NullDecimal(decimal.NewFromInt(100), true),
	})
	require.NoError(t, err)
	_, err = models.RecordInventoryEvent(ctx, &models.NewInventoryEvent{
		HardwareId: item.ID, Change: 3, CounterpartyName: utils.StringPtr("TD Synnex"), CounterpartyType: &vendor,
		ActualCost: utils.NullDecimal(decimal.NewFromInt(60), true),
	})
	require.NoError(t, err)
	_, err = models.RecordInventoryEvent(ctx, &models.NewInventoryEvent{
		HardwareId: item.ID, Change: 1, CounterpartyName: utils.StringPtr("Ingram"), CounterpartyType: &vendor,
	})
	require.NoError(t, err)

	items, err := models.ListHardwareItems(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"Ingram", "TD Synnex"}, items[0].CommonVendors)
	require.True(t, items[0].AverageUnitCost.Valid)
	assert.True(t, items[0].AverageUnitCost.Decimal.Equal(decimal.RequireFromString("22.5")),
		"average unit cost %s", items[0].AverageUnitCost.Decimal)
}

func TestDeleteHardwareItem_LeavesLedger(t *testing.T) {
	db := openTestDB(t, true)
	ctx := testContext()
	item := createHardware(t, ctx, "XYZ", "1", "1")
	_, err := models.RecordInventoryEvent(ctx, &models.NewInventoryEvent{HardwareId: item.ID, Change: 2})
	require.NoError(t, err)

	_, err = models.DeleteHardwareItem(ctx, item.ID)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.InventoryEvent{}).Where("hardware_id = ?", item.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = models.GetHardwareItem(ctx, "XYZ")
	assert.True(t, utils.IsNotFoundError(err))
}
