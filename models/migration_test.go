package models_test

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuildLegacyHardwareTable(t *testing.T) {
	db := openTestDB(t, false)
	ctx := context.Background()

	require.NoError(t, db.Exec(`CREATE TABLE hardware (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		barcode TEXT,
		description TEXT,
		acquisition_cost TEXT,
		sales_price TEXT,
		created_at TEXT,
		client TEXT,
		client_key TEXT,
		completed INTEGER
	)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO hardware (id, barcode, description, acquisition_cost, sales_price, created_at, client, client_key, completed)
		VALUES (1, '0123456789012', 'Switch', '60', '$99.5', '2023-02-01 10:00:00', 'Acme', 'acme', 1),
		       (2, NULL, 'Cable', NULL, '5', NULL, NULL, NULL, 0)`).Error)

	report, err := models.RebuildLegacyHardwareTable(ctx)
	require.NoError(t, err)
	assert.True(t, report.Rebuilt)
	assert.Equal(t, 2, report.Copied)

	m := db.Migrator()
	assert.False(t, m.HasColumn(&models.HardwareItem{}, "client_key"))
	assert.False(t, m.HasTable("hardware__legacy"))

	var items []models.HardwareItem
	require.NoError(t, db.Order("id").Find(&items).Error)
	require.Len(t, items, 2)
	assert.Equal(t, "0123456789012", items[0].Barcode)
	assert.Equal(t, "99.50", *items[0].SalesPrice)
	assert.Equal(t, "60.00", *items[0].AcquisitionCost)
	assert.Equal(t, 2023, items[0].CreatedAt.Year())
	assert.Equal(t, models.FallbackBarcode(2), items[1].Barcode)
	assert.Nil(t, items[1].AcquisitionCost)

	next, err := models.CreateHardwareItem(testContext(), &models.NewHardwareItem{Barcode: "NEW-1", Description: "Patch panel"})
	require.NoError(t, err)
	assert.Equal(t, 3, next.ID, "ids continue after the copied rows")

	// current schema is left alone
	require.NoError(t, models.AutoMigrateTables(db))
	again, err := models.RebuildLegacyHardwareTable(ctx)
	require.NoError(t, err)
	assert.False(t, again.Rebuilt)
	assert.Equal(t, 0, again.Backfilled)
}

func TestRebuildLegacyHardwareTable_BackfillsBlankBarcodes(t *testing.T) {
	db := openTestDB(t, true)
	blank := models.HardwareItem{Barcode: " ", Description: "Unlabelled"}
	require.NoError(t, db.Create(&blank).Error)

	report, err := models.RebuildLegacyHardwareTable(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Rebuilt)
	assert.Equal(t, 1, report.Backfilled)

	var stored models.HardwareItem
	require.NoError(t, db.First(&stored, blank.ID).Error)
	assert.Equal(t, models.FallbackBarcode(blank.ID), stored.Barcode)
}
