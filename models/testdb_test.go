package models_test

import (
	"context"
	"path/filepath"
	"testing"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/models"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// openTestDB installs a fresh SQLite database as the global handle. migrate
// controls whether the current schema is applied.
func openTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	db, err := config.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	config.SetDB(db)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if migrate {
		require.NoError(t, models.AutoMigrateTables(db))
	}
	return db
}

func testContext() context.Context {
	return utils.SetUsernameInContext(context.Background(), "test@local")
}

func testClients() models.ClientTable {
	return models.ClientTable{
		"acme": {
			Key:         "acme",
			Name:        "Acme Corp",
			SupportRate: utils.NullDecimal(decimal.NewFromInt(120), true),
		},
		"globex": {
			Key:      "globex",
			Name:     "Globex",
			Contract: true,
		},
		"initech": {
			Key:  "initech",
			Name: "Initech",
		},
	}
}

func createHardware(t *testing.T, ctx context.Context, barcode string, price string, cost string) *models.HardwareItem {
	t.Helper()
	item, err := models.CreateHardwareItem(ctx, &models.NewHardwareItem{
		Barcode:         barcode,
		Description:     "Item " + barcode,
		SalesPrice:      utils.StringPtr(price),
		AcquisitionCost: utils.StringPtr(cost),
	})
	require.NoError(t, err)
	return item
}

func ticketEvents(t *testing.T, db *gorm.DB, ticketId int) []models.InventoryEvent {
	t.Helper()
	var events []models.InventoryEvent
	require.NoError(t, db.Where("ticket_id = ?", ticketId).Find(&events).Error)
	return events
}
