package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"gorm.io/gorm"
)

var allModels = []interface{}{
	&HardwareItem{}, &InventoryEvent{}, &Ticket{}, &Project{},
}

// AutoMigrateTables applies additive schema changes only.
func AutoMigrateTables(db *gorm.DB) error {
	return db.AutoMigrate(allModels...)
}

// columns the hardware table carried when it doubled as a ticket table
var legacyHardwareColumns = []string{"client", "client_key", "completed"}

const legacyHardwareTable = "hardware__legacy"

type legacyHardwareRow struct {
	ID              int
	Barcode         *string
	Description     *string
	AcquisitionCost *string
	SalesPrice      *string
	CreatedAt       *string
}

type HardwareRebuildReport struct {
	Rebuilt    bool `json:"rebuilt"`
	Copied     int  `json:"copied"`
	Backfilled int  `json:"backfilled"`
}

func FallbackBarcode(id int) string {
	return fmt.Sprintf("HW-%d", id)
}

// RebuildLegacyHardwareTable drops legacy columns from the hardware table by
// building a clean table and copying rows across. Rows without a barcode get
// "HW-<id>". Blank barcodes are backfilled the same way afterwards.
func RebuildLegacyHardwareTable(ctx context.Context) (*HardwareRebuildReport, error) {
	report := &HardwareRebuildReport{}
	db := config.GetDB().WithContext(ctx)
	m := db.Migrator()

	legacy := false
	if m.HasTable(&HardwareItem{}) {
		for _, column := range legacyHardwareColumns {
			if m.HasColumn(&HardwareItem{}, column) {
				legacy = true
				break
			}
		}
	}

	if legacy {
		err := db.Transaction(func(tx *gorm.DB) error {
			copied, err := swapLegacyHardwareTable(tx)
			report.Copied = copied
			return err
		})
		if err != nil {
			return nil, err
		}
		report.Rebuilt = true
	}

	backfilled, err := backfillBlankBarcodes(db)
	if err != nil {
		return nil, err
	}
	report.Backfilled = backfilled
	return report, nil
}

func swapLegacyHardwareTable(tx *gorm.DB) (int, error) {
	m := tx.Migrator()
	if err := m.RenameTable("hardware", legacyHardwareTable); err != nil {
		return 0, err
	}
	// index names are shared across tables on sqlite and postgres
	for _, index := range []string{"idx_hardware_barcode", "ix_hardware_barcode", "ix_hardware_id"} {
		if m.HasIndex(legacyHardwareTable, index) {
			if err := m.DropIndex(legacyHardwareTable, index); err != nil {
				return 0, err
			}
		}
	}
	if err := tx.AutoMigrate(&HardwareItem{}); err != nil {
		return 0, err
	}

	var rows []legacyHardwareRow
	err := tx.Table(legacyHardwareTable).
		Select("id", "barcode", "description", "acquisition_cost", "sales_price", "created_at").
		Order("id").Scan(&rows).Error
	if err != nil {
		return 0, err
	}
	loc := config.GetSettings().Location()
	for _, row := range rows {
		item := HardwareItem{
			ID:              row.ID,
			Barcode:         strings.TrimSpace(utils.DerefString(row.Barcode)),
			Description:     strings.TrimSpace(utils.DerefString(row.Description)),
			AcquisitionCost: utils.CurrencyString(row.AcquisitionCost),
			SalesPrice:      utils.CurrencyString(row.SalesPrice),
			CreatedAt:       time.Now().UTC(),
		}
		if item.Barcode == "" {
			item.Barcode = FallbackBarcode(row.ID)
		}
		if created := utils.DerefString(row.CreatedAt); created != "" {
			if ts, err := utils.ParseISO(created, loc); err == nil {
				item.CreatedAt = ts
			}
		}
		if err := tx.Create(&item).Error; err != nil {
			return 0, fmt.Errorf("copy hardware %d: %w", row.ID, err)
		}
	}
	if err := resetHardwareSequence(tx); err != nil {
		return 0, err
	}
	if err := m.DropTable(legacyHardwareTable); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// resetHardwareSequence moves the postgres id sequence past the copied ids.
// MySQL and SQLite derive the next id from the table itself.
func resetHardwareSequence(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT setval(pg_get_serial_sequence('hardware', 'id'), COALESCE(MAX(id), 1)) FROM hardware").Error
}

func backfillBlankBarcodes(db *gorm.DB) (int, error) {
	var ids []int
	err := db.Model(&HardwareItem{}).
		Where("barcode IS NULL OR TRIM(barcode) = ''").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		err := db.Model(&HardwareItem{}).Where("id = ?", id).Update("barcode", FallbackBarcode(id)).Error
		if err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
