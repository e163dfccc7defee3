package models

import (
	"context"
	"errors"
	"strings"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type barcodeRepairOutcome int

const (
	barcodeRepairUnchanged barcodeRepairOutcome = iota
	barcodeRepairUpdated
	barcodeRepairCollision
	barcodeRepairBlank
)

type BarcodeCollision struct {
	HardwareId int    `json:"hardware_id"`
	Barcode    string `json:"barcode"`
	Canonical  string `json:"canonical"`
}

type BarcodeRepairReport struct {
	Scanned    int                `json:"scanned"`
	Updated    int                `json:"updated"`
	Collisions []BarcodeCollision `json:"collisions"`
	// items whose barcode normalizes to nothing
	Blank []int `json:"blank"`
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}

// repairBarcode rewrites item's barcode to its canonical form unless another
// item already owns that value. A unique violation from a concurrent insert
// is reported as a collision.
func repairBarcode(db *gorm.DB, item *HardwareItem) (barcodeRepairOutcome, error) {
	canonical := utils.NormalizeBarcode(item.Barcode)
	if canonical == "" {
		return barcodeRepairBlank, nil
	}
	if canonical == item.Barcode {
		return barcodeRepairUnchanged, nil
	}
	count, err := utils.ResourceCountWhere[HardwareItem](db, "barcode = ? AND id <> ?", canonical, item.ID)
	if err != nil {
		return barcodeRepairUnchanged, err
	}
	if count > 0 {
		return barcodeRepairCollision, nil
	}
	err = db.Model(&HardwareItem{}).Where("id = ?", item.ID).Update("barcode", canonical).Error
	if isDuplicateKey(err) {
		return barcodeRepairCollision, nil
	}
	if err != nil {
		return barcodeRepairUnchanged, err
	}
	item.Barcode = canonical
	return barcodeRepairUpdated, nil
}

// RepairHardwareBarcodes normalizes every stored barcode. Collisions leave the
// stale value in place and are listed in the report.
func RepairHardwareBarcodes(ctx context.Context) (*BarcodeRepairReport, error) {
	db := config.GetDB().WithContext(ctx)
	logger := config.LoggerFromContext(ctx)
	report := &BarcodeRepairReport{Collisions: []BarcodeCollision{}, Blank: []int{}}

	var batch []*HardwareItem
	result := db.Order("id").FindInBatches(&batch, 200, func(_ *gorm.DB, _ int) error {
		for _, item := range batch {
			report.Scanned++
			stale := item.Barcode
			outcome, err := repairBarcode(db, item)
			if err != nil {
				return err
			}
			switch outcome {
			case barcodeRepairUpdated:
				report.Updated++
			case barcodeRepairCollision:
				collision := BarcodeCollision{HardwareId: item.ID, Barcode: stale, Canonical: utils.NormalizeBarcode(stale)}
				report.Collisions = append(report.Collisions, collision)
				config.LogWarning(logger, "BarcodeRepair", "RepairHardwareBarcodes", "barcode repair skipped: canonical value owned by another item",
					logrus.Fields{"hardware_id": item.ID, "barcode": stale, "canonical": collision.Canonical})
			case barcodeRepairBlank:
				report.Blank = append(report.Blank, item.ID)
			}
		}
		return nil
	})
	if result.Error != nil {
		return nil, result.Error
	}
	return report, nil
}
