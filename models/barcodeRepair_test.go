package models_test

import (
	"strconv"
	"testing"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairHardwareBarcodes(t *testing.T) {
	db := openTestDB(t, true)
	ctx := testContext()

	// rows written before normalization existed
	lower := models.HardwareItem{Barcode: "ab-1", Description: "Lowercase"}
	canonical := models.HardwareItem{Barcode: "0123456789012", Description: "Canonical"}
	legacy := models.HardwareItem{Barcode: "123456789012", Description: "Legacy twelve digit"}
	blank := models.HardwareItem{Barcode: "   ", Description: "Blank"}
	for _, item := range []*models.HardwareItem{&lower, &canonical, &legacy, &blank} {
		require.NoError(t, db.Create(item).Error)
	}

	report, err := models.RepairHardwareBarcodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 1, report.Updated)
	require.Len(t, report.Collisions, 1)
	assert.Equal(t, legacy.ID, report.Collisions[0].HardwareId)
	assert.Equal(t, "0123456789012", report.Collisions[0].Canonical)
	assert.Equal(t, []int{blank.ID}, report.Blank)

	var fixed models.HardwareItem
	require.NoError(t, db.First(&fixed, lower.ID).Error)
	assert.Equal(t, "AB-1", fixed.Barcode)

	var stale models.HardwareItem
	require.NoError(t, db.First(&stale, legacy.ID).Error)
	assert.Equal(t, "123456789012", stale.Barcode, "collision leaves the stale value")

	// a second run has nothing left to do
	again, err := models.RepairHardwareBarcodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Updated)
	assert.Len(t, again.Collisions, 1)
}

func TestGetHardwareItem_SelfHealIsOptIn(t *testing.T) {
	db := openTestDB(t, true)
	ctx := testContext()
	item := models.HardwareItem{Barcode: "cd-2", Description: "Lowercase"}
	require.NoError(t, db.Create(&item).Error)

	t.Setenv("BARCODE_SELF_HEAL_ON_READ", "")
	_, err := models.GetHardwareItem(ctx, strconv.Itoa(item.ID))
	require.NoError(t, err)
	var stored models.HardwareItem
	require.NoError(t, db.First(&stored, item.ID).Error)
	assert.Equal(t, "cd-2", stored.Barcode, "reads are side-effect free by default")

	t.Setenv("BARCODE_SELF_HEAL_ON_READ", "true")
	healed, err := models.GetHardwareItem(ctx, strconv.Itoa(item.ID))
	require.NoError(t, err)
	assert.Equal(t, "CD-2", healed.Barcode)
	require.NoError(t, db.First(&stored, item.ID).Error)
	assert.Equal(t, "CD-2", stored.Barcode)
}
