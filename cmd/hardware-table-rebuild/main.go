package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/models"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
)

// Rebuilds a hardware table that still carries ticket-era columns, then runs
// the regular migration and fills blank barcodes with HW-<id>.
func main() {
	lockTTL := flag.Duration("lock-ttl", 15*time.Minute, "How long the maintenance lock is held")
	flag.Parse()

	if err := run(*lockTTL); err != nil {
		if errors.Is(err, config.ErrLockNotObtained) {
			fmt.Fprintln(os.Stderr, "another hardware rebuild is running")
			os.Exit(2)
		}
		config.LogError(config.GetLogger(), "HardwareTableRebuild", "main", "rebuild hardware table", nil, err)
		fmt.Fprintf(os.Stderr, "hardware rebuild failed: %v\n", err)
		os.Exit(1)
	}
}

func run(lockTTL time.Duration) error {
	ctx := utils.WithCorrelationId(context.Background())
	ctx = utils.SetUsernameInContext(ctx, "HardwareTableRebuild")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		return errors.New("database not initialized")
	}

	release, err := config.ObtainMaintenanceLock(ctx, "hardware-table-rebuild", lockTTL)
	if err != nil {
		return fmt.Errorf("obtain lock: %w", err)
	}
	defer release()

	report, err := models.RebuildLegacyHardwareTable(ctx)
	if err != nil {
		return err
	}
	if err := models.AutoMigrateTables(config.GetDB().WithContext(ctx)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if report.Rebuilt {
		fmt.Printf("hardware table rebuilt: copied=%d\n", report.Copied)
	} else {
		fmt.Println("hardware table already current")
	}
	fmt.Printf("blank barcodes backfilled: %d\n", report.Backfilled)
	return nil
}
