package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/models"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"github.com/sirupsen/logrus"
)

func main() {
	lockTTL := flag.Duration("lock-ttl", 10*time.Minute, "How long the maintenance lock is held")
	migrate := flag.Bool("migrate", true, "Apply additive schema changes before repairing")
	flag.Parse()

	if err := run(*lockTTL, *migrate); err != nil {
		if errors.Is(err, config.ErrLockNotObtained) {
			fmt.Fprintln(os.Stderr, "another barcode repair is running")
			os.Exit(2)
		}
		config.LogError(config.GetLogger(), "BarcodeRepair", "main", "repair barcodes", nil, err)
		fmt.Fprintf(os.Stderr, "barcode repair failed: %v\n", err)
		os.Exit(1)
	}
}

func run(lockTTL time.Duration, migrate bool) error {
	ctx := utils.WithCorrelationId(context.Background())
	ctx = utils.SetUsernameInContext(ctx, "BarcodeRepair")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		return errors.New("database not initialized")
	}
	if migrate {
		if err := models.AutoMigrateTables(config.GetDB().WithContext(ctx)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	release, err := config.ObtainMaintenanceLock(ctx, "barcode-repair", lockTTL)
	if err != nil {
		return fmt.Errorf("obtain lock: %w", err)
	}
	defer release()

	report, err := models.RepairHardwareBarcodes(ctx)
	if err != nil {
		return err
	}

	config.LoggerFromContext(ctx).WithFields(logrus.Fields{
		"scanned":    report.Scanned,
		"updated":    report.Updated,
		"collisions": len(report.Collisions),
		"blank":      len(report.Blank),
	}).Info("barcode repair complete")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
