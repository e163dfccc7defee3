package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/models"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/models/reports"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
)

func main() {
	report := flag.String("report", "tickets", "Report to produce: tickets or inventory")
	format := flag.String("format", "json", "Output format: json or xlsx")
	output := flag.String("out", "", "Output file (default stdout)")
	clientTable := flag.String("client-table", "", "Client table path (default CLIENT_TABLE_PATH)")
	flag.Parse()

	if err := run(*report, *format, *output, *clientTable); err != nil {
		config.LogError(config.GetLogger(), "TicketReport", "main", *report, nil, err)
		fmt.Fprintf(os.Stderr, "report failed: %v\n", err)
		os.Exit(1)
	}
}

func run(report string, format string, output string, clientTable string) (err error) {
	ctx := utils.WithCorrelationId(context.Background())

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		return errors.New("database not initialized")
	}

	var w io.Writer = os.Stdout
	if strings.TrimSpace(output) != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close output: %w", cerr)
			}
		}()
		w = f
	}

	switch strings.ToLower(strings.TrimSpace(report)) {
	case "tickets":
		return writeTicketReport(ctx, w, format, clientTable)
	case "inventory":
		return writeInventoryReport(ctx, w, format)
	default:
		return fmt.Errorf("unknown report %q", report)
	}
}

func writeTicketReport(ctx context.Context, w io.Writer, format string, clientTable string) error {
	path := strings.TrimSpace(clientTable)
	if path == "" {
		path = config.GetSettings().ClientTablePath
	}
	clients, err := models.CachedClientTable(path)
	if err != nil {
		return err
	}
	metrics, err := reports.CachedTicketMetrics(ctx, clients)
	if err != nil {
		return err
	}
	if format == "xlsx" {
		return reports.ExportTicketMetricsXLSX(metrics, w)
	}
	return writeJSON(w, metrics)
}

func writeInventoryReport(ctx context.Context, w io.Writer, format string) error {
	report, err := reports.InventoryProfitReport(ctx)
	if err != nil {
		return err
	}
	if format == "xlsx" {
		return reports.ExportInventoryProfitXLSX(report, w)
	}
	return writeJSON(w, report)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
