package reports

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/models"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func reportClients() models.ClientTable {
	return models.ClientTable{
		"acme":    {Key: "acme", Name: "Acme Corp", SupportRate: utils.NullDecimal(decimal.NewFromInt(120), true)},
		"globex":  {Key: "globex", Name: "Globex", Contract: true},
		"initech": {Key: "initech", Name: "Initech"},
	}
}

func sampleTickets() []*models.Ticket {
	timeTicket := &models.Ticket{ID: 1, ClientKey: "acme", Client: "Acme Corp", EntryType: models.EntryTypeTime, Completed: true}
	timeTicket.RoundedMinutes = 75

	switchTicket := &models.Ticket{ID: 2, ClientKey: "acme", Client: "Acme Corp", EntryType: models.EntryTypeHardware, Sent: true}
	switchTicket.HardwareDescription = utils.StringPtr("Switch")
	switchTicket.HardwareSalesPrice = utils.StringPtr("19.99")
	switchTicket.HardwareQuantity = utils.IntPtr(2)

	unrated := &models.Ticket{ID: 3, ClientKey: "initech", Client: "Initech", EntryType: models.EntryTypeTime}
	unrated.ElapsedMinutes = 30

	deployment := &models.Ticket{ID: 4, ClientKey: "globex", Client: "Globex", EntryType: models.EntryTypeDeploymentFlatRate}
	deployment.FlatRateAmount = utils.StringPtr("750.00")
	deployment.FlatRateQuantity = utils.IntPtr(3)

	accessory := &models.Ticket{ID: 5, ClientKey: "acme", Client: "Acme Corp", EntryType: models.EntryTypeAccessory}
	accessory.HardwareSalesPrice = utils.StringPtr("5")

	return []*models.Ticket{timeTicket, switchTicket, unrated, deployment, accessory}
}

func decimalEqual(t *testing.T, expected string, actual decimal.Decimal, name string) {
	t.Helper()
	assert.True(t, actual.Equal(decimal.RequireFromString(expected)), "%s: expected %s, got %s", name, expected, actual)
}

func TestFoldTicketMetrics(t *testing.T) {
	metrics := FoldTicketMetrics(context.Background(), sampleTickets(), reportClients())
	totals := metrics.Totals

	assert.Equal(t, 5, totals.Tickets)
	assert.Equal(t, 4, totals.Open)
	assert.Equal(t, 1, totals.Completed)
	assert.Equal(t, 1, totals.Sent)
	assert.Equal(t, 4, totals.Unsent)
	assert.Equal(t, 2, totals.TimeTickets)
	assert.Equal(t, 2, totals.HardwareTickets)
	assert.Equal(t, 1, totals.FlatRateTickets)
	assert.Equal(t, 1, totals.ByType[models.EntryTypeAccessory])
	assert.Equal(t, 3, totals.HardwareUnitsSold)
	assert.Equal(t, 105, totals.BillableMinutes)
	decimalEqual(t, "1.75", totals.BillableHours, "billable hours")

	decimalEqual(t, "150", totals.Revenue.Time, "time revenue")
	decimalEqual(t, "44.98", totals.Revenue.Hardware, "hardware revenue")
	decimalEqual(t, "2250", totals.Revenue.FlatRate, "flat rate revenue")
	decimalEqual(t, "2444.98", totals.RevenueTotal, "total revenue")
	decimalEqual(t, "2405", totals.UnsentRevenueTotal, "unsent revenue")
	decimalEqual(t, "489", totals.AverageRevenuePerTicket, "average revenue")
	decimalEqual(t, "0.88", totals.AverageHoursPerTimeTicket, "average hours")
	assert.Equal(t, 3, totals.ClientsWithActivity)

	require.Len(t, metrics.Clients, 3)
	assert.Equal(t, "Globex", metrics.Clients[0].Client)
	assert.Equal(t, "Acme Corp", metrics.Clients[1].Client)
	assert.Equal(t, "Initech", metrics.Clients[2].Client)
	acme := metrics.Clients[1]
	assert.Equal(t, 3, acme.Tickets)
	decimalEqual(t, "194.98", acme.RevenueTotal, "acme total")
	decimalEqual(t, "155", acme.UnsentRevenue, "acme unsent")
	decimalEqual(t, "1.25", acme.BillableHours, "acme hours")

	require.Len(t, metrics.TopHardwareItems, 2)
	assert.Equal(t, "Switch", metrics.TopHardwareItems[0].Description)
	assert.Equal(t, 2, metrics.TopHardwareItems[0].Quantity)
	assert.Equal(t, "Hardware item", metrics.TopHardwareItems[1].Description)

	assert.Equal(t, []string{"Initech"}, metrics.ClientsMissingRates)
}

func TestFoldTicketMetrics_TopHardwareLimit(t *testing.T) {
	var tickets []*models.Ticket
	for i := 0; i < 12; i++ {
		ticket := &models.Ticket{ID: i + 1, ClientKey: "acme", Client: "Acme Corp", EntryType: models.EntryTypeComponent}
		ticket.HardwareDescription = utils.StringPtr(string(rune('A' + i)))
		ticket.HardwareSalesPrice = utils.StringPtr(decimal.NewFromInt(int64(i + 1)).String())
		tickets = append(tickets, ticket)
	}
	metrics := FoldTicketMetrics(context.Background(), tickets, reportClients())
	require.Len(t, metrics.TopHardwareItems, 10)
	assert.Equal(t, "L", metrics.TopHardwareItems[0].Description)
	assert.Equal(t, "C", metrics.TopHardwareItems[9].Description)
}

func TestFoldTicketMetrics_Empty(t *testing.T) {
	metrics := FoldTicketMetrics(context.Background(), nil, nil)
	assert.Equal(t, 0, metrics.Totals.Tickets)
	assert.True(t, metrics.Totals.AverageRevenuePerTicket.IsZero())
	assert.Empty(t, metrics.Clients)
	assert.Empty(t, metrics.ClientsMissingRates)
}

func TestExportTicketMetricsXLSX(t *testing.T) {
	metrics := FoldTicketMetrics(context.Background(), sampleTickets(), reportClients())

	var buf bytes.Buffer
	require.NoError(t, ExportTicketMetricsXLSX(metrics, &buf))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Totals", "Clients", "Hardware", "Missing Rates"}, f.GetSheetList())
	first, err := f.GetCellValue("Clients", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Globex", first)
	missing, err := f.GetCellValue("Missing Rates", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Initech", missing)
	label, err := f.GetCellValue("Totals", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Tickets", label)
}

func openReportDB(t *testing.T) {
	t.Helper()
	db, err := config.OpenSQLite(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	config.SetDB(db)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, models.AutoMigrateTables(db))
}

func TestCalculateTicketMetrics(t *testing.T) {
	openReportDB(t)
	ctx := context.Background()
	clients := reportClients()

	_, err := models.CreateTicket(ctx, clients, &models.NewTicket{
		ClientKey: "acme",
		StartIso:  "2024-05-01T09:00:00Z",
		EndIso:    utils.StringPtr("2024-05-01T09:50:00Z"),
	})
	require.NoError(t, err)
	_, err = models.CreateTicket(ctx, clients, &models.NewTicket{
		ClientKey:      "globex",
		StartIso:       "2024-05-01T09:00:00Z",
		EntryType:      models.EntryTypeDeploymentFlatRate,
		FlatRateAmount: utils.StringPtr("300"),
		Sent:           true,
	})
	require.NoError(t, err)

	metrics, err := CalculateTicketMetrics(ctx, clients)
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.Totals.Tickets)
	assert.Equal(t, 60, metrics.Totals.BillableMinutes)
	decimalEqual(t, "120", metrics.Totals.Revenue.Time, "time revenue")
	decimalEqual(t, "300", metrics.Totals.Revenue.FlatRate, "flat revenue")
	decimalEqual(t, "120", metrics.Totals.UnsentRevenueTotal, "unsent")
}

func TestInventoryProfitReport(t *testing.T) {
	openReportDB(t)
	ctx := context.Background()

	item, err := models.CreateHardwareItem(ctx, &models.NewHardwareItem{Barcode: "SW-9", Description: "Switch"})
	require.NoError(t, err)
	_, err = models.RecordInventoryEvent(ctx, &models.NewInventoryEvent{
		HardwareId: item.ID, Change: 4, ActualCost: utils.NullDecimal(decimal.NewFromInt(100), true),
	})
	require.NoError(t, err)
	_, err = models.RecordInventoryEvent(ctx, &models.NewInventoryEvent{
		HardwareId: item.ID, Change: -1,
		ActualCost: utils.NullDecimal(decimal.NewFromInt(25), true),
		SalePrice:  utils.NullDecimal(decimal.NewFromInt(40), true),
	})
	require.NoError(t, err)

	report, err := InventoryProfitReport(ctx)
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	row := report.Items[0]
	assert.Equal(t, "SW-9", row.Barcode)
	assert.Equal(t, 4, row.Received)
	assert.Equal(t, 1, row.Used)
	assert.Equal(t, 3, row.OnHand)
	decimalEqual(t, "125", row.CostTotal, "cost total")
	decimalEqual(t, "40", row.SaleTotal, "sale total")
	decimalEqual(t, "15", row.Profit, "profit")
	decimalEqual(t, "15", report.Profit, "report profit")

	var buf bytes.Buffer
	require.NoError(t, ExportInventoryProfitXLSX(report, &buf))
	assert.NotZero(t, buf.Len())
}
