package reports

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type ExcelExporter interface {
	GetCellValues() []interface{}
}

type clientRow struct{ *ClientMetrics }

func (r clientRow) GetCellValues() []interface{} {
	c := r.ClientMetrics
	return []interface{}{
		c.Client, c.ClientKey, c.Tickets, c.Open, c.Completed,
		money(c.BillableHours), money(c.Revenue.Time), money(c.Revenue.Hardware), money(c.Revenue.FlatRate),
		money(c.RevenueTotal), money(c.UnsentRevenue),
	}
}

type hardwareRow struct{ *HardwareRevenue }

func (r hardwareRow) GetCellValues() []interface{} {
	return []interface{}{r.Description, r.Quantity, money(r.Revenue)}
}

type missingRateRow string

func (r missingRateRow) GetCellValues() []interface{} {
	return []interface{}{string(r)}
}

type inventoryRow struct{ *InventoryProfitItem }

func (r inventoryRow) GetCellValues() []interface{} {
	return []interface{}{
		r.HardwareId, r.Barcode, r.Description, r.Received, r.Used, r.OnHand,
		money(r.CostTotal), money(r.SaleTotal), money(r.Profit),
	}
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func writeSheet(f *excelize.File, sheetName string, data []ExcelExporter, headings ...string) error {
	if idx, _ := f.GetSheetIndex(sheetName); idx < 0 {
		if _, err := f.NewSheet(sheetName); err != nil {
			return err
		}
	}
	header := make([]interface{}, len(headings))
	for i, h := range headings {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	for i, d := range data {
		values := d.GetCellValues()
		if err := f.SetSheetRow(sheetName, "A"+fmt.Sprint(i+2), &values); err != nil {
			return err
		}
	}
	return nil
}

func writeTotalsSheet(f *excelize.File, sheetName string, t TicketTotals) error {
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Tickets", t.Tickets},
		{"Open tickets", t.Open},
		{"Completed tickets", t.Completed},
		{"Sent tickets", t.Sent},
		{"Unsent tickets", t.Unsent},
		{"Time tickets", t.TimeTickets},
		{"Hardware tickets", t.HardwareTickets},
		{"Flat rate tickets", t.FlatRateTickets},
		{"Hardware units sold", t.HardwareUnitsSold},
		{"Billable hours", money(t.BillableHours)},
		{"Time revenue", money(t.Revenue.Time)},
		{"Hardware revenue", money(t.Revenue.Hardware)},
		{"Flat rate revenue", money(t.Revenue.FlatRate)},
		{"Total revenue", money(t.RevenueTotal)},
		{"Unsent revenue", money(t.UnsentRevenueTotal)},
		{"Average revenue per ticket", money(t.AverageRevenuePerTicket)},
		{"Average hours per time ticket", money(t.AverageHoursPerTimeTicket)},
		{"Clients with activity", t.ClientsWithActivity},
	}
	for i, row := range rows {
		row := row
		if err := f.SetSheetRow(sheetName, "A"+fmt.Sprint(i+1), &row); err != nil {
			return err
		}
	}
	return nil
}

// ExportTicketMetricsXLSX writes metrics as a workbook with Totals, Clients,
// Hardware and Missing Rates sheets.
func ExportTicketMetricsXLSX(metrics *TicketMetrics, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Totals"); err != nil {
		return err
	}
	if err := writeTotalsSheet(f, "Totals", metrics.Totals); err != nil {
		return err
	}

	clients := make([]ExcelExporter, 0, len(metrics.Clients))
	for _, c := range metrics.Clients {
		clients = append(clients, clientRow{c})
	}
	err := writeSheet(f, "Clients", clients,
		"Client", "Client Key", "Tickets", "Open", "Completed", "Billable Hours",
		"Time Revenue", "Hardware Revenue", "Flat Rate Revenue", "Total Revenue", "Unsent Revenue")
	if err != nil {
		return err
	}

	hardware := make([]ExcelExporter, 0, len(metrics.TopHardwareItems))
	for _, h := range metrics.TopHardwareItems {
		hardware = append(hardware, hardwareRow{h})
	}
	if err := writeSheet(f, "Hardware", hardware, "Description", "Quantity", "Revenue"); err != nil {
		return err
	}

	missing := make([]ExcelExporter, 0, len(metrics.ClientsMissingRates))
	for _, name := range metrics.ClientsMissingRates {
		missing = append(missing, missingRateRow(name))
	}
	if err := writeSheet(f, "Missing Rates", missing, "Client"); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

// ExportInventoryProfitXLSX writes the inventory profit report as one sheet.
func ExportInventoryProfitXLSX(report *InventoryProfitResponse, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Inventory"); err != nil {
		return err
	}
	rows := make([]ExcelExporter, 0, len(report.Items))
	for _, item := range report.Items {
		rows = append(rows, inventoryRow{item})
	}
	err := writeSheet(f, "Inventory", rows,
		"Hardware Id", "Barcode", "Description", "Received", "Used", "On Hand", "Cost Total", "Sale Total", "Profit")
	if err != nil {
		return err
	}
	return f.Write(w)
}
