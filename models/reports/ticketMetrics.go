package reports

import (
	"context"
	"sort"
	"strings"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/models"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("ticketbooks/reports")

var sixty = decimal.NewFromInt(60)

const topHardwareLimit = 10

type RevenueByType struct {
	Time     decimal.Decimal `json:"time"`
	Hardware decimal.Decimal `json:"hardware"`
	FlatRate decimal.Decimal `json:"flat_rate"`
}

func (r *RevenueByType) add(mode models.BillingMode, value decimal.Decimal) {
	switch mode {
	case models.BillingModeHardware:
		r.Hardware = r.Hardware.Add(value)
	case models.BillingModeFlatRate:
		r.FlatRate = r.FlatRate.Add(value)
	default:
		r.Time = r.Time.Add(value)
	}
}

func (r RevenueByType) Total() decimal.Decimal {
	return r.Time.Add(r.Hardware).Add(r.FlatRate)
}

func (r RevenueByType) rounded() RevenueByType {
	return RevenueByType{
		Time:     r.Time.Round(2),
		Hardware: r.Hardware.Round(2),
		FlatRate: r.FlatRate.Round(2),
	}
}

type TicketTotals struct {
	Tickets                   int                      `json:"tickets_total"`
	Open                      int                      `json:"tickets_open"`
	Completed                 int                      `json:"tickets_completed"`
	Sent                      int                      `json:"tickets_sent"`
	Unsent                    int                      `json:"unsent_ticket_count"`
	ByType                    map[models.EntryType]int `json:"tickets_by_type"`
	TimeTickets               int                      `json:"time_ticket_count"`
	HardwareTickets           int                      `json:"hardware_ticket_count"`
	FlatRateTickets           int                      `json:"flat_rate_ticket_count"`
	HardwareUnitsSold         int                      `json:"hardware_units_sold"`
	BillableMinutes           int                      `json:"billable_minutes"`
	BillableHours             decimal.Decimal          `json:"billable_hours"`
	Revenue                   RevenueByType            `json:"revenue"`
	RevenueTotal              decimal.Decimal          `json:"revenue_total"`
	UnsentRevenue             RevenueByType            `json:"unsent_revenue_by_type"`
	UnsentRevenueTotal        decimal.Decimal          `json:"unsent_revenue"`
	AverageRevenuePerTicket   decimal.Decimal          `json:"average_revenue_per_ticket"`
	AverageHoursPerTimeTicket decimal.Decimal          `json:"average_hours_per_time_ticket"`
	ClientsWithActivity       int                      `json:"clients_with_activity"`
}

type ClientMetrics struct {
	ClientKey       string                   `json:"client_key"`
	Client          string                   `json:"client"`
	Tickets         int                      `json:"total"`
	Open            int                      `json:"open"`
	Completed       int                      `json:"completed"`
	ByType          map[models.EntryType]int `json:"by_type"`
	BillableMinutes int                      `json:"billable_minutes"`
	BillableHours   decimal.Decimal          `json:"billable_hours"`
	Revenue         RevenueByType            `json:"revenue"`
	RevenueTotal    decimal.Decimal          `json:"total_revenue"`
	UnsentRevenue   decimal.Decimal          `json:"unsent_revenue"`
}

type HardwareRevenue struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type TicketMetrics struct {
	Totals              TicketTotals       `json:"totals"`
	Clients             []*ClientMetrics   `json:"clients"`
	TopHardwareItems    []*HardwareRevenue `json:"top_hardware_items"`
	ClientsMissingRates []string           `json:"clients_missing_rates"`
}

// ticketMinutes is the billable minute count: rounded, then manual, then
// elapsed minutes.
func ticketMinutes(t *models.Ticket) int {
	switch {
	case t.RoundedMinutes > 0:
		return t.RoundedMinutes
	case t.Minutes > 0:
		return t.Minutes
	default:
		return t.ElapsedMinutes
	}
}

func clientName(t *models.Ticket, clients models.ClientDirectory) string {
	if name := strings.TrimSpace(t.Client); name != "" {
		return name
	}
	if clients != nil {
		if name, ok := clients.ResolveName(t.ClientKey); ok && name != "" {
			return name
		}
	}
	if t.ClientKey != "" {
		return t.ClientKey
	}
	return "Unknown"
}

type metricsFolder struct {
	clients     models.ClientDirectory
	metrics     *TicketMetrics
	byClient    map[string]*ClientMetrics
	hardware    map[string]*HardwareRevenue
	missingRate map[string]bool
}

func newMetricsFolder(clients models.ClientDirectory) *metricsFolder {
	if clients == nil {
		clients = models.ClientTable{}
	}
	return &metricsFolder{
		clients: clients,
		metrics: &TicketMetrics{
			Totals: TicketTotals{ByType: map[models.EntryType]int{}},
		},
		byClient:    map[string]*ClientMetrics{},
		hardware:    map[string]*HardwareRevenue{},
		missingRate: map[string]bool{},
	}
}

func (f *metricsFolder) add(t *models.Ticket) {
	totals := &f.metrics.Totals
	name := clientName(t, f.clients)
	key := t.ClientKey
	if key == "" {
		key = name
	}
	client, ok := f.byClient[key]
	if !ok {
		client = &ClientMetrics{ClientKey: t.ClientKey, Client: name, ByType: map[models.EntryType]int{}}
		f.byClient[key] = client
	}

	entryType := t.EntryType
	if entryType == "" {
		entryType = models.EntryTypeTime
	}
	totals.Tickets++
	client.Tickets++
	totals.ByType[entryType]++
	client.ByType[entryType]++
	if t.Completed {
		totals.Completed++
		client.Completed++
	} else {
		totals.Open++
		client.Open++
	}
	if t.Sent {
		totals.Sent++
	} else {
		totals.Unsent++
	}

	mode := entryType.Mode()
	revenue := decimal.Zero
	switch mode {
	case models.BillingModeHardware:
		totals.HardwareTickets++
		quantity := 1
		if t.HardwareQuantity != nil && *t.HardwareQuantity > 0 {
			quantity = *t.HardwareQuantity
		}
		if price, ok := models.TicketValue(t, nil); ok {
			revenue = price
		}
		totals.HardwareUnitsSold += quantity
		description := strings.TrimSpace(utils.DerefString(t.HardwareDescription))
		if description == "" {
			description = "Hardware item"
		}
		item, ok := f.hardware[description]
		if !ok {
			item = &HardwareRevenue{Description: description}
			f.hardware[description] = item
		}
		item.Quantity += quantity
		item.Revenue = item.Revenue.Add(revenue)
	case models.BillingModeFlatRate:
		totals.FlatRateTickets++
		if amount, ok := models.TicketValue(t, nil); ok {
			revenue = amount
		}
	case models.BillingModeTime:
		totals.TimeTickets++
		minutes := ticketMinutes(t)
		totals.BillableMinutes += minutes
		client.BillableMinutes += minutes
		entry, _ := f.clients.GetEntry(t.ClientKey)
		if entry.HasSupportRate() {
			revenue = decimal.NewFromInt(int64(minutes)).Div(sixty).Mul(entry.SupportRate.Decimal)
		} else {
			f.missingRate[name] = true
		}
	}

	totals.Revenue.add(mode, revenue)
	client.Revenue.add(mode, revenue)
	if !t.Sent {
		totals.UnsentRevenue.add(mode, revenue)
		client.UnsentRevenue = client.UnsentRevenue.Add(revenue)
	}
}

func hoursFromMinutes(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(sixty).Round(2)
}

func (f *metricsFolder) finish(ctx context.Context) *TicketMetrics {
	m := f.metrics
	totals := &m.Totals

	revenueTotal := totals.Revenue.Total()
	totals.RevenueTotal = revenueTotal.Round(2)
	totals.UnsentRevenueTotal = totals.UnsentRevenue.Total().Round(2)
	totals.Revenue = totals.Revenue.rounded()
	totals.UnsentRevenue = totals.UnsentRevenue.rounded()
	totals.BillableHours = hoursFromMinutes(totals.BillableMinutes)
	totals.AverageRevenuePerTicket = decimal.Zero.Round(2)
	if totals.Tickets > 0 {
		totals.AverageRevenuePerTicket = revenueTotal.Div(decimal.NewFromInt(int64(totals.Tickets))).Round(2)
	}
	totals.AverageHoursPerTimeTicket = decimal.Zero
	if totals.TimeTickets > 0 {
		totals.AverageHoursPerTimeTicket = decimal.NewFromInt(int64(totals.BillableMinutes)).
			Div(decimal.NewFromInt(int64(totals.TimeTickets))).Div(sixty).Round(2)
	}
	totals.ClientsWithActivity = len(f.byClient)

	m.Clients = make([]*ClientMetrics, 0, len(f.byClient))
	for _, client := range f.byClient {
		client.RevenueTotal = client.Revenue.Total().Round(2)
		client.Revenue = client.Revenue.rounded()
		client.UnsentRevenue = client.UnsentRevenue.Round(2)
		client.BillableHours = hoursFromMinutes(client.BillableMinutes)
		m.Clients = append(m.Clients, client)
	}
	sort.SliceStable(m.Clients, func(i, j int) bool {
		if !m.Clients[i].RevenueTotal.Equal(m.Clients[j].RevenueTotal) {
			return m.Clients[i].RevenueTotal.GreaterThan(m.Clients[j].RevenueTotal)
		}
		return m.Clients[i].Client < m.Clients[j].Client
	})

	m.TopHardwareItems = make([]*HardwareRevenue, 0, len(f.hardware))
	for _, item := range f.hardware {
		item.Revenue = item.Revenue.Round(2)
		m.TopHardwareItems = append(m.TopHardwareItems, item)
	}
	sort.SliceStable(m.TopHardwareItems, func(i, j int) bool {
		if !m.TopHardwareItems[i].Revenue.Equal(m.TopHardwareItems[j].Revenue) {
			return m.TopHardwareItems[i].Revenue.GreaterThan(m.TopHardwareItems[j].Revenue)
		}
		return m.TopHardwareItems[i].Description < m.TopHardwareItems[j].Description
	})
	if len(m.TopHardwareItems) > topHardwareLimit {
		m.TopHardwareItems = m.TopHardwareItems[:topHardwareLimit]
	}

	m.ClientsMissingRates = make([]string, 0, len(f.missingRate))
	for name := range f.missingRate {
		m.ClientsMissingRates = append(m.ClientsMissingRates, name)
	}
	sort.Strings(m.ClientsMissingRates)
	if len(m.ClientsMissingRates) > 0 {
		config.LogWarning(config.LoggerFromContext(ctx), "Reports", "CalculateTicketMetrics",
			"time entries for clients without a support rate", logrus.Fields{"clients": m.ClientsMissingRates})
	}
	return m
}

// FoldTicketMetrics aggregates an in-memory ticket list.
func FoldTicketMetrics(ctx context.Context, tickets []*models.Ticket, clients models.ClientDirectory) *TicketMetrics {
	folder := newMetricsFolder(clients)
	for _, t := range tickets {
		folder.add(t)
	}
	return folder.finish(ctx)
}

// CalculateTicketMetrics folds every ticket in one pass. Money is summed as
// exact decimals and rounded only in the result.
func CalculateTicketMetrics(ctx context.Context, clients models.ClientDirectory) (*TicketMetrics, error) {
	ctx, span := tracer.Start(ctx, "CalculateTicketMetrics")
	defer span.End()

	folder := newMetricsFolder(clients)
	err := models.ListAllTickets(ctx, func(batch []*models.Ticket) error {
		for _, t := range batch {
			folder.add(t)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		config.LogError(config.GetLogger(), "Reports", "CalculateTicketMetrics", "list tickets", nil, err)
		return nil, err
	}
	metrics := folder.finish(ctx)
	span.SetAttributes(
		attribute.Int("tickets", metrics.Totals.Tickets),
		attribute.Int("clients", metrics.Totals.ClientsWithActivity),
	)
	return metrics, nil
}
