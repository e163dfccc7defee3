package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TimeDetails is the time-math record. It is computed for every ticket but
// only priced for time entries.
type TimeDetails struct {
	ElapsedMinutes int    `gorm:"not null;default:0" json:"elapsed_minutes"`
	Minutes        int    `gorm:"not null;default:0" json:"minutes"`
	RoundedMinutes int    `gorm:"not null;default:0" json:"rounded_minutes"`
	RoundedHours   string `gorm:"size:16;not null;default:0.00" json:"rounded_hours"`
}

// HardwareDetails is the catalog snapshot of a hardware-like ticket.
type HardwareDetails struct {
	HardwareId          *int    `gorm:"index" json:"hardware_id"`
	HardwareBarcode     *string `gorm:"size:64" json:"hardware_barcode"`
	HardwareDescription *string `gorm:"type:text" json:"hardware_description"`
	HardwareSalesPrice  *string `gorm:"size:32" json:"hardware_sales_price"`
	HardwareQuantity    *int    `json:"hardware_quantity"`
}

type FlatRateDetails struct {
	FlatRateAmount   *string `gorm:"size:32" json:"flat_rate_amount"`
	FlatRateQuantity *int    `json:"flat_rate_quantity"`
}

type Ticket struct {
	ID        int     `gorm:"primary_key" json:"id"`
	ClientKey string  `gorm:"size:128;index;not null" json:"client_key"`
	Client    string  `gorm:"size:255;not null" json:"client"`
	StartIso  string  `gorm:"size:40;not null" json:"start_iso"`
	EndIso    *string `gorm:"size:40;index" json:"end_iso"`
	TimeDetails
	EntryType     EntryType `gorm:"size:32;not null;default:time;index" json:"entry_type"`
	Note          *string   `gorm:"type:text" json:"note"`
	Completed     bool      `gorm:"not null;default:false" json:"completed"`
	Sent          bool      `gorm:"not null;default:false" json:"sent"`
	InvoiceNumber *string   `gorm:"size:64" json:"invoice_number"`
	// user-editable, seeded once from CalculatedValue
	InvoicedTotal *string `gorm:"size:32" json:"invoiced_total"`
	// system-derived, recomputed on every write
	CalculatedValue *string `gorm:"size:32" json:"calculated_value"`
	HardwareDetails
	FlatRateDetails
	Attachments   datatypes.JSONSlice[TicketAttachment] `gorm:"column:attachments" json:"-"`
	ProjectId     *int                                  `gorm:"index" json:"project_id"`
	ProjectPosted bool                                  `gorm:"not null;default:false" json:"project_posted"`
	CreatedBy     *string                               `gorm:"size:100" json:"created_by"`
	CreatedAt     time.Time                             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                             `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Ticket) TableName() string {
	return "tickets"
}

// IsOpen reports a ticket still running (no end timestamp).
func (t *Ticket) IsOpen() bool {
	return t.EndIso == nil || strings.TrimSpace(*t.EndIso) == ""
}

// BillableHours is the rounded hours used for time billing, falling back to
// rounded, manual and elapsed minutes for rows without a usable value.
func (t *Ticket) BillableHours() decimal.Decimal {
	if hours, ok := utils.ToDecimal(t.RoundedHours); ok {
		return hours
	}
	minutes := t.RoundedMinutes
	if minutes == 0 {
		minutes = t.Minutes
	}
	if minutes == 0 {
		minutes = t.ElapsedMinutes
	}
	hours, _ := utils.ToDecimal(utils.HoursString(minutes))
	return hours
}

type NewTicket struct {
	ClientKey     string    `json:"client_key" validate:"required"`
	StartIso      string    `json:"start_iso"`
	EndIso        *string   `json:"end_iso"`
	Note          *string   `json:"note"`
	EntryType     EntryType `json:"entry_type"`
	Completed     bool      `json:"completed"`
	Sent          bool      `json:"sent"`
	InvoiceNumber *string   `json:"invoice_number"`
	InvoicedTotal *string   `json:"invoiced_total"`
	Minutes       *int      `json:"minutes"`

	HardwareId          *int    `json:"hardware_id"`
	HardwareBarcode     *string `json:"hardware_barcode"`
	HardwareDescription *string `json:"hardware_description"`
	HardwareSalesPrice  *string `json:"hardware_sales_price"`
	HardwareQuantity    *int    `json:"hardware_quantity"`

	FlatRateAmount   *string `json:"flat_rate_amount"`
	FlatRateQuantity *int    `json:"flat_rate_quantity"`

	ProjectId     *int `json:"project_id"`
	ProjectPosted bool `json:"project_posted"`
}

// TicketUpdate lists the fields a caller may change. Nil means untouched.
// An empty string clears optional text; a zero id clears a link.
type TicketUpdate struct {
	ClientKey     *string    `json:"client_key"`
	StartIso      *string    `json:"start_iso"`
	EndIso        *string    `json:"end_iso"`
	Note          *string    `json:"note"`
	EntryType     *EntryType `json:"entry_type"`
	Completed     *bool      `json:"completed"`
	Sent          *bool      `json:"sent"`
	InvoiceNumber *string    `json:"invoice_number"`
	InvoicedTotal *string    `json:"invoiced_total"`
	Minutes       *int       `json:"minutes"`

	HardwareId          *int    `json:"hardware_id"`
	HardwareBarcode     *string `json:"hardware_barcode"`
	HardwareDescription *string `json:"hardware_description"`
	HardwareSalesPrice  *string `json:"hardware_sales_price"`
	HardwareQuantity    *int    `json:"hardware_quantity"`

	FlatRateAmount   *string `json:"flat_rate_amount"`
	FlatRateQuantity *int    `json:"flat_rate_quantity"`

	ProjectId     *int  `json:"project_id"`
	ProjectPosted *bool `json:"project_posted"`
}

func (input *NewTicket) toUpdate() *TicketUpdate {
	entryType := input.EntryType
	clientKey := input.ClientKey
	startIso := input.StartIso
	completed := input.Completed
	sent := input.Sent
	posted := input.ProjectPosted
	return &TicketUpdate{
		ClientKey:           &clientKey,
		StartIso:            &startIso,
		EndIso:              input.EndIso,
		Note:                input.Note,
		EntryType:           &entryType,
		Completed:           &completed,
		Sent:                &sent,
		InvoiceNumber:       input.InvoiceNumber,
		InvoicedTotal:       input.InvoicedTotal,
		Minutes:             input.Minutes,
		HardwareId:          input.HardwareId,
		HardwareBarcode:     input.HardwareBarcode,
		HardwareDescription: input.HardwareDescription,
		HardwareSalesPrice:  input.HardwareSalesPrice,
		HardwareQuantity:    input.HardwareQuantity,
		FlatRateAmount:      input.FlatRateAmount,
		FlatRateQuantity:    input.FlatRateQuantity,
		ProjectId:           input.ProjectId,
		ProjectPosted:       &posted,
	}
}

// touchesHardwareLink reports whether the update names a different catalog
// item, which re-resolves the whole snapshot.
func (input *TicketUpdate) touchesHardwareLink() bool {
	return input.HardwareId != nil || input.HardwareBarcode != nil
}

// NewTicketUpdateFromMap converts a loose payload into a TicketUpdate. Keys
// outside the known set are ignored; values of the wrong shape are rejected.
func NewTicketUpdateFromMap(payload map[string]any) (*TicketUpdate, error) {
	update := &TicketUpdate{}
	var err error
	for key, value := range payload {
		switch key {
		case "client_key":
			update.ClientKey = looseString(value)
		case "start_iso":
			update.StartIso = looseString(value)
		case "end_iso":
			update.EndIso = looseStringOrClear(value)
		case "note":
			update.Note = looseStringOrClear(value)
		case "entry_type":
			raw := looseString(value)
			if raw != nil {
				entryType, parseErr := ParseEntryType(*raw)
				if parseErr != nil {
					return nil, parseErr
				}
				update.EntryType = &entryType
			}
		case "completed":
			update.Completed, err = looseBool(key, value)
		case "sent":
			update.Sent, err = looseBool(key, value)
		case "invoice_number":
			update.InvoiceNumber = looseStringOrClear(value)
		case "invoiced_total":
			update.InvoicedTotal = looseStringOrClear(value)
		case "minutes":
			update.Minutes, err = looseInt(key, value)
		case "hardware_id":
			update.HardwareId, err = looseIntOrClear(key, value)
		case "hardware_barcode":
			update.HardwareBarcode = looseStringOrClear(value)
		case "hardware_description":
			update.HardwareDescription = looseStringOrClear(value)
		case "hardware_sales_price":
			update.HardwareSalesPrice = looseStringOrClear(value)
		case "hardware_quantity":
			update.HardwareQuantity, err = looseInt(key, value)
		case "flat_rate_amount":
			update.FlatRateAmount = looseStringOrClear(value)
		case "flat_rate_quantity":
			update.FlatRateQuantity, err = looseInt(key, value)
		case "project_id":
			update.ProjectId, err = looseIntOrClear(key, value)
		case "project_posted":
			update.ProjectPosted, err = looseBool(key, value)
		}
		if err != nil {
			return nil, err
		}
	}
	return update, nil
}

func looseInt(field string, value any) (*int, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case int:
		return &v, nil
	case int64:
		i := int(v)
		return &i, nil
	case float64:
		if v != float64(int(v)) {
			return nil, utils.NewValidationError(field, "must be a whole number")
		}
		i := int(v)
		return &i, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return nil, utils.NewValidationError(field, "must be a whole number")
		}
		return &i, nil
	}
	return nil, utils.NewValidationError(field, "must be a whole number")
}

func looseIntOrClear(field string, value any) (*int, error) {
	if value == nil {
		return utils.IntPtr(0), nil
	}
	return looseInt(field, value)
}

func looseBool(field string, value any) (*bool, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		return &v, nil
	case float64:
		b := v != 0
		return &b, nil
	case int:
		b := v != 0
		return &b, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, utils.NewValidationError(field, "must be true or false")
		}
		return &b, nil
	}
	return nil, utils.NewValidationError(field, "must be true or false")
}

/* CRUD */

func CreateTicket(ctx context.Context, clients ClientDirectory, input *NewTicket) (*Ticket, error) {
	var ticket *Ticket
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ticket, err = createTicketTx(ctx, tx, clients, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	clearRedis(*ticket, "CreateTicket")
	return ticket, nil
}

func createTicketTx(ctx context.Context, tx *gorm.DB, clients ClientDirectory, input *NewTicket) (*Ticket, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	ticket := &Ticket{}
	if username, ok := utils.GetUsernameFromContext(ctx); ok && username != "" {
		ticket.CreatedBy = &username
	}
	if strings.TrimSpace(input.StartIso) == "" {
		input.StartIso = time.Now().In(config.GetSettings().Location()).Format(time.RFC3339)
	}
	engine := newBillingEngine(tx, clients)
	hw, err := engine.apply(ticket, input.toUpdate(), true)
	if err != nil {
		return nil, err
	}
	if err := tx.Create(ticket).Error; err != nil {
		return nil, err
	}
	if err := engine.syncInventory(ticket, hw); err != nil {
		return nil, err
	}
	return ticket, nil
}

func UpdateTicket(ctx context.Context, clients ClientDirectory, id int, input *TicketUpdate) (*Ticket, error) {
	var ticket *Ticket
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ticket, err = updateTicketTx(tx, clients, id, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	clearRedis(*ticket, "UpdateTicket")
	return ticket, nil
}

func updateTicketTx(tx *gorm.DB, clients ClientDirectory, id int, input *TicketUpdate) (*Ticket, error) {
	ticket, err := utils.FetchModelTx[Ticket](tx, "ticket", id)
	if err != nil {
		return nil, err
	}
	engine := newBillingEngine(tx, clients)
	hw, err := engine.apply(ticket, input, false)
	if err != nil {
		return nil, err
	}
	if err := tx.Save(ticket).Error; err != nil {
		return nil, err
	}
	if err := engine.syncInventory(ticket, hw); err != nil {
		return nil, err
	}
	return ticket, nil
}

// DeleteTicket removes the ticket's ledger event first, then the ticket.
func DeleteTicket(ctx context.Context, id int) (*Ticket, error) {
	var ticket *Ticket
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ticket, err = deleteTicketTx(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	clearRedis(*ticket, "DeleteTicket")
	return ticket, nil
}

func deleteTicketTx(tx *gorm.DB, id int) (*Ticket, error) {
	ticket, err := utils.FetchModelTx[Ticket](tx, "ticket", id)
	if err != nil {
		return nil, err
	}
	if err := DeleteTicketEventTx(tx, ticket.ID); err != nil {
		return nil, err
	}
	if err := tx.Delete(ticket).Error; err != nil {
		return nil, err
	}
	return ticket, nil
}

func GetTicket(ctx context.Context, id int) (*Ticket, error) {
	return utils.FetchModel[Ticket](ctx, "ticket", id)
}

// postedScope hides tickets staged on a project that is not finalized yet.
func postedScope(db *gorm.DB) *gorm.DB {
	return db.Where("project_id IS NULL OR project_posted = ?", true)
}

// ListTickets returns visible tickets, newest first.
func ListTickets(ctx context.Context, limit int, offset int) ([]*Ticket, error) {
	db := config.GetDB()
	var results []*Ticket
	err := db.WithContext(ctx).
		Scopes(postedScope, paginate(limit, offset)).
		Order("created_at DESC").Order("id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListActiveTickets returns open time tickets, optionally for one client.
// Hardware-like and flat-rate entries never appear here.
func ListActiveTickets(ctx context.Context, clientKey string, limit int, offset int) ([]*Ticket, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Scopes(postedScope).
		Where("end_iso IS NULL OR end_iso = ''").
		Where("entry_type = ?", EntryTypeTime)
	if key := strings.TrimSpace(clientKey); key != "" {
		dbCtx = dbCtx.Where("client_key = ?", key)
	}
	var results []*Ticket
	err := dbCtx.Scopes(paginate(limit, offset)).
		Order("created_at DESC").Order("id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ListProjectTickets(ctx context.Context, projectId int, includePosted bool) ([]*Ticket, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("project_id = ?", projectId)
	if !includePosted {
		dbCtx = dbCtx.Where("project_posted = ?", false)
	}
	var results []*Ticket
	if err := dbCtx.Order("start_iso").Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListAllTickets streams every ticket in id order to fn in batches. Used by
// reports, which fold over the whole table.
func ListAllTickets(ctx context.Context, fn func(batch []*Ticket) error) error {
	db := config.GetDB()
	var batch []*Ticket
	result := db.WithContext(ctx).Order("id").FindInBatches(&batch, 500, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	if result.Error != nil {
		return fmt.Errorf("list tickets: %w", result.Error)
	}
	return nil
}
