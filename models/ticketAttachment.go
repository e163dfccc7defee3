package models

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TicketAttachment is metadata for a file stored under
// ATTACHMENTS_ROOT/<ticket_id>/<storage_name>. File bytes are handled by the
// upload layer.
type TicketAttachment struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
	StorageName string    `json:"storage_name,omitempty"`
}

var AllowedAttachmentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AttachmentPath is where the upload layer keeps the file for a record.
func AttachmentPath(ticketId int, storageName string) string {
	return filepath.Join(config.GetSettings().AttachmentsRoot, strconv.Itoa(ticketId), filepath.Base(storageName))
}

// visible drops the storage name before records leave the package.
func (a TicketAttachment) visible() TicketAttachment {
	a.StorageName = ""
	return a
}

func AddTicketAttachment(ctx context.Context, ticketId int, filename string, contentType string, size int64) (*TicketAttachment, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, utils.NewValidationError("filename", "is required")
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	defaultExt, ok := AllowedAttachmentTypes[contentType]
	if !ok {
		return nil, utils.NewValidationError("content_type", "unsupported attachment type %q", contentType)
	}
	if size < 0 {
		return nil, utils.NewValidationError("size", "must not be negative")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = defaultExt
	}
	id := uuid.New()
	record := TicketAttachment{
		ID:          id.String(),
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		UploadedAt:  time.Now().UTC(),
		StorageName: id.String() + ext,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, err := utils.FetchModelTx[Ticket](tx, "ticket", ticketId)
		if err != nil {
			return err
		}
		ticket.Attachments = append(ticket.Attachments, record)
		return tx.Model(ticket).Update("attachments", ticket.Attachments).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListTicketAttachments returns the ticket's attachments in upload order.
func ListTicketAttachments(ctx context.Context, ticketId int) ([]TicketAttachment, error) {
	ticket, err := GetTicket(ctx, ticketId)
	if err != nil {
		return nil, err
	}
	results := make([]TicketAttachment, 0, len(ticket.Attachments))
	for _, record := range ticket.Attachments {
		results = append(results, record.visible())
	}
	return results, nil
}

// GetTicketAttachment returns the record and the path of its file.
func GetTicketAttachment(ctx context.Context, ticketId int, attachmentId string) (*TicketAttachment, string, error) {
	ticket, err := GetTicket(ctx, ticketId)
	if err != nil {
		return nil, "", err
	}
	for _, record := range ticket.Attachments {
		if record.ID == strings.TrimSpace(attachmentId) {
			path := AttachmentPath(ticket.ID, record.StorageName)
			visible := record.visible()
			return &visible, path, nil
		}
	}
	return nil, "", utils.NewNotFoundError("attachment", attachmentId)
}

// RemoveTicketAttachment drops the record and returns it with its storage
// name so the caller can delete the file.
func RemoveTicketAttachment(ctx context.Context, ticketId int, attachmentId string) (*TicketAttachment, error) {
	var removed *TicketAttachment
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, err := utils.FetchModelTx[Ticket](tx, "ticket", ticketId)
		if err != nil {
			return err
		}
		kept := make([]TicketAttachment, 0, len(ticket.Attachments))
		for _, record := range ticket.Attachments {
			if removed == nil && record.ID == strings.TrimSpace(attachmentId) {
				r := record
				removed = &r
				continue
			}
			kept = append(kept, record)
		}
		if removed == nil {
			return utils.NewNotFoundError("attachment", attachmentId)
		}
		return tx.Model(ticket).Update("attachments", datatypes.JSONSlice[TicketAttachment](kept)).Error
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
