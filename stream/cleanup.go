// Package stream provides DynamoDB Streams handlers for the todos table.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/todos/store"
)

// Remover deletes the attachment blob of a todo. *attachment.Issuer implements it.
type Remover interface {
	RemoveAttachment(ctx context.Context, itemID, attachmentURL string) error
}

// Handler processes DynamoDB stream events for attachment cleanup.
type Handler struct {
	remover Remover
	logger  *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(r Remover, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		remover: r,
		logger:  logger,
	}
}

// HandleAttachmentCleanup deletes the attachment blob of every removed todo
// that had one. The table stream must include old images.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleAttachmentCleanup(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != "REMOVE" {
		return nil
	}

	old := record.Change.OldImage
	attachmentURL := getStringAttr(old, store.AttrAttachmentURL)
	if attachmentURL == "" {
		return nil
	}

	todoID := getStringAttr(old, store.AttrTodoID)
	if todoID == "" {
		todoID = getStringAttr(record.Change.Keys, store.AttrTodoID)
	}
	if todoID == "" {
		h.logger.Warn("removed todo without todoId in image", "eventID", record.EventID)
		return nil
	}

	if err := h.remover.RemoveAttachment(ctx, todoID, attachmentURL); err != nil {
		return fmt.Errorf("remove attachment of %s: %w", todoID, err)
	}

	h.logger.Info("removed attachment of deleted todo",
		"userId", getStringAttr(old, store.AttrUserID),
		"todoId", todoID,
		"attachmentUrl", attachmentURL,
	)
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
// Missing and non-string attributes yield "".
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
