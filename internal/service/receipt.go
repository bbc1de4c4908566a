package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vbonduro/restockr/internal/domain"
	"github.com/vbonduro/restockr/internal/receiptstore"
)

var receiptTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type ReceiptOutcome struct {
	StorageKey string                  `json:"storageKey,omitempty"`
	Lines      []domain.PurchaseUpdate `json:"lines"`
	Update     *UpdateOutcome          `json:"update,omitempty"`
	// Degraded is set when extraction failed; nothing was written.
	Degraded bool `json:"degraded"`
}

// ImportReceipt archives the image, extracts purchased lines with the model
// and applies them as receipt purchases.
func (s *AssistantService) ImportReceipt(ctx context.Context, userID string, image []byte, mimeType string) (*ReceiptOutcome, error) {
	if !receiptTypes[mimeType] || len(image) == 0 {
		return nil, fmt.Errorf("%w: unsupported receipt image type %q", ErrInvalidInput, mimeType)
	}

	unlock := s.lockUser(userID)
	defer unlock()

	s.logger.Info("receipt import started", "user_id", userID, "mime_type", mimeType, "bytes", len(image))
	outcome := &ReceiptOutcome{Lines: []domain.PurchaseUpdate{}}

	if s.receipts != nil {
		key, err := s.receipts.Save(ctx, userID, mimeType, bytes.NewReader(image))
		if err != nil {
			s.logger.Error("failed to archive receipt", "user_id", userID, "error", err)
		} else {
			outcome.StorageKey = key
			s.logger.Debug("receipt archived", "user_id", userID, "storage_key", key)
		}
	}

	lines, err := s.predictor.ExtractReceipt(ctx, bytes.NewReader(image), mimeType)
	if err != nil {
		s.logger.Error("receipt extraction failed", "user_id", userID, "error", err)
		outcome.Degraded = true
		return outcome, nil
	}
	s.logger.Info("receipt extraction complete", "user_id", userID, "lines", len(lines))

	for _, line := range lines {
		outcome.Lines = append(outcome.Lines, domain.PurchaseUpdate{
			Name:     line.Name,
			Quantity: line.Quantity,
			Cost:     line.Cost,
			Vendor:   line.Vendor,
			Method:   domain.MethodReceipt,
		})
	}
	if len(outcome.Lines) == 0 {
		return outcome, nil
	}

	update, err := s.applyUpdates(ctx, userID, outcome.Lines, domain.MethodReceipt)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return outcome, nil
		}
		s.discardReceipt(ctx, userID, outcome.StorageKey)
		return nil, err
	}
	outcome.Update = update
	return outcome, nil
}

// Receipt returns an archived receipt image owned by userID.
func (s *AssistantService) Receipt(ctx context.Context, userID, storageKey string) (io.ReadCloser, string, error) {
	if s.receipts == nil {
		return nil, "", ErrReceiptNotFound
	}
	if !receiptstore.OwnedBy(storageKey, userID) {
		return nil, "", ErrReceiptNotFound
	}

	rc, mimeType, err := s.receipts.Get(ctx, storageKey)
	if errors.Is(err, receiptstore.ErrNotFound) {
		return nil, "", ErrReceiptNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load receipt: %w", err)
	}
	return rc, mimeType, nil
}

// discardReceipt removes an archived image whose purchases could not be
// recorded, so the archive only holds receipts that were applied or that can
// still be retried after a degraded extraction.
func (s *AssistantService) discardReceipt(ctx context.Context, userID, storageKey string) {
	if s.receipts == nil || storageKey == "" {
		return
	}
	if err := s.receipts.Delete(ctx, storageKey); err != nil {
		s.logger.Error("failed to delete archived receipt", "user_id", userID, "storage_key", storageKey, "error", err)
	}
}
