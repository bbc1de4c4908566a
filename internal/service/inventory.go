package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/restockr/internal/domain"
	"github.com/vbonduro/restockr/internal/store"
)

const defaultListLimit = 100

// ItemInput holds the editable fields of an inventory item.
type ItemInput struct {
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	RestockLevel float64 `json:"restockLevel"`
	DailyUse     float64 `json:"dailyUse"`
}

func (in *ItemInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Quantity < 0 || in.RestockLevel < 0 || in.DailyUse < 0 {
		return fmt.Errorf("%w: quantities must not be negative", ErrInvalidInput)
	}
	if in.Unit == "" {
		in.Unit = domain.DefaultUnit
	}
	return nil
}

func (s *AssistantService) ListInventory(ctx context.Context, userID string) ([]*domain.InventoryItem, error) {
	items, err := s.inventory.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*domain.InventoryItem{}
	}
	return items, nil
}

func (s *AssistantService) CreateItem(ctx context.Context, userID string, in ItemInput) (*domain.InventoryItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	return s.inventory.Create(ctx, &domain.InventoryItem{
		UserID:       userID,
		Name:         in.Name,
		Quantity:     in.Quantity,
		Unit:         in.Unit,
		RestockLevel: in.RestockLevel,
		DailyUse:     in.DailyUse,
		LastUsed:     s.now(),
	})
}

func (s *AssistantService) UpdateItem(ctx context.Context, userID, id string, in ItemInput) (*domain.InventoryItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	item, err := s.inventory.GetByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}

	item.Name = in.Name
	item.Quantity = in.Quantity
	item.Unit = in.Unit
	item.RestockLevel = in.RestockLevel
	item.DailyUse = in.DailyUse
	if err := s.inventory.Update(ctx, item); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return s.inventory.GetByID(ctx, userID, id)
}

// DeleteItem removes an item and records the deletion in the audit log.
func (s *AssistantService) DeleteItem(ctx context.Context, userID, id string) error {
	item, err := s.inventory.GetByID(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return ErrItemNotFound
	}

	if err := s.inventory.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("failed to delete item: %w", err)
	}

	if err := s.audit.Append(ctx, &domain.AuditLogEntry{
		UserID:    userID,
		Timestamp: s.now(),
		Action:    domain.ActionItemDeleted,
		Details:   fmt.Sprintf("Deleted %s", item.Name),
	}); err != nil {
		s.logger.Error("failed to audit item deletion", "user_id", userID, "item_id", id, "error", err)
	}
	return nil
}

// RecordUsage subtracts amount from the item's quantity, stopping at zero.
func (s *AssistantService) RecordUsage(ctx context.Context, userID, id string, amount float64) (*domain.InventoryItem, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	var used *domain.InventoryItem
	err := s.batches.Run(ctx, func(ctx context.Context, b *store.Batch) error {
		items, err := b.Inventory(ctx, userID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.ID == id {
				used = item
				break
			}
		}
		if used == nil {
			return ErrItemNotFound
		}

		used.Quantity = max(used.Quantity-amount, 0)
		used.LastUsed = s.now()
		return b.PutItem(ctx, used)
	})
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}
	return used, nil
}

func (s *AssistantService) ListHistory(ctx context.Context, userID string, limit int) ([]*domain.PurchaseHistoryEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	entries, err := s.history.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.PurchaseHistoryEntry{}
	}
	return entries, nil
}

func (s *AssistantService) ListAudit(ctx context.Context, userID string, limit int) ([]*domain.AuditLogEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	entries, err := s.audit.List(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.AuditLogEntry{}
	}
	return entries, nil
}

func (s *AssistantService) GetConfig(ctx context.Context, userID string) (*domain.UserConfig, error) {
	return s.loadConfig(ctx, s.configs.Get, userID)
}

// ConfigPatch holds the settings a user may change. Nil fields are left as is.
type ConfigPatch struct {
	SpendCapMonthly *decimal.Decimal `json:"spendCapMonthly"`
	VendorAllowlist *[]string        `json:"vendorAllowlist"`
}

// UpdateConfig merges patch into the stored settings.
func (s *AssistantService) UpdateConfig(ctx context.Context, userID string, patch ConfigPatch) (*domain.UserConfig, error) {
	if patch.SpendCapMonthly != nil && patch.SpendCapMonthly.IsNegative() {
		return nil, fmt.Errorf("%w: spend cap must not be negative", ErrInvalidInput)
	}

	var cfg *domain.UserConfig
	err := s.batches.Run(ctx, func(ctx context.Context, b *store.Batch) error {
		var err error
		if cfg, err = s.loadConfig(ctx, b.Config, userID); err != nil {
			return err
		}

		var changes []string
		if patch.SpendCapMonthly != nil {
			cfg.SpendCapMonthly = patch.SpendCapMonthly.Round(2)
			changes = append(changes, "spend cap $"+cfg.SpendCapMonthly.StringFixed(2))
		}
		if patch.VendorAllowlist != nil {
			cfg.VendorAllowlist = domain.VendorList(*patch.VendorAllowlist).Clean()
			changes = append(changes, "vendors ["+strings.Join(cfg.VendorAllowlist, ", ")+"]")
		}

		if err := b.PutConfig(ctx, cfg); err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		return b.AddAudit(ctx, &domain.AuditLogEntry{
			UserID:    userID,
			Timestamp: s.now(),
			Action:    domain.ActionConfigUpdated,
			Details:   "Updated " + strings.Join(changes, "; "),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update config: %w", err)
	}
	return cfg, nil
}
