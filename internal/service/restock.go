package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/restockr/internal/domain"
	"github.com/vbonduro/restockr/internal/planner"
	"github.com/vbonduro/restockr/internal/store"
)

type UpdateOutcome struct {
	Applied  int                     `json:"applied"`
	Skipped  int                     `json:"skipped"`
	Items    []*domain.InventoryItem `json:"items"`
	Forecast *ForecastOutcome        `json:"forecast,omitempty"`
}

// ApplyUpdates records purchases and restocks inventory in one batch, then
// refreshes the forecast. Invalid lines are skipped; ErrInvalidInput is
// returned when no line is valid. A failed forecast does not fail the update.
func (s *AssistantService) ApplyUpdates(ctx context.Context, userID string, updates []domain.PurchaseUpdate) (*UpdateOutcome, error) {
	unlock := s.lockUser(userID)
	defer unlock()
	return s.applyUpdates(ctx, userID, updates, domain.MethodManual)
}

// applyUpdates expects the user lock to be held.
func (s *AssistantService) applyUpdates(ctx context.Context, userID string, updates []domain.PurchaseUpdate, defaultMethod string) (*UpdateOutcome, error) {
	valid := validUpdates(updates, defaultMethod)
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no valid purchase lines", ErrInvalidInput)
	}

	var (
		items  []*domain.InventoryItem
		writes int
	)
	err := s.batches.Run(ctx, func(ctx context.Context, b *store.Batch) error {
		var err error
		if items, err = s.restock(ctx, b, userID, valid); err != nil {
			return err
		}
		if err := b.AddAudit(ctx, &domain.AuditLogEntry{
			UserID:    userID,
			Timestamp: s.now(),
			Action:    domain.ActionInventoryRestocked,
			Details:   fmt.Sprintf("Restocked %d items (%s)", len(valid), valid[0].Method),
		}); err != nil {
			return err
		}
		writes = b.Writes()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply purchases: %w", err)
	}

	s.logger.Info("purchases applied", "user_id", userID, "applied", len(valid), "skipped", len(updates)-len(valid), "writes", writes)
	return &UpdateOutcome{
		Applied:  len(valid),
		Skipped:  len(updates) - len(valid),
		Items:    items,
		Forecast: s.refreshForecast(ctx, userID),
	}, nil
}

// restock writes one history entry per update and adds its quantity to the
// item with the same case-insensitive name, creating the item if needed.
// It returns the touched items in update order without duplicates.
func (s *AssistantService) restock(ctx context.Context, b *store.Batch, userID string, updates []domain.PurchaseUpdate) ([]*domain.InventoryItem, error) {
	current, err := b.Inventory(ctx, userID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*domain.InventoryItem, len(current))
	for _, item := range current {
		key := domain.NormalizeName(item.Name)
		if _, dup := byName[key]; !dup {
			byName[key] = item
		}
	}

	now := s.now()
	touched := make([]*domain.InventoryItem, 0, len(updates))
	seen := make(map[string]bool, len(updates))

	for _, u := range updates {
		if err := b.AddHistory(ctx, &domain.PurchaseHistoryEntry{
			UserID:   userID,
			Item:     u.Name,
			Quantity: u.Quantity,
			Vendor:   u.Vendor,
			Cost:     u.Cost,
			Date:     now,
			Method:   u.Method,
		}); err != nil {
			return nil, err
		}

		key := domain.NormalizeName(u.Name)
		item, ok := byName[key]
		if ok {
			item.Quantity += u.Quantity
			item.PredictedRunOutDate = nil
		} else {
			item = &domain.InventoryItem{
				UserID:       userID,
				Name:         u.Name,
				Quantity:     u.Quantity,
				Unit:         domain.DefaultUnit,
				RestockLevel: u.Quantity * 2,
				DailyUse:     u.Quantity / 30,
				LastUsed:     now,
			}
			byName[key] = item
		}
		if err := b.PutItem(ctx, item); err != nil {
			return nil, err
		}

		if !seen[item.ID] {
			seen[item.ID] = true
			touched = append(touched, item)
		}
	}
	return touched, nil
}

// refreshForecast re-runs the forecast after a write. Failures are logged.
func (s *AssistantService) refreshForecast(ctx context.Context, userID string) *ForecastOutcome {
	outcome, err := s.runForecast(ctx, userID)
	if err != nil {
		s.logger.Error("forecast refresh failed", "user_id", userID, "error", err)
		return nil
	}
	return outcome
}

func validUpdates(updates []domain.PurchaseUpdate, defaultMethod string) []domain.PurchaseUpdate {
	valid := make([]domain.PurchaseUpdate, 0, len(updates))
	for _, u := range updates {
		u.Name = strings.TrimSpace(u.Name)
		u.Vendor = strings.TrimSpace(u.Vendor)
		if u.Name == "" || u.Quantity <= 0 || u.Cost.IsNegative() {
			continue
		}
		u.Cost = u.Cost.Round(2)
		if u.Method == "" {
			u.Method = defaultMethod
		}
		valid = append(valid, u)
	}
	return valid
}

type CheckoutOutcome struct {
	Purchased         []domain.SuggestedCartItem `json:"purchased"`
	Total             decimal.Decimal            `json:"total"`
	CurrentMonthSpend decimal.Decimal            `json:"currentMonthSpend"`
	Forecast          *ForecastOutcome           `json:"forecast,omitempty"`
}

// Checkout commits the current cart as autonomous purchases without
// confirmation. The cap is re-checked against the stored spend at commit.
// On any failure nothing is written and the cart is kept.
func (s *AssistantService) Checkout(ctx context.Context, userID string) (*CheckoutOutcome, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	cart := s.Cart(userID)
	if len(cart.Items) == 0 {
		return nil, ErrCartEmpty
	}

	updates := make([]domain.PurchaseUpdate, 0, len(cart.Items))
	for _, line := range cart.Items {
		updates = append(updates, domain.PurchaseUpdate{
			Name:     line.Name,
			Quantity: line.Quantity,
			Cost:     line.Cost,
			Vendor:   line.Vendor,
			Method:   domain.MethodAutonomous,
		})
	}

	total := planner.Total(cart.Items)
	var (
		spend  decimal.Decimal
		writes int
	)
	err := s.batches.Run(ctx, func(ctx context.Context, b *store.Batch) error {
		cfg, err := s.loadConfig(ctx, b.Config, userID)
		if err != nil {
			return err
		}
		if cfg.CurrentMonthSpend.Add(total).GreaterThan(cfg.SpendCapMonthly) {
			return ErrSpendCapExceeded
		}

		if _, err := s.restock(ctx, b, userID, updates); err != nil {
			return err
		}

		cfg.CurrentMonthSpend = cfg.CurrentMonthSpend.Add(total)
		if err := b.PutConfig(ctx, cfg); err != nil {
			return err
		}
		spend = cfg.CurrentMonthSpend

		if err := b.AddAudit(ctx, &domain.AuditLogEntry{
			UserID:    userID,
			Timestamp: s.now(),
			Action:    domain.ActionAutonomousPurchase,
			Details:   fmt.Sprintf("Purchased %d items for $%s", len(cart.Items), total.StringFixed(2)),
		}); err != nil {
			return err
		}
		writes = b.Writes()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkout failed: %w", err)
	}

	s.clearCart(userID)
	s.logger.Info("checkout complete", "user_id", userID, "items", len(cart.Items), "total", total.StringFixed(2), "writes", writes)

	return &CheckoutOutcome{
		Purchased:         cart.Items,
		Total:             total,
		CurrentMonthSpend: spend,
		Forecast:          s.refreshForecast(ctx, userID),
	}, nil
}
