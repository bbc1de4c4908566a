package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/restockr/internal/domain"
	"github.com/vbonduro/restockr/internal/planner"
	"github.com/vbonduro/restockr/internal/predict"
	"github.com/vbonduro/restockr/internal/store"
)

type ForecastOutcome struct {
	Updated   []*domain.InventoryItem    `json:"updated"`
	Cart      []domain.SuggestedCartItem `json:"cart"`
	CartTotal decimal.Decimal            `json:"cartTotal"`
	// Degraded is set when the model could not be reached; nothing was
	// written and the previous cart is returned.
	Degraded bool `json:"degraded"`
}

// RunForecast asks the model for run-out dates and purchase suggestions,
// stores the dates and rebuilds the user's cart within the spend cap.
func (s *AssistantService) RunForecast(ctx context.Context, userID string) (*ForecastOutcome, error) {
	unlock := s.lockUser(userID)
	defer unlock()
	return s.runForecast(ctx, userID)
}

// runForecast expects the user lock to be held.
func (s *AssistantService) runForecast(ctx context.Context, userID string) (*ForecastOutcome, error) {
	inventory, err := s.inventory.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	if len(inventory) == 0 {
		s.setCart(userID, nil, decimal.Zero)
		s.logger.Info("forecast skipped, inventory empty", "user_id", userID)
		return &ForecastOutcome{
			Updated:   []*domain.InventoryItem{},
			Cart:      []domain.SuggestedCartItem{},
			CartTotal: decimal.Zero,
		}, nil
	}

	history, err := s.history.ListRecent(ctx, userID, s.opts.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase history: %w", err)
	}
	cfg, err := s.loadConfig(ctx, s.configs.Get, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	s.logger.Info("forecast started", "user_id", userID, "items", len(inventory), "history", len(history))
	result, err := s.predictor.Forecast(ctx, &predict.ForecastRequest{
		Today:           s.now(),
		Inventory:       inventory,
		History:         history,
		VendorAllowlist: cfg.VendorAllowlist,
		MaxSuggestions:  s.opts.MaxSuggestions,
	})
	if err != nil {
		s.logger.Error("forecast failed", "user_id", userID, "error", err)
		cart := s.Cart(userID)
		return &ForecastOutcome{
			Updated:   []*domain.InventoryItem{},
			Cart:      cart.Items,
			CartTotal: cart.Total,
			Degraded:  true,
		}, nil
	}

	changed := planner.MergeForecasts(inventory, result.Forecasts)
	cart, total := planner.BuildCart(result.Suggestions, cfg, history, s.opts.MaxSuggestions)

	updated := make([]*domain.InventoryItem, 0, len(changed))
	err = s.batches.Run(ctx, func(ctx context.Context, b *store.Batch) error {
		// Re-read inside the batch so edits made since the model call are kept.
		current, err := b.Inventory(ctx, userID)
		if err != nil {
			return err
		}
		byID := make(map[string]*domain.InventoryItem, len(current))
		for _, item := range current {
			byID[item.ID] = item
		}

		for _, c := range changed {
			item, ok := byID[c.ID]
			if !ok {
				continue
			}
			item.PredictedRunOutDate = c.PredictedRunOutDate
			if err := b.PutItem(ctx, item); err != nil {
				return err
			}
			updated = append(updated, item)
		}

		return b.AddAudit(ctx, &domain.AuditLogEntry{
			UserID:    userID,
			Timestamp: s.now(),
			Action:    domain.ActionForecastGenerated,
			Details: fmt.Sprintf("Updated %d forecasts; cart has %d items totalling $%s",
				len(updated), len(cart), total.StringFixed(2)),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save forecast: %w", err)
	}

	s.setCart(userID, cart, total)
	s.logger.Info("forecast complete", "user_id", userID, "updated", len(updated), "cart_items", len(cart), "cart_total", total.StringFixed(2))

	return &ForecastOutcome{Updated: updated, Cart: cart, CartTotal: total}, nil
}
