// Package planner turns prediction output into inventory updates and a
// spend-capped shopping cart. It does no I/O.
package planner

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/restockr/internal/domain"
	"github.com/vbonduro/restockr/internal/predict"
)

// MergeForecasts applies run-out predictions to inventory by case-insensitive
// name. Forecasts naming no item are ignored. It returns copies of only the
// items whose predicted date changed; the inputs are not modified.
func MergeForecasts(inventory []*domain.InventoryItem, forecasts []predict.Forecast) []*domain.InventoryItem {
	byName := make(map[string]*domain.InventoryItem, len(inventory))
	for _, item := range inventory {
		key := domain.NormalizeName(item.Name)
		if _, dup := byName[key]; !dup {
			byName[key] = item
		}
	}

	changed := make(map[string]*domain.InventoryItem)
	var order []string
	for _, f := range forecasts {
		key := domain.NormalizeName(f.Name)
		item, ok := byName[key]
		if !ok {
			continue
		}
		runOut := f.RunOut.UTC()

		current, seen := changed[key]
		if !seen {
			if item.PredictedRunOutDate != nil && item.PredictedRunOutDate.Equal(runOut) {
				continue
			}
			cp := *item
			current = &cp
			changed[key] = current
			order = append(order, key)
		}
		current.PredictedRunOutDate = &runOut
	}

	out := make([]*domain.InventoryItem, 0, len(order))
	for _, key := range order {
		out = append(out, changed[key])
	}
	return out
}

// BuildCart admits suggestions into a cart in model order. At most limit
// suggestions are considered. Each admitted line keeps the running total
// plus the month's existing spend within the cap; a line that does not fit
// is skipped and later, cheaper lines are still considered.
//
// A vendor outside the allowlist is replaced with the first allowlisted
// vendor, so an empty allowlist admits nothing. When the model gave no
// price the cost is estimated from the latest unit price in history, and
// the line is dropped if there is none.
func BuildCart(suggestions []predict.Suggestion, cfg *domain.UserConfig, history []*domain.PurchaseHistoryEntry, limit int) ([]domain.SuggestedCartItem, decimal.Decimal) {
	cart := []domain.SuggestedCartItem{}
	total := decimal.Zero
	if cfg == nil || len(cfg.VendorAllowlist) == 0 {
		return cart, total
	}
	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}

	prices := LastUnitPrices(history)
	remaining := cfg.Remaining()

	for _, s := range suggestions {
		name := strings.TrimSpace(s.Name)
		if name == "" || s.Quantity <= 0 {
			continue
		}

		vendor := cfg.VendorAllowlist.Canonical(s.Vendor)
		if vendor == "" {
			vendor = cfg.VendorAllowlist[0]
		}

		var cost decimal.Decimal
		if s.EstimatedCost != nil && !s.EstimatedCost.IsNegative() {
			cost = *s.EstimatedCost
		} else {
			unit, ok := prices[domain.NormalizeName(name)]
			if !ok {
				continue
			}
			cost = unit.Mul(decimal.NewFromFloat(s.Quantity))
		}
		cost = cost.Round(2)

		if total.Add(cost).GreaterThan(remaining) {
			continue
		}

		total = total.Add(cost)
		cart = append(cart, domain.SuggestedCartItem{
			Name:     name,
			Quantity: s.Quantity,
			Cost:     cost,
			Vendor:   vendor,
			Reason:   strings.TrimSpace(s.Reason),
		})
	}
	return cart, total
}

// LastUnitPrices maps normalized item names to the unit price of their most
// recent purchase with a positive quantity.
func LastUnitPrices(history []*domain.PurchaseHistoryEntry) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal)
	latest := make(map[string]time.Time)
	for _, e := range history {
		if e.Quantity <= 0 {
			continue
		}
		key := domain.NormalizeName(e.Item)
		if seen, ok := latest[key]; ok && !e.Date.After(seen) {
			continue
		}
		latest[key] = e.Date
		prices[key] = e.UnitCost()
	}
	return prices
}

// Total sums the cost of cart lines.
func Total(cart []domain.SuggestedCartItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range cart {
		total = total.Add(line.Cost)
	}
	return total
}
