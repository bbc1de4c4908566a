package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/restockr/internal/domain"
)

// Predictor is the hosted language model used for receipt extraction and
// inventory forecasting.
type Predictor interface {
	ExtractReceipt(ctx context.Context, r io.Reader, mimeType string) ([]ReceiptLine, error)
	Forecast(ctx context.Context, req *ForecastRequest) (*ForecastResult, error)
}

type ReceiptLine struct {
	Name     string
	Quantity float64
	Cost     decimal.Decimal
	Vendor   string
}

type ForecastRequest struct {
	Today           time.Time
	Inventory       []*domain.InventoryItem
	History         []*domain.PurchaseHistoryEntry
	VendorAllowlist []string
	MaxSuggestions  int
}

type ForecastResult struct {
	Forecasts   []Forecast
	Suggestions []Suggestion
}

// Forecast is a predicted run-out date for the inventory item with Name.
type Forecast struct {
	Name   string
	RunOut time.Time
}

// Suggestion is a purchase proposed by the model. EstimatedCost is nil when
// the model gave no usable price.
type Suggestion struct {
	Name          string
	Quantity      float64
	EstimatedCost *decimal.Decimal
	Vendor        string
	Reason        string
}

// ReceiptPrompt is the shared instruction for receipt extraction.
const ReceiptPrompt = `You are reading a photo of a shopping receipt.
Extract every purchased line item. For each item return its product name,
the quantity bought (default 1 when not printed), the total price paid for
that line, and the store or vendor name. Ignore taxes, subtotals, discounts
and payment lines. Respond with JSON only.`

// ForecastPrompt is the shared instruction for forecasting and cart suggestions.
const ForecastPrompt = `You manage a household's inventory.
Using the inventory and purchase history below:
1. Predict the date each inventory item will run out (predictedRunOutDate, YYYY-MM-DD),
   based on current quantity, daily use and past purchase frequency.
2. Suggest up to %d items to buy now, prioritising items flagged needsRestock
   or predicted to run out within 7 days. For each give quantityToBuy, estimatedCost
   (total for that quantity, in dollars), a vendor from the allowed vendors, and a short reason.
Use exact inventory item names. Respond with JSON only.`

// BuildForecastPrompt renders the forecast instruction followed by a JSON
// summary of the household state.
func BuildForecastPrompt(req *ForecastRequest) (string, error) {
	summary, err := json.Marshal(newStateSummary(req))
	if err != nil {
		return "", fmt.Errorf("failed to encode forecast summary: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, ForecastPrompt, req.MaxSuggestions)
	b.WriteString("\n\n")
	b.Write(summary)
	return b.String(), nil
}

type stateSummary struct {
	Today          string          `json:"today"`
	AllowedVendors []string        `json:"allowedVendors"`
	Inventory      []inventoryLine `json:"inventory"`
	History        []historyLine   `json:"purchaseHistory"`
}

type inventoryLine struct {
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	RestockLevel float64 `json:"restockLevel"`
	DailyUse     float64 `json:"dailyUse"`
	LastUsed     string  `json:"lastUsed"`
	NeedsRestock bool    `json:"needsRestock"`
}

type historyLine struct {
	Item     string  `json:"item"`
	Quantity float64 `json:"quantity"`
	Vendor   string  `json:"vendor"`
	Cost     string  `json:"cost"`
	Date     string  `json:"date"`
}

func newStateSummary(req *ForecastRequest) stateSummary {
	s := stateSummary{
		Today:          req.Today.Format(time.DateOnly),
		AllowedVendors: req.VendorAllowlist,
		Inventory:      make([]inventoryLine, 0, len(req.Inventory)),
		History:        make([]historyLine, 0, len(req.History)),
	}
	if s.AllowedVendors == nil {
		s.AllowedVendors = []string{}
	}
	for _, item := range req.Inventory {
		s.Inventory = append(s.Inventory, inventoryLine{
			Name:         item.Name,
			Quantity:     item.Quantity,
			Unit:         item.Unit,
			RestockLevel: item.RestockLevel,
			DailyUse:     item.DailyUse,
			LastUsed:     item.LastUsed.Format(time.DateOnly),
			NeedsRestock: item.NeedsRestock(),
		})
	}
	for _, e := range req.History {
		s.History = append(s.History, historyLine{
			Item:     e.Item,
			Quantity: e.Quantity,
			Vendor:   e.Vendor,
			Cost:     e.Cost.StringFixed(2),
			Date:     e.Date.Format(time.DateOnly),
		})
	}
	return s
}
