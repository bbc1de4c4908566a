package predict

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// maxNumber bounds any quantity or price taken from model output.
var maxNumber = decimal.NewFromInt(1_000_000)

// number accepts a JSON number or a numeric string such as "3" or "$4.99".
// Anything else leaves it unset rather than failing the whole document.
// A value beyond maxNumber is flagged as overflow; lines carrying one are
// dropped.
type number struct {
	val      decimal.Decimal
	valid    bool
	overflow bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(unq), "$"))
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	if d.Abs().GreaterThan(maxNumber) {
		n.overflow = true
		return nil
	}
	n.val, n.valid = d, true
	return nil
}

func (n number) float() float64 {
	f, _ := n.val.Float64()
	return f
}

type receiptDoc struct {
	Vendor string `json:"vendor"`
	Items  []struct {
		Name     string `json:"name"`
		Quantity number `json:"quantity"`
		Cost     number `json:"cost"`
		Vendor   string `json:"vendor"`
	} `json:"items"`
}

type forecastDoc struct {
	Forecasts []struct {
		Name                string `json:"name"`
		PredictedRunOutDate string `json:"predictedRunOutDate"`
	} `json:"forecasts"`
	Suggestions []struct {
		Name          string `json:"name"`
		QuantityToBuy number `json:"quantityToBuy"`
		EstimatedCost number `json:"estimatedCost"`
		Vendor        string `json:"vendor"`
		Reason        string `json:"reason"`
	} `json:"suggestions"`
}

// DecodeReceipt parses a receipt extraction response. Lines without a name,
// with a non-positive quantity, with a negative cost or with an out-of-range
// number are dropped. A missing
// quantity counts as 1 and a missing cost as 0.
func DecodeReceipt(raw string) ([]ReceiptLine, error) {
	var doc receiptDoc
	if err := json.Unmarshal([]byte(StripFences(raw)), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode receipt response: %w", err)
	}

	lines := make([]ReceiptLine, 0, len(doc.Items))
	for _, it := range doc.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" || it.Quantity.overflow || it.Cost.overflow {
			continue
		}
		qty := 1.0
		if it.Quantity.valid {
			qty = it.Quantity.float()
		}
		if qty <= 0 {
			continue
		}
		cost := decimal.Zero
		if it.Cost.valid {
			cost = it.Cost.val
		}
		if cost.IsNegative() {
			continue
		}
		vendor := strings.TrimSpace(it.Vendor)
		if vendor == "" {
			vendor = strings.TrimSpace(doc.Vendor)
		}
		lines = append(lines, ReceiptLine{
			Name:     name,
			Quantity: qty,
			Cost:     cost.Round(2),
			Vendor:   vendor,
		})
	}
	return lines, nil
}

// DecodeForecast parses a forecast response. Forecasts with unparsable dates
// and suggestions without a name or positive quantity, or with an
// out-of-range number, are dropped.
func DecodeForecast(raw string) (*ForecastResult, error) {
	var doc forecastDoc
	if err := json.Unmarshal([]byte(StripFences(raw)), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode forecast response: %w", err)
	}

	result := &ForecastResult{
		Forecasts:   make([]Forecast, 0, len(doc.Forecasts)),
		Suggestions: make([]Suggestion, 0, len(doc.Suggestions)),
	}

	for _, f := range doc.Forecasts {
		name := strings.TrimSpace(f.Name)
		date, ok := ParseDate(f.PredictedRunOutDate)
		if name == "" || !ok {
			continue
		}
		result.Forecasts = append(result.Forecasts, Forecast{Name: name, RunOut: date})
	}

	for _, s := range doc.Suggestions {
		name := strings.TrimSpace(s.Name)
		if name == "" || !s.QuantityToBuy.valid || s.EstimatedCost.overflow {
			continue
		}
		qty := s.QuantityToBuy.float()
		if qty <= 0 {
			continue
		}
		sug := Suggestion{
			Name:     name,
			Quantity: qty,
			Vendor:   strings.TrimSpace(s.Vendor),
			Reason:   strings.TrimSpace(s.Reason),
		}
		if s.EstimatedCost.valid && !s.EstimatedCost.val.IsNegative() {
			cost := s.EstimatedCost.val.Round(2)
			sug.EstimatedCost = &cost
		}
		result.Suggestions = append(result.Suggestions, sug)
	}

	return result, nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 and returns midnight UTC of that day.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// StripFences removes a surrounding markdown code fence, which chat models
// often add around JSON even when asked not to.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
