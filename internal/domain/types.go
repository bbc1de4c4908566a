package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Purchase methods recorded on history entries.
const (
	MethodManual     = "manual"
	MethodReceipt    = "receipt"
	MethodAutonomous = "autonomous"
)

// Audit actions.
const (
	ActionForecastGenerated  = "FORECAST_GENERATED"
	ActionInventoryRestocked = "INVENTORY_RESTOCKED"
	ActionAutonomousPurchase = "AUTONOMOUS_PURCHASE"
	ActionConfigUpdated      = "CONFIG_UPDATED"
	ActionItemDeleted        = "ITEM_DELETED"
)

// DefaultUnit is assigned to items created from a purchase.
const DefaultUnit = "unit"

type InventoryItem struct {
	ID                  string     `db:"id" json:"id"`
	UserID              string     `db:"user_id" json:"-"`
	Name                string     `db:"name" json:"name"`
	Quantity            float64    `db:"quantity" json:"quantity"`
	Unit                string     `db:"unit" json:"unit"`
	RestockLevel        float64    `db:"restock_level" json:"restockLevel"`
	DailyUse            float64    `db:"daily_use" json:"dailyUse"`
	LastUsed            time.Time  `db:"last_used" json:"lastUsed"`
	PredictedRunOutDate *time.Time `db:"predicted_run_out_date" json:"predictedRunOutDate"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
}

// NeedsRestock reports whether the item is at or below its restock level.
func (i *InventoryItem) NeedsRestock() bool {
	return i.Quantity <= i.RestockLevel
}

type PurchaseHistoryEntry struct {
	ID       string          `db:"id" json:"id"`
	UserID   string          `db:"user_id" json:"-"`
	Item     string          `db:"item" json:"item"`
	Quantity float64         `db:"quantity" json:"quantity"`
	Vendor   string          `db:"vendor" json:"vendor"`
	Cost     decimal.Decimal `db:"cost" json:"cost"`
	Date     time.Time       `db:"date" json:"date"`
	Method   string          `db:"method" json:"method"`
}

// UnitCost is the per-unit price paid, or zero when quantity is not positive.
func (e *PurchaseHistoryEntry) UnitCost() decimal.Decimal {
	if e.Quantity <= 0 {
		return decimal.Zero
	}
	return e.Cost.Div(decimal.NewFromFloat(e.Quantity))
}

type UserConfig struct {
	UserID            string          `db:"user_id" json:"-"`
	SpendCapMonthly   decimal.Decimal `db:"spend_cap_monthly" json:"spendCapMonthly"`
	CurrentMonthSpend decimal.Decimal `db:"current_month_spend" json:"currentMonthSpend"`
	SpendMonth        string          `db:"spend_month" json:"spendMonth"`
	VendorAllowlist   VendorList      `db:"vendor_allowlist" json:"vendorAllowlist"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
}

// Remaining is the spend still available under the monthly cap, never negative.
func (c *UserConfig) Remaining() decimal.Decimal {
	left := c.SpendCapMonthly.Sub(c.CurrentMonthSpend)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// RollOver resets the running spend when now falls in a later month than the
// one the spend was accumulated in.
func (c *UserConfig) RollOver(now time.Time) {
	month := MonthKey(now)
	if c.SpendMonth != month {
		c.SpendMonth = month
		c.CurrentMonthSpend = decimal.Zero
	}
}

// MonthKey formats t as the YYYY-MM bucket used for monthly spend.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// DefaultUserConfig is used when a user has never saved settings.
func DefaultUserConfig(userID string, now time.Time) *UserConfig {
	return &UserConfig{
		UserID:            userID,
		SpendCapMonthly:   decimal.NewFromInt(500),
		CurrentMonthSpend: decimal.Zero,
		SpendMonth:        MonthKey(now),
		VendorAllowlist:   VendorList{"Amazon", "Walmart", "Costco"},
		UpdatedAt:         now,
	}
}

// VendorList is stored as a JSON array in a single column.
type VendorList []string

// Canonical returns the list's spelling of vendor, or "" if it is not allowed.
func (v VendorList) Canonical(vendor string) string {
	key := NormalizeName(vendor)
	for _, allowed := range v {
		if NormalizeName(allowed) == key {
			return allowed
		}
	}
	return ""
}

// Clean trims entries and drops blanks and case-insensitive duplicates,
// keeping first occurrences in order.
func (v VendorList) Clean() VendorList {
	out := make(VendorList, 0, len(v))
	seen := make(map[string]bool, len(v))
	for _, name := range v {
		name = strings.TrimSpace(name)
		key := NormalizeName(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

func (v VendorList) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *VendorList) Scan(src any) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = VendorList{}
		return nil
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	default:
		return fmt.Errorf("unsupported vendor list type %T", src)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("failed to decode vendor list: %w", err)
	}
	*v = list
	return nil
}

type AuditLogEntry struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"-"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Action    string    `db:"action" json:"action"`
	Details   string    `db:"details" json:"details"`
}

// SuggestedCartItem is a transient cart line; it is never persisted.
type SuggestedCartItem struct {
	Name     string          `json:"name"`
	Quantity float64         `json:"quantity"`
	Cost     decimal.Decimal `json:"cost"`
	Vendor   string          `json:"vendor"`
	Reason   string          `json:"reason"`
}

// PurchaseUpdate is one purchased line fed into the restock routine.
type PurchaseUpdate struct {
	Name     string          `json:"name"`
	Quantity float64         `json:"quantity"`
	Cost     decimal.Decimal `json:"cost"`
	Vendor   string          `json:"vendor"`
	Method   string          `json:"method"`
}

// NormalizeName is the case-insensitive natural key for item and vendor names.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
