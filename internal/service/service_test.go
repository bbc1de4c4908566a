package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/restockr/internal/db"
	"github.com/vbonduro/restockr/internal/domain"
	"github.com/vbonduro/restockr/internal/predict"
	"github.com/vbonduro/restockr/internal/receiptstore"
	"github.com/vbonduro/restockr/internal/store"
)

const testUser = "user-1"

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// stubPredictor is a concurrency-safe predict.Predictor for tests.
type stubPredictor struct {
	mu            sync.Mutex
	forecast      func(call int, req *predict.ForecastRequest) (*predict.ForecastResult, error)
	receipt       []predict.ReceiptLine
	receiptErr    error
	forecastCalls int
	receiptCalls  int
}

func (p *stubPredictor) ExtractReceipt(_ context.Context, r io.Reader, _ string) ([]predict.ReceiptLine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receiptCalls++
	_, _ = io.ReadAll(r)
	return p.receipt, p.receiptErr
}

func (p *stubPredictor) Forecast(_ context.Context, req *predict.ForecastRequest) (*predict.ForecastResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forecastCalls++
	if p.forecast == nil {
		return &predict.ForecastResult{}, nil
	}
	return p.forecast(p.forecastCalls, req)
}

func (p *stubPredictor) calls() (forecast, receipt int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.forecastCalls, p.receiptCalls
}

// stubReceiptStore is a minimal in-memory receiptstore.ReceiptStore for tests.
type stubReceiptStore struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string
	saveErr error
}

func newStubReceiptStore() *stubReceiptStore {
	return &stubReceiptStore{saved: make(map[string][]byte)}
}

func (s *stubReceiptStore) Save(_ context.Context, owner, mimeType string, r io.Reader) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	data, _ := io.ReadAll(r)
	key := receiptstore.NewKey(owner, mimeType)
	s.mu.Lock()
	s.saved[key] = data
	s.mu.Unlock()
	return key, nil
}

func (s *stubReceiptStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.saved[key]
	if !ok {
		return nil, "", receiptstore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), receiptstore.ExtToMimeType(key), nil
}

func (s *stubReceiptStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, key)
	s.deleted = append(s.deleted, key)
	return nil
}

type testEnv struct {
	svc       *AssistantService
	db        *sqlx.DB
	predictor *stubPredictor
	receipts  *stubReceiptStore
	inventory *store.InventoryStore
	history   *store.HistoryStore
	configs   *store.ConfigStore
	audit     *store.AuditStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	env := &testEnv{
		db:        d,
		predictor: &stubPredictor{},
		receipts:  newStubReceiptStore(),
		inventory: store.NewInventoryStore(d),
		history:   store.NewHistoryStore(d),
		configs:   store.NewConfigStore(d),
		audit:     store.NewAuditStore(d),
	}
	env.svc = NewAssistantService(
		env.inventory,
		env.history,
		env.configs,
		env.audit,
		store.NewBatcher(d),
		env.predictor,
		env.receipts,
		slog.Default(),
		Options{Now: func() time.Time { return testNow }},
	)
	return env
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func (e *testEnv) addItem(t *testing.T, name string, qty, restock float64) *domain.InventoryItem {
	t.Helper()
	item, err := e.inventory.Create(context.Background(), &domain.InventoryItem{
		UserID: testUser, Name: name, Quantity: qty, Unit: "unit", RestockLevel: restock, LastUsed: testNow,
	})
	require.NoError(t, err)
	return item
}

func (e *testEnv) setSpend(t *testing.T, spendCap, spent string) {
	t.Helper()
	cfg := domain.DefaultUserConfig(testUser, testNow)
	cfg.SpendCapMonthly = dec(spendCap)
	cfg.CurrentMonthSpend = dec(spent)
	require.NoError(t, e.configs.Save(context.Background(), cfg))
}

func (e *testEnv) item(t *testing.T, name string) *domain.InventoryItem {
	t.Helper()
	items, err := e.inventory.List(context.Background(), testUser)
	require.NoError(t, err)
	for _, it := range items {
		if it.Name == name {
			return it
		}
	}
	t.Fatalf("item %q not found", name)
	return nil
}

func (e *testEnv) auditActions(t *testing.T) []string {
	t.Helper()
	entries, err := e.audit.List(context.Background(), testUser, 100)
	require.NoError(t, err)
	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

// milkForecast answers every call with the Milk example's forecast.
func milkForecast(int, *predict.ForecastRequest) (*predict.ForecastResult, error) {
	return &predict.ForecastResult{
		Forecasts: []predict.Forecast{{Name: "milk", RunOut: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)}},
		Suggestions: []predict.Suggestion{
			{Name: "Milk", Quantity: 2, EstimatedCost: decPtr("8.00"), Vendor: "Costco", Reason: "below restock level"},
		},
	}, nil
}

var errUnavailable = errors.New("prediction service unavailable")
