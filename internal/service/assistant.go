package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/restockr/internal/domain"
	"github.com/vbonduro/restockr/internal/predict"
	"github.com/vbonduro/restockr/internal/receiptstore"
	"github.com/vbonduro/restockr/internal/store"
)

// inventoryRepository is the subset of store.InventoryStore that AssistantService requires.
type inventoryRepository interface {
	List(ctx context.Context, userID string) ([]*domain.InventoryItem, error)
	GetByID(ctx context.Context, userID, id string) (*domain.InventoryItem, error)
	Create(ctx context.Context, item *domain.InventoryItem) (*domain.InventoryItem, error)
	Update(ctx context.Context, item *domain.InventoryItem) error
	Delete(ctx context.Context, userID, id string) error
}

// historyRepository is the subset of store.HistoryStore that AssistantService requires.
type historyRepository interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]*domain.PurchaseHistoryEntry, error)
}

// configRepository is the subset of store.ConfigStore that AssistantService requires.
type configRepository interface {
	Get(ctx context.Context, userID string) (*domain.UserConfig, error)
}

// auditRepository is the subset of store.AuditStore that AssistantService requires.
type auditRepository interface {
	List(ctx context.Context, userID string, limit int) ([]*domain.AuditLogEntry, error)
	Append(ctx context.Context, entry *domain.AuditLogEntry) error
}

// batchRunner applies a group of writes atomically.
type batchRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, batch *store.Batch) error) error
}

type Options struct {
	// HistoryWindow is how many recent purchases are sent to the model.
	HistoryWindow int
	// MaxSuggestions caps the suggestions considered for the cart.
	MaxSuggestions int
	Now            func() time.Time
}

// Cart is the transient suggested cart of one user.
type Cart struct {
	Items       []domain.SuggestedCartItem `json:"items"`
	Total       decimal.Decimal            `json:"total"`
	GeneratedAt *time.Time                 `json:"generatedAt"`
}

// AssistantService runs the forecast, restock and checkout workflows.
// Forecast, restock and checkout for the same user never overlap.
type AssistantService struct {
	inventory inventoryRepository
	history   historyRepository
	configs   configRepository
	audit     auditRepository
	batches   batchRunner
	predictor predict.Predictor
	receipts  receiptstore.ReceiptStore
	logger    *slog.Logger
	opts      Options

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	cartMu sync.Mutex
	carts  map[string]*Cart
}

func NewAssistantService(
	inventory inventoryRepository,
	history historyRepository,
	configs configRepository,
	audit auditRepository,
	batches batchRunner,
	predictor predict.Predictor,
	receipts receiptstore.ReceiptStore,
	logger *slog.Logger,
	opts Options,
) *AssistantService {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 100
	}
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AssistantService{
		inventory: inventory,
		history:   history,
		configs:   configs,
		audit:     audit,
		batches:   batches,
		predictor: predictor,
		receipts:  receipts,
		logger:    logger,
		opts:      opts,
		locks:     make(map[string]*sync.Mutex),
		carts:     make(map[string]*Cart),
	}
}

func (s *AssistantService) now() time.Time {
	return s.opts.Now().UTC()
}

// lockUser serializes workflows for userID and returns the unlock func.
func (s *AssistantService) lockUser(userID string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[userID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// Cart returns a copy of the user's current suggested cart.
func (s *AssistantService) Cart(userID string) *Cart {
	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	c, ok := s.carts[userID]
	if !ok {
		return &Cart{Items: []domain.SuggestedCartItem{}, Total: decimal.Zero}
	}
	cp := *c
	cp.Items = append([]domain.SuggestedCartItem{}, c.Items...)
	return &cp
}

func (s *AssistantService) setCart(userID string, items []domain.SuggestedCartItem, total decimal.Decimal) {
	if items == nil {
		items = []domain.SuggestedCartItem{}
	}
	generated := s.now()

	s.cartMu.Lock()
	defer s.cartMu.Unlock()
	s.carts[userID] = &Cart{Items: items, Total: total, GeneratedAt: &generated}
}

func (s *AssistantService) clearCart(userID string) {
	s.cartMu.Lock()
	defer s.cartMu.Unlock()
	delete(s.carts, userID)
}

// loadConfig returns the user's settings, defaults when none were saved,
// with the monthly spend rolled over to the current month.
func (s *AssistantService) loadConfig(ctx context.Context, get func(context.Context, string) (*domain.UserConfig, error), userID string) (*domain.UserConfig, error) {
	cfg, err := get(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if cfg == nil {
		return domain.DefaultUserConfig(userID, now), nil
	}
	cfg.RollOver(now)
	return cfg, nil
}
