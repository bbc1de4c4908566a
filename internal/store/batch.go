package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vbonduro/restockr/internal/domain"
)

// Batcher runs groups of writes in a single transaction so that a batch is
// applied completely or not at all.
type Batcher struct {
	db *sqlx.DB
}

func NewBatcher(db *sqlx.DB) *Batcher {
	return &Batcher{db: db}
}

// Batch is the transactional handle passed to Run callbacks. Reads made
// through it observe the batch's own uncommitted writes.
type Batch struct {
	tx     *sqlx.Tx
	writes int
}

// Run begins a transaction, calls fn, then commits if fn returns nil and
// rolls back otherwise. A panic in fn rolls back and is re-raised.
func (b *Batcher) Run(ctx context.Context, fn func(ctx context.Context, batch *Batch) error) (err error) {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("failed to commit batch: %w", cerr)
		}
	}()

	return fn(ctx, &Batch{tx: tx})
}

// Writes reports how many write operations the batch has issued.
func (b *Batch) Writes() int {
	return b.writes
}

func (b *Batch) Inventory(ctx context.Context, userID string) ([]*domain.InventoryItem, error) {
	return listInventory(ctx, b.tx, userID)
}

func (b *Batch) Config(ctx context.Context, userID string) (*domain.UserConfig, error) {
	return getConfig(ctx, b.tx, userID)
}

func (b *Batch) PutItem(ctx context.Context, item *domain.InventoryItem) error {
	b.writes++
	return putItem(ctx, b.tx, item)
}

func (b *Batch) AddHistory(ctx context.Context, entry *domain.PurchaseHistoryEntry) error {
	b.writes++
	return insertHistory(ctx, b.tx, entry)
}

func (b *Batch) AddAudit(ctx context.Context, entry *domain.AuditLogEntry) error {
	b.writes++
	return insertAudit(ctx, b.tx, entry)
}

func (b *Batch) PutConfig(ctx context.Context, cfg *domain.UserConfig) error {
	b.writes++
	return putConfig(ctx, b.tx, cfg)
}
