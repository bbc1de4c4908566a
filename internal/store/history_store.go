package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vbonduro/restockr/internal/domain"
)

type HistoryStore struct {
	db *sqlx.DB
}

func NewHistoryStore(db *sqlx.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// ListRecent returns at most limit entries, newest first.
func (s *HistoryStore) ListRecent(ctx context.Context, userID string, limit int) ([]*domain.PurchaseHistoryEntry, error) {
	var entries []*domain.PurchaseHistoryEntry
	err := sqlx.SelectContext(ctx, s.db, &entries, `
		SELECT id, user_id, item, quantity, vendor, cost, date, method FROM purchase_history
		WHERE user_id = ? ORDER BY date DESC, rowid DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase history: %w", err)
	}
	return entries, nil
}

func (s *HistoryStore) Append(ctx context.Context, entry *domain.PurchaseHistoryEntry) error {
	return insertHistory(ctx, s.db, entry)
}

func insertHistory(ctx context.Context, e sqlx.ExecerContext, entry *domain.PurchaseHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}

	_, err := e.ExecContext(ctx, `
		INSERT INTO purchase_history (id, user_id, item, quantity, vendor, cost, date, method)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.UserID, entry.Item, entry.Quantity, entry.Vendor,
		entry.Cost.StringFixed(2), entry.Date.UTC(), entry.Method)
	if err != nil {
		return fmt.Errorf("failed to append history for %q: %w", entry.Item, err)
	}
	return nil
}
