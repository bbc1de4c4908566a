package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vbonduro/restockr/internal/domain"
)

// ErrNotFound is returned by updates and deletes that match no row.
var ErrNotFound = errors.New("record not found")

const inventoryColumns = `id, user_id, name, quantity, unit, restock_level, daily_use,
	last_used, predicted_run_out_date, created_at, updated_at`

type InventoryStore struct {
	db *sqlx.DB
}

func NewInventoryStore(db *sqlx.DB) *InventoryStore {
	return &InventoryStore{db: db}
}

func (s *InventoryStore) List(ctx context.Context, userID string) ([]*domain.InventoryItem, error) {
	return listInventory(ctx, s.db, userID)
}

func (s *InventoryStore) GetByID(ctx context.Context, userID, id string) (*domain.InventoryItem, error) {
	item := &domain.InventoryItem{}
	err := sqlx.GetContext(ctx, s.db, item, `
		SELECT `+inventoryColumns+` FROM inventory_items WHERE user_id = ? AND id = ?
	`, userID, id)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

// Create inserts item, assigning its ID and timestamps when unset.
func (s *InventoryStore) Create(ctx context.Context, item *domain.InventoryItem) (*domain.InventoryItem, error) {
	if err := putItem(ctx, s.db, item); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, item.UserID, item.ID)
}

// Update overwrites the editable fields of an existing item.
func (s *InventoryStore) Update(ctx context.Context, item *domain.InventoryItem) error {
	item.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET name = ?, quantity = ?, unit = ?, restock_level = ?, daily_use = ?,
			last_used = ?, predicted_run_out_date = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`, item.Name, item.Quantity, item.Unit, item.RestockLevel, item.DailyUse,
		item.LastUsed.UTC(), utcPtr(item.PredictedRunOutDate), item.UpdatedAt,
		item.UserID, item.ID)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	return expectAffected(result, "item")
}

func (s *InventoryStore) Delete(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM inventory_items WHERE user_id = ? AND id = ?
	`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	return expectAffected(result, "item")
}

func listInventory(ctx context.Context, q sqlx.QueryerContext, userID string) ([]*domain.InventoryItem, error) {
	var items []*domain.InventoryItem
	err := sqlx.SelectContext(ctx, q, &items, `
		SELECT `+inventoryColumns+` FROM inventory_items
		WHERE user_id = ? ORDER BY name COLLATE NOCASE ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// putItem inserts item or replaces the row with the same ID.
func putItem(ctx context.Context, e sqlx.ExecerContext, item *domain.InventoryItem) error {
	now := time.Now().UTC()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.LastUsed.IsZero() {
		item.LastUsed = now
	}
	item.UpdatedAt = now

	_, err := e.ExecContext(ctx, `
		INSERT INTO inventory_items (`+inventoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			quantity = excluded.quantity,
			unit = excluded.unit,
			restock_level = excluded.restock_level,
			daily_use = excluded.daily_use,
			last_used = excluded.last_used,
			predicted_run_out_date = excluded.predicted_run_out_date,
			updated_at = excluded.updated_at
	`, item.ID, item.UserID, item.Name, item.Quantity, item.Unit, item.RestockLevel, item.DailyUse,
		item.LastUsed.UTC(), utcPtr(item.PredictedRunOutDate), item.CreatedAt.UTC(), item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save item %q: %w", item.Name, err)
	}
	return nil
}

func expectAffected(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// utcPtr returns nil for nil so nullable columns stay NULL.
func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
