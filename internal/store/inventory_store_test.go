package store

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/restockr/internal/db"
	"github.com/vbonduro/restockr/internal/domain"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestInventoryStoreCreate(t *testing.T) {
	items := NewInventoryStore(openTestDB(t))
	ctx := context.Background()

	item, err := items.Create(ctx, &domain.InventoryItem{
		UserID: "u1", Name: "Milk", Quantity: 1, Unit: "gallon", RestockLevel: 2, DailyUse: 0.25,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "Milk", item.Name)
	assert.Equal(t, 1.0, item.Quantity)
	assert.Equal(t, "gallon", item.Unit)
	assert.Equal(t, 2.0, item.RestockLevel)
	assert.False(t, item.LastUsed.IsZero())
	assert.Nil(t, item.PredictedRunOutDate)
}

func TestInventoryStoreList_SortedAndScopedToUser(t *testing.T) {
	items := NewInventoryStore(openTestDB(t))
	ctx := context.Background()

	for _, name := range []string{"rice", "Eggs", "Apples"} {
		_, err := items.Create(ctx, &domain.InventoryItem{UserID: "u1", Name: name, Quantity: 1, Unit: "unit"})
		require.NoError(t, err)
	}
	_, err := items.Create(ctx, &domain.InventoryItem{UserID: "u2", Name: "Bread", Quantity: 1, Unit: "unit"})
	require.NoError(t, err)

	list, err := items.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Apples", list[0].Name)
	assert.Equal(t, "Eggs", list[1].Name)
	assert.Equal(t, "rice", list[2].Name)
}

func TestInventoryStoreList_Empty(t *testing.T) {
	items := NewInventoryStore(openTestDB(t))

	list, err := items.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInventoryStoreGetByID_OtherUser(t *testing.T) {
	items := NewInventoryStore(openTestDB(t))
	ctx := context.Background()

	item, err := items.Create(ctx, &domain.InventoryItem{UserID: "u1", Name: "Milk", Quantity: 1, Unit: "unit"})
	require.NoError(t, err)

	got, err := items.GetByID(ctx, "u2", item.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInventoryStoreUpdate(t *testing.T) {
	items := NewInventoryStore(openTestDB(t))
	ctx := context.Background()

	item, err := items.Create(ctx, &domain.InventoryItem{UserID: "u1", Name: "Milk", Quantity: 1, Unit: "unit"})
	require.NoError(t, err)

	runOut := time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)
	item.Name = "Whole Milk"
	item.Quantity = 3
	item.PredictedRunOutDate = &runOut
	require.NoError(t, items.Update(ctx, item))

	updated, err := items.GetByID(ctx, "u1", item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Whole Milk", updated.Name)
	assert.Equal(t, 3.0, updated.Quantity)
	require.NotNil(t, updated.PredictedRunOutDate)
	assert.True(t, runOut.Equal(*updated.PredictedRunOutDate))
}

func TestInventoryStoreUpdate_NotFound(t *testing.T) {
	items := NewInventoryStore(openTestDB(t))

	err := items.Update(context.Background(), &domain.InventoryItem{UserID: "u1", ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInventoryStoreDelete(t *testing.T) {
	items := NewInventoryStore(openTestDB(t))
	ctx := context.Background()

	item, err := items.Create(ctx, &domain.InventoryItem{UserID: "u1", Name: "Milk", Quantity: 1, Unit: "unit"})
	require.NoError(t, err)

	require.NoError(t, items.Delete(ctx, "u1", item.ID))

	deleted, err := items.GetByID(ctx, "u1", item.ID)
	require.NoError(t, err)
	assert.Nil(t, deleted)
}

func TestInventoryStoreDelete_NotFound(t *testing.T) {
	items := NewInventoryStore(openTestDB(t))

	err := items.Delete(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInventoryStoreCreate_RejectsNegativeQuantity(t *testing.T) {
	items := NewInventoryStore(openTestDB(t))

	_, err := items.Create(context.Background(), &domain.InventoryItem{UserID: "u1", Name: "Milk", Quantity: -2, Unit: "unit"})
	assert.Error(t, err)
}
