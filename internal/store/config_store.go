package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vbonduro/restockr/internal/domain"
)

type ConfigStore struct {
	db *sqlx.DB
}

func NewConfigStore(db *sqlx.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

// Get returns the stored settings for userID, or nil if none were saved.
func (s *ConfigStore) Get(ctx context.Context, userID string) (*domain.UserConfig, error) {
	return getConfig(ctx, s.db, userID)
}

func (s *ConfigStore) Save(ctx context.Context, cfg *domain.UserConfig) error {
	return putConfig(ctx, s.db, cfg)
}

func getConfig(ctx context.Context, q sqlx.QueryerContext, userID string) (*domain.UserConfig, error) {
	cfg := &domain.UserConfig{}
	err := sqlx.GetContext(ctx, q, cfg, `
		SELECT user_id, spend_cap_monthly, current_month_spend, spend_month, vendor_allowlist, updated_at
		FROM user_configs WHERE user_id = ?
	`, userID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	return cfg, nil
}

func putConfig(ctx context.Context, e sqlx.ExecerContext, cfg *domain.UserConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	_, err := e.ExecContext(ctx, `
		INSERT INTO user_configs (user_id, spend_cap_monthly, current_month_spend, spend_month, vendor_allowlist, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			spend_cap_monthly = excluded.spend_cap_monthly,
			current_month_spend = excluded.current_month_spend,
			spend_month = excluded.spend_month,
			vendor_allowlist = excluded.vendor_allowlist,
			updated_at = excluded.updated_at
	`, cfg.UserID, cfg.SpendCapMonthly.StringFixed(2), cfg.CurrentMonthSpend.StringFixed(2),
		cfg.SpendMonth, cfg.VendorAllowlist, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
