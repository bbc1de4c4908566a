package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vbonduro/restockr/internal/domain"
)

type AuditStore struct {
	db *sqlx.DB
}

func NewAuditStore(db *sqlx.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) List(ctx context.Context, userID string, limit int) ([]*domain.AuditLogEntry, error) {
	var entries []*domain.AuditLogEntry
	err := sqlx.SelectContext(ctx, s.db, &entries, `
		SELECT id, user_id, timestamp, action, details FROM audit_log
		WHERE user_id = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	return entries, nil
}

func (s *AuditStore) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	return insertAudit(ctx, s.db, entry)
}

func insertAudit(ctx context.Context, e sqlx.ExecerContext, entry *domain.AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := e.ExecContext(ctx, `
		INSERT INTO audit_log (id, user_id, timestamp, action, details) VALUES (?, ?, ?, ?, ?)
	`, entry.ID, entry.UserID, entry.Timestamp.UTC(), entry.Action, entry.Details)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}
