package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const defaultReceiptTTL = 24 * time.Hour

// ReceiptStore is the durable replay ledger for inbound gateway messages.
type ReceiptStore struct {
	db         *bun.DB
	defaultTTL time.Duration
	Now        func() time.Time
}

func NewReceiptStore(db *bun.DB, defaultTTL time.Duration) (*ReceiptStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if defaultTTL <= 0 {
		defaultTTL = defaultReceiptTTL
	}
	return &ReceiptStore{db: db, defaultTTL: defaultTTL, Now: time.Now}, nil
}

func (s *ReceiptStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: receipt store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("sqlstore: receipt key is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now()

	claimed := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &messageReceiptRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.receipt_key = ?", key).
			Limit(1).
			Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			record = &messageReceiptRecord{Key: key, ExpiresAt: now.Add(ttl), CreatedAt: now}
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				if isUniqueViolation(insertErr) {
					return nil
				}
				return insertErr
			}
			claimed = true
			return nil
		case err != nil:
			return err
		}
		if now.Before(record.ExpiresAt) {
			return nil
		}
		_, err = tx.NewUpdate().
			Model((*messageReceiptRecord)(nil)).
			Set("expires_at = ?", now.Add(ttl)).
			Set("created_at = ?", now).
			Where("receipt_key = ?", key).
			Exec(ctx)
		if err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func (s *ReceiptStore) Release(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: receipt store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: receipt key is required")
	}
	_, err := s.db.NewDelete().
		Model((*messageReceiptRecord)(nil)).
		Where("receipt_key = ?", key).
		Exec(ctx)
	return err
}

// Prune deletes receipts whose window has elapsed and reports how many.
func (s *ReceiptStore) Prune(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: receipt store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*messageReceiptRecord)(nil)).
		Where("expires_at <= ?", s.now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *ReceiptStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

