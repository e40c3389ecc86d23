package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/holiman/uint256"
	"github.com/jshuaaaa/lz-stable-streaming/core"
	"github.com/uptrace/bun"
)

// StreamStore persists streams, the id counter and withdrawal history.
// Every InTx callback runs inside one database transaction.
type StreamStore struct {
	db          *bun.DB
	withdrawals repository.Repository[*withdrawalRecord]
	Now         func() time.Time
}

func NewStreamStore(db *bun.DB) (*StreamStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*withdrawalRecord](db, withdrawalHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid withdrawal repository wiring: %w", err)
		}
	}
	return &StreamStore{
		db:          db,
		withdrawals: repo,
		Now:         time.Now,
	}, nil
}

func (s *StreamStore) Get(ctx context.Context, id uint64) (core.Stream, error) {
	if s == nil || s.db == nil {
		return core.Stream{}, fmt.Errorf("sqlstore: stream store is not configured")
	}
	return getStream(ctx, s.db, id)
}

func (s *StreamStore) NextStreamID(ctx context.Context) (uint64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: stream store is not configured")
	}
	return readNextStreamID(ctx, s.db)
}

func (s *StreamStore) ListByRecipient(ctx context.Context, recipient string) ([]core.Stream, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: stream store is not configured")
	}
	return listByRecipient(ctx, s.db, recipient)
}

func (s *StreamStore) ListWithdrawals(ctx context.Context, streamID uint64) ([]core.WithdrawalRecord, error) {
	if s == nil || s.withdrawals == nil {
		return nil, fmt.Errorf("sqlstore: stream store is not configured")
	}
	id, err := toInt64("stream id", streamID)
	if err != nil {
		return nil, err
	}
	records, _, err := s.withdrawals.List(ctx,
		repository.SelectBy("stream_id", "=", strconv.FormatInt(id, 10)),
		repository.OrderBy("occurred_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.WithdrawalRecord, 0, len(records))
	for _, record := range records {
		converted, convErr := record.toDomain()
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, converted)
	}
	return out, nil
}

func (s *StreamStore) InTx(ctx context.Context, fn func(ctx context.Context, tx core.StreamTx) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: stream store is not configured")
	}
	if fn == nil {
		return fmt.Errorf("sqlstore: transaction callback is required")
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &streamTx{db: tx, now: s.now})
	})
}

func (s *StreamStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type streamTx struct {
	db  bun.IDB
	now func() time.Time
}

func (t *streamTx) Get(ctx context.Context, id uint64) (core.Stream, error) {
	return getStream(ctx, t.db, id)
}

func (t *streamTx) NextStreamID(ctx context.Context) (uint64, error) {
	return readNextStreamID(ctx, t.db)
}

func (t *streamTx) ListByRecipient(ctx context.Context, recipient string) ([]core.Stream, error) {
	return listByRecipient(ctx, t.db, recipient)
}

func (t *streamTx) Insert(ctx context.Context, stream core.Stream) error {
	if stream.ID == 0 {
		return fmt.Errorf("sqlstore: stream id is required")
	}
	record, err := newStreamRecord(stream, t.now())
	if err != nil {
		return err
	}
	if _, err := t.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlstore: stream %d already exists", stream.ID)
		}
		return err
	}
	return nil
}

// UpdateBalance only matches the row while it still holds expected, so two
// writers that read the same balance cannot both commit.
func (t *streamTx) UpdateBalance(ctx context.Context, id uint64, expected, balance *uint256.Int) error {
	key, err := toInt64("stream id", id)
	if err != nil {
		return err
	}
	res, err := t.db.NewUpdate().
		Model((*streamRecord)(nil)).
		Set("balance = ?", encodeAmount(balance)).
		Set("updated_at = ?", t.now()).
		Where("id = ?", key).
		Where("balance = ?", encodeAmount(expected)).
		Exec(ctx)
	if err != nil {
		return err
	}
	return t.requireSwapped(ctx, res, id)
}

func (t *streamTx) Delete(ctx context.Context, id uint64, expected *uint256.Int) error {
	key, err := toInt64("stream id", id)
	if err != nil {
		return err
	}
	res, err := t.db.NewDelete().
		Model((*streamRecord)(nil)).
		Where("id = ?", key).
		Where("balance = ?", encodeAmount(expected)).
		Exec(ctx)
	if err != nil {
		return err
	}
	return t.requireSwapped(ctx, res, id)
}

// requireSwapped tells a missing stream apart from one whose balance moved.
func (t *streamTx) requireSwapped(ctx context.Context, res sql.Result, id uint64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	if _, err := getStream(ctx, t.db, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %d", core.ErrStaleBalance, id)
}

func (t *streamTx) AdvanceStreamID(ctx context.Context) (uint64, error) {
	res, err := t.db.NewUpdate().
		Model((*streamCounterRecord)(nil)).
		Set("next_id = next_id + 1").
		Set("updated_at = ?", t.now()).
		Where("id = ?", streamCounterRowID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	if affected, affErr := res.RowsAffected(); affErr == nil && affected == 0 {
		counter := &streamCounterRecord{ID: streamCounterRowID, NextID: 2, UpdatedAt: t.now()}
		if _, err := t.db.NewInsert().Model(counter).Exec(ctx); err != nil {
			return 0, err
		}
	}
	return readNextStreamID(ctx, t.db)
}

func (t *streamTx) RecordWithdrawal(ctx context.Context, in core.WithdrawalRecord) error {
	record, err := newWithdrawalRecord(in)
	if err != nil {
		return err
	}
	if record.ID == "" {
		return fmt.Errorf("sqlstore: withdrawal id is required")
	}
	_, err = t.db.NewInsert().Model(record).Exec(ctx)
	return err
}

func getStream(ctx context.Context, db bun.IDB, id uint64) (core.Stream, error) {
	key, err := toInt64("stream id", id)
	if err != nil {
		return core.Stream{}, fmt.Errorf("%w: %d", core.ErrStreamNotFound, id)
	}
	record := &streamRecord{}
	err = db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Stream{}, fmt.Errorf("%w: %d", core.ErrStreamNotFound, id)
		}
		return core.Stream{}, err
	}
	return record.toDomain()
}

func readNextStreamID(ctx context.Context, db bun.IDB) (uint64, error) {
	counter := &streamCounterRecord{}
	err := db.NewSelect().
		Model(counter).
		Where("?TableAlias.id = ?", streamCounterRowID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 1, nil
		}
		return 0, err
	}
	if counter.NextID < 1 {
		return 1, nil
	}
	return uint64(counter.NextID), nil
}

func listByRecipient(ctx context.Context, db bun.IDB, recipient string) ([]core.Stream, error) {
	records := []*streamRecord{}
	err := db.NewSelect().
		Model(&records).
		Where("?TableAlias.recipient_key = ?", core.NormalizeAddress(recipient)).
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	out := make([]core.Stream, 0, len(records))
	for _, record := range records {
		stream, convErr := record.toDomain()
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, stream)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
