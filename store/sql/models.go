package sqlstore

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/jshuaaaa/lz-stable-streaming/core"
	"github.com/uptrace/bun"
)

const streamCounterRowID = 1

type streamRecord struct {
	bun.BaseModel `bun:"table:streams,alias:st"`

	ID            int64     `bun:"id,pk"`
	TokenAddress  string    `bun:"token_address,notnull"`
	Sender        string    `bun:"sender,notnull"`
	Recipient     string    `bun:"recipient,notnull"`
	RecipientKey  string    `bun:"recipient_key,notnull"`
	DepositAmount string    `bun:"deposit_amount,notnull"`
	RatePerSecond string    `bun:"rate_per_second,notnull"`
	Balance       string    `bun:"balance,notnull"`
	StartTime     int64     `bun:"start_time,notnull"`
	EndTime       int64     `bun:"end_time,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type streamCounterRecord struct {
	bun.BaseModel `bun:"table:stream_counters,alias:scn"`

	ID        int64     `bun:"id,pk"`
	NextID    int64     `bun:"next_id,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type withdrawalRecord struct {
	bun.BaseModel `bun:"table:stream_withdrawals,alias:sw"`

	ID         string    `bun:"id,pk"`
	StreamID   int64     `bun:"stream_id,notnull"`
	Requester  string    `bun:"requester,notnull"`
	Amount     string    `bun:"amount,notnull"`
	Remaining  string    `bun:"remaining,notnull"`
	Origin     string    `bun:"origin,notnull"`
	OccurredAt time.Time `bun:"occurred_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type trustedPeerRecord struct {
	bun.BaseModel `bun:"table:trusted_peers,alias:tp"`

	ID        string    `bun:"id,pk"`
	DomainID  int64     `bun:"domain_id,notnull"`
	Address   string    `bun:"address,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type messageReceiptRecord struct {
	bun.BaseModel `bun:"table:message_receipts,alias:mr"`

	Key       string    `bun:"receipt_key,pk"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newStreamRecord(stream core.Stream, now time.Time) (*streamRecord, error) {
	id, err := toInt64("stream id", stream.ID)
	if err != nil {
		return nil, err
	}
	start, err := toInt64("start time", stream.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := toInt64("end time", stream.EndTime)
	if err != nil {
		return nil, err
	}
	createdAt := stream.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return &streamRecord{
		ID:            id,
		TokenAddress:  strings.TrimSpace(stream.TokenAddress),
		Sender:        strings.TrimSpace(stream.Sender),
		Recipient:     strings.TrimSpace(stream.Recipient),
		RecipientKey:  core.NormalizeAddress(stream.Recipient),
		DepositAmount: encodeAmount(stream.DepositAmount),
		RatePerSecond: encodeAmount(stream.RatePerSecond),
		Balance:       encodeAmount(stream.Balance),
		StartTime:     start,
		EndTime:       end,
		CreatedAt:     createdAt.UTC(),
		UpdatedAt:     now.UTC(),
	}, nil
}

func (r *streamRecord) toDomain() (core.Stream, error) {
	if r == nil {
		return core.Stream{}, fmt.Errorf("sqlstore: stream record is nil")
	}
	deposit, err := decodeAmount("deposit_amount", r.DepositAmount)
	if err != nil {
		return core.Stream{}, err
	}
	rate, err := decodeAmount("rate_per_second", r.RatePerSecond)
	if err != nil {
		return core.Stream{}, err
	}
	balance, err := decodeAmount("balance", r.Balance)
	if err != nil {
		return core.Stream{}, err
	}
	return core.Stream{
		ID:            uint64(r.ID),
		TokenAddress:  r.TokenAddress,
		Sender:        r.Sender,
		Recipient:     r.Recipient,
		DepositAmount: deposit,
		RatePerSecond: rate,
		Balance:       balance,
		StartTime:     uint64(r.StartTime),
		EndTime:       uint64(r.EndTime),
		CreatedAt:     r.CreatedAt.UTC(),
	}, nil
}

func newWithdrawalRecord(in core.WithdrawalRecord) (*withdrawalRecord, error) {
	streamID, err := toInt64("stream id", in.StreamID)
	if err != nil {
		return nil, err
	}
	return &withdrawalRecord{
		ID:         strings.TrimSpace(in.ID),
		StreamID:   streamID,
		Requester:  strings.TrimSpace(in.Requester),
		Amount:     encodeAmount(in.Amount),
		Remaining:  encodeAmount(in.Remaining),
		Origin:     strings.TrimSpace(in.Origin),
		OccurredAt: in.OccurredAt.UTC(),
	}, nil
}

func (r *withdrawalRecord) toDomain() (core.WithdrawalRecord, error) {
	amount, err := decodeAmount("amount", r.Amount)
	if err != nil {
		return core.WithdrawalRecord{}, err
	}
	remaining, err := decodeAmount("remaining", r.Remaining)
	if err != nil {
		return core.WithdrawalRecord{}, err
	}
	return core.WithdrawalRecord{
		ID:         r.ID,
		StreamID:   uint64(r.StreamID),
		Requester:  r.Requester,
		Amount:     amount,
		Remaining:  remaining,
		Origin:     r.Origin,
		OccurredAt: r.OccurredAt.UTC(),
	}, nil
}

func (r *trustedPeerRecord) toDomain() core.TrustedPeer {
	return core.TrustedPeer{
		DomainID:  uint32(r.DomainID),
		Address:   r.Address,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// Amounts are persisted as base-10 text so the full 256-bit range
// survives every dialect.
func encodeAmount(amount *uint256.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.Dec()
}

func decodeAmount(field, value string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: decode %s %q: %w", field, value, err)
	}
	return amount, nil
}

func toInt64(field string, value uint64) (int64, error) {
	if value > math.MaxInt64 {
		return 0, fmt.Errorf("sqlstore: %s %d exceeds storage range", field, value)
	}
	return int64(value), nil
}
