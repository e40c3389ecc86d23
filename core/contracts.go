package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/holiman/uint256"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// StreamReader exposes the side-effect free stream lookups.
type StreamReader interface {
	Get(ctx context.Context, id uint64) (Stream, error)
	NextStreamID(ctx context.Context) (uint64, error)
	ListByRecipient(ctx context.Context, recipient string) ([]Stream, error)
}

// StreamTx is the write view handed to InTx callbacks. Nothing written
// through it is visible outside the callback until it returns nil.
//
// UpdateBalance and Delete compare against the balance the caller read and
// fail with ErrStaleBalance when another writer changed it in between.
// Token movements issued inside the callback are not undone when the commit
// itself fails.
type StreamTx interface {
	StreamReader
	Insert(ctx context.Context, stream Stream) error
	UpdateBalance(ctx context.Context, id uint64, expected, balance *uint256.Int) error
	Delete(ctx context.Context, id uint64, expected *uint256.Int) error
	AdvanceStreamID(ctx context.Context) (uint64, error)
	RecordWithdrawal(ctx context.Context, record WithdrawalRecord) error
}

type StreamStore interface {
	StreamReader
	InTx(ctx context.Context, fn func(ctx context.Context, tx StreamTx) error) error
}

type WithdrawalHistory interface {
	ListWithdrawals(ctx context.Context, streamID uint64) ([]WithdrawalRecord, error)
}

type TrustedPeerStore interface {
	Get(ctx context.Context, domainID uint32) (TrustedPeer, error)
	Upsert(ctx context.Context, peer TrustedPeer) error
}

// TokenLedger is the external fungible-token ledger. Both transfer calls
// are all-or-nothing: on error no balance moved.
type TokenLedger interface {
	Transfer(ctx context.Context, token, from, to string, amount *uint256.Int) error
	TransferFrom(ctx context.Context, token, spender, from, to string, amount *uint256.Int) error
	BalanceOf(ctx context.Context, token, owner string) (*uint256.Int, error)
}

type MessagingEndpoint interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

type MessageReceiver interface {
	ReceiveMessage(ctx context.Context, msg InboundMessage) (WithdrawalResult, error)
}

type ReplayLedger interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Withdrawer interface {
	Withdraw(ctx context.Context, req WithdrawRequest) (WithdrawalResult, error)
}
