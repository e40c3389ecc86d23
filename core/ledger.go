package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StreamLedger owns stream creation and the read accessors. Balances are
// only ever changed by WithdrawalProcessor.
type StreamLedger struct {
	Address string
	Store   StreamStore
	Tokens  TokenLedger
	Now     func() time.Time
}

func NewStreamLedger(address string, store StreamStore, tokens TokenLedger) *StreamLedger {
	return &StreamLedger{
		Address: strings.TrimSpace(address),
		Store:   store,
		Tokens:  tokens,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// CreateStream validates req, escrows the deposit from req.Caller and
// records the stream under the next id. Nothing is stored when the
// escrow pull fails.
func (l *StreamLedger) CreateStream(ctx context.Context, req CreateStreamRequest) (uint64, error) {
	if l == nil || l.Store == nil {
		return 0, fmt.Errorf("core: stream store is required")
	}
	if l.Tokens == nil {
		return 0, fmt.Errorf("core: token ledger is required")
	}
	if err := l.validateCreate(req); err != nil {
		return 0, err
	}
	rate, err := Rate(req.DepositAmount, req.StartTime, req.EndTime)
	if err != nil {
		return 0, err
	}

	var streamID uint64
	err = l.Store.InTx(ctx, func(ctx context.Context, tx StreamTx) error {
		id, err := tx.NextStreamID(ctx)
		if err != nil {
			return err
		}
		stream := Stream{
			ID:            id,
			TokenAddress:  strings.TrimSpace(req.TokenAddress),
			Sender:        strings.TrimSpace(req.Caller),
			Recipient:     strings.TrimSpace(req.Recipient),
			DepositAmount: cloneAmount(req.DepositAmount),
			RatePerSecond: rate,
			Balance:       cloneAmount(req.DepositAmount),
			StartTime:     req.StartTime,
			EndTime:       req.EndTime,
			CreatedAt:     l.now(),
		}
		if err := tx.Insert(ctx, stream); err != nil {
			return err
		}
		if _, err := tx.AdvanceStreamID(ctx); err != nil {
			return err
		}
		if err := l.Tokens.TransferFrom(ctx, stream.TokenAddress, l.Address, stream.Sender, l.Address, stream.DepositAmount); err != nil {
			return fmt.Errorf("%w: escrow deposit for stream %d: %w", ErrTokenTransferFailed, id, err)
		}
		streamID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return streamID, nil
}

func (l *StreamLedger) validateCreate(req CreateStreamRequest) error {
	if req.DepositAmount == nil || req.DepositAmount.IsZero() {
		return ErrDepositAmountTooLow
	}
	if req.StartTime == 0 {
		return ErrStartTimePassed
	}
	if SameAddress(req.Recipient, l.Address) {
		return ErrContractCantBeUser
	}
	if req.EndTime <= req.StartTime {
		return fmt.Errorf("%w: end time %d must be after start time %d", ErrInvalidDuration, req.EndTime, req.StartTime)
	}
	if strings.TrimSpace(req.TokenAddress) == "" {
		return fmt.Errorf("core: token address is required")
	}
	if strings.TrimSpace(req.Recipient) == "" {
		return fmt.Errorf("core: recipient is required")
	}
	if strings.TrimSpace(req.Caller) == "" {
		return fmt.Errorf("core: caller is required")
	}
	return nil
}

func (l *StreamLedger) ViewStream(ctx context.Context, id uint64) (Stream, error) {
	if l == nil || l.Store == nil {
		return Stream{}, fmt.Errorf("core: stream store is required")
	}
	return l.Store.Get(ctx, id)
}

func (l *StreamLedger) ViewNextStreamID(ctx context.Context) (uint64, error) {
	if l == nil || l.Store == nil {
		return 0, fmt.Errorf("core: stream store is required")
	}
	return l.Store.NextStreamID(ctx)
}

func (l *StreamLedger) ListStreams(ctx context.Context, recipient string) ([]Stream, error) {
	if l == nil || l.Store == nil {
		return nil, fmt.Errorf("core: stream store is required")
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, fmt.Errorf("core: recipient is required")
	}
	return l.Store.ListByRecipient(ctx, recipient)
}

func (l *StreamLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}
