package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

type WithdrawalPhase string

const (
	WithdrawalValidating   WithdrawalPhase = "validating"
	WithdrawalComputing    WithdrawalPhase = "computing"
	WithdrawalTransferring WithdrawalPhase = "transferring"
	WithdrawalSettled      WithdrawalPhase = "settled"
)

// WithdrawalError records the phase a withdrawal stopped in. It unwraps to
// the underlying sentinel.
type WithdrawalError struct {
	StreamID uint64
	Phase    WithdrawalPhase
	Err      error
}

func (e *WithdrawalError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("withdraw stream %d (%s): %v", e.StreamID, e.Phase, e.Err)
}

func (e *WithdrawalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithdrawalProcessor is the only component that lowers a stream balance.
type WithdrawalProcessor struct {
	Address string
	Store   StreamStore
	Tokens  TokenLedger
	Now     func() time.Time
	NewID   func() string
}

func NewWithdrawalProcessor(address string, store StreamStore, tokens TokenLedger) *WithdrawalProcessor {
	return &WithdrawalProcessor{
		Address: strings.TrimSpace(address),
		Store:   store,
		Tokens:  tokens,
		Now: func() time.Time {
			return time.Now().UTC()
		},
		NewID: func() string {
			return uuid.NewString()
		},
	}
}

// Withdraw pays amount out of the stream to its recipient. A zero amount
// passes the same ownership checks and returns the current balance without
// writing history or moving tokens.
//
// The token payout runs inside the store transaction, after the balance
// write and before commit. A payout failure rolls the balance back. A commit
// failure after a successful payout leaves tokens moved with the balance
// unchanged; the error is returned and the stream must be reconciled against
// the token ledger.
func (p *WithdrawalProcessor) Withdraw(ctx context.Context, req WithdrawRequest) (WithdrawalResult, error) {
	if p == nil || p.Store == nil {
		return WithdrawalResult{}, fmt.Errorf("core: stream store is required")
	}
	if p.Tokens == nil {
		return WithdrawalResult{}, fmt.Errorf("core: token ledger is required")
	}
	origin := strings.TrimSpace(req.Origin)
	if origin == "" {
		origin = OriginLocal
	}

	var result WithdrawalResult
	err := p.Store.InTx(ctx, func(ctx context.Context, tx StreamTx) error {
		stream, err := tx.Get(ctx, req.StreamID)
		if err != nil {
			return p.phaseError(req.StreamID, WithdrawalValidating, err)
		}
		if !SameAddress(stream.Recipient, req.Requester) {
			return p.phaseError(req.StreamID, WithdrawalValidating, ErrNotYourStream)
		}
		if req.Amount == nil || req.Amount.IsZero() {
			result = WithdrawalResult{
				StreamID:  stream.ID,
				Amount:    new(uint256.Int),
				Remaining: cloneAmount(stream.Balance),
			}
			return nil
		}

		now := p.now()
		redeemable := Redeemable(stream, uint64(now.Unix()))
		if redeemable.Lt(req.Amount) {
			return p.phaseError(req.StreamID, WithdrawalComputing, fmt.Errorf(
				"%w: requested %s, redeemable %s",
				ErrAmountExceedsBalance,
				req.Amount.Dec(),
				redeemable.Dec(),
			))
		}

		amount := cloneAmount(req.Amount)
		remaining := new(uint256.Int).Sub(cloneAmount(stream.Balance), amount)
		settled := remaining.IsZero()
		if settled {
			err = tx.Delete(ctx, stream.ID, stream.Balance)
		} else {
			err = tx.UpdateBalance(ctx, stream.ID, stream.Balance, remaining)
		}
		if err != nil {
			return p.phaseError(req.StreamID, WithdrawalTransferring, err)
		}
		if err := tx.RecordWithdrawal(ctx, WithdrawalRecord{
			ID:         p.newID(),
			StreamID:   stream.ID,
			Requester:  strings.TrimSpace(req.Requester),
			Amount:     cloneAmount(amount),
			Remaining:  cloneAmount(remaining),
			Origin:     origin,
			OccurredAt: now,
		}); err != nil {
			return p.phaseError(req.StreamID, WithdrawalTransferring, err)
		}
		if err := p.Tokens.Transfer(ctx, stream.TokenAddress, p.Address, strings.TrimSpace(req.Requester), amount); err != nil {
			return p.phaseError(req.StreamID, WithdrawalTransferring, fmt.Errorf("%w: %w", ErrTokenTransferFailed, err))
		}

		result = WithdrawalResult{
			StreamID:  stream.ID,
			Amount:    amount,
			Remaining: remaining,
			Settled:   settled,
		}
		return nil
	})
	if err != nil {
		return WithdrawalResult{}, err
	}
	return result, nil
}

func (p *WithdrawalProcessor) phaseError(streamID uint64, phase WithdrawalPhase, err error) error {
	return &WithdrawalError{StreamID: streamID, Phase: phase, Err: err}
}

func (p *WithdrawalProcessor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *WithdrawalProcessor) newID() string {
	if p != nil && p.NewID != nil {
		if id := strings.TrimSpace(p.NewID()); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

var _ Withdrawer = (*WithdrawalProcessor)(nil)
