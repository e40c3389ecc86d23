package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/holiman/uint256"
	"github.com/jshuaaaa/lz-stable-streaming/core"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrInvalidAccount        = errors.New("token: account is required")
	ErrTransfersPaused       = errors.New("token: transfers paused")
)

type accountKey struct {
	token string
	owner string
}

type allowanceKey struct {
	token   string
	owner   string
	spender string
}

// MemoryLedger keeps balances and allowances per token. Every mutation is
// all-or-nothing.
type MemoryLedger struct {
	mu         sync.Mutex
	balances   map[accountKey]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
	paused     map[string]error
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances:   map[accountKey]*uint256.Int{},
		allowances: map[allowanceKey]*uint256.Int{},
		paused:     map[string]error{},
	}
}

func (l *MemoryLedger) Mint(_ context.Context, token, owner string, amount *uint256.Int) error {
	if l == nil {
		return fmt.Errorf("token: ledger is not configured")
	}
	key, err := newAccountKey(token, owner)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := core.CloneAmount(l.balances[key])
	sum, overflow := new(uint256.Int).AddOverflow(balance, core.CloneAmount(amount))
	if overflow {
		return fmt.Errorf("token: mint overflows balance of %s", key.owner)
	}
	l.balances[key] = sum
	return nil
}

// Approve replaces the allowance spender may pull from owner.
func (l *MemoryLedger) Approve(_ context.Context, token, owner, spender string, amount *uint256.Int) error {
	if l == nil {
		return fmt.Errorf("token: ledger is not configured")
	}
	key, err := newAllowanceKey(token, owner, spender)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[key] = core.CloneAmount(amount)
	return nil
}

func (l *MemoryLedger) Allowance(_ context.Context, token, owner, spender string) (*uint256.Int, error) {
	if l == nil {
		return nil, fmt.Errorf("token: ledger is not configured")
	}
	key, err := newAllowanceKey(token, owner, spender)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.CloneAmount(l.allowances[key]), nil
}

func (l *MemoryLedger) BalanceOf(_ context.Context, token, owner string) (*uint256.Int, error) {
	if l == nil {
		return nil, fmt.Errorf("token: ledger is not configured")
	}
	key, err := newAccountKey(token, owner)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.CloneAmount(l.balances[key]), nil
}

func (l *MemoryLedger) Transfer(_ context.Context, token, from, to string, amount *uint256.Int) error {
	if l == nil {
		return fmt.Errorf("token: ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.pausedLocked(token); err != nil {
		return err
	}
	return l.moveLocked(token, from, to, amount)
}

// TransferFrom moves amount from owner to to on behalf of spender. A
// spender moving its own funds needs no allowance.
func (l *MemoryLedger) TransferFrom(_ context.Context, token, spender, from, to string, amount *uint256.Int) error {
	if l == nil {
		return fmt.Errorf("token: ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.pausedLocked(token); err != nil {
		return err
	}
	value := core.CloneAmount(amount)
	if core.SameAddress(spender, from) {
		return l.moveLocked(token, from, to, value)
	}

	key, err := newAllowanceKey(token, from, spender)
	if err != nil {
		return err
	}
	allowance := core.CloneAmount(l.allowances[key])
	if allowance.Lt(value) {
		return fmt.Errorf("%w: %s may pull %s from %s, requested %s", ErrInsufficientAllowance, key.spender, allowance.Dec(), key.owner, value.Dec())
	}
	if err := l.moveLocked(token, from, to, value); err != nil {
		return err
	}
	l.allowances[key] = allowance.Sub(allowance, value)
	return nil
}

// Pause makes every transfer of token fail with err until Resume is
// called. A nil err pauses with ErrTransfersPaused.
func (l *MemoryLedger) Pause(token string, err error) {
	if l == nil {
		return
	}
	if err == nil {
		err = ErrTransfersPaused
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused[core.NormalizeAddress(token)] = err
}

func (l *MemoryLedger) Resume(token string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.paused, core.NormalizeAddress(token))
}

func (l *MemoryLedger) pausedLocked(token string) error {
	if err, ok := l.paused[core.NormalizeAddress(token)]; ok {
		return err
	}
	return nil
}

func (l *MemoryLedger) moveLocked(token, from, to string, amount *uint256.Int) error {
	fromKey, err := newAccountKey(token, from)
	if err != nil {
		return err
	}
	toKey, err := newAccountKey(token, to)
	if err != nil {
		return err
	}
	value := core.CloneAmount(amount)
	fromBalance := core.CloneAmount(l.balances[fromKey])
	if fromBalance.Lt(value) {
		return fmt.Errorf("%w: %s holds %s, requested %s", ErrInsufficientBalance, fromKey.owner, fromBalance.Dec(), value.Dec())
	}
	if fromKey == toKey {
		return nil
	}
	toBalance := core.CloneAmount(l.balances[toKey])
	credited, overflow := new(uint256.Int).AddOverflow(toBalance, value)
	if overflow {
		return fmt.Errorf("token: transfer overflows balance of %s", toKey.owner)
	}
	l.balances[fromKey] = fromBalance.Sub(fromBalance, value)
	l.balances[toKey] = credited
	return nil
}

func newAccountKey(token, owner string) (accountKey, error) {
	key := accountKey{token: core.NormalizeAddress(token), owner: core.NormalizeAddress(owner)}
	if key.token == "" || key.owner == "" {
		return accountKey{}, fmt.Errorf("%w: token=%q owner=%q", ErrInvalidAccount, strings.TrimSpace(token), strings.TrimSpace(owner))
	}
	return key, nil
}

func newAllowanceKey(token, owner, spender string) (allowanceKey, error) {
	account, err := newAccountKey(token, owner)
	if err != nil {
		return allowanceKey{}, err
	}
	spender = core.NormalizeAddress(spender)
	if spender == "" {
		return allowanceKey{}, fmt.Errorf("%w: spender", ErrInvalidAccount)
	}
	return allowanceKey{token: account.token, owner: account.owner, spender: spender}, nil
}

var _ core.TokenLedger = (*MemoryLedger)(nil)
