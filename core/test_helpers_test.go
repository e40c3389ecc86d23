package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
)

const (
	testToken     = "token-usdc"
	testAuthority = "authority"
	testRecipient = "recipient"
	testLedger    = "ledger"
)

type fakeTokenLedger struct {
	mu              sync.Mutex
	balances        map[string]*uint256.Int
	transferErr     error
	transferFromErr error
	transfers       int
}

func newFakeTokenLedger() *fakeTokenLedger {
	return &fakeTokenLedger{balances: map[string]*uint256.Int{}}
}

func (l *fakeTokenLedger) key(token, owner string) string {
	return NormalizeAddress(token) + "|" + NormalizeAddress(owner)
}

func (l *fakeTokenLedger) mint(token, owner string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current := cloneAmount(l.balances[l.key(token, owner)])
	l.balances[l.key(token, owner)] = current.Add(current, uint256.NewInt(amount))
}

func (l *fakeTokenLedger) move(token, from, to string, amount *uint256.Int) error {
	fromBalance := cloneAmount(l.balances[l.key(token, from)])
	if fromBalance.Lt(amount) {
		return fmt.Errorf("fake token: insufficient balance")
	}
	toBalance := cloneAmount(l.balances[l.key(token, to)])
	l.balances[l.key(token, from)] = fromBalance.Sub(fromBalance, amount)
	l.balances[l.key(token, to)] = toBalance.Add(toBalance, amount)
	return nil
}

func (l *fakeTokenLedger) Transfer(_ context.Context, token, from, to string, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.transferErr != nil {
		return l.transferErr
	}
	l.transfers++
	return l.move(token, from, to, amount)
}

func (l *fakeTokenLedger) TransferFrom(_ context.Context, token, _ string, from, to string, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.transferFromErr != nil {
		return l.transferFromErr
	}
	return l.move(token, from, to, amount)
}

func (l *fakeTokenLedger) BalanceOf(_ context.Context, token, owner string) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneAmount(l.balances[l.key(token, owner)]), nil
}

func (l *fakeTokenLedger) balance(t *testing.T, owner string) uint64 {
	t.Helper()
	amount, err := l.BalanceOf(context.Background(), testToken, owner)
	if err != nil {
		t.Fatalf("balance of %s: %v", owner, err)
	}
	return amount.Uint64()
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(unix int64) *testClock {
	return &testClock{now: time.Unix(unix, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(unix, 0).UTC()
}

type serviceFixture struct {
	svc    *Service
	tokens *fakeTokenLedger
	store  *MemoryStreamStore
	clock  *testClock
}

func newServiceFixture(t *testing.T, opts ...Option) serviceFixture {
	t.Helper()
	tokens := newFakeTokenLedger()
	tokens.mint(testToken, testAuthority, 1_000)
	store := NewMemoryStreamStore()
	clock := newTestClock(900)
	base := []Option{
		WithStreamStore(store),
		WithTokenLedger(tokens),
		WithClock(clock.Now),
		WithLogger(stubLogger{}),
	}
	svc, err := NewService(Config{LedgerAddress: testLedger, DomainID: 1}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return serviceFixture{svc: svc, tokens: tokens, store: store, clock: clock}
}

func (f serviceFixture) createDefaultStream(t *testing.T) uint64 {
	t.Helper()
	id, err := f.svc.CreateStream(context.Background(), CreateStreamRequest{
		Caller:        testAuthority,
		TokenAddress:  testToken,
		Recipient:     testRecipient,
		StartTime:     901,
		EndTime:       1000,
		DepositAmount: uint256.NewInt(99),
	})
	if err != nil {
		t.Fatalf("create stream: %v", err)
	}
	return id
}

func expectTextCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := MapError(err).TextCode; got != code {
		t.Fatalf("expected text code %s, got %s (%v)", code, got, err)
	}
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}
