package gocommand

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	"github.com/holiman/uint256"
	streamcommand "github.com/jshuaaaa/lz-stable-streaming/command"
	"github.com/jshuaaaa/lz-stable-streaming/core"
	"github.com/jshuaaaa/lz-stable-streaming/gateway"
	streamquery "github.com/jshuaaaa/lz-stable-streaming/query"
	"github.com/jshuaaaa/lz-stable-streaming/token"
	"github.com/jshuaaaa/lz-stable-streaming/transport"
)

func TestBusRegister_DispatchesThroughService(t *testing.T) {
	ctx := context.Background()
	tokens := token.NewMemoryLedger()
	svc, err := core.NewService(core.Config{
		DomainID:      1,
		LedgerAddress: "vester-1",
		Gateway:       core.GatewayConfig{Admin: "admin"},
	},
		core.WithTokenLedger(tokens),
		core.WithClock(func() time.Time { return time.Unix(1000, 0).UTC() }),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	gw, err := gateway.NewForService(svc, gateway.WithEndpoint(transport.NewMemoryRelay()))
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	if err := tokens.Mint(ctx, "usdc", "deployer", uint256.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := tokens.Approve(ctx, "usdc", "deployer", svc.Address(), uint256.NewInt(99)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	bus := NewBus(nil)
	t.Cleanup(bus.Close)
	subs, err := bus.Register(StreamingHandlers{
		Streams:      svc,
		Gateway:      gw,
		StreamReader: svc,
		Withdrawals:  svc,
		TrustedPeers: gw,
	})
	if err != nil {
		t.Fatalf("register streaming: %v", err)
	}
	if len(subs) != 11 || bus.Subscriptions() != 11 {
		t.Fatalf("expected 11 subscriptions, got %d (bus %d)", len(subs), bus.Subscriptions())
	}
	if err := bus.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	created := command.NewResult[streamcommand.CreateStreamResult]()
	if err := Dispatch(command.ContextWithResult(ctx, created), streamcommand.CreateStreamMessage{Request: core.CreateStreamRequest{
		Caller:        "deployer",
		TokenAddress:  "usdc",
		Recipient:     "alice",
		StartTime:     901,
		EndTime:       1000,
		DepositAmount: uint256.NewInt(99),
	}}); err != nil {
		t.Fatalf("dispatch create stream: %v", err)
	}
	result, ok := created.Load()
	if !ok || result.StreamID != 1 {
		t.Fatalf("expected stream 1 to be created, got %#v", result)
	}

	stream, err := Query[streamquery.ViewStreamMessage, core.Stream](ctx, streamquery.ViewStreamMessage{StreamID: 1})
	if err != nil {
		t.Fatalf("query stream: %v", err)
	}
	if stream.Recipient != "alice" || stream.Balance.Uint64() != 99 {
		t.Fatalf("unexpected stream: %#v", stream)
	}

	next, err := Query[streamquery.ViewNextStreamIDMessage, uint64](ctx, streamquery.ViewNextStreamIDMessage{})
	if err != nil {
		t.Fatalf("query next stream id: %v", err)
	}
	if next != 2 {
		t.Fatalf("expected next stream id 2, got %d", next)
	}

	withdrawn := command.NewResult[core.WithdrawalResult]()
	if err := Dispatch(command.ContextWithResult(ctx, withdrawn), streamcommand.WithdrawMessage{Request: core.WithdrawRequest{
		StreamID:  1,
		Amount:    uint256.NewInt(40),
		Requester: "alice",
	}}); err != nil {
		t.Fatalf("dispatch withdraw: %v", err)
	}
	if withdrawal, ok := withdrawn.Load(); !ok || withdrawal.Remaining.Uint64() != 59 {
		t.Fatalf("unexpected withdrawal result: %#v", withdrawal)
	}

	history, err := Query[streamquery.ListWithdrawalsMessage, []core.WithdrawalRecord](ctx, streamquery.ListWithdrawalsMessage{StreamID: 1})
	if err != nil {
		t.Fatalf("query withdrawals: %v", err)
	}
	if len(history) != 1 || history[0].Amount.Uint64() != 40 {
		t.Fatalf("unexpected withdrawal history: %#v", history)
	}

	if err := Dispatch(ctx, streamcommand.SetTrustedPeerMessage{Caller: "admin", DomainID: 2, Address: "vester-2"}); err != nil {
		t.Fatalf("dispatch set trusted peer: %v", err)
	}
	peer, err := Query[streamquery.TrustedPeerMessage, core.TrustedPeer](ctx, streamquery.TrustedPeerMessage{DomainID: 2})
	if err != nil {
		t.Fatalf("query trusted peer: %v", err)
	}
	if peer.Address != "vester-2" {
		t.Fatalf("unexpected trusted peer: %#v", peer)
	}
}

func TestBusRegister_SkipsMissingHandlers(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(bus.Close)
	subs, err := bus.Register(StreamingHandlers{TrustedPeers: stubPeerReader{}})
	if err != nil {
		t.Fatalf("register streaming: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected a single subscription, got %d", len(subs))
	}

	empty, err := NewBus(nil).Register(StreamingHandlers{})
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty handlers to register nothing, got %d (%v)", len(empty), err)
	}
}

type stubStreams struct{}

func (stubStreams) CreateStream(context.Context, core.CreateStreamRequest) (uint64, error) {
	return 1, nil
}

func (stubStreams) Withdraw(context.Context, core.WithdrawRequest) (core.WithdrawalResult, error) {
	return core.WithdrawalResult{}, nil
}

type stubPeerReader struct{}

func (stubPeerReader) TrustedPeer(context.Context, uint32) (core.TrustedPeer, error) {
	return core.TrustedPeer{}, nil
}
