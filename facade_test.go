package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	streamcommand "github.com/jshuaaaa/lz-stable-streaming/command"
	streamquery "github.com/jshuaaaa/lz-stable-streaming/query"
	"github.com/jshuaaaa/lz-stable-streaming/token"
	"github.com/jshuaaaa/lz-stable-streaming/transport"
)

func newFacadeFixture(t *testing.T) (*Facade, *token.MemoryLedger) {
	t.Helper()
	tokens := token.NewMemoryLedger()
	svc, err := NewService(Config{
		DomainID:      1,
		LedgerAddress: "vester-1",
		Gateway:       GatewayConfig{Admin: "admin"},
	},
		WithTokenLedger(tokens),
		WithClock(func() time.Time { return time.Unix(950, 0).UTC() }),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	gw, err := NewGateway(svc, WithEndpoint(transport.NewMemoryRelay()))
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	facade, err := NewFacade(svc, WithGatewayService(gw))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	return facade, tokens
}

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, _ := newFacadeFixture(t)

	commands := facade.Commands()
	if commands.CreateStream == nil || commands.Withdraw == nil || commands.SendMessage == nil ||
		commands.ReceiveMessage == nil || commands.SetTrustedPeer == nil {
		t.Fatalf("expected command handlers to be wired: %+v", commands)
	}
	queries := facade.Queries()
	if queries.ViewStream == nil || queries.ViewNextStreamID == nil || queries.ListStreams == nil ||
		queries.Redeemable == nil || queries.ListWithdrawals == nil || queries.TrustedPeer == nil {
		t.Fatalf("expected query handlers to be wired: %+v", queries)
	}
	if facade.Service() == nil || facade.Gateway() == nil {
		t.Fatalf("expected service and gateway to be retained")
	}
}

func TestNewFacade_WithoutGatewayLeavesCrossDomainHandlersNil(t *testing.T) {
	svc, err := NewService(Config{DomainID: 1, LedgerAddress: "vester-1"}, WithTokenLedger(token.NewMemoryLedger()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if facade.Commands().SendMessage != nil || facade.Queries().TrustedPeer != nil {
		t.Fatalf("expected gateway handlers to stay nil")
	}
	if facade.Gateway() != nil {
		t.Fatalf("expected no gateway")
	}

	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected missing service error")
	}
	var nilFacade *Facade
	if nilFacade.Service() != nil || nilFacade.Commands().CreateStream != nil {
		t.Fatalf("expected nil facade to return zero values")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	facade, tokens := newFacadeFixture(t)
	ctx := context.Background()
	if err := tokens.Mint(ctx, "usdc", "deployer", uint256.NewInt(99)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := tokens.Approve(ctx, "usdc", "deployer", "vester-1", uint256.NewInt(99)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if err := facade.Commands().CreateStream.Execute(ctx, streamcommand.CreateStreamMessage{Request: CreateStreamRequest{
		Caller:        "deployer",
		TokenAddress:  "usdc",
		Recipient:     "alice",
		StartTime:     901,
		EndTime:       1000,
		DepositAmount: uint256.NewInt(99),
	}}); err != nil {
		t.Fatalf("execute create stream: %v", err)
	}

	redeemable, err := facade.Queries().Redeemable.Query(ctx, streamquery.RedeemableMessage{StreamID: 1})
	if err != nil {
		t.Fatalf("query redeemable: %v", err)
	}
	if redeemable.Uint64() != 49 {
		t.Fatalf("expected 49 redeemable at t=950, got %s", redeemable.Dec())
	}

	streams, err := facade.Queries().ListStreams.Query(ctx, streamquery.ListStreamsMessage{Recipient: "alice"})
	if err != nil {
		t.Fatalf("query list streams: %v", err)
	}
	if len(streams) != 1 || streams[0].ID != 1 {
		t.Fatalf("unexpected streams: %#v", streams)
	}

	if err := facade.Commands().SetTrustedPeer.Execute(ctx, streamcommand.SetTrustedPeerMessage{
		Caller:   "admin",
		DomainID: 2,
		Address:  "vester-2",
	}); err != nil {
		t.Fatalf("execute set trusted peer: %v", err)
	}
	peer, err := facade.Queries().TrustedPeer.Query(ctx, streamquery.TrustedPeerMessage{DomainID: 2})
	if err != nil {
		t.Fatalf("query trusted peer: %v", err)
	}
	if peer.Address != "vester-2" {
		t.Fatalf("unexpected trusted peer: %#v", peer)
	}
}
