package streaming_test

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	streaming "github.com/jshuaaaa/lz-stable-streaming"
	"github.com/jshuaaaa/lz-stable-streaming/core"
	sqlstore "github.com/jshuaaaa/lz-stable-streaming/store/sql"
	"github.com/jshuaaaa/lz-stable-streaming/token"
	"github.com/jshuaaaa/lz-stable-streaming/transport"
)

func TestCrossDomain_RemoteWithdrawalSettlesAgainstSQLLedger(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0).UTC()
	relay := transport.NewDeferredRelay()

	client, err := sqlstore.OpenClient(ctx, core.PersistenceConfig{Driver: "sqlite3"})
	if err != nil {
		t.Fatalf("open client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("repository factory: %v", err)
	}

	homeTokens := token.NewMemoryLedger()
	home, err := streaming.NewService(streaming.Config{
		DomainID:      1,
		LedgerAddress: "vester-1",
		Gateway:       streaming.GatewayConfig{Admin: "admin"},
	},
		streaming.WithTokenLedger(homeTokens),
		streaming.WithStreamStore(factory.StreamStore()),
		streaming.WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("new home service: %v", err)
	}
	homeGateway, err := streaming.NewGateway(home,
		streaming.WithEndpoint(relay),
		streaming.WithTrustedPeerStore(factory.TrustedPeerStore()),
		streaming.WithReplayLedger(factory.ReceiptStore()),
	)
	if err != nil {
		t.Fatalf("new home gateway: %v", err)
	}

	remote, err := streaming.NewService(streaming.Config{
		DomainID:      2,
		LedgerAddress: "vester-2",
		Gateway:       streaming.GatewayConfig{Admin: "admin"},
	}, streaming.WithTokenLedger(token.NewMemoryLedger()), streaming.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new remote service: %v", err)
	}
	remoteGateway, err := streaming.NewGateway(remote, streaming.WithEndpoint(relay))
	if err != nil {
		t.Fatalf("new remote gateway: %v", err)
	}

	if err := relay.Register(1, "vester-1", homeGateway); err != nil {
		t.Fatalf("register home: %v", err)
	}
	if err := relay.Register(2, "vester-2", remoteGateway); err != nil {
		t.Fatalf("register remote: %v", err)
	}
	if err := homeGateway.SetTrustedPeer(ctx, "admin", 2, "vester-2"); err != nil {
		t.Fatalf("trust remote: %v", err)
	}
	if err := remoteGateway.SetTrustedPeer(ctx, "admin", 1, "vester-1"); err != nil {
		t.Fatalf("trust home: %v", err)
	}

	if err := homeTokens.Mint(ctx, "usdc", "deployer", uint256.NewInt(99)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := homeTokens.Approve(ctx, "usdc", "deployer", home.Address(), uint256.NewInt(99)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	streamID, err := home.CreateStream(ctx, streaming.CreateStreamRequest{
		Caller:        "deployer",
		TokenAddress:  "usdc",
		Recipient:     "alice",
		StartTime:     901,
		EndTime:       1000,
		DepositAmount: uint256.NewInt(99),
	})
	if err != nil {
		t.Fatalf("create stream: %v", err)
	}

	msg, err := remoteGateway.SendMessage(ctx, streaming.SendRequest{
		Caller:         "alice",
		TargetDomainID: 1,
		StreamID:       streamID,
		Amount:         uint256.NewInt(40),
	})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if relay.Pending() != 1 {
		t.Fatalf("expected message pending until flush, got %d", relay.Pending())
	}
	if stream, err := home.ViewStream(ctx, streamID); err != nil || stream.Balance.Uint64() != 99 {
		t.Fatalf("expected balance untouched before delivery, got %v (%v)", stream.Balance, err)
	}

	if _, err := relay.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	deliveries := relay.Deliveries()
	if len(deliveries) != 1 || deliveries[0].Err != nil {
		t.Fatalf("expected one successful delivery, got %+v", deliveries)
	}
	stream, err := home.ViewStream(ctx, streamID)
	if err != nil {
		t.Fatalf("view stream: %v", err)
	}
	if stream.Balance.Uint64() != 59 {
		t.Fatalf("expected balance 59 after remote withdrawal, got %s", stream.Balance.Dec())
	}
	history, err := home.ListWithdrawals(ctx, streamID)
	if err != nil {
		t.Fatalf("list withdrawals: %v", err)
	}
	if len(history) != 1 || history[0].Origin != "remote:2" {
		t.Fatalf("expected one persisted remote withdrawal, got %+v", history)
	}

	_, err = homeGateway.ReceiveMessage(ctx, streaming.InboundMessage{
		SourceDomainID: msg.SourceDomainID,
		SourceAddress:  msg.SourceAddress,
		Payload:        msg.Payload,
	})
	if got := core.MapError(err).TextCode; got != core.ErrorDuplicateMessage {
		t.Fatalf("expected replay to be rejected by the persisted receipt, got %q (%v)", got, err)
	}
	if stream, _ := home.ViewStream(ctx, streamID); stream.Balance.Uint64() != 59 {
		t.Fatalf("expected replay to leave balance at 59, got %s", stream.Balance.Dec())
	}
}
