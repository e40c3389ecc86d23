package query

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/holiman/uint256"
	"github.com/jshuaaaa/lz-stable-streaming/core"
)

func TestStreamQueries_Delegate(t *testing.T) {
	reader := &stubStreamReader{
		streams: map[uint64]core.Stream{
			1: {ID: 1, Recipient: "bob", Balance: uint256.NewInt(99)},
			2: {ID: 2, Recipient: "bob", Balance: uint256.NewInt(10)},
		},
		next: 3,
	}
	ctx := context.Background()

	stream, err := NewViewStreamQuery(reader).Query(ctx, ViewStreamMessage{StreamID: 2})
	if err != nil {
		t.Fatalf("view stream: %v", err)
	}
	if stream.ID != 2 || stream.Balance.Uint64() != 10 {
		t.Fatalf("unexpected stream: %#v", stream)
	}

	next, err := NewViewNextStreamIDQuery(reader).Query(ctx, ViewNextStreamIDMessage{})
	if err != nil {
		t.Fatalf("view next stream id: %v", err)
	}
	if next != 3 {
		t.Fatalf("expected next id 3, got %d", next)
	}

	streams, err := NewListStreamsQuery(reader).Query(ctx, ListStreamsMessage{Recipient: "bob"})
	if err != nil {
		t.Fatalf("list streams: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("expected two streams, got %d", len(streams))
	}
	if reader.lastRecipient != "bob" {
		t.Fatalf("expected recipient bob forwarded, got %q", reader.lastRecipient)
	}
}

func TestWithdrawalQueries_Delegate(t *testing.T) {
	reader := stubWithdrawalReader{
		records: []core.WithdrawalRecord{{ID: "w1", StreamID: 1, Amount: uint256.NewInt(10)}},
		redeemable: map[uint64]uint64{
			1: 40,
		},
	}
	ctx := context.Background()

	records, err := NewListWithdrawalsQuery(reader).Query(ctx, ListWithdrawalsMessage{StreamID: 1})
	if err != nil {
		t.Fatalf("list withdrawals: %v", err)
	}
	if len(records) != 1 || records[0].ID != "w1" {
		t.Fatalf("unexpected withdrawals: %#v", records)
	}

	amount, err := NewRedeemableQuery(reader).Query(ctx, RedeemableMessage{StreamID: 1})
	if err != nil {
		t.Fatalf("redeemable: %v", err)
	}
	if amount.Uint64() != 40 {
		t.Fatalf("expected redeemable 40, got %s", amount.Dec())
	}
}

func TestTrustedPeerQuery_Delegates(t *testing.T) {
	reader := stubTrustedPeerReader{peer: core.TrustedPeer{DomainID: 2, Address: "remote"}}
	peer, err := NewTrustedPeerQuery(reader).Query(context.Background(), TrustedPeerMessage{DomainID: 2})
	if err != nil {
		t.Fatalf("trusted peer: %v", err)
	}
	if peer.Address != "remote" {
		t.Fatalf("unexpected trusted peer: %#v", peer)
	}
}

func TestListStreamsMessage_ValidateReturnsRichError(t *testing.T) {
	err := (ListStreamsMessage{Recipient: "  "}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.ErrorBadInput, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
	validation := rich.AllValidationErrors()
	if len(validation) == 0 || validation[0].Field != "recipient" {
		t.Fatalf("expected recipient validation field, got %+v", validation)
	}

	if err := (ListWithdrawalsMessage{}).Validate(); err == nil {
		t.Fatalf("expected stream id validation error")
	}
}

func TestQueries_NilReaderReturnsRichError(t *testing.T) {
	var q *ViewStreamQuery
	_, err := q.Query(context.Background(), ViewStreamMessage{StreamID: 1})
	if err == nil {
		t.Fatalf("expected dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.ErrorInternal, rich.TextCode)
	}
	if rich.Code != http.StatusInternalServerError {
		t.Fatalf("expected %d code, got %d", http.StatusInternalServerError, rich.Code)
	}

	if _, err := NewTrustedPeerQuery(nil).Query(context.Background(), TrustedPeerMessage{}); err == nil {
		t.Fatalf("expected trusted peer dependency error")
	}
}

type stubStreamReader struct {
	streams       map[uint64]core.Stream
	next          uint64
	lastRecipient string
}

func (s *stubStreamReader) ViewStream(_ context.Context, streamID uint64) (core.Stream, error) {
	stream, ok := s.streams[streamID]
	if !ok {
		return core.Stream{}, core.ErrStreamNotFound
	}
	return stream, nil
}

func (s *stubStreamReader) ViewNextStreamID(context.Context) (uint64, error) {
	return s.next, nil
}

func (s *stubStreamReader) ListStreams(_ context.Context, recipient string) ([]core.Stream, error) {
	s.lastRecipient = recipient
	out := []core.Stream{}
	for _, stream := range s.streams {
		if stream.Recipient == recipient {
			out = append(out, stream)
		}
	}
	return out, nil
}

type stubWithdrawalReader struct {
	records    []core.WithdrawalRecord
	redeemable map[uint64]uint64
}

func (s stubWithdrawalReader) ListWithdrawals(context.Context, uint64) ([]core.WithdrawalRecord, error) {
	return s.records, nil
}

func (s stubWithdrawalReader) Redeemable(_ context.Context, streamID uint64) (*uint256.Int, error) {
	return uint256.NewInt(s.redeemable[streamID]), nil
}

type stubTrustedPeerReader struct {
	peer core.TrustedPeer
}

func (s stubTrustedPeerReader) TrustedPeer(context.Context, uint32) (core.TrustedPeer, error) {
	return s.peer, nil
}
