package query

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/jshuaaaa/lz-stable-streaming/core"
)

type StreamReader interface {
	ViewStream(ctx context.Context, streamID uint64) (core.Stream, error)
	ViewNextStreamID(ctx context.Context) (uint64, error)
	ListStreams(ctx context.Context, recipient string) ([]core.Stream, error)
}

type WithdrawalReader interface {
	ListWithdrawals(ctx context.Context, streamID uint64) ([]core.WithdrawalRecord, error)
	Redeemable(ctx context.Context, streamID uint64) (*uint256.Int, error)
}

type TrustedPeerReader interface {
	TrustedPeer(ctx context.Context, domainID uint32) (core.TrustedPeer, error)
}

type ViewStreamQuery struct {
	reader StreamReader
}

func NewViewStreamQuery(reader StreamReader) *ViewStreamQuery {
	return &ViewStreamQuery{reader: reader}
}

func (q *ViewStreamQuery) Query(ctx context.Context, msg ViewStreamMessage) (core.Stream, error) {
	if q == nil || q.reader == nil {
		return core.Stream{}, queryDependencyError("query: stream reader is required")
	}
	return q.reader.ViewStream(ctx, msg.StreamID)
}

type ViewNextStreamIDQuery struct {
	reader StreamReader
}

func NewViewNextStreamIDQuery(reader StreamReader) *ViewNextStreamIDQuery {
	return &ViewNextStreamIDQuery{reader: reader}
}

func (q *ViewNextStreamIDQuery) Query(ctx context.Context, _ ViewNextStreamIDMessage) (uint64, error) {
	if q == nil || q.reader == nil {
		return 0, queryDependencyError("query: stream reader is required")
	}
	return q.reader.ViewNextStreamID(ctx)
}

type ListStreamsQuery struct {
	reader StreamReader
}

func NewListStreamsQuery(reader StreamReader) *ListStreamsQuery {
	return &ListStreamsQuery{reader: reader}
}

func (q *ListStreamsQuery) Query(ctx context.Context, msg ListStreamsMessage) ([]core.Stream, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: stream reader is required")
	}
	return q.reader.ListStreams(ctx, msg.Recipient)
}

type RedeemableQuery struct {
	reader WithdrawalReader
}

func NewRedeemableQuery(reader WithdrawalReader) *RedeemableQuery {
	return &RedeemableQuery{reader: reader}
}

func (q *RedeemableQuery) Query(ctx context.Context, msg RedeemableMessage) (*uint256.Int, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: withdrawal reader is required")
	}
	return q.reader.Redeemable(ctx, msg.StreamID)
}

type ListWithdrawalsQuery struct {
	reader WithdrawalReader
}

func NewListWithdrawalsQuery(reader WithdrawalReader) *ListWithdrawalsQuery {
	return &ListWithdrawalsQuery{reader: reader}
}

func (q *ListWithdrawalsQuery) Query(ctx context.Context, msg ListWithdrawalsMessage) ([]core.WithdrawalRecord, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: withdrawal reader is required")
	}
	return q.reader.ListWithdrawals(ctx, msg.StreamID)
}

type TrustedPeerQuery struct {
	reader TrustedPeerReader
}

func NewTrustedPeerQuery(reader TrustedPeerReader) *TrustedPeerQuery {
	return &TrustedPeerQuery{reader: reader}
}

func (q *TrustedPeerQuery) Query(ctx context.Context, msg TrustedPeerMessage) (core.TrustedPeer, error) {
	if q == nil || q.reader == nil {
		return core.TrustedPeer{}, queryDependencyError("query: trusted peer reader is required")
	}
	return q.reader.TrustedPeer(ctx, msg.DomainID)
}
