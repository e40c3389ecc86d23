package query

import (
	"strings"
)

const (
	TypeViewStream       = "streaming.query.stream.view"
	TypeViewNextStreamID = "streaming.query.stream.next_id"
	TypeListStreams      = "streaming.query.stream.list"
	TypeRedeemable       = "streaming.query.stream.redeemable"
	TypeListWithdrawals  = "streaming.query.withdrawal.list"
	TypeTrustedPeer      = "streaming.query.gateway.trusted_peer"
)

type ViewStreamMessage struct {
	StreamID uint64
}

func (ViewStreamMessage) Type() string { return TypeViewStream }

type ViewNextStreamIDMessage struct{}

func (ViewNextStreamIDMessage) Type() string { return TypeViewNextStreamID }

type ListStreamsMessage struct {
	Recipient string
}

func (ListStreamsMessage) Type() string { return TypeListStreams }

func (m ListStreamsMessage) Validate() error {
	if strings.TrimSpace(m.Recipient) == "" {
		return queryValidationError("recipient", "recipient is required")
	}
	return nil
}

type RedeemableMessage struct {
	StreamID uint64
}

func (RedeemableMessage) Type() string { return TypeRedeemable }

type ListWithdrawalsMessage struct {
	StreamID uint64
}

func (ListWithdrawalsMessage) Type() string { return TypeListWithdrawals }

func (m ListWithdrawalsMessage) Validate() error {
	if m.StreamID == 0 {
		return queryValidationError("stream_id", "stream id is required")
	}
	return nil
}

type TrustedPeerMessage struct {
	DomainID uint32
}

func (TrustedPeerMessage) Type() string { return TypeTrustedPeer }
