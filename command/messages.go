package command

import (
	"strings"

	"github.com/jshuaaaa/lz-stable-streaming/core"
	"github.com/jshuaaaa/lz-stable-streaming/gateway"
)

const (
	TypeCreateStream   = "streaming.command.stream.create"
	TypeWithdraw       = "streaming.command.stream.withdraw"
	TypeSendMessage    = "streaming.command.gateway.send"
	TypeReceiveMessage = "streaming.command.gateway.receive"
	TypeSetTrustedPeer = "streaming.command.gateway.trusted_peer.set"
)

type CreateStreamMessage struct {
	Request core.CreateStreamRequest
}

func (CreateStreamMessage) Type() string { return TypeCreateStream }

// Validate checks the request shape only; deposit and schedule rules
// belong to the ledger.
func (m CreateStreamMessage) Validate() error {
	if strings.TrimSpace(m.Request.Caller) == "" {
		return commandValidationError("caller", "caller is required")
	}
	if strings.TrimSpace(m.Request.TokenAddress) == "" {
		return commandValidationError("token_address", "token address is required")
	}
	if strings.TrimSpace(m.Request.Recipient) == "" {
		return commandValidationError("recipient", "recipient is required")
	}
	return nil
}

type WithdrawMessage struct {
	Request core.WithdrawRequest
}

func (WithdrawMessage) Type() string { return TypeWithdraw }

func (m WithdrawMessage) Validate() error {
	if strings.TrimSpace(m.Request.Requester) == "" {
		return commandValidationError("requester", "requester is required")
	}
	if m.Request.Amount == nil {
		return commandValidationError("amount", "amount is required")
	}
	return nil
}

type SendMessageMessage struct {
	Request gateway.SendRequest
}

func (SendMessageMessage) Type() string { return TypeSendMessage }

func (m SendMessageMessage) Validate() error {
	if strings.TrimSpace(m.Request.Caller) == "" {
		return commandValidationError("caller", "caller is required")
	}
	if m.Request.Amount == nil {
		return commandValidationError("amount", "amount is required")
	}
	return nil
}

type ReceiveMessageMessage struct {
	Message core.InboundMessage
}

func (ReceiveMessageMessage) Type() string { return TypeReceiveMessage }

func (m ReceiveMessageMessage) Validate() error {
	if strings.TrimSpace(m.Message.SourceAddress) == "" {
		return commandValidationError("source_address", "source address is required")
	}
	if len(m.Message.Payload) == 0 {
		return commandValidationError("payload", "payload is required")
	}
	return nil
}

type SetTrustedPeerMessage struct {
	Caller   string
	DomainID uint32
	Address  string
}

func (SetTrustedPeerMessage) Type() string { return TypeSetTrustedPeer }

func (m SetTrustedPeerMessage) Validate() error {
	if strings.TrimSpace(m.Caller) == "" {
		return commandValidationError("caller", "caller is required")
	}
	if strings.TrimSpace(m.Address) == "" {
		return commandValidationError("address", "trusted peer address is required")
	}
	return nil
}
