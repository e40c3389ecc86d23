package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/jshuaaaa/lz-stable-streaming/core"
	"github.com/jshuaaaa/lz-stable-streaming/gateway"
)

type StreamService interface {
	CreateStream(ctx context.Context, req core.CreateStreamRequest) (uint64, error)
	Withdraw(ctx context.Context, req core.WithdrawRequest) (core.WithdrawalResult, error)
}

type GatewayService interface {
	SendMessage(ctx context.Context, req gateway.SendRequest) (core.OutboundMessage, error)
	ReceiveMessage(ctx context.Context, msg core.InboundMessage) (core.WithdrawalResult, error)
	SetTrustedPeer(ctx context.Context, caller string, domainID uint32, address string) error
}

// CreateStreamResult is stored in the command result collector.
type CreateStreamResult struct {
	StreamID uint64
}

type CreateStreamCommand struct {
	service StreamService
}

func NewCreateStreamCommand(service StreamService) *CreateStreamCommand {
	return &CreateStreamCommand{service: service}
}

func (c *CreateStreamCommand) Execute(ctx context.Context, msg CreateStreamMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: stream service is required")
	}
	id, err := c.service.CreateStream(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, CreateStreamResult{StreamID: id})
	return nil
}

type WithdrawCommand struct {
	service StreamService
}

func NewWithdrawCommand(service StreamService) *WithdrawCommand {
	return &WithdrawCommand{service: service}
}

func (c *WithdrawCommand) Execute(ctx context.Context, msg WithdrawMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: stream service is required")
	}
	out, err := c.service.Withdraw(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SendMessageCommand struct {
	service GatewayService
}

func NewSendMessageCommand(service GatewayService) *SendMessageCommand {
	return &SendMessageCommand{service: service}
}

func (c *SendMessageCommand) Execute(ctx context.Context, msg SendMessageMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: gateway service is required")
	}
	out, err := c.service.SendMessage(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReceiveMessageCommand struct {
	service GatewayService
}

func NewReceiveMessageCommand(service GatewayService) *ReceiveMessageCommand {
	return &ReceiveMessageCommand{service: service}
}

func (c *ReceiveMessageCommand) Execute(ctx context.Context, msg ReceiveMessageMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: gateway service is required")
	}
	out, err := c.service.ReceiveMessage(ctx, msg.Message)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetTrustedPeerCommand struct {
	service GatewayService
}

func NewSetTrustedPeerCommand(service GatewayService) *SetTrustedPeerCommand {
	return &SetTrustedPeerCommand{service: service}
}

func (c *SetTrustedPeerCommand) Execute(ctx context.Context, msg SetTrustedPeerMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: gateway service is required")
	}
	return c.service.SetTrustedPeer(ctx, msg.Caller, msg.DomainID, msg.Address)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
