package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/jshuaaaa/lz-stable-streaming/core"
	"github.com/jshuaaaa/lz-stable-streaming/gateway"
)

var (
	_ gocmd.Commander[CreateStreamMessage]   = (*CreateStreamCommand)(nil)
	_ gocmd.Commander[WithdrawMessage]       = (*WithdrawCommand)(nil)
	_ gocmd.Commander[SendMessageMessage]    = (*SendMessageCommand)(nil)
	_ gocmd.Commander[ReceiveMessageMessage] = (*ReceiveMessageCommand)(nil)
	_ gocmd.Commander[SetTrustedPeerMessage] = (*SetTrustedPeerCommand)(nil)

	_ StreamService  = (*core.Service)(nil)
	_ GatewayService = (*gateway.Gateway)(nil)
)
