package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/holiman/uint256"
	"github.com/jshuaaaa/lz-stable-streaming/core"
	"github.com/jshuaaaa/lz-stable-streaming/gateway"
)

var (
	_ gocmd.Querier[ViewStreamMessage, core.Stream]                  = (*ViewStreamQuery)(nil)
	_ gocmd.Querier[ViewNextStreamIDMessage, uint64]                 = (*ViewNextStreamIDQuery)(nil)
	_ gocmd.Querier[ListStreamsMessage, []core.Stream]               = (*ListStreamsQuery)(nil)
	_ gocmd.Querier[RedeemableMessage, *uint256.Int]                 = (*RedeemableQuery)(nil)
	_ gocmd.Querier[ListWithdrawalsMessage, []core.WithdrawalRecord] = (*ListWithdrawalsQuery)(nil)
	_ gocmd.Querier[TrustedPeerMessage, core.TrustedPeer]            = (*TrustedPeerQuery)(nil)

	_ StreamReader      = (*core.Service)(nil)
	_ WithdrawalReader  = (*core.Service)(nil)
	_ TrustedPeerReader = (*gateway.Gateway)(nil)
)
