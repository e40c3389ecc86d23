package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/holiman/uint256"
	streamcommand "github.com/jshuaaaa/lz-stable-streaming/command"
	"github.com/jshuaaaa/lz-stable-streaming/core"
	streamquery "github.com/jshuaaaa/lz-stable-streaming/query"
)

// StreamingHandlers names the services backing the streaming command and
// query surface. Nil members are skipped at registration.
type StreamingHandlers struct {
	Streams      streamcommand.StreamService
	Gateway      streamcommand.GatewayService
	StreamReader streamquery.StreamReader
	Withdrawals  streamquery.WithdrawalReader
	TrustedPeers streamquery.TrustedPeerReader
}

// Register subscribes every streaming command and query the handlers can
// serve and adds them to the registry. On failure the subscriptions made by
// this call are released and the bus is left as it was.
func (b *Bus) Register(handlers StreamingHandlers) (Subscriptions, error) {
	if b == nil || b.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}

	var made Subscriptions
	steps := handlers.steps(b)
	for _, step := range steps {
		sub, err := step()
		if err != nil {
			b.release(made)
			return nil, err
		}
		made = append(made, sub)
	}
	return made, nil
}

func (b *Bus) release(subs Subscriptions) {
	if len(subs) == 0 {
		return
	}
	drop := make(map[commanddispatcher.Subscription]struct{}, len(subs))
	for _, sub := range subs {
		drop[sub] = struct{}{}
	}
	b.mu.Lock()
	kept := b.subs[:0]
	for _, sub := range b.subs {
		if _, ok := drop[sub]; !ok {
			kept = append(kept, sub)
		}
	}
	b.subs = kept
	b.mu.Unlock()
	subs.Unsubscribe()
}

type registration func() (commanddispatcher.Subscription, error)

func (h StreamingHandlers) steps(b *Bus) []registration {
	var out []registration
	if h.Streams != nil {
		out = append(out,
			func() (commanddispatcher.Subscription, error) {
				return registerCommand[streamcommand.CreateStreamMessage](b, streamcommand.NewCreateStreamCommand(h.Streams))
			},
			func() (commanddispatcher.Subscription, error) {
				return registerCommand[streamcommand.WithdrawMessage](b, streamcommand.NewWithdrawCommand(h.Streams))
			},
		)
	}
	if h.Gateway != nil {
		out = append(out,
			func() (commanddispatcher.Subscription, error) {
				return registerCommand[streamcommand.SendMessageMessage](b, streamcommand.NewSendMessageCommand(h.Gateway))
			},
			func() (commanddispatcher.Subscription, error) {
				return registerCommand[streamcommand.ReceiveMessageMessage](b, streamcommand.NewReceiveMessageCommand(h.Gateway))
			},
			func() (commanddispatcher.Subscription, error) {
				return registerCommand[streamcommand.SetTrustedPeerMessage](b, streamcommand.NewSetTrustedPeerCommand(h.Gateway))
			},
		)
	}
	if h.StreamReader != nil {
		out = append(out,
			func() (commanddispatcher.Subscription, error) {
				return registerQuery[streamquery.ViewStreamMessage, core.Stream](b, streamquery.NewViewStreamQuery(h.StreamReader))
			},
			func() (commanddispatcher.Subscription, error) {
				return registerQuery[streamquery.ViewNextStreamIDMessage, uint64](b, streamquery.NewViewNextStreamIDQuery(h.StreamReader))
			},
			func() (commanddispatcher.Subscription, error) {
				return registerQuery[streamquery.ListStreamsMessage, []core.Stream](b, streamquery.NewListStreamsQuery(h.StreamReader))
			},
		)
	}
	if h.Withdrawals != nil {
		out = append(out,
			func() (commanddispatcher.Subscription, error) {
				return registerQuery[streamquery.RedeemableMessage, *uint256.Int](b, streamquery.NewRedeemableQuery(h.Withdrawals))
			},
			func() (commanddispatcher.Subscription, error) {
				return registerQuery[streamquery.ListWithdrawalsMessage, []core.WithdrawalRecord](b, streamquery.NewListWithdrawalsQuery(h.Withdrawals))
			},
		)
	}
	if h.TrustedPeers != nil {
		out = append(out, func() (commanddispatcher.Subscription, error) {
			return registerQuery[streamquery.TrustedPeerMessage, core.TrustedPeer](b, streamquery.NewTrustedPeerQuery(h.TrustedPeers))
		})
	}
	return out
}
