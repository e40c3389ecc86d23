package streaming

import (
	"fmt"

	streamcommand "github.com/jshuaaaa/lz-stable-streaming/command"
	streamquery "github.com/jshuaaaa/lz-stable-streaming/query"
)

type CommandQueryService interface {
	streamcommand.StreamService
	streamquery.StreamReader
	streamquery.WithdrawalReader
}

type GatewayService interface {
	streamcommand.GatewayService
	streamquery.TrustedPeerReader
}

type Commands struct {
	CreateStream   *streamcommand.CreateStreamCommand
	Withdraw       *streamcommand.WithdrawCommand
	SendMessage    *streamcommand.SendMessageCommand
	ReceiveMessage *streamcommand.ReceiveMessageCommand
	SetTrustedPeer *streamcommand.SetTrustedPeerCommand
}

type Queries struct {
	ViewStream       *streamquery.ViewStreamQuery
	ViewNextStreamID *streamquery.ViewNextStreamIDQuery
	ListStreams      *streamquery.ListStreamsQuery
	Redeemable       *streamquery.RedeemableQuery
	ListWithdrawals  *streamquery.ListWithdrawalsQuery
	TrustedPeer      *streamquery.TrustedPeerQuery
}

type Facade struct {
	service  CommandQueryService
	gateway  GatewayService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	gateway GatewayService
}

// WithGatewayService wires the cross-domain commands and the trusted peer
// query. Without it those handlers stay nil.
func WithGatewayService(gw GatewayService) FacadeOption {
	return func(options *facadeOptions) {
		options.gateway = gw
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("streaming: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{service: service, gateway: cfg.gateway}
	facade.commands = Commands{
		CreateStream: streamcommand.NewCreateStreamCommand(service),
		Withdraw:     streamcommand.NewWithdrawCommand(service),
	}
	facade.queries = Queries{
		ViewStream:       streamquery.NewViewStreamQuery(service),
		ViewNextStreamID: streamquery.NewViewNextStreamIDQuery(service),
		ListStreams:      streamquery.NewListStreamsQuery(service),
		Redeemable:       streamquery.NewRedeemableQuery(service),
		ListWithdrawals:  streamquery.NewListWithdrawalsQuery(service),
	}
	if cfg.gateway != nil {
		facade.commands.SendMessage = streamcommand.NewSendMessageCommand(cfg.gateway)
		facade.commands.ReceiveMessage = streamcommand.NewReceiveMessageCommand(cfg.gateway)
		facade.commands.SetTrustedPeer = streamcommand.NewSetTrustedPeerCommand(cfg.gateway)
		facade.queries.TrustedPeer = streamquery.NewTrustedPeerQuery(cfg.gateway)
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func (f *Facade) Gateway() GatewayService {
	if f == nil {
		return nil
	}
	return f.gateway
}

var (
	_ CommandQueryService = (*Service)(nil)
	_ GatewayService      = (*Gateway)(nil)
)
