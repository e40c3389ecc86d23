package streaming

import (
	"github.com/jshuaaaa/lz-stable-streaming/core"
	"github.com/jshuaaaa/lz-stable-streaming/gateway"
)

type Config = core.Config

type GatewayConfig = core.GatewayConfig

type PersistenceConfig = core.PersistenceConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type StreamStore = core.StreamStore
type TrustedPeerStore = core.TrustedPeerStore
type TokenLedger = core.TokenLedger
type MessagingEndpoint = core.MessagingEndpoint
type ReplayLedger = core.ReplayLedger
type MetricsRecorder = core.MetricsRecorder

type Stream = core.Stream
type TrustedPeer = core.TrustedPeer

type CreateStreamRequest = core.CreateStreamRequest

type WithdrawRequest = core.WithdrawRequest
type WithdrawalResult = core.WithdrawalResult
type WithdrawalRecord = core.WithdrawalRecord

type OutboundMessage = core.OutboundMessage
type InboundMessage = core.InboundMessage

type Gateway = gateway.Gateway
type GatewayOption = gateway.Option
type SendRequest = gateway.SendRequest

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithStreamStore     = core.WithStreamStore
	WithTokenLedger     = core.WithTokenLedger
	WithClock           = core.WithClock
)

var (
	WithTrustedPeerStore = gateway.WithTrustedPeerStore
	WithEndpoint         = gateway.WithEndpoint
	WithReplayLedger     = gateway.WithReplayLedger
	WithGatewayLogger    = gateway.WithLogger
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}

// NewGateway builds the cross-domain gateway for a service, taking domain,
// address and administrator from the service configuration.
func NewGateway(svc *Service, opts ...GatewayOption) (*Gateway, error) {
	return gateway.NewForService(svc, opts...)
}
