package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/holiman/uint256"
	"github.com/jshuaaaa/lz-stable-streaming/core"
)

type Config struct {
	DomainID uint32
	// Address is the identity this gateway sends from and is trusted
	// under on remote domains.
	Address string
	// Admin is the only principal allowed to change trusted peers.
	Admin           string
	ReplayWindow    time.Duration
	MaxPayloadBytes int
}

// ConfigFromCore derives the gateway settings of a ledger deployment.
func ConfigFromCore(cfg core.Config) Config {
	return Config{
		DomainID:        cfg.DomainID,
		Address:         cfg.LedgerAddress,
		Admin:           cfg.Gateway.Admin,
		ReplayWindow:    cfg.Gateway.ReplayWindow(),
		MaxPayloadBytes: cfg.Gateway.MaxPayloadBytes,
	}
}

type SendRequest struct {
	Caller         string
	TargetDomainID uint32
	StreamID       uint64
	Amount         *uint256.Int
	FeeBudget      *uint256.Int
}

type Gateway struct {
	config     Config
	peers      core.TrustedPeerStore
	endpoint   core.MessagingEndpoint
	withdrawer core.Withdrawer
	replay     core.ReplayLedger
	logger     core.Logger
	nonce      atomic.Uint64

	Now   func() time.Time
	NewID func() string
}

type Option func(*Gateway)

func WithTrustedPeerStore(store core.TrustedPeerStore) Option {
	return func(g *Gateway) {
		g.peers = store
	}
}

func WithEndpoint(endpoint core.MessagingEndpoint) Option {
	return func(g *Gateway) {
		g.endpoint = endpoint
	}
}

// WithReplayLedger enables duplicate detection on received messages.
func WithReplayLedger(ledger core.ReplayLedger) Option {
	return func(g *Gateway) {
		g.replay = ledger
	}
}

func WithLogger(logger core.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithNonceSeed sets the last used nonce; the next message carries seed+1.
func WithNonceSeed(seed uint64) Option {
	return func(g *Gateway) {
		g.nonce.Store(seed)
	}
}

func New(cfg Config, withdrawer core.Withdrawer, opts ...Option) (*Gateway, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	cfg.Admin = strings.TrimSpace(cfg.Admin)
	if cfg.Address == "" {
		return nil, gatewayBadInput("gateway: address is required", nil)
	}
	if withdrawer == nil {
		return nil, gatewayBadInput("gateway: withdrawer is required", nil)
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = core.DefaultMaxPayloadBytes
	}
	if cfg.ReplayWindow <= 0 {
		cfg.ReplayWindow = time.Duration(core.DefaultReplayWindowSeconds) * time.Second
	}

	g := &Gateway{
		config:     cfg,
		withdrawer: withdrawer,
		Now: func() time.Time {
			return time.Now().UTC()
		},
		NewID: uuid.NewString,
	}
	g.nonce.Store(uint64(time.Now().UnixNano()))
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	if g.peers == nil {
		g.peers = core.NewMemoryTrustedPeerStore()
	}
	_, logger := glog.Resolve("streaming.gateway", nil, g.logger)
	g.logger = glog.Ensure(logger)
	return g, nil
}

// NewForService builds a gateway for the deployment svc belongs to.
func NewForService(svc *core.Service, opts ...Option) (*Gateway, error) {
	if svc == nil {
		return nil, gatewayBadInput("gateway: service is required", nil)
	}
	return New(ConfigFromCore(svc.Config()), svc, opts...)
}

func (g *Gateway) Config() Config {
	if g == nil {
		return Config{}
	}
	return g.config
}

func (g *Gateway) SetTrustedPeer(ctx context.Context, caller string, domainID uint32, address string) error {
	if g == nil {
		return gatewayInternal(nil, "gateway: gateway is not configured", nil)
	}
	if !core.SameAddress(caller, g.config.Admin) {
		g.log(ctx, "error", "trusted peer update rejected", map[string]any{"caller": strings.TrimSpace(caller), "domain_id": domainID})
		return notAdministrator(strings.TrimSpace(caller))
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return gatewayBadInput("gateway: trusted peer address is required", map[string]any{"domain_id": domainID})
	}
	if err := g.peers.Upsert(ctx, core.TrustedPeer{DomainID: domainID, Address: address, UpdatedAt: g.now()}); err != nil {
		return gatewayInternal(err, "gateway: store trusted peer", map[string]any{"domain_id": domainID})
	}
	g.log(ctx, "info", "trusted peer updated", map[string]any{"domain_id": domainID, "address": address})
	return nil
}

func (g *Gateway) TrustedPeer(ctx context.Context, domainID uint32) (core.TrustedPeer, error) {
	if g == nil {
		return core.TrustedPeer{}, gatewayInternal(nil, "gateway: gateway is not configured", nil)
	}
	peer, err := g.peers.Get(ctx, domainID)
	if err != nil {
		if errors.Is(err, core.ErrTrustedPeerNotFound) {
			return core.TrustedPeer{}, noTrustedPeer(domainID)
		}
		return core.TrustedPeer{}, gatewayInternal(err, "gateway: load trusted peer", map[string]any{"domain_id": domainID})
	}
	return peer, nil
}

// SendMessage hands a withdrawal instruction for the caller to the
// endpoint. It returns once the endpoint accepted the message; settlement
// happens later on the destination domain.
func (g *Gateway) SendMessage(ctx context.Context, req SendRequest) (core.OutboundMessage, error) {
	if g == nil {
		return core.OutboundMessage{}, gatewayInternal(nil, "gateway: gateway is not configured", nil)
	}
	if g.endpoint == nil {
		return core.OutboundMessage{}, gatewayInternal(nil, "gateway: messaging endpoint is not configured", nil)
	}
	caller := strings.TrimSpace(req.Caller)
	if caller == "" {
		return core.OutboundMessage{}, gatewayBadInput("gateway: caller is required", nil)
	}
	peer, err := g.TrustedPeer(ctx, req.TargetDomainID)
	if err != nil {
		return core.OutboundMessage{}, err
	}

	nonce := g.nonce.Add(1)
	payload, err := EncodePayload(Payload{
		Version:   PayloadVersion,
		Nonce:     nonce,
		StreamID:  req.StreamID,
		Amount:    core.CloneAmount(req.Amount),
		Requester: caller,
	})
	if err != nil {
		return core.OutboundMessage{}, malformedPayload(err, g.config.DomainID)
	}

	msg := core.OutboundMessage{
		ID:                  g.newID(),
		SourceDomainID:      g.config.DomainID,
		SourceAddress:       g.config.Address,
		DestinationDomainID: peer.DomainID,
		DestinationAddress:  peer.Address,
		Payload:             payload,
		FeeBudget:           core.CloneAmount(req.FeeBudget),
	}
	fields := map[string]any{
		"message_id":            msg.ID,
		"destination_domain_id": msg.DestinationDomainID,
		"stream_id":             req.StreamID,
		"nonce":                 nonce,
	}
	if err := g.endpoint.Send(ctx, msg); err != nil {
		fields["error"] = err.Error()
		g.log(ctx, "error", "message send failed", fields)
		return core.OutboundMessage{}, endpointDispatchFailed(fmt.Errorf("%w: %w", core.ErrEndpointDispatch, err), msg.DestinationDomainID)
	}
	g.log(ctx, "info", "message sent", fields)
	return msg, nil
}

// ReceiveMessage authenticates the sender before touching the payload,
// then executes the decoded withdrawal. Failures are returned to the
// endpoint; nothing is retried here.
func (g *Gateway) ReceiveMessage(ctx context.Context, msg core.InboundMessage) (core.WithdrawalResult, error) {
	if g == nil {
		return core.WithdrawalResult{}, gatewayInternal(nil, "gateway: gateway is not configured", nil)
	}
	source := strings.TrimSpace(msg.SourceAddress)
	peer, err := g.peers.Get(ctx, msg.SourceDomainID)
	if err != nil && !errors.Is(err, core.ErrTrustedPeerNotFound) {
		return core.WithdrawalResult{}, gatewayInternal(err, "gateway: load trusted peer", map[string]any{"domain_id": msg.SourceDomainID})
	}
	if err != nil || !core.SameAddress(peer.Address, source) {
		g.log(ctx, "error", "message rejected", map[string]any{
			"source_domain_id": msg.SourceDomainID,
			"source_address":   source,
			"reason":           "untrusted_sender",
		})
		return core.WithdrawalResult{}, untrustedSender(msg.SourceDomainID, source)
	}

	if len(msg.Payload) > g.config.MaxPayloadBytes {
		return core.WithdrawalResult{}, malformedPayload(
			fmt.Errorf("%w: %d bytes exceeds limit %d", core.ErrMalformedPayload, len(msg.Payload), g.config.MaxPayloadBytes),
			msg.SourceDomainID,
		)
	}
	payload, err := DecodePayload(msg.Payload)
	if err != nil {
		return core.WithdrawalResult{}, malformedPayload(err, msg.SourceDomainID)
	}

	fields := map[string]any{
		"source_domain_id": msg.SourceDomainID,
		"stream_id":        payload.StreamID,
		"nonce":            payload.Nonce,
		"requester":        payload.Requester,
	}

	claimKey := ""
	if g.replay != nil {
		claimKey = ReplayKey(msg.SourceDomainID, source, payload.Nonce)
		accepted, claimErr := g.replay.Claim(ctx, claimKey, g.config.ReplayWindow)
		if claimErr != nil {
			return core.WithdrawalResult{}, gatewayInternal(claimErr, "gateway: replay claim failed", fields)
		}
		if !accepted {
			g.log(ctx, "error", "message rejected", mergeFields(fields, map[string]any{"reason": "duplicate"}))
			return core.WithdrawalResult{}, duplicateMessage(msg.SourceDomainID, payload.Nonce)
		}
	}

	result, err := g.withdrawer.Withdraw(ctx, core.WithdrawRequest{
		StreamID:  payload.StreamID,
		Amount:    payload.Amount,
		Requester: payload.Requester,
		Origin:    fmt.Sprintf("%s:%d", core.OriginRemote, msg.SourceDomainID),
	})
	if err != nil {
		if claimKey != "" {
			if releaseErr := g.replay.Release(ctx, claimKey); releaseErr != nil {
				fields["release_error"] = releaseErr.Error()
			}
		}
		g.log(ctx, "error", "remote withdrawal failed", mergeFields(fields, map[string]any{"error": err.Error()}))
		return core.WithdrawalResult{}, core.MapError(err)
	}
	g.log(ctx, "info", "remote withdrawal settled", mergeFields(fields, map[string]any{
		"remaining": result.Remaining.Dec(),
		"settled":   result.Settled,
	}))
	return result, nil
}

// ReplayKey identifies one message for duplicate detection.
func ReplayKey(domainID uint32, sourceAddress string, nonce uint64) string {
	return fmt.Sprintf("%d:%s:%d", domainID, core.NormalizeAddress(sourceAddress), nonce)
}

func (g *Gateway) log(ctx context.Context, level string, message string, fields map[string]any) {
	if g == nil || g.logger == nil {
		return
	}
	logger := g.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	fields = mergeFields(fields, map[string]any{"domain_id": g.config.DomainID})
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok {
		logger = fieldsLogger.WithFields(fields)
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	if level == "error" {
		logger.Error(message, args...)
		return
	}
	logger.Info(message, args...)
}

func (g *Gateway) now() time.Time {
	if g != nil && g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

func (g *Gateway) newID() string {
	if g != nil && g.NewID != nil {
		if id := strings.TrimSpace(g.NewID()); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

func mergeFields(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for key, value := range base {
		out[key] = value
	}
	for key, value := range extra {
		out[key] = value
	}
	return out
}

var _ core.MessageReceiver = (*Gateway)(nil)
