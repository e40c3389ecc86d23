package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/holiman/uint256"
)

// Service is the serialized entry point for the vesting ledger. Every
// state transition runs under one mutex and one store transaction.
type Service struct {
	mu sync.Mutex

	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	streamStore     StreamStore
	tokenLedger     TokenLedger
	ledger          *StreamLedger
	withdrawals     *WithdrawalProcessor
	now             func() time.Time
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	StreamStore     StreamStore
	TokenLedger     TokenLedger
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("streaming", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("streaming"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.streamStore == nil {
		builder.streamStore = NewMemoryStreamStore()
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	ledger := NewStreamLedger(finalConfig.LedgerAddress, builder.streamStore, builder.tokenLedger)
	ledger.Now = builder.now
	withdrawals := NewWithdrawalProcessor(finalConfig.LedgerAddress, builder.streamStore, builder.tokenLedger)
	withdrawals.Now = builder.now

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		streamStore:     builder.streamStore,
		tokenLedger:     builder.tokenLedger,
		ledger:          ledger,
		withdrawals:     withdrawals,
		now:             builder.now,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

// Address is the identity the ledger holds escrow under.
func (s *Service) Address() string {
	if s == nil {
		return ""
	}
	return s.config.LedgerAddress
}

func (s *Service) DomainID() uint32 {
	if s == nil {
		return 0
	}
	return s.config.DomainID
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorFactory:    s.errorFactory,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		StreamStore:     s.streamStore,
		TokenLedger:     s.tokenLedger,
	}
}

func (s *Service) CreateStream(ctx context.Context, req CreateStreamRequest) (streamID uint64, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"token":     strings.TrimSpace(req.TokenAddress),
		"sender":    strings.TrimSpace(req.Caller),
		"recipient": strings.TrimSpace(req.Recipient),
		"deposit":   amountString(req.DepositAmount),
		"domain_id": s.DomainID(),
	}
	defer func() {
		if streamID != 0 {
			fields["stream_id"] = streamID
		}
		s.observeOperation(ctx, startedAt, "create_stream", err, fields)
	}()
	if s == nil {
		return 0, fmt.Errorf("core: service is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	streamID, err = s.ledger.CreateStream(ctx, req)
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}
	return streamID, nil
}

func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (result WithdrawalResult, err error) {
	startedAt := time.Now().UTC()
	if strings.TrimSpace(req.Origin) == "" {
		req.Origin = OriginLocal
	}
	fields := map[string]any{
		"stream_id": req.StreamID,
		"requester": strings.TrimSpace(req.Requester),
		"amount":    amountString(req.Amount),
		"origin":    req.Origin,
		"domain_id": s.DomainID(),
	}
	defer func() {
		if err == nil {
			fields["remaining"] = amountString(result.Remaining)
			fields["settled"] = result.Settled
		}
		s.observeOperation(ctx, startedAt, "withdraw", err, fields)
	}()
	if s == nil {
		return WithdrawalResult{}, fmt.Errorf("core: service is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err = s.withdrawals.Withdraw(ctx, req)
	if err != nil {
		err = s.mapError(err)
		return WithdrawalResult{}, err
	}
	return result, nil
}

func (s *Service) ViewStream(ctx context.Context, streamID uint64) (Stream, error) {
	if s == nil {
		return Stream{}, fmt.Errorf("core: service is not configured")
	}
	stream, err := s.ledger.ViewStream(ctx, streamID)
	if err != nil {
		return Stream{}, s.mapError(err)
	}
	return stream, nil
}

func (s *Service) ViewNextStreamID(ctx context.Context) (uint64, error) {
	if s == nil {
		return 0, fmt.Errorf("core: service is not configured")
	}
	id, err := s.ledger.ViewNextStreamID(ctx)
	if err != nil {
		return 0, s.mapError(err)
	}
	return id, nil
}

func (s *Service) ListStreams(ctx context.Context, recipient string) ([]Stream, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is not configured")
	}
	streams, err := s.ledger.ListStreams(ctx, recipient)
	if err != nil {
		return nil, s.mapError(err)
	}
	return streams, nil
}

// ListWithdrawals returns the recorded withdrawals of a stream, including
// streams that were already settled and removed.
func (s *Service) ListWithdrawals(ctx context.Context, streamID uint64) ([]WithdrawalRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is not configured")
	}
	history, ok := s.streamStore.(WithdrawalHistory)
	if !ok {
		return nil, s.mapError(fmt.Errorf("core: stream store does not keep withdrawal history"))
	}
	records, err := history.ListWithdrawals(ctx, streamID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return records, nil
}

// Redeemable reports how much the recipient could withdraw right now.
func (s *Service) Redeemable(ctx context.Context, streamID uint64) (*uint256.Int, error) {
	stream, err := s.ViewStream(ctx, streamID)
	if err != nil {
		return nil, err
	}
	return Redeemable(stream, uint64(s.clock().Unix())), nil
}

func (s *Service) clock() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func amountString(amount *uint256.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.Dec()
}

var _ Withdrawer = (*Service)(nil)
