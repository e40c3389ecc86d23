package core

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorFactory == nil || deps.ErrorMapper == nil {
		t.Fatalf("expected default error factory and mapper")
	}
	if deps.ConfigProvider == nil || deps.OptionsResolver == nil {
		t.Fatalf("expected default config provider and options resolver")
	}
	if deps.StreamStore == nil {
		t.Fatalf("expected default memory stream store")
	}
	cfg := svc.Config()
	if cfg.ServiceName != "streaming" || cfg.LedgerAddress != "ledger" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Gateway.MaxPayloadBytes != DefaultMaxPayloadBytes {
		t.Fatalf("expected default max payload bytes, got %d", cfg.Gateway.MaxPayloadBytes)
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	customFactory := func(message string, category ...goerrors.Category) *goerrors.Error {
		return goerrors.New("custom:"+message, category...)
	}
	customMapper := func(err error) *goerrors.Error {
		return goerrors.New("mapped", goerrors.CategoryInternal)
	}
	store := NewMemoryStreamStore()
	svc, err := NewService(Config{},
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithErrorFactory(customFactory),
		WithErrorMapper(customMapper),
		WithStreamStore(store),
		WithConfigProvider(&fixedConfigProvider{cfg: DefaultConfig()}),
		WithOptionsResolver(&fixedOptionsResolver{cfg: Config{ServiceName: "custom", LedgerAddress: "vault"}}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.StreamStore != store {
		t.Fatalf("expected custom stream store")
	}
	if got := deps.ErrorFactory("boom").Message; got != "custom:boom" {
		t.Fatalf("expected custom error factory, got %q", got)
	}
	if svc.Config().ServiceName != "custom" || svc.Address() != "vault" {
		t.Fatalf("expected resolver config, got %+v", svc.Config())
	}
	if _, err := svc.ViewStream(context.Background(), 1); err == nil || err.Error() == "" {
		t.Fatalf("expected mapped error")
	} else if rich, ok := err.(*goerrors.Error); !ok || rich.Message != "mapped" {
		t.Fatalf("expected custom mapper output, got %v", err)
	}
}

func TestNewService_LayersLoadedAndRuntimeConfig(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name":   "vesting",
		"ledger_address": "vault-1",
		"gateway": map[string]any{
			"admin":             "ops",
			"max_payload_bytes": 512,
		},
	}})
	svc, err := NewService(Config{DomainID: 7},
		WithConfigProvider(provider),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := svc.Config()
	if cfg.ServiceName != "vesting" || cfg.LedgerAddress != "vault-1" {
		t.Fatalf("expected loaded values, got %+v", cfg)
	}
	if cfg.DomainID != 7 {
		t.Fatalf("expected runtime domain id 7, got %d", cfg.DomainID)
	}
	if cfg.Gateway.Admin != "ops" {
		t.Fatalf("expected loaded admin ops, got %q", cfg.Gateway.Admin)
	}
	if cfg.Gateway.MaxPayloadBytes != 512 {
		t.Fatalf("expected loaded max payload bytes 512, got %d", cfg.Gateway.MaxPayloadBytes)
	}
	if cfg.Gateway.ReplayWindowSeconds != DefaultReplayWindowSeconds {
		t.Fatalf("expected default replay window to survive, got %d", cfg.Gateway.ReplayWindowSeconds)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to be valid: %v", err)
	}
	cfg.Persistence.Driver = "oracle"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	cfg = DefaultConfig()
	cfg.LedgerAddress = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected ledger_address error")
	}
}
