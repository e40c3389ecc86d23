package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultReplayWindowSeconds = 86400
	DefaultMaxPayloadBytes     = 1024
)

type GatewayConfig struct {
	Admin               string `koanf:"admin" mapstructure:"admin"`
	ReplayWindowSeconds int    `koanf:"replay_window_seconds" mapstructure:"replay_window_seconds"`
	MaxPayloadBytes     int    `koanf:"max_payload_bytes" mapstructure:"max_payload_bytes"`
}

type PersistenceConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type Config struct {
	ServiceName   string            `koanf:"service_name" mapstructure:"service_name"`
	DomainID      uint32            `koanf:"domain_id" mapstructure:"domain_id"`
	LedgerAddress string            `koanf:"ledger_address" mapstructure:"ledger_address"`
	Gateway       GatewayConfig     `koanf:"gateway" mapstructure:"gateway"`
	Persistence   PersistenceConfig `koanf:"persistence" mapstructure:"persistence"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:   "streaming",
		LedgerAddress: "ledger",
		Gateway: GatewayConfig{
			ReplayWindowSeconds: DefaultReplayWindowSeconds,
			MaxPayloadBytes:     DefaultMaxPayloadBytes,
		},
		Persistence: PersistenceConfig{
			Driver: "sqlite3",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.LedgerAddress) == "" {
		return fmt.Errorf("core: ledger_address is required")
	}
	if c.Gateway.ReplayWindowSeconds < 0 {
		return fmt.Errorf("core: gateway.replay_window_seconds must not be negative")
	}
	if c.Gateway.MaxPayloadBytes < 0 {
		return fmt.Errorf("core: gateway.max_payload_bytes must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.Persistence.Driver)) {
	case "", "sqlite3", "sqlite", "postgres", "pgx":
	default:
		return fmt.Errorf("core: unsupported persistence.driver %q", c.Persistence.Driver)
	}
	return nil
}

func (c GatewayConfig) ReplayWindow() time.Duration {
	if c.ReplayWindowSeconds <= 0 {
		return time.Duration(DefaultReplayWindowSeconds) * time.Second
	}
	return time.Duration(c.ReplayWindowSeconds) * time.Second
}
