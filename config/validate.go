package config

import (
	"fmt"
	"net/url"

	"github.com/Klingon-tech/addrindex/pkg/types"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Network {
	case Mainnet, Testnet, Regtest:
	default:
		return fmt.Errorf("network must be %q, %q or %q", Mainnet, Testnet, Regtest)
	}

	if cfg.Daemon.URL == "" {
		return fmt.Errorf("daemon.url is required")
	}
	u, err := url.Parse(cfg.Daemon.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("daemon.url must be an http(s) URL, got %q", cfg.Daemon.URL)
	}
	if cfg.Daemon.Timeout <= 0 {
		return fmt.Errorf("daemon.timeout must be positive")
	}
	if cfg.Daemon.CacheSize < 0 {
		return fmt.Errorf("daemon.cachesize must not be negative")
	}
	if cfg.Daemon.CacheTTL < 0 {
		return fmt.Errorf("daemon.cachettl must not be negative")
	}

	if cfg.Mempool.Refresh <= 0 {
		return fmt.Errorf("mempool.refresh must be positive")
	}
	if cfg.Query.MaxWindow <= 0 {
		return fmt.Errorf("query.maxwindow must be positive")
	}
	if _, err := types.NewPrecision(cfg.Coin.PerUnit); err != nil {
		return fmt.Errorf("coin.perunit: %w", err)
	}

	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	if cfg.REST.Port < 0 || cfg.REST.Port > 65535 {
		return fmt.Errorf("rest.port must be in range [0, 65535]")
	}
	if cfg.RPC.Enabled && cfg.REST.Enabled && cfg.RPC.Port != 0 &&
		cfg.RPC.Addr == cfg.REST.Addr && cfg.RPC.Port == cfg.REST.Port {
		return fmt.Errorf("rpc and rest cannot share %s:%d", cfg.RPC.Addr, cfg.RPC.Port)
	}

	switch cfg.Log.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be trace, debug, info, warn or error")
	}
	return nil
}
