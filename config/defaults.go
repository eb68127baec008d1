package config

import "time"

// MaxWindow is the default upper bound on a history page.
const MaxWindow = 50

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Daemon: DaemonConfig{
			URL:       "http://127.0.0.1:8332",
			Timeout:   30 * time.Second,
			CacheSize: 10_000,
			CacheTTL:  10 * time.Minute,
		},
		Mempool: MempoolConfig{
			Refresh: 5 * time.Second,
		},
		Query: QueryConfig{
			MaxWindow: MaxWindow,
		},
		Coin: CoinConfig{
			PerUnit: 100_000_000,
		},
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       8545,
			AllowedIPs: []string{"127.0.0.1"},
		},
		REST: RESTConfig{
			Enabled: true,
			Addr:    "127.0.0.1",
			Port:    3001,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Daemon.URL = "http://127.0.0.1:18332"
	cfg.RPC.Port = 8645
	cfg.REST.Port = 13001
	return cfg
}

// DefaultRegtest returns the default configuration for a local regtest daemon.
func DefaultRegtest() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Regtest
	cfg.Daemon.URL = "http://127.0.0.1:18443"
	cfg.Mempool.Refresh = time.Second
	cfg.RPC.Port = 8745
	cfg.REST.Port = 23001
	cfg.Log.Level = "debug"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	case Regtest:
		return DefaultRegtest()
	default:
		return DefaultMainnet()
	}
}
