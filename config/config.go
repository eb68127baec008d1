// Package config handles application configuration.
//
// Settings are resolved in three layers: per-network defaults, the
// addrindex.conf file in the data directory, then command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/Klingon-tech/addrindex/pkg/types"
)

// NetworkType identifies the coin network the daemon runs on.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
	Regtest NetworkType = "regtest"
)

// Config holds service runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Upstream coin daemon
	Daemon DaemonConfig

	// Mempool mirror
	Mempool MempoolConfig

	// Query limits
	Query QueryConfig

	// Coin precision
	Coin CoinConfig

	// Address index storage
	Index IndexConfig

	// JSON-RPC server
	RPC RPCConfig

	// REST server
	REST RESTConfig

	// Prometheus metrics
	Metrics MetricsConfig

	// Logging
	Log LogConfig
}

// DaemonConfig holds the coin daemon JSON-RPC connection settings.
type DaemonConfig struct {
	URL       string        `conf:"daemon.url"`
	User      string        `conf:"daemon.user"`
	Password  string        `conf:"daemon.password"`
	Timeout   time.Duration `conf:"daemon.timeout"`
	CacheSize int           `conf:"daemon.cachesize"` // Raw transactions kept in memory.
	CacheTTL  time.Duration `conf:"daemon.cachettl"`
}

// MempoolConfig holds mempool mirror settings.
type MempoolConfig struct {
	Refresh time.Duration `conf:"mempool.refresh"`
}

// QueryConfig holds query engine limits.
type QueryConfig struct {
	MaxWindow int `conf:"query.maxwindow"` // Largest history page.
}

// CoinConfig describes the coin's fixed-point scale.
type CoinConfig struct {
	PerUnit int64 `conf:"coin.perunit"` // Minor units per coin.
}

// IndexConfig holds address index storage settings.
type IndexConfig struct {
	Path     string `conf:"index.path"` // Defaults to <datadir>/<network>/index.
	ReadOnly bool   `conf:"index.readonly"`
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// RESTConfig holds REST server settings.
type RESTConfig struct {
	Enabled bool   `conf:"rest.enabled"`
	Addr    string `conf:"rest.addr"`
	Port    int    `conf:"rest.port"`
}

// MetricsConfig toggles the /metrics endpoint on the REST listener.
type MetricsConfig struct {
	Enabled bool `conf:"metrics.enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// ChainParams returns the btcd network parameters used for address decoding.
func (c *Config) ChainParams() *chaincfg.Params {
	switch c.Network {
	case Testnet:
		return &chaincfg.TestNet3Params
	case Regtest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// Precision returns the coin's fixed-point scale. Call after Validate.
func (c *Config) Precision() types.Precision {
	p, err := types.NewPrecision(c.Coin.PerUnit)
	if err != nil {
		return types.DefaultPrecision
	}
	return p
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.addrindex
//	macOS:   ~/Library/Application Support/Addrindex
//	Windows: %APPDATA%\Addrindex
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".addrindex"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Addrindex")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Addrindex")
		}
		return filepath.Join(home, "AppData", "Roaming", "Addrindex")
	default:
		return filepath.Join(home, ".addrindex")
	}
}

// ChainDataDir returns the network-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// IndexDir returns the address index database directory.
func (c *Config) IndexDir() string {
	if c.Index.Path != "" {
		return c.Index.Path
	}
	return filepath.Join(c.ChainDataDir(), "index")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "addrindex.conf")
}
