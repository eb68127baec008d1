package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Version is the service version reported by --version.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// Daemon
	DaemonURL      string
	DaemonUser     string
	DaemonPassword string
	DaemonTimeout  time.Duration

	// Mempool / query
	MempoolRefresh time.Duration
	MaxWindow      int

	// Index
	IndexPath     string
	IndexReadOnly bool

	// RPC
	RPC        bool
	RPCAddr    string
	RPCPort    int
	RPCAllowed string
	RPCCORS    string

	// REST
	REST     bool
	RESTAddr string
	RESTPort int
	Metrics  bool

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetRPC           bool
	SetREST          bool
	SetMetrics       bool
	SetIndexReadOnly bool
	SetLogJSON       bool
}

// ParseFlags parses os.Args and exits on a usage error.
func ParseFlags() *Flags {
	f, err := ParseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return f
}

// ParseArgs parses the given command-line arguments.
func ParseArgs(args []string, output io.Writer) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("addrindexd", flag.ContinueOnError)
	fs.SetOutput(output)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet, testnet or regtest)")
	fs.Bool("testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.Bool("regtest", false, "Use regtest (shorthand for --network=regtest)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Daemon
	fs.StringVar(&f.DaemonURL, "daemon-url", "", "Coin daemon JSON-RPC URL")
	fs.StringVar(&f.DaemonUser, "daemon-user", "", "Coin daemon RPC user")
	fs.StringVar(&f.DaemonPassword, "daemon-password", "", "Coin daemon RPC password")
	fs.DurationVar(&f.DaemonTimeout, "daemon-timeout", 0, "Coin daemon request timeout")

	// Mempool / query
	fs.DurationVar(&f.MempoolRefresh, "mempool-refresh", 0, "Mempool refresh interval")
	fs.IntVar(&f.MaxWindow, "max-window", 0, "Largest history page")

	// Index
	fs.StringVar(&f.IndexPath, "index-path", "", "Address index database path")
	fs.BoolVar(&f.IndexReadOnly, "index-readonly", false, "Open the address index read-only")

	// RPC
	fs.BoolVar(&f.RPC, "rpc", true, "Enable JSON-RPC server")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "RPC listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "RPC listen port")
	fs.StringVar(&f.RPCAllowed, "rpc-allowed", "", "Allowed IPs for RPC")
	fs.StringVar(&f.RPCCORS, "rpc-cors", "", "Allowed CORS origins for RPC (comma-separated)")

	// REST
	fs.BoolVar(&f.REST, "rest", true, "Enable REST server")
	fs.StringVar(&f.RESTAddr, "rest-addr", "", "REST listen address")
	fs.IntVar(&f.RESTPort, "rest-port", 0, "REST listen port")
	fs.BoolVar(&f.Metrics, "metrics", true, "Expose /metrics on the REST listener")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = func() {
		printUsage(output)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if isFlagSet(fs, "testnet") {
		f.Network = string(Testnet)
	}
	if isFlagSet(fs, "regtest") {
		f.Network = string(Regtest)
	}
	f.SetRPC = isFlagSet(fs, "rpc")
	f.SetREST = isFlagSet(fs, "rest")
	f.SetMetrics = isFlagSet(fs, "metrics")
	f.SetIndexReadOnly = isFlagSet(fs, "index-readonly")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()

	// A positional argument stops the parser; anything flag-like after it
	// was silently ignored.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Daemon
	if f.DaemonURL != "" {
		cfg.Daemon.URL = f.DaemonURL
	}
	if f.DaemonUser != "" {
		cfg.Daemon.User = f.DaemonUser
	}
	if f.DaemonPassword != "" {
		cfg.Daemon.Password = f.DaemonPassword
	}
	if f.DaemonTimeout != 0 {
		cfg.Daemon.Timeout = f.DaemonTimeout
	}

	// Mempool / query
	if f.MempoolRefresh != 0 {
		cfg.Mempool.Refresh = f.MempoolRefresh
	}
	if f.MaxWindow != 0 {
		cfg.Query.MaxWindow = f.MaxWindow
	}

	// Index
	if f.IndexPath != "" {
		cfg.Index.Path = f.IndexPath
	}
	if f.SetIndexReadOnly {
		cfg.Index.ReadOnly = f.IndexReadOnly
	}

	// RPC
	if f.SetRPC {
		cfg.RPC.Enabled = f.RPC
	}
	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if f.RPCAllowed != "" {
		cfg.RPC.AllowedIPs = parseStringList(f.RPCAllowed)
	}
	if f.RPCCORS != "" {
		cfg.RPC.CORSOrigins = parseStringList(f.RPCCORS)
	}

	// REST
	if f.SetREST {
		cfg.REST.Enabled = f.REST
	}
	if f.RESTAddr != "" {
		cfg.REST.Addr = f.RESTAddr
	}
	if f.RESTPort != 0 {
		cfg.REST.Port = f.RESTPort
	}
	if f.SetMetrics {
		cfg.Metrics.Enabled = f.Metrics
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage(w io.Writer) {
	usage := `addrindexd - address history, balance and unspent-output query service

Usage:
  addrindexd [options]
  addrindexd --help

Commands:
  --help, -h        Show this help message
  --version, -v     Show version information

Core Options:
  --network         Network type: mainnet (default), testnet or regtest
  --testnet         Shorthand for --network=testnet
  --regtest         Shorthand for --network=regtest
  --datadir         Data directory (default: ~/.addrindex)
  --config, -c      Config file path (default: <datadir>/addrindex.conf)

Daemon Options:
  --daemon-url      Coin daemon JSON-RPC URL (mainnet: http://127.0.0.1:8332)
  --daemon-user     RPC user
  --daemon-password RPC password
  --daemon-timeout  Request timeout (default: 30s)

Query Options:
  --mempool-refresh Mempool refresh interval (default: 5s)
  --max-window      Largest history page (default: 50)
  --index-path      Address index database path
  --index-readonly  Open the address index read-only

RPC Options:
  --rpc             Enable JSON-RPC server (default: true)
  --rpc-addr        RPC listen address (default: 127.0.0.1)
  --rpc-port        RPC port (mainnet: 8545, testnet: 8645, regtest: 8745)
  --rpc-allowed     Allowed IPs for RPC (comma-separated)
  --rpc-cors        Allowed CORS origins for RPC (comma-separated)

REST Options:
  --rest            Enable REST server (default: true)
  --rest-addr       REST listen address (default: 127.0.0.1)
  --rest-port       REST port (mainnet: 3001, testnet: 13001, regtest: 23001)
  --metrics         Expose /metrics on the REST listener (default: true)

Logging Options:
  --log-level       Log level: trace, debug, info, warn, error (default: info)
  --log-file        Log file path (default: stdout)
  --log-json        Output logs as JSON

Examples:
  # Serve mainnet against a local bitcoind
  addrindexd --daemon-user=rpc --daemon-password=secret

  # Serve a regtest daemon with the index opened read-only
  addrindexd --regtest --index-readonly
`
	fmt.Fprint(w, usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	if flags.Help {
		printUsage(os.Stdout)
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("addrindexd version " + Version)
		os.Exit(0)
	}

	cfg, err := LoadWithFlags(flags)
	if err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

// LoadWithFlags resolves configuration from defaults, the config file and
// already-parsed flags.
func LoadWithFlags(flags *Flags) (*Config, error) {
	// Determine network first (needed for defaults)
	network := NetworkType(strings.ToLower(flags.Network))
	if network == "" {
		network = Mainnet
	}

	cfg := Default(network)

	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}

	// Flags have the highest precedence.
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.ChainDataDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
