package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads node configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(strings.ToLower(value))
	case "datadir":
		cfg.DataDir = value

	// Daemon
	case "daemon.url":
		cfg.Daemon.URL = value
	case "daemon.user":
		cfg.Daemon.User = value
	case "daemon.password":
		cfg.Daemon.Password = value
	case "daemon.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Daemon.Timeout = d
	case "daemon.cachesize":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Daemon.CacheSize = n
	case "daemon.cachettl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Daemon.CacheTTL = d

	// Mempool
	case "mempool.refresh":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Mempool.Refresh = d

	// Query
	case "query.maxwindow":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Query.MaxWindow = n

	// Coin
	case "coin.perunit":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Coin.PerUnit = n

	// Index
	case "index.path":
		cfg.Index.Path = value
	case "index.readonly":
		cfg.Index.ReadOnly = parseBool(value)

	// RPC
	case "rpc.enabled", "rpc":
		cfg.RPC.Enabled = parseBool(value)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.RPC.Port = port
	case "rpc.allowed":
		cfg.RPC.AllowedIPs = parseStringList(value)
	case "rpc.cors":
		cfg.RPC.CORSOrigins = parseStringList(value)

	// REST
	case "rest.enabled", "rest":
		cfg.REST.Enabled = parseBool(value)
	case "rest.addr":
		cfg.REST.Addr = value
	case "rest.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.REST.Port = port

	// Metrics
	case "metrics.enabled", "metrics":
		cfg.Metrics.Enabled = parseBool(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	d := Default(network)
	content := `# addrindex configuration
#
# Address history, balance and unspent-output query service backed by a
# bitcoind-compatible daemon.

# Network: mainnet, testnet or regtest
network = ` + string(network) + `

# Data directory (default: ~/.addrindex)
# datadir = ~/.addrindex

# ============================================================================
# Coin daemon
# ============================================================================

daemon.url = ` + d.Daemon.URL + `
# daemon.user =
# daemon.password =
daemon.timeout = ` + d.Daemon.Timeout.String() + `

# Raw transaction cache
daemon.cachesize = ` + strconv.Itoa(d.Daemon.CacheSize) + `
daemon.cachettl = ` + d.Daemon.CacheTTL.String() + `

# ============================================================================
# Mempool and queries
# ============================================================================

mempool.refresh = ` + d.Mempool.Refresh.String() + `
query.maxwindow = ` + strconv.Itoa(d.Query.MaxWindow) + `

# Minor units per coin (power of ten)
coin.perunit = ` + strconv.FormatInt(d.Coin.PerUnit, 10) + `

# ============================================================================
# Address index
# ============================================================================

# index.path = <datadir>/<network>/index
# Open the index read-only when another process maintains it
index.readonly = false

# ============================================================================
# JSON-RPC server
# ============================================================================

rpc.enabled = true
rpc.addr = 127.0.0.1
rpc.port = ` + strconv.Itoa(d.RPC.Port) + `
rpc.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# rpc.cors = http://localhost:3000

# ============================================================================
# REST server
# ============================================================================

rest.enabled = true
rest.addr = 127.0.0.1
rest.port = ` + strconv.Itoa(d.REST.Port) + `

# Expose Prometheus metrics at /metrics on the REST listener
metrics.enabled = true

# ============================================================================
# Logging
# ============================================================================

log.level = ` + d.Log.Level + `
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
