package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
)

func TestDefaults_Validate(t *testing.T) {
	for _, network := range []NetworkType{Mainnet, Testnet, Regtest} {
		cfg := Default(network)
		if err := Validate(cfg); err != nil {
			t.Errorf("%s defaults invalid: %v", network, err)
		}
		if cfg.Query.MaxWindow != MaxWindow {
			t.Errorf("%s max window = %d, want %d", network, cfg.Query.MaxWindow, MaxWindow)
		}
		if cfg.Mempool.Refresh <= 0 {
			t.Errorf("%s mempool refresh not set", network)
		}
	}
}

func TestChainParams(t *testing.T) {
	tests := map[NetworkType]*chaincfg.Params{
		Mainnet: &chaincfg.MainNetParams,
		Testnet: &chaincfg.TestNet3Params,
		Regtest: &chaincfg.RegressionNetParams,
	}
	for network, want := range tests {
		if got := Default(network).ChainParams(); got.Name != want.Name {
			t.Errorf("%s params = %s, want %s", network, got.Name, want.Name)
		}
	}
}

func TestPrecision(t *testing.T) {
	cfg := DefaultMainnet()
	if p := cfg.Precision(); p.Places != 8 {
		t.Errorf("places = %d, want 8", p.Places)
	}
	cfg.Coin.PerUnit = 100
	if p := cfg.Precision(); p.Places != 2 {
		t.Errorf("places = %d, want 2", p.Places)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad network", func(c *Config) { c.Network = "signet2" }},
		{"empty daemon url", func(c *Config) { c.Daemon.URL = "" }},
		{"non-http daemon url", func(c *Config) { c.Daemon.URL = "tcp://127.0.0.1:8332" }},
		{"zero timeout", func(c *Config) { c.Daemon.Timeout = 0 }},
		{"negative cache", func(c *Config) { c.Daemon.CacheSize = -1 }},
		{"zero refresh", func(c *Config) { c.Mempool.Refresh = 0 }},
		{"zero window", func(c *Config) { c.Query.MaxWindow = 0 }},
		{"bad perunit", func(c *Config) { c.Coin.PerUnit = 12345 }},
		{"rpc port", func(c *Config) { c.RPC.Port = 70000 }},
		{"rest port", func(c *Config) { c.REST.Port = -1 }},
		{"shared port", func(c *Config) { c.REST.Port = c.RPC.Port }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMainnet()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if err := Validate(nil); err == nil {
		t.Error("nil config should fail")
	}
}

func TestLoadFile_AndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "addrindex.conf")
	content := `# comment
network = testnet
daemon.url = "http://10.0.0.2:18332"
daemon.user = alice
daemon.timeout = 5s
daemon.cachettl = 1m
mempool.refresh = 2s
query.maxwindow = 25
coin.perunit = 1000000
index.readonly = yes
rpc.allowed = 127.0.0.1, 10.0.0.0/8
rest.port = 4000
metrics = off
log.json = true
unknown.key = ignored
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}

	if cfg.Network != Testnet {
		t.Errorf("network = %s", cfg.Network)
	}
	if cfg.Daemon.URL != "http://10.0.0.2:18332" || cfg.Daemon.User != "alice" {
		t.Errorf("daemon = %+v", cfg.Daemon)
	}
	if cfg.Daemon.Timeout != 5*time.Second || cfg.Daemon.CacheTTL != time.Minute {
		t.Errorf("durations = %v %v", cfg.Daemon.Timeout, cfg.Daemon.CacheTTL)
	}
	if cfg.Mempool.Refresh != 2*time.Second || cfg.Query.MaxWindow != 25 {
		t.Errorf("mempool/query = %v %d", cfg.Mempool.Refresh, cfg.Query.MaxWindow)
	}
	if cfg.Coin.PerUnit != 1_000_000 || !cfg.Index.ReadOnly {
		t.Errorf("coin/index = %d %v", cfg.Coin.PerUnit, cfg.Index.ReadOnly)
	}
	if len(cfg.RPC.AllowedIPs) != 2 || cfg.RPC.AllowedIPs[1] != "10.0.0.0/8" {
		t.Errorf("rpc.allowed = %v", cfg.RPC.AllowedIPs)
	}
	if cfg.REST.Port != 4000 || cfg.Metrics.Enabled || !cfg.Log.JSON {
		t.Errorf("rest/metrics/log = %d %v %v", cfg.REST.Port, cfg.Metrics.Enabled, cfg.Log.JSON)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("expected no values, got %v", values)
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	if err := os.WriteFile(path, []byte("network mainnet\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyFileConfig_BadValue(t *testing.T) {
	cfg := DefaultMainnet()
	err := ApplyFileConfig(cfg, map[string]string{"daemon.timeout": "soon"})
	if err == nil {
		t.Error("expected duration error")
	}
}

func TestParseArgs_AndApply(t *testing.T) {
	f, err := ParseArgs([]string{
		"--regtest",
		"--daemon-url=http://127.0.0.1:19000",
		"--max-window=10",
		"--rpc=false",
		"--rest-port=5000",
		"--index-readonly",
		"--log-level=warn",
	}, io.Discard)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if f.Network != string(Regtest) || !f.SetRPC || !f.SetIndexReadOnly {
		t.Errorf("flags = %+v", f)
	}

	cfg := Default(Regtest)
	ApplyFlags(cfg, f)
	if cfg.Daemon.URL != "http://127.0.0.1:19000" || cfg.Query.MaxWindow != 10 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RPC.Enabled || cfg.REST.Port != 5000 || !cfg.Index.ReadOnly || cfg.Log.Level != "warn" {
		t.Errorf("cfg = %+v", cfg)
	}
	// Unset bool flags keep their config value.
	if !cfg.REST.Enabled || !cfg.Metrics.Enabled {
		t.Error("rest/metrics should remain enabled")
	}
}

func TestParseArgs_PositionalStopsParsing(t *testing.T) {
	if _, err := ParseArgs([]string{"--rpc", "extra", "--rest=false"}, io.Discard); err == nil {
		t.Error("expected error for flag after positional argument")
	}
}

func TestLoadWithFlags_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	f, err := ParseArgs([]string{"--testnet", "--datadir=" + dir, "--rest-port=6000"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadWithFlags(f)
	if err != nil {
		t.Fatalf("LoadWithFlags: %v", err)
	}
	if cfg.Network != Testnet || cfg.REST.Port != 6000 {
		t.Errorf("cfg = %+v", cfg)
	}
	if _, err := os.Stat(cfg.ConfigFile()); err != nil {
		t.Errorf("default config not written: %v", err)
	}
	if cfg.IndexDir() != filepath.Join(dir, "testnet", "index") {
		t.Errorf("index dir = %s", cfg.IndexDir())
	}

	// The written default file must load back cleanly.
	values, err := LoadFile(cfg.ConfigFile())
	if err != nil {
		t.Fatal(err)
	}
	again := Default(Testnet)
	if err := ApplyFileConfig(again, values); err != nil {
		t.Fatal(err)
	}
	if err := Validate(again); err != nil {
		t.Errorf("default config file invalid: %v", err)
	}
}
