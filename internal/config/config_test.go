package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if cfg.RPCAddr != "127.0.0.1:8790" {
		t.Fatalf("unexpected default rpc addr %q", cfg.RPCAddr)
	}
	if cfg.AdminNonceTTL != 5*time.Minute || cfg.AdminUnlockTTL != 30*time.Minute {
		t.Fatalf("unexpected default TTLs: %v / %v", cfg.AdminNonceTTL, cfg.AdminUnlockTTL)
	}
	if cfg.AdminKeyPath != filepath.Join(cfg.DataDir, "admin_public.pem") {
		t.Fatalf("admin key path not resolved against data dir: %q", cfg.AdminKeyPath)
	}
}

func TestLoadMergesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustd.yaml")
	content := []byte(`
dataDir: /tmp/trustd-test
rpcAddr: 127.0.0.1:9999
adminUnlockTTL: 1h
rateLimit:
  enabled: false
  rps: 5
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg := Load(path)
	if cfg.DataDir != "/tmp/trustd-test" || cfg.RPCAddr != "127.0.0.1:9999" {
		t.Fatalf("yaml values not merged: %+v", cfg)
	}
	if cfg.AdminUnlockTTL != time.Hour {
		t.Fatalf("unlock TTL not merged: %v", cfg.AdminUnlockTTL)
	}
	if cfg.AdminNonceTTL != 5*time.Minute {
		t.Fatalf("unset field must keep default: %v", cfg.AdminNonceTTL)
	}
	if cfg.RateLimit.Enabled {
		t.Fatal("rate limit enabled=false not merged")
	}
	if cfg.RateLimit.RPS != 5 {
		t.Fatalf("rate limit rps not merged: %v", cfg.RateLimit.RPS)
	}
	if cfg.RateLimit.Burst != 60 {
		t.Fatalf("unset burst must keep default: %d", cfg.RateLimit.Burst)
	}
}

func TestEnvOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustd.yaml")
	if err := os.WriteFile(path, []byte("rpcAddr: 127.0.0.1:9999\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TRUSTD_RPC_ADDR", "127.0.0.1:7000")
	t.Setenv("TRUSTD_ADMIN_NONCE_TTL", "90s")
	cfg := Load(path)
	if cfg.RPCAddr != "127.0.0.1:7000" {
		t.Fatalf("env override lost: %q", cfg.RPCAddr)
	}
	if cfg.AdminNonceTTL != 90*time.Second {
		t.Fatalf("env TTL override lost: %v", cfg.AdminNonceTTL)
	}
}

func TestMalformedYAMLIsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustd.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg := Load(path)
	if cfg.RPCAddr != "127.0.0.1:8790" {
		t.Fatalf("malformed config must fall back to defaults, got %q", cfg.RPCAddr)
	}
}
