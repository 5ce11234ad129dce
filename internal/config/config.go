// Package config loads trustd.yaml and applies TRUSTD_* environment
// overrides on top of built-in defaults.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir      string
	RPCAddr      string
	AdminKeyPath string

	AdminNonceTTL  time.Duration
	AdminUnlockTTL time.Duration
	ConsentTTL     time.Duration

	RateLimit RateLimitConfig
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// fileConfig is the on-disk schema. TTLs are Go duration strings so a
// config can say "30m" rather than nanosecond integers.
type fileConfig struct {
	DataDir      string `yaml:"dataDir"`
	RPCAddr      string `yaml:"rpcAddr"`
	AdminKeyPath string `yaml:"adminKeyPath"`

	AdminNonceTTL  string `yaml:"adminNonceTTL"`
	AdminUnlockTTL string `yaml:"adminUnlockTTL"`
	ConsentTTL     string `yaml:"consentTTL"`

	RateLimit struct {
		Enabled *bool    `yaml:"enabled"`
		RPS     *float64 `yaml:"rps"`
		Burst   *int     `yaml:"burst"`
	} `yaml:"rateLimit"`
}

func Default() Config {
	return Config{
		DataDir:        defaultDataDir(),
		RPCAddr:        "127.0.0.1:8790",
		AdminKeyPath:   "", // resolved against DataDir when empty
		AdminNonceTTL:  5 * time.Minute,
		AdminUnlockTTL: 30 * time.Minute,
		ConsentTTL:     5 * time.Minute,
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     30,
			Burst:   60,
		},
	}
}

// Load reads configuration from configPath, falling back to the default
// candidate locations, then applies env overrides. A missing or
// malformed file falls back to the next candidate, matching desktop-app
// tolerance for stale configs.
func Load(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"trustd.yaml",
			filepath.Join(cfg.DataDir, "trustd.yaml"),
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		merge(&cfg, parsed)
		break
	}

	applyEnvOverrides(&cfg)
	if cfg.AdminKeyPath == "" {
		cfg.AdminKeyPath = filepath.Join(cfg.DataDir, "admin_public.pem")
	}
	return cfg
}

func merge(dst *Config, src fileConfig) {
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.RPCAddr != "" {
		dst.RPCAddr = src.RPCAddr
	}
	if src.AdminKeyPath != "" {
		dst.AdminKeyPath = src.AdminKeyPath
	}
	if d, ok := parseDuration(src.AdminNonceTTL); ok {
		dst.AdminNonceTTL = d
	}
	if d, ok := parseDuration(src.AdminUnlockTTL); ok {
		dst.AdminUnlockTTL = d
	}
	if d, ok := parseDuration(src.ConsentTTL); ok {
		dst.ConsentTTL = d
	}
	if src.RateLimit.Enabled != nil {
		dst.RateLimit.Enabled = *src.RateLimit.Enabled
	}
	if src.RateLimit.RPS != nil && *src.RateLimit.RPS > 0 {
		dst.RateLimit.RPS = *src.RateLimit.RPS
	}
	if src.RateLimit.Burst != nil && *src.RateLimit.Burst > 0 {
		dst.RateLimit.Burst = *src.RateLimit.Burst
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TRUSTD_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("TRUSTD_RPC_ADDR")); v != "" {
		cfg.RPCAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("TRUSTD_ADMIN_KEY")); v != "" {
		cfg.AdminKeyPath = v
	}
	if d, ok := parseDuration(os.Getenv("TRUSTD_ADMIN_NONCE_TTL")); ok {
		cfg.AdminNonceTTL = d
	}
	if d, ok := parseDuration(os.Getenv("TRUSTD_ADMIN_UNLOCK_TTL")); ok {
		cfg.AdminUnlockTTL = d
	}
	if d, ok := parseDuration(os.Getenv("TRUSTD_CONSENT_TTL")); ok {
		cfg.ConsentTTL = d
	}
	if v, ok := parseBoolEnv("TRUSTD_RATE_LIMIT_ENABLED"); ok {
		cfg.RateLimit.Enabled = v
	}
}

// parseDuration accepts Go duration strings; "0" disables the expiry.
func parseDuration(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if raw == "0" {
		return 0, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		if wd, wdErr := os.Getwd(); wdErr == nil {
			return filepath.Join(wd, "promptpilot")
		}
		return "promptpilot"
	}
	return filepath.Join(base, "promptpilot")
}
