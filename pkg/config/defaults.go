package config

import (
	"strings"
	"time"

	"github.com/marmos91/bytebeam/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMetricsDefaults(&cfg.Metrics)
	applyKeysDefaults(&cfg.Keys)
	applyPublicTierDefaults(&cfg.Tiers.Public)
	applyAuthenticatedTierDefaults(&cfg.Tiers.Authenticated)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets HTTP listener defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Address == "" {
		cfg.Address = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 100 * bytesize.GiB
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyKeysDefaults sets the key directory defaults.
func applyKeysDefaults(cfg *KeysConfig) {
	if cfg.Keyserver == "" {
		cfg.Keyserver = "https://github.com/{}.keys"
	}
}

// applyPublicTierDefaults sets the anonymous tier defaults: a single
// buffered block, heavy pacing, unguessable UUID tokens.
func applyPublicTierDefaults(cfg *TierConfig) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = 4 * bytesize.KiB
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = cfg.BlockSize
	}
	if cfg.CullTime == 0 {
		cfg.CullTime = time.Hour
	}
	if cfg.TokenFormat == "" {
		cfg.TokenFormat = "{uuid}"
	}
	if cfg.UploadKeyFormat == "" {
		cfg.UploadKeyFormat = "{uuid}"
	}
	if cfg.PacketDelay == 0 {
		cfg.PacketDelay = time.Second
	}
}

// applyAuthenticatedTierDefaults sets the authenticated tier defaults: a
// gigabyte of buffer, no pacing, memorable word tokens.
func applyAuthenticatedTierDefaults(cfg *TierConfig) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = 4 * bytesize.KiB
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = bytesize.GiB
	}
	if cfg.CullTime == 0 {
		cfg.CullTime = time.Hour
	}
	if cfg.TokenFormat == "" {
		cfg.TokenFormat = "{number}-{word}-{word}-{word}"
	}
	if cfg.UploadKeyFormat == "" {
		cfg.UploadKeyFormat = "{number}-{word}-{word}-{word}"
	}
	// PacketDelay stays zero: authenticated transfers are not throttled
}

// GetDefaultConfig returns a fully defaulted configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
