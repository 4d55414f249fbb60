// Package config loads, validates and persists the ByteBeam configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/bytebeam/internal/bytesize"
	"github.com/marmos91/bytebeam/pkg/relay"
)

// Config is the ByteBeam server configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (BYTEBEAM_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server configures the HTTP listener
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Keys configures where SSH public keys for upgrade challenges come from
	Keys KeysConfig `mapstructure:"keys" yaml:"keys"`

	// Tiers holds the admission parameters for anonymous and
	// authenticated tickets
	Tiers TiersConfig `mapstructure:"tiers" yaml:"tiers"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Address is the interface to bind
	// Default: "0.0.0.0"
	Address string `mapstructure:"address" yaml:"address"`

	// Port is the HTTP port
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ShutdownTimeout is the maximum time to wait for in-flight transfers
	// during graceful shutdown
	// Default: 30s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// MaxBodySize caps a single request body. Requests beyond the cap are
	// cut off mid-stream.
	// Supports human-readable formats: "100GiB", "500MB"
	// Default: 100GiB
	MaxBodySize bytesize.ByteSize `mapstructure:"max_body_size" yaml:"max_body_size"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// KeysConfig configures the SSH public key directory used to verify
// ticket upgrade challenges.
type KeysConfig struct {
	// Keyserver is a URL template with a "{}" placeholder for the user
	// name, pointing at an authorized_keys style listing
	// Example: "https://github.com/{}.keys"
	Keyserver string `mapstructure:"keyserver" yaml:"keyserver"`

	// Users preloads keys at startup. Each entry is either a user name
	// (resolved through the keyserver) or a raw authorized_keys line.
	Users []string `mapstructure:"users" yaml:"users,omitempty"`
}

// TiersConfig holds both admission tiers.
type TiersConfig struct {
	// Public applies to anonymous tickets
	Public TierConfig `mapstructure:"public" yaml:"public"`

	// Authenticated applies to tickets upgraded via an SSH key challenge
	Authenticated TierConfig `mapstructure:"authenticated" yaml:"authenticated"`
}

// TierConfig holds the per-tier admission parameters.
//
// CacheSize and BlockSize are expressed in bytes; the number of chunks a
// ticket may buffer is CacheSize divided by BlockSize, floored at one.
type TierConfig struct {
	// CacheSize is the total payload a ticket may buffer in memory
	// Supports human-readable formats: "4KiB", "1GiB"
	CacheSize bytesize.ByteSize `mapstructure:"cache_size" yaml:"cache_size"`

	// BlockSize is the chunk granularity payloads are reassembled to
	BlockSize bytesize.ByteSize `mapstructure:"block_size" yaml:"block_size"`

	// CullTime is how long an untouched waiting ticket survives
	// Default: 1h
	CullTime time.Duration `mapstructure:"cull_time" yaml:"cull_time"`

	// TokenFormat and UploadKeyFormat are token templates; "{number}",
	// "{word}" and "{uuid}" placeholders are expanded per draw.
	TokenFormat     string `mapstructure:"token_format" validate:"required" yaml:"token_format"`
	UploadKeyFormat string `mapstructure:"upload_key_format" validate:"required" yaml:"upload_key_format"`

	// PacketDelay is the pacing delay inserted per relayed block; zero
	// disables throttling
	PacketDelay time.Duration `mapstructure:"packet_delay" yaml:"packet_delay"`
}

// Tier converts the file representation into the registry's runtime
// parameters.
func (c TierConfig) Tier() relay.Tier {
	blockSize := c.BlockSize.Int()
	if blockSize <= 0 {
		blockSize = int(4 * bytesize.KiB)
	}

	chunks := c.CacheSize.Int() / blockSize
	if chunks < 1 {
		chunks = 1
	}

	return relay.Tier{
		CacheSize:    chunks,
		BlockSize:    blockSize,
		CullTime:     c.CullTime,
		TokenFormat:  c.TokenFormat,
		UploadFormat: c.UploadKeyFormat,
		PacketDelay:  c.PacketDelay,
	}
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// If no config file was found, use defaults
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  bytebeam init\n\n"+
				"Or specify a custom config file:\n"+
				"  bytebeam <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  bytebeam init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file
// settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the BYTEBEAM_ prefix and underscores
	// Example: BYTEBEAM_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("BYTEBEAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/bytebeam/config.yaml
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file
// was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// Explicit config file paths surface as os.PathError instead
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize,
// so config files can use human-readable sizes like "1Gi", "500Mi",
// "100MB", or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration, so config files
// can use human-readable durations like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Raw integers are nanoseconds
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "bytebeam")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "bytebeam")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}
