package config

import (
	"strings"
	"testing"

	"github.com/marmos91/bytebeam/internal/bytesize"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_PortOutOfRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_MissingTokenFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Tiers.Public.TokenFormat = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for empty token format")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("Expected 'required' validation error, got: %v", err)
	}
}

func TestValidate_CacheSmallerThanBlock(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Tiers.Authenticated.CacheSize = bytesize.KiB
	cfg.Tiers.Authenticated.BlockSize = 4 * bytesize.KiB

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for cache smaller than block")
	}
	if !strings.Contains(err.Error(), "cache_size") {
		t.Errorf("Expected cache_size in error, got: %v", err)
	}
}

func TestValidate_KeyserverPlaceholder(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Keys.Keyserver = "https://example.com/keys"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for keyserver without {} placeholder")
	}
	if !strings.Contains(err.Error(), "{}") {
		t.Errorf("Expected placeholder hint in error, got: %v", err)
	}
}
