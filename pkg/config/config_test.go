package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/bytebeam/internal/bytesize"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Minimal config: everything else comes from defaults
	configContent := `
logging:
  level: "DEBUG"

server:
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.MaxBodySize != 100*bytesize.GiB {
		t.Errorf("Expected default max_body_size 100GiB, got %v", cfg.Server.MaxBodySize)
	}
	if cfg.Tiers.Public.TokenFormat != "{uuid}" {
		t.Errorf("Expected default public token format, got %q", cfg.Tiers.Public.TokenFormat)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_ByteSizeAndDurationHooks(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  max_body_size: 500MiB
  shutdown_timeout: 5s

tiers:
  authenticated:
    cache_size: 2GiB
    block_size: 8KiB
    cull_time: 2h
    packet_delay: 250ms
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.MaxBodySize != 500*bytesize.MiB {
		t.Errorf("Expected 500MiB max body, got %v", cfg.Server.MaxBodySize)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected 5s shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Tiers.Authenticated.CacheSize != 2*bytesize.GiB {
		t.Errorf("Expected 2GiB cache, got %v", cfg.Tiers.Authenticated.CacheSize)
	}
	if cfg.Tiers.Authenticated.BlockSize != 8*bytesize.KiB {
		t.Errorf("Expected 8KiB blocks, got %v", cfg.Tiers.Authenticated.BlockSize)
	}
	if cfg.Tiers.Authenticated.CullTime != 2*time.Hour {
		t.Errorf("Expected 2h cull time, got %v", cfg.Tiers.Authenticated.CullTime)
	}
	if cfg.Tiers.Authenticated.PacketDelay != 250*time.Millisecond {
		t.Errorf("Expected 250ms packet delay, got %v", cfg.Tiers.Authenticated.PacketDelay)
	}
}

func TestTierConfig_Tier(t *testing.T) {
	tc := TierConfig{
		CacheSize:       bytesize.GiB,
		BlockSize:       4 * bytesize.KiB,
		CullTime:        time.Hour,
		TokenFormat:     "{uuid}",
		UploadKeyFormat: "{uuid}",
	}

	tier := tc.Tier()
	if tier.CacheSize != 262144 {
		t.Errorf("Expected 262144 chunks for 1GiB/4KiB, got %d", tier.CacheSize)
	}
	if tier.BlockSize != 4096 {
		t.Errorf("Expected 4096 block size, got %d", tier.BlockSize)
	}
}

func TestTierConfig_Tier_FloorsAtOneChunk(t *testing.T) {
	// cache_size == block_size is the public tier default: one chunk
	tc := TierConfig{
		CacheSize: 4 * bytesize.KiB,
		BlockSize: 4 * bytesize.KiB,
	}
	if got := tc.Tier().CacheSize; got != 1 {
		t.Errorf("Expected 1 chunk, got %d", got)
	}

	// A cache smaller than a block still yields one chunk
	tc.CacheSize = bytesize.KiB
	if got := tc.Tier().CacheSize; got != 1 {
		t.Errorf("Expected floor of 1 chunk, got %d", got)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Server.Port = 9999
	cfg.Keys.Users = []string{"alice", "bob"}

	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if loaded.Server.Port != 9999 {
		t.Errorf("Expected port 9999 after round trip, got %d", loaded.Server.Port)
	}
	if len(loaded.Keys.Users) != 2 || loaded.Keys.Users[0] != "alice" {
		t.Errorf("Expected users to survive round trip, got %v", loaded.Keys.Users)
	}
}
