package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitConfig_Success(t *testing.T) {
	tmpDir := t.TempDir()

	// Override XDG_CONFIG_HOME so getConfigDir() resolves to our temp
	// directory.
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	if !strings.HasPrefix(configPath, tmpDir) {
		t.Errorf("Expected config under %s, got %s", tmpDir, configPath)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read generated config: %v", err)
	}
	if !strings.Contains(string(content), "tiers:") {
		t.Errorf("Expected generated config to contain tiers section, got:\n%s", content)
	}

	// The generated file must load and validate cleanly
	if _, err := Load(configPath); err != nil {
		t.Errorf("Generated config failed to load: %v", err)
	}
}

func TestInitConfig_RefusesOverwrite(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("First init failed: %v", err)
	}

	err := InitConfigToPath(configPath, false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "--force") {
		t.Errorf("Expected --force hint in error, got: %v", err)
	}

	// force overwrites
	if err := InitConfigToPath(configPath, true); err != nil {
		t.Errorf("Forced init failed: %v", err)
	}
}
