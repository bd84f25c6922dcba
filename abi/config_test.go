package abi

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.NENV != DefaultNENV {
		t.Errorf("NENV = %d, want default %d", cfg.NENV, DefaultNENV)
	}
	if cfg.NCPU != DefaultNCPU {
		t.Errorf("NCPU = %d, want default %d", cfg.NCPU, DefaultNCPU)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{"nenv": 16, "ncpu": 2, "log_format": "json"}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.NENV != 16 || cfg.NCPU != 2 || cfg.LogFormat != "json" {
		t.Errorf("got %+v", cfg)
	}
}

func TestValidateRejectsNCPUAboveNENV(t *testing.T) {
	cfg := &Config{NENV: 2, NCPU: 4}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when ncpu exceeds nenv")
	}
}

func TestValidateRejectsNENVAboveMaxSlots(t *testing.T) {
	cfg := &Config{NENV: MaxSlots + 1, NCPU: 1}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when nenv exceeds MaxSlots")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/path/config.json"); err == nil {
		t.Error("expected error for missing config file")
	}
}
