package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Batch.MaxTokensPerBatch != 15000 {
		t.Errorf("default token budget = %d, want 15000", cfg.Batch.MaxTokensPerBatch)
	}
	if cfg.Scan.MaxFileSizeBytes != 10*1024*1024 {
		t.Errorf("default max file size = %d", cfg.Scan.MaxFileSizeBytes)
	}
	if !cfg.Scan.IncludeConfig {
		t.Error("config files should be included by default")
	}
	if cfg.Cache.DefaultTTLHours != 24 {
		t.Errorf("default TTL = %d, want 24", cfg.Cache.DefaultTTLHours)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Batch.MaxTokensPerBatch = 8000
	cfg.Batch.DefaultStrategy = "by_language"
	cfg.Logging.Level = "debug"

	if err := cfg.Save(tmpDir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, EngineDir, "config.json")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Batch.MaxTokensPerBatch != 8000 {
		t.Errorf("token budget = %d, want 8000", loaded.Batch.MaxTokensPerBatch)
	}
	if loaded.Batch.DefaultStrategy != "by_language" {
		t.Errorf("strategy = %q", loaded.Batch.DefaultStrategy)
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("log level = %q", loaded.Logging.Level)
	}
	// Fields absent from the file keep their defaults.
	if loaded.Cache.MemoryBudgetMB != 100 {
		t.Errorf("memory budget = %d, want default 100", loaded.Cache.MemoryBudgetMB)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	cfg.Batch.MaxTokensPerBatch = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero token budget should fail validation")
	}

	cfg = Default()
	cfg.Scan.MaxFileSizeBytes = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative file size cap should fail validation")
	}
}
