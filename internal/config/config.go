// Package config loads and persists engine configuration from
// .cab/config.json inside the analyzed repository.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// EngineDir is the directory under the repo root that holds all engine
// state: config, session store, cache tiers, context snapshots.
const EngineDir = ".cab"

// Config is the complete engine configuration.
type Config struct {
	Version int    `json:"version" mapstructure:"version"`
	Scan    Scan   `json:"scan" mapstructure:"scan"`
	Batch   Batch  `json:"batch" mapstructure:"batch"`
	Cache   Cache  `json:"cache" mapstructure:"cache"`
	Logging Logger `json:"logging" mapstructure:"logging"`
}

// Scan configures the file cataloger.
type Scan struct {
	MaxFileSizeBytes int64 `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
	IncludeConfig    bool  `json:"includeConfig" mapstructure:"includeConfig"`
}

// Batch configures the batcher and the checklist retry convention.
type Batch struct {
	MaxTokensPerBatch int    `json:"maxTokensPerBatch" mapstructure:"maxTokensPerBatch"`
	DefaultStrategy   string `json:"defaultStrategy" mapstructure:"defaultStrategy"`
	MaxRetries        int    `json:"maxRetries" mapstructure:"maxRetries"`
}

// Cache configures the tiered cache store.
type Cache struct {
	MemoryBudgetMB       int `json:"memoryBudgetMb" mapstructure:"memoryBudgetMb"`
	MemoryItemLimitBytes int `json:"memoryItemLimitBytes" mapstructure:"memoryItemLimitBytes"`
	DefaultTTLHours      int `json:"defaultTtlHours" mapstructure:"defaultTtlHours"`
}

// Logger configures log output.
type Logger struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// Default returns the compiled-in defaults.
func Default() *Config {
	return &Config{
		Version: 1,
		Scan: Scan{
			MaxFileSizeBytes: 10 * 1024 * 1024,
			IncludeConfig:    true,
		},
		Batch: Batch{
			MaxTokensPerBatch: 15000,
			DefaultStrategy:   "mixed",
			MaxRetries:        3,
		},
		Cache: Cache{
			MemoryBudgetMB:       100,
			MemoryItemLimitBytes: 50 * 1024,
			DefaultTTLHours:      24,
		},
		Logging: Logger{
			Format: "human",
			Level:  "info",
		},
	}
}

// Load reads .cab/config.json under repoRoot. A missing file yields the
// defaults, not an error.
func Load(repoRoot string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("version", def.Version)
	v.SetDefault("scan.maxFileSizeBytes", def.Scan.MaxFileSizeBytes)
	v.SetDefault("scan.includeConfig", def.Scan.IncludeConfig)
	v.SetDefault("batch.maxTokensPerBatch", def.Batch.MaxTokensPerBatch)
	v.SetDefault("batch.defaultStrategy", def.Batch.DefaultStrategy)
	v.SetDefault("batch.maxRetries", def.Batch.MaxRetries)
	v.SetDefault("cache.memoryBudgetMb", def.Cache.MemoryBudgetMB)
	v.SetDefault("cache.memoryItemLimitBytes", def.Cache.MemoryItemLimitBytes)
	v.SetDefault("cache.defaultTtlHours", def.Cache.DefaultTTLHours)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.level", def.Logging.Level)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, EngineDir))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to .cab/config.json, creating the engine
// directory if needed.
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, EngineDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Batch.MaxTokensPerBatch <= 0 {
		return &FieldError{Field: "batch.maxTokensPerBatch", Message: "must be positive"}
	}
	if c.Scan.MaxFileSizeBytes <= 0 {
		return &FieldError{Field: "scan.maxFileSizeBytes", Message: "must be positive"}
	}
	if c.Cache.MemoryBudgetMB < 0 {
		return &FieldError{Field: "cache.memoryBudgetMb", Message: "must not be negative"}
	}
	return nil
}

// FieldError reports an invalid configuration field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
