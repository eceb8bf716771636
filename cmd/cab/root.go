package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cab/internal/cache"
	"cab/internal/config"
	"cab/internal/logging"
	"cab/internal/registry"
	"cab/internal/session"
)

const version = "0.1.0"

var repoFlag string

var rootCmd = &cobra.Command{
	Use:   "cab",
	Short: "cab - incremental codebase analysis engine",
	Long: `cab coordinates LLM-driven codebase analysis: it catalogs a repository,
packs files into token-budgeted batches, schedules them through a dependency
checklist, and carries discovered context between batches so nothing is
analyzed twice.`,
	Version: version,
}

func init() {
	rootCmd.SetVersionTemplate("cab version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", ".",
		"Path to the repository to analyze")
}

// mustRepoRoot resolves --repo to an absolute path.
func mustRepoRoot() string {
	root, err := filepath.Abs(repoFlag)
	if err != nil {
		fail("resolving repo path", err)
	}
	return root
}

// mustConfig loads .cab/config.json, falling back to defaults.
func mustConfig(repoRoot string) *config.Config {
	cfg, err := config.Load(repoRoot)
	if err != nil {
		fail("loading config", err)
	}
	if err := cfg.Validate(); err != nil {
		fail("validating config", err)
	}
	return cfg
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})
}

// mustRegistry opens the repo's cache store and wraps it in a registry.
// Callers own the returned registry and must Close it.
func mustRegistry(repoRoot string, cfg *config.Config, logger *logging.Logger) *registry.Registry {
	store, err := cache.Open(filepath.Join(repoRoot, config.EngineDir, "cache"), cache.Options{
		MemoryBudgetBytes:    int64(cfg.Cache.MemoryBudgetMB) * 1024 * 1024,
		MemoryItemLimitBytes: int64(cfg.Cache.MemoryItemLimitBytes),
		DefaultTTLHours:      cfg.Cache.DefaultTTLHours,
	}, logger)
	if err != nil {
		fail("opening cache", err)
	}
	return registry.New(store, logger)
}

func mustSessionStore(repoRoot string, logger *logging.Logger) *session.Store {
	store, err := session.OpenStore(repoRoot, logger)
	if err != nil {
		fail("opening session store", err)
	}
	return store
}

func fail(action string, err error) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", action, err)
	os.Exit(1)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail("encoding output", err)
	}
	fmt.Println(string(data))
}
