package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cacheStatsFormat string
	clearFile        string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the analysis result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache tier occupancy and hit rates",
	Run:   runCacheStats,
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired cache entries",
	Run:   runCacheSweep,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached results for a file",
	Run:   runCacheClear,
}

func init() {
	cacheStatsCmd.Flags().StringVar(&cacheStatsFormat, "format", "human", "Output format (json, human)")
	cacheClearCmd.Flags().StringVar(&clearFile, "file", "", "File whose cached results to remove")
	cacheClearCmd.MarkFlagRequired("file")

	cacheCmd.AddCommand(cacheStatsCmd, cacheSweepCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	cfg := mustConfig(repoRoot)
	logger := newLogger(cfg)

	reg := mustRegistry(repoRoot, cfg, logger)
	defer reg.Close()

	stats, err := reg.Cache().Stats()
	if err != nil {
		fail("reading cache stats", err)
	}

	if cacheStatsFormat == "json" {
		printJSON(stats)
		return
	}

	fmt.Printf("Memory tier: %d entries, %d bytes\n", stats.MemoryEntries, stats.MemoryBytes)
	fmt.Printf("Disk tier:   %d entries, %d bytes\n", stats.DiskEntries, stats.DiskBytes)
	fmt.Printf("Hits: %d  Misses: %d  Evictions: %d\n", stats.Hits, stats.Misses, stats.Evictions)
}

func runCacheSweep(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	cfg := mustConfig(repoRoot)
	logger := newLogger(cfg)

	reg := mustRegistry(repoRoot, cfg, logger)
	defer reg.Close()

	removed, err := reg.Cache().ClearExpired()
	if err != nil {
		fail("sweeping cache", err)
	}
	fmt.Printf("Removed %d expired entries\n", removed)
}

func runCacheClear(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	cfg := mustConfig(repoRoot)
	logger := newLogger(cfg)

	reg := mustRegistry(repoRoot, cfg, logger)
	defer reg.Close()

	removed, err := reg.Cache().ClearForFile(clearFile)
	if err != nil {
		fail("clearing cache entries", err)
	}
	fmt.Printf("Removed %d entries for %s\n", removed, clearFile)
}
