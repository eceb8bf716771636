package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cab/internal/config"
	"cab/internal/session"
)

var initGoal string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .cab directory with default configuration",
	Run:   runInit,
}

var configShowCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Run:   runConfigShow,
}

func init() {
	initCmd.Flags().StringVar(&initGoal, "goal", "", "Also write an analysis manifest with this goal")
	rootCmd.AddCommand(initCmd, configShowCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()

	configPath := filepath.Join(repoRoot, config.EngineDir, "config.json")
	if _, err := os.Stat(configPath); err == nil {
		fail("initializing", fmt.Errorf("%s already exists", configPath))
	}

	cfg := config.Default()
	if err := cfg.Save(repoRoot); err != nil {
		fail("writing config", err)
	}
	fmt.Printf("Wrote %s\n", configPath)

	if initGoal != "" {
		if err := writeManifest(repoRoot, initGoal, cfg.Batch.DefaultStrategy); err != nil {
			fail("writing analysis manifest", err)
		}
		fmt.Printf("Wrote %s\n", filepath.Join(repoRoot, config.EngineDir, "analysis.toml"))
	}
}

func writeManifest(repoRoot, goal, strategy string) error {
	return session.SaveManifest(repoRoot, &session.Manifest{
		Goal:     goal,
		Strategy: strategy,
	})
}

func runConfigShow(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	printJSON(mustConfig(repoRoot))
}
