package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cab/internal/batching"
	"cab/internal/catalog"
	"cab/internal/checklist"
	"cab/internal/session"
)

var (
	createGoal     string
	createStrategy string
	createBudget   int
	createExts     []string

	nextLimit    int
	updateError  string
	statusFormat string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Create and drive analysis sessions",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Scan the repo, build batches, and start a session",
	Long: `Scan the repository, pack its files into token-budgeted batches with the
chosen strategy, and persist a new session with its checklist. Flags override
the repo's .cab/analysis.toml manifest, which overrides config defaults.`,
	Run: runSessionCreate,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known sessions",
	Run:   runSessionList,
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show a session's checklist progress",
	Args:  cobra.ExactArgs(1),
	Run:   runSessionStatus,
}

var sessionNextCmd = &cobra.Command{
	Use:   "next <session-id>",
	Short: "Show checklist items ready to process",
	Args:  cobra.ExactArgs(1),
	Run:   runSessionNext,
}

var sessionUpdateCmd = &cobra.Command{
	Use:   "update <session-id> <item-id> <status>",
	Short: "Record an item's new status and save the session",
	Args:  cobra.ExactArgs(3),
	Run:   runSessionUpdate,
}

func init() {
	sessionCreateCmd.Flags().StringVar(&createGoal, "goal", "", "Analysis goal for this session")
	sessionCreateCmd.Flags().StringVar(&createStrategy, "strategy", "",
		"Batching strategy (by_size, by_language, by_directory, mixed)")
	sessionCreateCmd.Flags().IntVar(&createBudget, "budget", 0, "Token budget per batch")
	sessionCreateCmd.Flags().StringSliceVar(&createExts, "extensions", nil,
		"Only include these file extensions")

	sessionNextCmd.Flags().IntVar(&nextLimit, "limit", 5, "Maximum items to return")
	sessionUpdateCmd.Flags().StringVar(&updateError, "error", "", "Error message for failed items")
	sessionStatusCmd.Flags().StringVar(&statusFormat, "format", "human", "Output format (json, human)")

	sessionCmd.AddCommand(sessionCreateCmd, sessionListCmd, sessionStatusCmd, sessionNextCmd, sessionUpdateCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionCreate(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	cfg := mustConfig(repoRoot)
	logger := newLogger(cfg)

	manifest, err := session.LoadManifest(repoRoot)
	if err != nil {
		fail("loading analysis manifest", err)
	}

	goal := createGoal
	strategyName := createStrategy
	budget := createBudget
	extensions := createExts
	var extraGoals []string
	if manifest != nil {
		extraGoals = manifest.ExtraGoals
		if goal == "" {
			goal = manifest.Goal
		}
		if strategyName == "" {
			strategyName = manifest.Strategy
		}
		if budget == 0 {
			budget = manifest.MaxTokensPerBatch
		}
		if len(extensions) == 0 {
			extensions = manifest.Extensions
		}
	}
	if goal == "" {
		fail("creating session", fmt.Errorf("no goal given; pass --goal or set one in .cab/analysis.toml"))
	}
	if strategyName == "" {
		strategyName = cfg.Batch.DefaultStrategy
	}
	if budget == 0 {
		budget = cfg.Batch.MaxTokensPerBatch
	}

	strategy, err := batching.ParseStrategy(strategyName)
	if err != nil {
		fail("creating session", err)
	}

	rules, err := catalog.LoadIgnoreRules(repoRoot)
	if err != nil {
		fail("loading ignore rules", err)
	}
	result, err := catalog.NewScanner(rules, logger).Scan(repoRoot, catalog.ScanOptions{
		Extensions:    extensions,
		IncludeConfig: cfg.Scan.IncludeConfig,
		MaxFileSize:   cfg.Scan.MaxFileSizeBytes,
	})
	if err != nil {
		fail("scanning repository", err)
	}

	batches, err := batching.New(budget, logger).CreateBatches(result.Records, strategy)
	if err != nil {
		fail("creating batches", err)
	}

	sess := session.New(repoRoot, goal, strategy, batches, extraGoals...)
	store := mustSessionStore(repoRoot, logger)
	defer store.Close()
	if _, err := store.Save(sess); err != nil {
		fail("saving session", err)
	}

	fmt.Printf("Created session %s\n", sess.ID)
	fmt.Printf("  Goal:     %s\n", sess.Goal)
	fmt.Printf("  Strategy: %s\n", sess.Strategy)
	fmt.Printf("  Files:    %d across %d batches\n", len(result.Records), len(batches))
	fmt.Printf("  Items:    %d checklist items\n", len(sess.Items))
	fmt.Printf("\nNext: cab session next %s\n", sess.ID)
}

func runSessionList(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	cfg := mustConfig(repoRoot)
	logger := newLogger(cfg)

	store := mustSessionStore(repoRoot, logger)
	defer store.Close()

	metas, err := store.List()
	if err != nil {
		fail("listing sessions", err)
	}
	if len(metas) == 0 {
		fmt.Println("No sessions yet. Start one with: cab session create --goal \"...\"")
		return
	}
	for _, m := range metas {
		fmt.Printf("%s  %2d snapshots  updated %s\n",
			m.SessionID, m.Snapshots, m.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

func runSessionStatus(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	cfg := mustConfig(repoRoot)
	logger := newLogger(cfg)

	store := mustSessionStore(repoRoot, logger)
	defer store.Close()

	sess, err := store.Load(args[0])
	if err != nil {
		fail("loading session", err)
	}

	cl := sess.Checklist()
	progress := cl.Progress()
	cycles := cl.FindCycles()

	if statusFormat == "json" {
		printJSON(map[string]interface{}{
			"session":  sess.ID,
			"goal":     sess.Goal,
			"status":   sess.Status,
			"progress": progress,
			"cycles":   cycles,
		})
		return
	}

	fmt.Printf("Session %s (%s)\n", sess.ID, sess.Status)
	fmt.Printf("  Goal:     %s\n", sess.Goal)
	fmt.Printf("  Progress: %.1f%% (%d/%d items)\n",
		progress.OverallPercent, progress.StatusCounts[checklist.Completed], progress.TotalItems)
	for _, kind := range []checklist.Kind{checklist.KindFile, checklist.KindBatch, checklist.KindGoal} {
		stats := progress.KindProgress[kind]
		fmt.Printf("  %-6s %d/%d (%.1f%%)\n", kind, stats.Completed, stats.Total, stats.Percent)
	}
	if len(progress.FailedItems) > 0 {
		fmt.Println("\nFailed items:")
		for _, item := range progress.FailedItems {
			fmt.Printf("  %s  %s (retries: %d): %s\n", item.ID, item.Description, item.RetryCount, item.Error)
		}
	}
	if len(cycles) > 0 {
		fmt.Println("\nDependency cycles detected:")
		for _, cycle := range cycles {
			fmt.Printf("  %s\n", strings.Join(cycle, " -> "))
		}
	}
}

func runSessionNext(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	cfg := mustConfig(repoRoot)
	logger := newLogger(cfg)

	store := mustSessionStore(repoRoot, logger)
	defer store.Close()

	sess, err := store.Load(args[0])
	if err != nil {
		fail("loading session", err)
	}

	ready := sess.Checklist().NextReady(nextLimit)
	if len(ready) == 0 {
		fmt.Println("No items ready. Either the session is done or pending items have unmet dependencies.")
		return
	}
	for _, item := range ready {
		fmt.Printf("%s  [%s]  %s\n", item.ID, item.Kind, item.Description)
	}
}

func runSessionUpdate(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	cfg := mustConfig(repoRoot)
	logger := newLogger(cfg)

	status, err := checklist.ParseStatus(args[2])
	if err != nil {
		fail("parsing status", err)
	}

	store := mustSessionStore(repoRoot, logger)
	defer store.Close()

	sess, err := store.Load(args[0])
	if err != nil {
		fail("loading session", err)
	}

	cl := sess.Checklist()
	if !cl.UpdateStatus(args[1], status, updateError) {
		fail("updating item", fmt.Errorf("no item %q in session %s", args[1], sess.ID))
	}

	if cl.Progress().StatusCounts[checklist.Completed] == len(sess.Items) {
		sess.Status = session.StatusCompleted
	}

	if _, err := store.Save(sess); err != nil {
		fail("saving session", err)
	}
	fmt.Printf("Updated %s -> %s\n", args[1], status)
}
