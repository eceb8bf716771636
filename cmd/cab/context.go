package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cab/internal/contextstore"
	"cab/internal/errors"
	"cab/internal/logging"
	"cab/internal/session"
)

var (
	exportOut  string
	importIn   string
	ctxSummary string
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Inspect and transfer session analysis context",
}

var contextSummaryCmd = &cobra.Command{
	Use:   "summary <session-id>",
	Short: "Show everything a session has discovered",
	Args:  cobra.ExactArgs(1),
	Run:   runContextSummary,
}

var contextFileCmd = &cobra.Command{
	Use:   "file <session-id> <file-path>",
	Short: "Show the context relevant to analyzing one file",
	Args:  cobra.ExactArgs(2),
	Run:   runContextFile,
}

var contextExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session's context as JSON",
	Args:  cobra.ExactArgs(1),
	Run:   runContextExport,
}

var contextImportCmd = &cobra.Command{
	Use:   "import <session-id>",
	Short: "Import a previously exported context into a session",
	Args:  cobra.ExactArgs(1),
	Run:   runContextImport,
}

var contextMarkCmd = &cobra.Command{
	Use:   "mark <session-id> <file-path>",
	Short: "Mark a file as processed with an analysis summary",
	Args:  cobra.ExactArgs(2),
	Run:   runContextMark,
}

func init() {
	contextExportCmd.Flags().StringVar(&exportOut, "out", "", "Write to this file instead of stdout")
	contextImportCmd.Flags().StringVar(&importIn, "in", "", "Read the context JSON from this file")
	contextImportCmd.MarkFlagRequired("in")
	contextMarkCmd.Flags().StringVar(&ctxSummary, "summary", "", "Analysis summary for the file")

	contextCmd.AddCommand(contextSummaryCmd, contextFileCmd, contextExportCmd, contextImportCmd, contextMarkCmd)
	rootCmd.AddCommand(contextCmd)
}

// loadContextStore restores a session's context store from its snapshot.
// A session with no snapshot yet starts empty.
func loadContextStore(store *session.Store, sessionID string, logger *logging.Logger) *contextstore.Store {
	ctx := contextstore.New(sessionID, logger)
	payload, err := store.LoadContext(sessionID)
	if errors.HasCode(err, errors.NotFound) {
		return ctx
	}
	if err != nil {
		fail("loading context snapshot", err)
	}
	if err := ctx.Import(payload); err != nil {
		fail("restoring context snapshot", err)
	}
	return ctx
}

func runContextSummary(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	cfg := mustConfig(repoRoot)
	logger := newLogger(cfg)

	store := mustSessionStore(repoRoot, logger)
	defer store.Close()

	ctx := loadContextStore(store, args[0], logger)
	summary := ctx.Summarize()

	fmt.Printf("Context for session %s\n", summary.SessionID)
	fmt.Printf("  Processed files: %d\n", summary.ProcessedFiles)
	for _, kind := range []contextstore.Kind{
		contextstore.KindAPI, contextstore.KindFunction, contextstore.KindClass,
		contextstore.KindImport, contextstore.KindDatabase,
	} {
		fmt.Printf("  %-10s %d\n", kind, summary.EntityCounts[kind])
	}
	fmt.Printf("  Dependencies: %d files, cross references: %d\n",
		summary.FileDependencyCount, summary.CrossReferenceCount)

	if len(summary.Patterns) > 0 {
		fmt.Println("\nPatterns:")
		for _, pattern := range summary.Patterns {
			fmt.Printf("  %s\n", pattern)
		}
	}
	if len(summary.TopAPIs) > 0 {
		fmt.Println("\nEndpoints:")
		for _, api := range summary.TopAPIs {
			fmt.Printf("  %-6s %s (%s)\n", api.API.Method, api.API.Path, api.SourceFile)
		}
	}

	if cycles := ctx.DependencyCycles(); len(cycles) > 0 {
		fmt.Println("\nCircular imports:")
		for _, cycle := range cycles {
			fmt.Printf("  %s\n", strings.Join(cycle, " -> "))
		}
	}
}

func runContextFile(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	cfg := mustConfig(repoRoot)
	logger := newLogger(cfg)

	store := mustSessionStore(repoRoot, logger)
	defer store.Close()

	ctx := loadContextStore(store, args[0], logger).ContextForFile(args[1])

	fmt.Printf("Context for %s\n", args[1])
	fmt.Printf("  Related files: %s\n", strings.Join(ctx.RelatedFiles, ", "))
	fmt.Printf("  Relevant: %d endpoints, %d functions, %d classes\n",
		len(ctx.RelevantAPIs), len(ctx.RelevantFunctions), len(ctx.RelevantClasses))
	if ctx.AlreadyProcessed {
		fmt.Printf("  Already processed: %s\n", ctx.PreviousSummary)
	}
}

func runContextExport(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	cfg := mustConfig(repoRoot)
	logger := newLogger(cfg)

	store := mustSessionStore(repoRoot, logger)
	defer store.Close()

	data, err := loadContextStore(store, args[0], logger).Export()
	if err != nil {
		fail("exporting context", err)
	}

	if exportOut == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(exportOut, data, 0644); err != nil {
		fail("writing export file", err)
	}
	fmt.Printf("Exported context to %s\n", exportOut)
}

func runContextImport(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	cfg := mustConfig(repoRoot)
	logger := newLogger(cfg)

	data, err := os.ReadFile(importIn)
	if err != nil {
		fail("reading import file", err)
	}

	// Validate through a real store before persisting anything.
	ctx := contextstore.New(args[0], logger)
	if err := ctx.Import(data); err != nil {
		fail("importing context", err)
	}
	snapshot, err := ctx.Export()
	if err != nil {
		fail("serializing context", err)
	}

	store := mustSessionStore(repoRoot, logger)
	defer store.Close()
	if err := store.SaveContext(args[0], snapshot); err != nil {
		fail("saving context snapshot", err)
	}

	summary := ctx.Summarize()
	total := 0
	for _, n := range summary.EntityCounts {
		total += n
	}
	fmt.Printf("Imported %d entities into session %s\n", total, args[0])
}

func runContextMark(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	cfg := mustConfig(repoRoot)
	logger := newLogger(cfg)

	store := mustSessionStore(repoRoot, logger)
	defer store.Close()

	ctx := loadContextStore(store, args[0], logger)
	ctx.MarkProcessed(args[1], ctxSummary)

	snapshot, err := ctx.Export()
	if err != nil {
		fail("serializing context", err)
	}
	if err := store.SaveContext(args[0], snapshot); err != nil {
		fail("saving context snapshot", err)
	}
	fmt.Printf("Marked %s as processed\n", args[1])
}
