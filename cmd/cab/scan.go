package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"cab/internal/catalog"
)

var (
	scanExtensions    []string
	scanIncludeConfig bool
	scanFormat        string
	scanListFiles     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Catalog the repository's analyzable files",
	Long: `Walk the repository, skipping dependency and build directories, and report
every analyzable source file with its language and estimated token cost.`,
	Run: runScan,
}

func init() {
	scanCmd.Flags().StringSliceVar(&scanExtensions, "extensions", nil,
		"Only include these file extensions (e.g. .go,.py)")
	scanCmd.Flags().BoolVar(&scanIncludeConfig, "include-config", true,
		"Include configuration files (yaml, json, xml)")
	scanCmd.Flags().StringVar(&scanFormat, "format", "human", "Output format (json, human)")
	scanCmd.Flags().BoolVar(&scanListFiles, "files", false, "List every cataloged file")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) {
	repoRoot := mustRepoRoot()
	cfg := mustConfig(repoRoot)
	logger := newLogger(cfg)

	rules, err := catalog.LoadIgnoreRules(repoRoot)
	if err != nil {
		fail("loading ignore rules", err)
	}

	opts := catalog.ScanOptions{
		Extensions:    scanExtensions,
		IncludeConfig: scanIncludeConfig && cfg.Scan.IncludeConfig,
		MaxFileSize:   cfg.Scan.MaxFileSizeBytes,
	}

	result, err := catalog.NewScanner(rules, logger).Scan(repoRoot, opts)
	if err != nil {
		fail("scanning repository", err)
	}

	summary := result.Summary()
	if scanFormat == "json" {
		out := map[string]interface{}{"summary": summary}
		if scanListFiles {
			out["files"] = result.Records
			out["skipped"] = result.Skipped
		}
		printJSON(out)
		return
	}

	fmt.Printf("Scanned %s\n\n", repoRoot)
	fmt.Printf("Files:            %d\n", summary.TotalFiles)
	fmt.Printf("Total size:       %d bytes\n", summary.TotalSizeBytes)
	fmt.Printf("Estimated tokens: %d\n", summary.TotalEstimatedTokens)
	fmt.Printf("Skipped:          %d\n\n", summary.SkippedCount)

	fmt.Println("Languages:")
	languages := make([]string, 0, len(summary.LanguageCounts))
	for lang := range summary.LanguageCounts {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	for _, lang := range languages {
		fmt.Printf("  %-12s %4d files\n", lang, summary.LanguageCounts[lang])
	}

	fmt.Printf("\nRecommendation: %s batches, %s, ~%d batches\n",
		summary.SuggestedBatchSize, summary.Strategy, summary.EstimatedBatches)
	for _, warning := range summary.Warnings {
		fmt.Printf("Note: %s\n", warning)
	}

	if scanListFiles {
		fmt.Println("\nFiles (largest first):")
		for _, rec := range result.Records {
			fmt.Printf("  %8d tok  %-10s %s\n", rec.EstimatedTokens, rec.Language, rec.RelPath)
		}
		if len(result.Skipped) > 0 {
			fmt.Println("\nSkipped:")
			for _, skip := range result.Skipped {
				fmt.Printf("  %s (%s)\n", skip.RelPath, skip.Reason)
			}
		}
	}
}
