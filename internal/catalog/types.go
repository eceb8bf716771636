// Package catalog walks a repository root and produces the file records
// consumed by the batcher. Records are immutable once a scan returns them.
package catalog

import (
	"sort"
	"time"
)

// FileRecord describes one analyzable source file.
type FileRecord struct {
	Path            string    `json:"path"`    // absolute
	RelPath         string    `json:"relPath"` // relative to the scanned root
	Size            int64     `json:"size"`
	Language        string    `json:"language"`
	EstimatedTokens int       `json:"estimatedTokens"`
	ModTime         time.Time `json:"modTime"`
}

// SkippedFile records a file the scan excluded, with the reason.
type SkippedFile struct {
	RelPath string `json:"relPath"`
	Reason  string `json:"reason"`
	Size    int64  `json:"size"`
}

// ScanResult is the output of one repository scan. Records are sorted by
// size descending; the batcher relies on this ordering.
type ScanResult struct {
	RepoRoot string        `json:"repoRoot"`
	Records  []FileRecord  `json:"records"`
	Skipped  []SkippedFile `json:"skipped"`
}

// Summary aggregates scan statistics for reporting.
type Summary struct {
	TotalFiles           int            `json:"totalFiles"`
	TotalSizeBytes       int64          `json:"totalSizeBytes"`
	TotalEstimatedTokens int            `json:"totalEstimatedTokens"`
	LanguageCounts       map[string]int `json:"languageCounts"`
	SkippedCount         int            `json:"skippedCount"`
	LargestFiles         []FileRecord   `json:"largestFiles"`

	// Processing recommendation, derived from total token volume.
	SuggestedBatchSize string   `json:"suggestedBatchSize"`
	EstimatedBatches   int      `json:"estimatedBatches"`
	Strategy           string   `json:"strategy"`
	Warnings           []string `json:"warnings,omitempty"`
}

// Summary computes aggregate statistics and a processing recommendation
// for the scan result.
func (r *ScanResult) Summary() Summary {
	s := Summary{
		TotalFiles:     len(r.Records),
		LanguageCounts: make(map[string]int),
		SkippedCount:   len(r.Skipped),
	}

	for _, rec := range r.Records {
		s.TotalSizeBytes += rec.Size
		s.TotalEstimatedTokens += rec.EstimatedTokens
		s.LanguageCounts[rec.Language]++
	}

	top := len(r.Records)
	if top > 10 {
		top = 10
	}
	s.LargestFiles = append(s.LargestFiles, r.Records[:top]...)

	switch {
	case s.TotalEstimatedTokens > 100000:
		s.SuggestedBatchSize = "small"
		s.Strategy = "multi_batch_with_context"
		s.EstimatedBatches = max(10, s.TotalEstimatedTokens/10000)
		s.Warnings = append(s.Warnings, "large codebase detected, consider targeted analysis")
	case s.TotalEstimatedTokens > 50000:
		s.SuggestedBatchSize = "medium"
		s.Strategy = "multi_batch"
		s.EstimatedBatches = max(5, s.TotalEstimatedTokens/20000)
	default:
		s.SuggestedBatchSize = "large"
		s.Strategy = "single_pass"
		s.EstimatedBatches = 1
	}

	large := 0
	for _, rec := range r.Records {
		if rec.EstimatedTokens > 5000 {
			large++
		}
	}
	if large > 0 {
		s.Warnings = append(s.Warnings, "some files exceed 5000 estimated tokens and may need chunking")
	}

	return s
}

// sortBySizeDesc orders records largest-first. Ties break on relative path
// so scan output is deterministic.
func sortBySizeDesc(records []FileRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Size != records[j].Size {
			return records[i].Size > records[j].Size
		}
		return records[i].RelPath < records[j].RelPath
	})
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
