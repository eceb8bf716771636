// Package batching partitions file records into token-bounded batches.
package batching

import (
	"strings"

	"cab/internal/errors"
)

// Strategy selects how records are grouped before size-based packing.
type Strategy string

const (
	BySize      Strategy = "by_size"
	ByLanguage  Strategy = "by_language"
	ByDirectory Strategy = "by_directory"
	Mixed       Strategy = "mixed"
)

// ParseStrategy validates a strategy string.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(s)) {
	case BySize:
		return BySize, nil
	case ByLanguage:
		return ByLanguage, nil
	case ByDirectory:
		return ByDirectory, nil
	case Mixed:
		return Mixed, nil
	default:
		return "", errors.NewInvalidArgument(
			"unknown strategy " + s + "; use by_size, by_language, by_directory, or mixed")
	}
}

// SizeClass labels a batch by its aggregate token estimate.
type SizeClass string

const (
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
)

// classify assigns the size class for a flushed batch.
func classify(tokens int) SizeClass {
	switch {
	case tokens > 10000:
		return SizeLarge
	case tokens > 5000:
		return SizeMedium
	default:
		return SizeSmall
	}
}

// Status mirrors checklist status values for batch-level bookkeeping.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Batch is one token-bounded unit of files. Every scanned record lands in
// exactly one batch.
type Batch struct {
	ID              string    `json:"id"`
	Files           []string  `json:"files"` // absolute paths, pack order
	EstimatedTokens int       `json:"estimatedTokens"`
	SizeClass       SizeClass `json:"sizeClass"`
	LanguageGroup   string    `json:"languageGroup,omitempty"`
	DirectoryGroup  string    `json:"directoryGroup,omitempty"`
	Status          Status    `json:"status"`
}
