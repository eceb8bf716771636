package batching

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"cab/internal/catalog"
	"cab/internal/logging"
)

// DefaultTokenBudget is the per-batch token ceiling.
const DefaultTokenBudget = 15000

// oversizedFraction of the budget forces a record into its own batch.
const oversizedFraction = 0.8

// Batcher packs file records into token-bounded batches.
type Batcher struct {
	budget int
	logger *logging.Logger
}

// New creates a batcher. A non-positive budget falls back to the default.
func New(budget int, logger *logging.Logger) *Batcher {
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	return &Batcher{budget: budget, logger: logger}
}

// CreateBatches partitions records under the given strategy. The union of
// all batch file lists equals the input exactly once each.
func (b *Batcher) CreateBatches(records []catalog.FileRecord, strategy Strategy) ([]Batch, error) {
	strategy, err := ParseStrategy(string(strategy))
	if err != nil {
		return nil, err
	}

	var batches []Batch
	switch strategy {
	case BySize:
		batches = b.packBySize(records, func(n int) string {
			return fmt.Sprintf("size_batch_%d", n)
		})
	case ByLanguage:
		batches = b.packByLanguage(records)
	case ByDirectory:
		batches = b.packByDirectory(records)
	default:
		batches = b.packMixed(records)
	}

	if b.logger != nil {
		b.logger.Info("batches created", logging.Fields{
			"strategy": string(strategy),
			"records":  len(records),
			"batches":  len(batches),
		})
	}
	return batches, nil
}

// packBySize is the core packing primitive. Records are re-sorted by token
// estimate descending (the catalog contract, re-asserted here), oversized
// records are isolated into their own large batches, and the rest
// accumulate greedily under the budget.
func (b *Batcher) packBySize(records []catalog.FileRecord, idFor func(int) string) []Batch {
	sorted := make([]catalog.FileRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EstimatedTokens > sorted[j].EstimatedTokens
	})

	var batches []Batch
	var current []string
	currentTokens := 0
	counter := 0

	flush := func(class SizeClass) {
		if len(current) == 0 {
			return
		}
		if class == "" {
			class = classify(currentTokens)
		}
		batches = append(batches, Batch{
			ID:              idFor(counter),
			Files:           current,
			EstimatedTokens: currentTokens,
			SizeClass:       class,
			Status:          StatusPending,
		})
		counter++
		current = nil
		currentTokens = 0
	}

	oversized := int(float64(b.budget) * oversizedFraction)
	for _, rec := range sorted {
		if rec.EstimatedTokens > oversized {
			flush("")
			batches = append(batches, Batch{
				ID:              idFor(counter),
				Files:           []string{rec.Path},
				EstimatedTokens: rec.EstimatedTokens,
				SizeClass:       SizeLarge,
				Status:          StatusPending,
			})
			counter++
			continue
		}

		if currentTokens+rec.EstimatedTokens > b.budget {
			flush("")
		}
		current = append(current, rec.Path)
		currentTokens += rec.EstimatedTokens
	}
	flush("")

	return batches
}

func (b *Batcher) packByLanguage(records []catalog.FileRecord) []Batch {
	order, groups := groupBy(records, func(r catalog.FileRecord) string { return r.Language })

	var batches []Batch
	for _, language := range order {
		prefix := sanitize(strings.ToLower(language))
		group := b.packBySize(groups[language], func(n int) string {
			return fmt.Sprintf("lang_%s_%d", prefix, n)
		})
		for i := range group {
			group[i].LanguageGroup = language
		}
		batches = append(batches, group...)
	}
	return batches
}

func (b *Batcher) packByDirectory(records []catalog.FileRecord) []Batch {
	order, groups := groupBy(records, directoryOf)

	var batches []Batch
	for _, dir := range order {
		prefix := sanitize(dir)
		group := b.packBySize(groups[dir], func(n int) string {
			return fmt.Sprintf("dir_%s_%d", prefix, n)
		})
		for i := range group {
			group[i].DirectoryGroup = dir
		}
		batches = append(batches, group...)
	}
	return batches
}

// packMixed groups by language, then directory within language, then packs
// by size within each (language, directory) group. This is the default
// strategy for heterogeneous repositories.
func (b *Batcher) packMixed(records []catalog.FileRecord) []Batch {
	langOrder, langGroups := groupBy(records, func(r catalog.FileRecord) string { return r.Language })

	var batches []Batch
	counter := 0
	for _, language := range langOrder {
		dirOrder, dirGroups := groupBy(langGroups[language], directoryOf)
		for _, dir := range dirOrder {
			langPrefix := sanitize(strings.ToLower(language))
			dirPrefix := sanitize(dir)
			group := b.packBySize(dirGroups[dir], func(int) string {
				id := fmt.Sprintf("mixed_%s_%s_%d", langPrefix, dirPrefix, counter)
				counter++
				return id
			})
			for i := range group {
				group[i].LanguageGroup = language
				group[i].DirectoryGroup = dir
			}
			batches = append(batches, group...)
		}
	}
	return batches
}

// groupBy splits records by key, preserving first-encounter group order so
// output is deterministic for a given input ordering.
func groupBy(records []catalog.FileRecord, key func(catalog.FileRecord) string) ([]string, map[string][]catalog.FileRecord) {
	var order []string
	groups := make(map[string][]catalog.FileRecord)
	for _, rec := range records {
		k := key(rec)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], rec)
	}
	return order, groups
}

// directoryOf returns the record's parent directory group; top-level files
// group under "root".
func directoryOf(r catalog.FileRecord) string {
	dir := filepath.Dir(r.RelPath)
	if dir == "." || dir == "" {
		return "root"
	}
	return filepath.ToSlash(dir)
}

// sanitize makes a group key safe for use inside a batch id.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
