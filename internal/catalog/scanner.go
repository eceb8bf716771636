package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cab/internal/errors"
	"cab/internal/logging"
)

// ScanOptions controls one repository scan.
type ScanOptions struct {
	// Extensions restricts the scan to these extensions (with or without
	// leading dot). Nil means the full known-language table.
	Extensions []string
	// IncludeConfig keeps structured-config files (yaml/json/xml) when
	// scanning with the full table. Ignored when Extensions is set.
	IncludeConfig bool
	// MaxFileSize is the per-file size cap in bytes. Zero means 10 MiB.
	MaxFileSize int64
}

// DefaultScanOptions returns the standard scan configuration.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		IncludeConfig: true,
		MaxFileSize:   10 * 1024 * 1024,
	}
}

// Scanner walks repository trees and catalogs analyzable files.
type Scanner struct {
	rules  *IgnoreRules
	logger *logging.Logger
}

// NewScanner creates a scanner with the given ignore rules. Nil rules fall
// back to the built-in sets.
func NewScanner(rules *IgnoreRules, logger *logging.Logger) *Scanner {
	if rules == nil {
		rules = DefaultIgnoreRules()
	}
	return &Scanner{rules: rules, logger: logger}
}

// Scan recursively catalogs root. Individual unreadable or oversized files
// are reported in the result's Skipped list; only a missing root fails the
// scan. Records come back sorted by size descending.
func (s *Scanner) Scan(root string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.NewNotFound(root)
	}
	if !info.IsDir() {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("not a directory: %s", root))
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultScanOptions().MaxFileSize
	}
	wanted := s.targetExtensions(opts)

	result := &ScanResult{RepoRoot: absRoot}

	err = filepath.Walk(absRoot, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if fi != nil && fi.IsDir() {
				return filepath.SkipDir
			}
			rel, _ := filepath.Rel(absRoot, path)
			result.Skipped = append(result.Skipped, SkippedFile{
				RelPath: rel,
				Reason:  fmt.Sprintf("access error: %v", walkErr),
			})
			return nil
		}

		if fi.IsDir() {
			if path != absRoot && s.rules.SkipDir(fi.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		name := fi.Name()
		if s.rules.SkipFile(name) {
			return nil
		}
		if !wanted[strings.ToLower(filepath.Ext(name))] {
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			rel = path
		}

		size := fi.Size()
		if size == 0 {
			return nil
		}
		if size > opts.MaxFileSize {
			result.Skipped = append(result.Skipped, SkippedFile{
				RelPath: rel,
				Reason:  fmt.Sprintf("file too large (%d bytes)", size),
				Size:    size,
			})
			return nil
		}

		result.Records = append(result.Records, FileRecord{
			Path:            path,
			RelPath:         rel,
			Size:            size,
			Language:        DetectLanguage(name),
			EstimatedTokens: EstimateTokens(size),
			ModTime:         fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	// Largest-first ordering is a contract the batcher re-asserts.
	sortBySizeDesc(result.Records)

	if s.logger != nil {
		s.logger.Debug("scan complete", logging.Fields{
			"root":    absRoot,
			"files":   len(result.Records),
			"skipped": len(result.Skipped),
		})
	}
	return result, nil
}

// targetExtensions resolves the extension filter for a scan.
func (s *Scanner) targetExtensions(opts ScanOptions) map[string]bool {
	if len(opts.Extensions) > 0 {
		wanted := make(map[string]bool, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			if n := normalizeExtension(ext); n != "" {
				wanted[n] = true
			}
		}
		return wanted
	}

	wanted := KnownExtensions()
	if !opts.IncludeConfig {
		for ext := range configExtensions {
			delete(wanted, ext)
		}
	}
	return wanted
}
