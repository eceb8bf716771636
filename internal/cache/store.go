// Package cache persists per-file analysis results across sessions in two
// tiers: a bounded in-memory tier for small hot items and a compressed disk
// tier backed by a SQLite metadata table. Keys fold in the source file's
// modification time, so edits invalidate entries without any watcher.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"cab/internal/errors"
	"cab/internal/logging"
)

const (
	tierMemory = "memory"
	tierDisk   = "disk"

	blobDirName = "blobs"
)

// Options tunes store behavior. Zero values fall back to defaults.
type Options struct {
	MemoryBudgetBytes    int64 // total payload bytes held in memory (default 100 MiB)
	MemoryItemLimitBytes int64 // items at or above this size stay disk-only (default 50 KiB)
	DefaultTTLHours      int   // 0 means entries never expire
}

func (o *Options) applyDefaults() {
	if o.MemoryBudgetBytes <= 0 {
		o.MemoryBudgetBytes = 100 * 1024 * 1024
	}
	if o.MemoryItemLimitBytes <= 0 {
		o.MemoryItemLimitBytes = 50 * 1024
	}
}

type memoryEntry struct {
	filePath  string
	payload   []byte
	createdAt time.Time
	expiresAt time.Time // zero means never
}

// Store is the tiered analysis-result cache.
type Store struct {
	dir    string
	db     *sql.DB
	logger *logging.Logger
	opts   Options
	now    func() time.Time

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu          sync.Mutex
	memory      map[string]*memoryEntry
	memoryOrder []string // fingerprints in insertion order, oldest first
	memoryBytes int64

	hits      int64
	misses    int64
	evictions int64
}

// Open creates or opens a cache rooted at dir (normally <repo>/.cab/cache).
func Open(dir string, opts Options, logger *logging.Logger) (*Store, error) {
	opts.applyDefaults()

	db, err := openMetadataDB(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, blobDirName), 0755); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(errors.Internal, "failed to initialize compressor", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, errors.Wrap(errors.Internal, "failed to initialize decompressor", err)
	}

	return &Store{
		dir:     dir,
		db:      db,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
		encoder: encoder,
		decoder: decoder,
		memory:  make(map[string]*memoryEntry),
	}, nil
}

// Close releases the metadata database and compression state.
func (s *Store) Close() error {
	s.encoder.Close()
	s.decoder.Close()
	return s.db.Close()
}

// Set stores an analysis result for a file using the default TTL.
func (s *Store) Set(filePath, analysisKind string, extras map[string]string, payload []byte) error {
	return s.SetWithTTL(filePath, analysisKind, extras, payload, s.opts.DefaultTTLHours)
}

// SetWithTTL stores an analysis result with an explicit lifetime in hours.
// A ttl of zero means the entry never expires. The payload is always
// written to the disk tier; small payloads are additionally kept in memory.
func (s *Store) SetWithTTL(filePath, analysisKind string, extras map[string]string, payload []byte, ttlHours int) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return errors.Wrap(errors.NotFound, "cannot cache result for unreadable file "+filePath, err)
	}

	mtime := info.ModTime()
	fp := Fingerprint(filePath, mtime, analysisKind, extras)
	now := s.now()

	var expiresAt sql.NullInt64
	var memExpiry time.Time
	if ttlHours > 0 {
		memExpiry = now.Add(time.Duration(ttlHours) * time.Hour)
		expiresAt = sql.NullInt64{Int64: memExpiry.Unix(), Valid: true}
	}

	blobPath := s.blobPath(fp)
	compressed := s.encoder.EncodeAll(payload, nil)
	if err := os.WriteFile(blobPath, compressed, 0644); err != nil {
		return errors.Wrap(errors.Internal, "failed to write cache blob", err)
	}

	tier := tierDisk
	small := int64(len(payload)) < s.opts.MemoryItemLimitBytes
	if small {
		tier = tierMemory
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO cache_entries
			(fingerprint, file_path, file_mtime, analysis_kind, created_at, expires_at, size_bytes, storage_tier, disk_location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fp, filePath, mtime.UnixNano(), analysisKind, now.Unix(), expiresAt, len(payload), tier, blobPath)
	if err != nil {
		return errors.Wrap(errors.Internal, "failed to record cache entry", err)
	}

	if small {
		s.mu.Lock()
		s.admit(fp, &memoryEntry{
			filePath:  filePath,
			payload:   append([]byte(nil), payload...),
			createdAt: now,
			expiresAt: memExpiry,
		})
		s.mu.Unlock()
	}

	s.logger.Debug("cached analysis result", logging.Fields{
		"file": filePath, "kind": analysisKind, "tier": tier, "bytes": len(payload),
	})
	return nil
}

// Get looks up a cached result for the file's current state. ok is false on
// any miss: unknown entry, changed file, expired or corrupt entry. Stale
// and corrupt entries are purged as a side effect.
func (s *Store) Get(filePath, analysisKind string, extras map[string]string) (payload []byte, ok bool, err error) {
	info, statErr := os.Stat(filePath)
	if statErr != nil {
		s.miss()
		return nil, false, nil
	}

	mtime := info.ModTime()
	fp := Fingerprint(filePath, mtime, analysisKind, extras)
	now := s.now()

	s.mu.Lock()
	if entry, found := s.memory[fp]; found {
		if entry.expiresAt.IsZero() || now.Before(entry.expiresAt) {
			// Copy so callers cannot mutate the cached payload.
			data := append([]byte(nil), entry.payload...)
			s.hits++
			s.mu.Unlock()
			return data, true, nil
		}
		s.dropLocked(fp)
	}
	s.mu.Unlock()

	var expiresAt sql.NullInt64
	var sizeBytes int64
	var diskLocation string
	row := s.db.QueryRow(
		`SELECT expires_at, size_bytes, disk_location FROM cache_entries WHERE fingerprint = ?`, fp)
	switch scanErr := row.Scan(&expiresAt, &sizeBytes, &diskLocation); scanErr {
	case nil:
	case sql.ErrNoRows:
		// Any rows for this file carry an older mtime; drop them.
		if _, purgeErr := s.purgeStale(filePath, mtime); purgeErr != nil {
			return nil, false, purgeErr
		}
		s.miss()
		return nil, false, nil
	default:
		return nil, false, errors.Wrap(errors.Internal, "cache metadata lookup failed", scanErr)
	}

	if expiresAt.Valid && now.Unix() >= expiresAt.Int64 {
		s.purgeEntry(fp, diskLocation)
		s.miss()
		return nil, false, nil
	}

	compressed, readErr := os.ReadFile(diskLocation)
	if readErr != nil {
		s.purgeEntry(fp, diskLocation)
		s.miss()
		return nil, false, nil
	}
	data, decodeErr := s.decoder.DecodeAll(compressed, nil)
	if decodeErr != nil {
		s.logger.Warn("purging corrupt cache blob", logging.Fields{
			"fingerprint": fp, "file": filePath,
		})
		s.purgeEntry(fp, diskLocation)
		s.miss()
		return nil, false, nil
	}

	if int64(len(data)) < s.opts.MemoryItemLimitBytes {
		var memExpiry time.Time
		if expiresAt.Valid {
			memExpiry = time.Unix(expiresAt.Int64, 0)
		}
		s.mu.Lock()
		s.admit(fp, &memoryEntry{
			filePath:  filePath,
			payload:   append([]byte(nil), data...),
			createdAt: now,
			expiresAt: memExpiry,
		})
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
	return data, true, nil
}

// ClearExpired removes every entry past its expiry and returns the count.
func (s *Store) ClearExpired() (int64, error) {
	now := s.now()

	rows, err := s.db.Query(
		`SELECT fingerprint, disk_location FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		now.Unix())
	if err != nil {
		return 0, errors.Wrap(errors.Internal, "failed to list expired entries", err)
	}
	removed, err := s.collectAndPurge(rows)
	if err != nil {
		return removed, err
	}

	s.mu.Lock()
	for fp, entry := range s.memory {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			s.dropLocked(fp)
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info("cleared expired cache entries", logging.Fields{"count": removed})
	}
	return removed, nil
}

// ClearForFile removes all cached results for one file, across both tiers.
func (s *Store) ClearForFile(filePath string) (int64, error) {
	rows, err := s.db.Query(
		`SELECT fingerprint, disk_location FROM cache_entries WHERE file_path = ?`, filePath)
	if err != nil {
		return 0, errors.Wrap(errors.Internal, "failed to list entries for file", err)
	}
	removed, err := s.collectAndPurge(rows)
	if err != nil {
		return removed, err
	}

	s.mu.Lock()
	for fp, entry := range s.memory {
		if entry.filePath == filePath {
			s.dropLocked(fp)
		}
	}
	s.mu.Unlock()
	return removed, nil
}

// Stats reports tier occupancy and hit counters.
type Stats struct {
	MemoryEntries int   `json:"memoryEntries"`
	MemoryBytes   int64 `json:"memoryBytes"`
	DiskEntries   int64 `json:"diskEntries"`
	DiskBytes     int64 `json:"diskBytes"`
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Evictions     int64 `json:"evictions"`
}

// Stats returns a point-in-time snapshot. Disk figures count only entries
// whose recorded tier is disk; memory-tier entries report through the
// in-memory counters even though their blobs are written through.
func (s *Store) Stats() (Stats, error) {
	var diskEntries int64
	var diskBytes sql.NullInt64
	row := s.db.QueryRow(
		`SELECT COUNT(*), SUM(size_bytes) FROM cache_entries WHERE storage_tier = ?`, tierDisk)
	if err := row.Scan(&diskEntries, &diskBytes); err != nil {
		return Stats{}, errors.Wrap(errors.Internal, "failed to read cache stats", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		MemoryEntries: len(s.memory),
		MemoryBytes:   s.memoryBytes,
		DiskEntries:   diskEntries,
		DiskBytes:     diskBytes.Int64,
		Hits:          s.hits,
		Misses:        s.misses,
		Evictions:     s.evictions,
	}, nil
}

// admit inserts a memory entry, evicting the oldest entries until the tier
// fits its budget. Re-admitting an existing fingerprint moves it to the
// back of the eviction order. Caller holds s.mu.
func (s *Store) admit(fp string, entry *memoryEntry) {
	s.dropLocked(fp)

	need := int64(len(entry.payload))
	for s.memoryBytes+need > s.opts.MemoryBudgetBytes && len(s.memoryOrder) > 0 {
		oldest := s.memoryOrder[0]
		s.memoryOrder = s.memoryOrder[1:]
		if victim, exists := s.memory[oldest]; exists {
			s.memoryBytes -= int64(len(victim.payload))
			delete(s.memory, oldest)
			s.evictions++
		}
	}

	s.memory[fp] = entry
	s.memoryOrder = append(s.memoryOrder, fp)
	s.memoryBytes += need
}

// dropLocked removes a memory entry and its slot in the eviction order.
// Caller holds s.mu.
func (s *Store) dropLocked(fp string) {
	entry, exists := s.memory[fp]
	if !exists {
		return
	}
	s.memoryBytes -= int64(len(entry.payload))
	delete(s.memory, fp)
	for i, id := range s.memoryOrder {
		if id == fp {
			s.memoryOrder = append(s.memoryOrder[:i], s.memoryOrder[i+1:]...)
			break
		}
	}
}

func (s *Store) miss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
}

func (s *Store) blobPath(fingerprint string) string {
	return filepath.Join(s.dir, blobDirName, fingerprint+".zst")
}

// purgeEntry deletes one entry's metadata row, blob, and memory copy.
func (s *Store) purgeEntry(fingerprint, diskLocation string) {
	if _, err := s.db.Exec(`DELETE FROM cache_entries WHERE fingerprint = ?`, fingerprint); err != nil {
		s.logger.Warn("failed to delete cache metadata", logging.Fields{
			"fingerprint": fingerprint, "error": err.Error(),
		})
	}
	if diskLocation != "" {
		os.Remove(diskLocation)
	}
	s.mu.Lock()
	s.dropLocked(fingerprint)
	s.mu.Unlock()
}

// purgeStale removes rows for filePath whose recorded mtime differs from
// the file's current one.
func (s *Store) purgeStale(filePath string, mtime time.Time) (int64, error) {
	rows, err := s.db.Query(
		`SELECT fingerprint, disk_location FROM cache_entries WHERE file_path = ? AND file_mtime != ?`,
		filePath, mtime.UnixNano())
	if err != nil {
		return 0, errors.Wrap(errors.Internal, "failed to list stale entries", err)
	}
	return s.collectAndPurge(rows)
}

func (s *Store) collectAndPurge(rows *sql.Rows) (int64, error) {
	type victim struct{ fp, loc string }
	var victims []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.fp, &v.loc); err != nil {
			rows.Close()
			return 0, errors.Wrap(errors.Internal, "failed to scan cache entry", err)
		}
		victims = append(victims, v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, errors.Wrap(errors.Internal, "failed to iterate cache entries", err)
	}
	rows.Close()

	for _, v := range victims {
		s.purgeEntry(v.fp, v.loc)
	}
	return int64(len(victims)), nil
}
