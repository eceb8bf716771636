package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const metadataSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	fingerprint   TEXT PRIMARY KEY,
	file_path     TEXT NOT NULL,
	file_mtime    INTEGER NOT NULL,
	analysis_kind TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	expires_at    INTEGER,
	size_bytes    INTEGER NOT NULL,
	storage_tier  TEXT NOT NULL,
	disk_location TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_file_path ON cache_entries(file_path);
CREATE INDEX IF NOT EXISTS idx_cache_kind ON cache_entries(analysis_kind);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
`

// openMetadataDB opens or creates the cache metadata database under dir.
func openMetadataDB(dir string) (*sql.DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite", filepath.Join(dir, "cache.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.Exec(metadataSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return conn, nil
}
