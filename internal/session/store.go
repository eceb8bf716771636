package session

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"cab/internal/config"
	"cab/internal/errors"
	"cab/internal/logging"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	record_id  TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	payload    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_session_id ON sessions(session_id);

CREATE TABLE IF NOT EXISTS context_snapshots (
	session_id TEXT PRIMARY KEY,
	updated_at INTEGER NOT NULL,
	payload    TEXT NOT NULL
);
`

// Store persists sessions and context snapshots in .cab/sessions.db.
// Session saves are append-only: each Save writes a new ULID-keyed record
// and Load resolves the newest one, so a crashed run can always fall back
// to its last good snapshot.
type Store struct {
	db     *sql.DB
	logger *logging.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// OpenStore opens or creates the session database under repoRoot.
func OpenStore(repoRoot string, logger *logging.Logger) (*Store, error) {
	dir := filepath.Join(repoRoot, config.EngineDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", config.EngineDir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "sessions.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}

	return &Store{
		db:      db,
		logger:  logger,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save appends a snapshot record for the session and returns its record id.
func (s *Store) Save(sess *Session) (string, error) {
	payload, err := json.Marshal(sess)
	if err != nil {
		return "", errors.Wrap(errors.Internal, "failed to serialize session", err)
	}

	now := time.Now()
	s.mu.Lock()
	recordID := ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
	s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO sessions (record_id, session_id, created_at, payload) VALUES (?, ?, ?, ?)`,
		recordID, sess.ID, now.Unix(), string(payload))
	if err != nil {
		return "", errors.Wrap(errors.Internal, "failed to save session", err)
	}

	s.logger.Debug("saved session snapshot", logging.Fields{
		"session": sess.ID, "record": recordID,
	})
	return recordID, nil
}

// Load returns the newest snapshot of a session. ULIDs sort
// lexicographically by creation time, so MAX(record_id) is the latest.
func (s *Store) Load(sessionID string) (*Session, error) {
	var payload string
	row := s.db.QueryRow(
		`SELECT payload FROM sessions WHERE session_id = ? ORDER BY record_id DESC LIMIT 1`,
		sessionID)
	switch err := row.Scan(&payload); err {
	case nil:
	case sql.ErrNoRows:
		return nil, errors.NewNotFound("session " + sessionID)
	default:
		return nil, errors.Wrap(errors.Internal, "failed to load session", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return nil, errors.Wrap(errors.Corrupt, "session record is not valid JSON", err)
	}
	return &sess, nil
}

// Meta is one row of the session listing.
type Meta struct {
	SessionID string    `json:"sessionId"`
	Snapshots int       `json:"snapshots"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// List returns known sessions, most recently updated first.
func (s *Store) List() ([]Meta, error) {
	rows, err := s.db.Query(`
		SELECT session_id, COUNT(*), MAX(created_at)
		FROM sessions
		GROUP BY session_id
		ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, errors.Wrap(errors.Internal, "failed to list sessions", err)
	}
	defer rows.Close()

	var metas []Meta
	for rows.Next() {
		var m Meta
		var updated int64
		if err := rows.Scan(&m.SessionID, &m.Snapshots, &updated); err != nil {
			return nil, errors.Wrap(errors.Internal, "failed to scan session row", err)
		}
		m.UpdatedAt = time.Unix(updated, 0)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// SaveContext stores a session's context snapshot, replacing any previous
// one. Context is overwrite-in-place, unlike session records: the context
// store already accumulates monotonically, so history adds nothing.
func (s *Store) SaveContext(sessionID string, payload []byte) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO context_snapshots (session_id, updated_at, payload) VALUES (?, ?, ?)`,
		sessionID, time.Now().Unix(), string(payload))
	if err != nil {
		return errors.Wrap(errors.Internal, "failed to save context snapshot", err)
	}
	return nil
}

// LoadContext returns a session's stored context snapshot.
func (s *Store) LoadContext(sessionID string) ([]byte, error) {
	var payload string
	row := s.db.QueryRow(`SELECT payload FROM context_snapshots WHERE session_id = ?`, sessionID)
	switch err := row.Scan(&payload); err {
	case nil:
		return []byte(payload), nil
	case sql.ErrNoRows:
		return nil, errors.NewNotFound("context snapshot for session " + sessionID)
	default:
		return nil, errors.Wrap(errors.Internal, "failed to load context snapshot", err)
	}
}
