// Package session ties one analysis run together: the scanned repo, the
// chosen goal and strategy, the batch plan, and the checklist tracking its
// progress. Sessions persist as append-only records, so every save is a
// recoverable point-in-time snapshot.
package session

import (
	"time"

	"github.com/google/uuid"

	"cab/internal/batching"
	"cab/internal/checklist"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Session is one analysis run over a repository.
type Session struct {
	ID            string            `json:"id"`
	RepoPath      string            `json:"repoPath"`
	Goal          string            `json:"goal"`
	Strategy      batching.Strategy `json:"strategy"`
	Batches       []batching.Batch  `json:"batches"`
	Items         []*checklist.Item `json:"items"`
	GlobalContext map[string]string `json:"globalContext"`
	Status        Status            `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// New creates an active session with a short random id. Each goal becomes
// a checklist item gated on every file item; extraGoals supplement the
// primary goal.
func New(repoPath, goal string, strategy batching.Strategy, batches []batching.Batch, extraGoals ...string) *Session {
	cl := checklist.Build(batches, append([]string{goal}, extraGoals...))
	return &Session{
		ID:            uuid.NewString()[:8],
		RepoPath:      repoPath,
		Goal:          goal,
		Strategy:      strategy,
		Batches:       batches,
		Items:         cl.Items,
		GlobalContext: make(map[string]string),
		Status:        StatusActive,
		CreatedAt:     time.Now(),
	}
}

// SetGlobal records a session-wide fact shared across batches. It rides
// along with every saved snapshot.
func (s *Session) SetGlobal(key, value string) {
	if s.GlobalContext == nil {
		s.GlobalContext = make(map[string]string)
	}
	s.GlobalContext[key] = value
}

// Global returns a fact recorded with SetGlobal.
func (s *Session) Global(key string) (string, bool) {
	value, ok := s.GlobalContext[key]
	return value, ok
}

// Checklist returns the session's items with the scheduler index rebuilt.
// Status updates through the returned checklist mutate the session's items.
func (s *Session) Checklist() *checklist.Checklist {
	return checklist.Rebuild(s.Items)
}
