package contextstore

import (
	"encoding/json"
	"fmt"
	"time"

	"cab/internal/errors"
)

// exportPayload is the wire form of a context store. Deduplication
// fingerprints are deliberately absent: Import rebuilds them from the
// entities themselves, so the format cannot drift out of sync with the
// hashing scheme.
type exportPayload struct {
	SessionID        string                      `json:"sessionId"`
	CreatedAt        time.Time                   `json:"createdAt"`
	LastUpdated      time.Time                   `json:"lastUpdated"`
	APIs             []*Entity                   `json:"apis"`
	Functions        []*Entity                   `json:"functions"`
	Classes          []*Entity                   `json:"classes"`
	Imports          []*Entity                   `json:"imports"`
	Databases        []*Entity                   `json:"databases"`
	FileDependencies map[string][]string         `json:"fileDependencies"`
	CrossReferences  map[string][]CrossReference `json:"crossReferences"`
	Patterns         []string                    `json:"patterns"`
	FrameworkUsage   map[string][]string         `json:"frameworkUsage"`
	ProcessedFiles   map[string]string           `json:"processedFiles"`
}

// Export serializes the full context to JSON.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload := exportPayload{
		SessionID:        s.sessionID,
		CreatedAt:        s.createdAt,
		LastUpdated:      s.lastUpdated,
		APIs:             s.entities[KindAPI],
		Functions:        s.entities[KindFunction],
		Classes:          s.entities[KindClass],
		Imports:          s.entities[KindImport],
		Databases:        s.entities[KindDatabase],
		FileDependencies: s.fileDependencies,
		CrossReferences:  s.crossReferences,
		Patterns:         s.patternListLocked(),
		FrameworkUsage:   s.frameworkUsage,
		ProcessedFiles:   s.processed,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.Internal, "failed to serialize context", err)
	}
	return data, nil
}

// Import replaces the store's state with a previously exported context.
// Deduplication fingerprints are recomputed from the imported entities.
// Every entity is shape-checked first; a payload that parses but does
// not form a valid tagged union is rejected with Corrupt and the store
// is left untouched.
func (s *Store) Import(data []byte) error {
	var payload exportPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errors.Wrap(errors.Corrupt, "context payload is not valid JSON", err)
	}

	entities := map[Kind][]*Entity{
		KindAPI:      payload.APIs,
		KindFunction: payload.Functions,
		KindClass:    payload.Classes,
		KindImport:   payload.Imports,
		KindDatabase: payload.Databases,
	}
	for kind, list := range entities {
		for i, entity := range list {
			if err := entity.validate(); err != nil {
				return errors.Wrap(errors.Corrupt,
					fmt.Sprintf("invalid entity at %s[%d]", kind, i), err)
			}
			if entity.Kind != kind {
				return errors.New(errors.Corrupt,
					fmt.Sprintf("entity at %s[%d] has kind %q", kind, i, entity.Kind))
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities = entities

	s.seen = make(map[string]struct{})
	for _, list := range s.entities {
		for _, entity := range list {
			s.seen[entity.fingerprint()] = struct{}{}
		}
	}

	s.fileDependencies = payload.FileDependencies
	if s.fileDependencies == nil {
		s.fileDependencies = make(map[string][]string)
	}
	s.crossReferences = payload.CrossReferences
	if s.crossReferences == nil {
		s.crossReferences = make(map[string][]CrossReference)
	}
	s.frameworkUsage = payload.FrameworkUsage
	if s.frameworkUsage == nil {
		s.frameworkUsage = make(map[string][]string)
	}
	s.processed = payload.ProcessedFiles
	if s.processed == nil {
		s.processed = make(map[string]string)
	}

	s.patterns = make(map[string]struct{}, len(payload.Patterns))
	for _, pattern := range payload.Patterns {
		s.patterns[pattern] = struct{}{}
	}

	if !payload.CreatedAt.IsZero() {
		s.createdAt = payload.CreatedAt
	}
	s.lastUpdated = s.now()
	return nil
}
