// Package contextstore accumulates what one analysis session has learned
// about a codebase: discovered entities, file dependencies, cross
// references, patterns, and processed-file summaries. Every add operation
// deduplicates, so repeated batch findings never inflate the context.
package contextstore

import (
	"sort"
	"strings"
	"sync"
	"time"

	"cab/internal/logging"
)

// CrossReference links one file to another with a relationship label.
type CrossReference struct {
	ToFile       string `json:"toFile"`
	Relationship string `json:"relationship"`
}

// Store holds all discovered context for one session.
type Store struct {
	sessionID string
	logger    *logging.Logger
	now       func() time.Time

	mu               sync.RWMutex
	entities         map[Kind][]*Entity
	seen             map[string]struct{}
	fileDependencies map[string][]string
	crossReferences  map[string][]CrossReference
	patterns         map[string]struct{}
	frameworkUsage   map[string][]string
	processed        map[string]string // file path -> analysis summary
	createdAt        time.Time
	lastUpdated      time.Time
}

// New creates an empty context store for a session.
func New(sessionID string, logger *logging.Logger) *Store {
	now := time.Now()
	return &Store{
		sessionID:        sessionID,
		logger:           logger,
		now:              time.Now,
		entities:         make(map[Kind][]*Entity),
		seen:             make(map[string]struct{}),
		fileDependencies: make(map[string][]string),
		crossReferences:  make(map[string][]CrossReference),
		patterns:         make(map[string]struct{}),
		frameworkUsage:   make(map[string][]string),
		processed:        make(map[string]string),
		createdAt:        now,
		lastUpdated:      now,
	}
}

// SessionID returns the owning session's id.
func (s *Store) SessionID() string { return s.sessionID }

// AddAPIs records discovered endpoints and returns how many were new.
func (s *Store) AddAPIs(sourceFile string, apis ...APIEndpoint) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for i := range apis {
		api := apis[i]
		if s.admit(&Entity{Kind: KindAPI, SourceFile: sourceFile, API: &api}) {
			added++
		}
	}
	return added
}

// AddFunctions records discovered functions and returns how many were new.
func (s *Store) AddFunctions(sourceFile string, functions ...Function) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for i := range functions {
		fn := functions[i]
		if s.admit(&Entity{Kind: KindFunction, SourceFile: sourceFile, Function: &fn}) {
			added++
		}
	}
	return added
}

// AddClasses records discovered classes and returns how many were new.
func (s *Store) AddClasses(sourceFile string, classes ...Class) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for i := range classes {
		cls := classes[i]
		if s.admit(&Entity{Kind: KindClass, SourceFile: sourceFile, Class: &cls}) {
			added++
		}
	}
	return added
}

// AddImports records discovered imports and returns how many were new. New
// imports also extend the file dependency map used by RelatedFiles.
func (s *Store) AddImports(sourceFile string, imports ...Import) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for i := range imports {
		imp := imports[i]
		if !s.admit(&Entity{Kind: KindImport, SourceFile: sourceFile, Import: &imp}) {
			continue
		}
		added++
		if imp.Module != "" && !contains(s.fileDependencies[sourceFile], imp.Module) {
			s.fileDependencies[sourceFile] = append(s.fileDependencies[sourceFile], imp.Module)
		}
	}
	return added
}

// AddDatabases records discovered database connections and returns how many
// were new.
func (s *Store) AddDatabases(sourceFile string, databases ...Database) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for i := range databases {
		db := databases[i]
		if s.admit(&Entity{Kind: KindDatabase, SourceFile: sourceFile, Database: &db}) {
			added++
		}
	}
	return added
}

// admit appends the entity unless its fingerprint was already seen. Caller
// holds s.mu.
func (s *Store) admit(entity *Entity) bool {
	fp := entity.fingerprint()
	if _, dup := s.seen[fp]; dup {
		return false
	}
	entity.DiscoveredAt = s.now()
	s.seen[fp] = struct{}{}
	s.entities[entity.Kind] = append(s.entities[entity.Kind], entity)
	s.lastUpdated = s.now()
	return true
}

// AddPattern records a detected architectural or design pattern.
func (s *Store) AddPattern(pattern, sourceFile string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[pattern+" (found in "+sourceFile+")"] = struct{}{}
	s.lastUpdated = s.now()
}

// AddFrameworkUsage tracks framework usage observations per file.
func (s *Store) AddFrameworkUsage(framework, sourceFile string, details ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, detail := range details {
		entry := sourceFile + ": " + detail
		if !contains(s.frameworkUsage[framework], entry) {
			s.frameworkUsage[framework] = append(s.frameworkUsage[framework], entry)
		}
	}
	s.lastUpdated = s.now()
}

// AddCrossReference links fromFile to toFile with a relationship label.
func (s *Store) AddCrossReference(fromFile, toFile, relationship string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := CrossReference{ToFile: toFile, Relationship: relationship}
	for _, existing := range s.crossReferences[fromFile] {
		if existing == ref {
			return
		}
	}
	s.crossReferences[fromFile] = append(s.crossReferences[fromFile], ref)
	s.lastUpdated = s.now()
}

// MarkProcessed records a file as analyzed along with its summary.
func (s *Store) MarkProcessed(filePath, analysisSummary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[filePath] = analysisSummary
	s.lastUpdated = s.now()
}

// IsProcessed reports whether a file has been analyzed this session.
func (s *Store) IsProcessed(filePath string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.processed[filePath]
	return ok
}

// AnalysisSummary returns the cached summary for a processed file.
func (s *Store) AnalysisSummary(filePath string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.processed[filePath]
	return summary, ok
}

// RelatedFiles returns files connected to filePath: files whose imports
// mention it, the modules it imports, and files cross-referenced to or
// from it.
// Import modules match by substring, so "services/auth.py" relates to a
// file importing "services.auth" only when paths and module names share
// text; exact resolution is the caller's concern.
func (s *Store) RelatedFiles(filePath string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relatedLocked(filePath)
}

func (s *Store) relatedLocked(filePath string) []string {
	set := make(map[string]struct{})

	for file, modules := range s.fileDependencies {
		for _, module := range modules {
			if strings.Contains(module, filePath) {
				set[file] = struct{}{}
				break
			}
		}
	}
	for _, module := range s.fileDependencies[filePath] {
		set[module] = struct{}{}
	}
	for _, ref := range s.crossReferences[filePath] {
		set[ref.ToFile] = struct{}{}
	}
	for from, refs := range s.crossReferences {
		if from == filePath {
			continue
		}
		for _, ref := range refs {
			if ref.ToFile == filePath {
				set[from] = struct{}{}
				break
			}
		}
	}

	related := make([]string, 0, len(set))
	for file := range set {
		related = append(related, file)
	}
	return related
}

// FileContext is the slice of session context relevant to one file.
type FileContext struct {
	RelatedFiles      []string            `json:"relatedFiles"`
	RelevantAPIs      []*Entity           `json:"relevantApis"`
	RelevantFunctions []*Entity           `json:"relevantFunctions"`
	RelevantClasses   []*Entity           `json:"relevantClasses"`
	KnownPatterns     []string            `json:"knownPatterns"`
	FrameworkUsage    map[string][]string `json:"frameworkUsage"`
	AlreadyProcessed  bool                `json:"alreadyProcessed"`
	PreviousSummary   string              `json:"previousSummary,omitempty"`
}

// ContextForFile assembles the context an analyzer should see before
// processing filePath: entities from related files, plus this file's own
// previously recorded endpoints.
func (s *Store) ContextForFile(filePath string) FileContext {
	s.mu.RLock()
	defer s.mu.RUnlock()

	related := s.relatedLocked(filePath)
	relatedSet := make(map[string]struct{}, len(related))
	for _, file := range related {
		relatedSet[file] = struct{}{}
	}

	ctx := FileContext{
		RelatedFiles:   related,
		FrameworkUsage: copyUsage(s.frameworkUsage),
	}

	for _, api := range s.entities[KindAPI] {
		if _, ok := relatedSet[api.SourceFile]; ok || strings.Contains(api.SourceFile, filePath) {
			ctx.RelevantAPIs = append(ctx.RelevantAPIs, api)
		}
	}
	for _, fn := range s.entities[KindFunction] {
		if _, ok := relatedSet[fn.SourceFile]; ok {
			ctx.RelevantFunctions = append(ctx.RelevantFunctions, fn)
		}
	}
	for _, cls := range s.entities[KindClass] {
		if _, ok := relatedSet[cls.SourceFile]; ok {
			ctx.RelevantClasses = append(ctx.RelevantClasses, cls)
		}
	}

	ctx.KnownPatterns = s.patternListLocked()
	if summary, ok := s.processed[filePath]; ok {
		ctx.AlreadyProcessed = true
		ctx.PreviousSummary = summary
	}
	return ctx
}

// Summary is the session-wide context overview.
type Summary struct {
	SessionID           string       `json:"sessionId"`
	CreatedAt           time.Time    `json:"createdAt"`
	LastUpdated         time.Time    `json:"lastUpdated"`
	ProcessedFiles      int          `json:"processedFiles"`
	EntityCounts        map[Kind]int `json:"entityCounts"`
	Patterns            []string     `json:"patterns"`
	Frameworks          []string     `json:"frameworks"`
	FileDependencyCount int          `json:"fileDependencyCount"`
	CrossReferenceCount int          `json:"crossReferenceCount"`
	TopAPIs             []*Entity    `json:"topApis"`
}

// Summarize returns the current session overview. TopAPIs lists endpoints
// in discovery order, capped at ten.
func (s *Store) Summarize() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Kind]int)
	for kind, list := range s.entities {
		counts[kind] = len(list)
	}

	frameworks := make([]string, 0, len(s.frameworkUsage))
	for framework := range s.frameworkUsage {
		frameworks = append(frameworks, framework)
	}
	sort.Strings(frameworks)

	apis := s.entities[KindAPI]
	if len(apis) > 10 {
		apis = apis[:10]
	}

	return Summary{
		SessionID:           s.sessionID,
		CreatedAt:           s.createdAt,
		LastUpdated:         s.lastUpdated,
		ProcessedFiles:      len(s.processed),
		EntityCounts:        counts,
		Patterns:            s.patternListLocked(),
		Frameworks:          frameworks,
		FileDependencyCount: len(s.fileDependencies),
		CrossReferenceCount: len(s.crossReferences),
		TopAPIs:             append([]*Entity(nil), apis...),
	}
}

func (s *Store) patternListLocked() []string {
	patterns := make([]string, 0, len(s.patterns))
	for pattern := range s.patterns {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)
	return patterns
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}

func copyUsage(usage map[string][]string) map[string][]string {
	out := make(map[string][]string, len(usage))
	for k, v := range usage {
		out[k] = append([]string(nil), v...)
	}
	return out
}
