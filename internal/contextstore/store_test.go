package contextstore

import (
	"testing"

	"cab/internal/errors"
	"cab/internal/logging"
)

func newTestStore() *Store {
	logger := logging.New(logging.Config{Level: logging.ErrorLevel, Format: logging.JSONFormat})
	return New("sess-test", logger)
}

func TestDeduplication(t *testing.T) {
	s := newTestStore()

	endpoints := []APIEndpoint{
		{Method: "GET", Path: "/users"},
		{Method: "POST", Path: "/users"},
	}
	if added := s.AddAPIs("api/users.py", endpoints...); added != 2 {
		t.Fatalf("first add = %d, want 2", added)
	}
	// Same endpoints from a different file are still duplicates: endpoints
	// dedup globally by method and path.
	if added := s.AddAPIs("api/router.py", endpoints...); added != 0 {
		t.Errorf("duplicate add = %d, want 0", added)
	}

	// Functions dedup per source file, so the same name in another file is
	// a new entity.
	fn := Function{Name: "handler", Line: 10}
	if added := s.AddFunctions("a.py", fn); added != 1 {
		t.Errorf("first function add = %d", added)
	}
	if added := s.AddFunctions("a.py", fn); added != 0 {
		t.Errorf("repeat function add = %d, want 0", added)
	}
	if added := s.AddFunctions("b.py", fn); added != 1 {
		t.Errorf("same function in other file = %d, want 1", added)
	}

	summary := s.Summarize()
	if summary.EntityCounts[KindAPI] != 2 || summary.EntityCounts[KindFunction] != 2 {
		t.Errorf("entity counts = %v", summary.EntityCounts)
	}
}

func TestImportsBuildDependencyMap(t *testing.T) {
	s := newTestStore()

	added := s.AddImports("app.py",
		Import{Module: "services.auth", Name: "login"},
		Import{Module: "services.auth", Name: "logout"},
		Import{Module: "models.user"},
	)
	if added != 3 {
		t.Fatalf("added = %d, want 3", added)
	}

	related := s.RelatedFiles("app.py")
	if len(related) != 2 {
		t.Fatalf("related = %v, want the two imported modules", related)
	}

	// Reverse direction: a file whose import mentions the query path.
	importers := s.RelatedFiles("services.auth")
	if len(importers) != 1 || importers[0] != "app.py" {
		t.Errorf("importers of services.auth = %v", importers)
	}
}

func TestCrossReferencesFeedRelatedFiles(t *testing.T) {
	s := newTestStore()
	s.AddCrossReference("api/routes.py", "api/handlers.py", "calls")
	s.AddCrossReference("api/routes.py", "api/handlers.py", "calls") // no-op

	related := s.RelatedFiles("api/routes.py")
	if len(related) != 1 || related[0] != "api/handlers.py" {
		t.Errorf("related = %v", related)
	}

	// The referenced file sees the relationship from its side too.
	reverse := s.RelatedFiles("api/handlers.py")
	if len(reverse) != 1 || reverse[0] != "api/routes.py" {
		t.Errorf("reverse related = %v", reverse)
	}

	summary := s.Summarize()
	if summary.CrossReferenceCount != 1 {
		t.Errorf("cross reference count = %d", summary.CrossReferenceCount)
	}
}

func TestContextForFile(t *testing.T) {
	s := newTestStore()

	s.AddImports("app.py", Import{Module: "handlers"})
	s.AddAPIs("handlers", APIEndpoint{Method: "GET", Path: "/health"})
	s.AddFunctions("handlers", Function{Name: "health", Line: 5})
	s.AddClasses("handlers", Class{Name: "Router", Line: 1})
	s.AddAPIs("unrelated.py", APIEndpoint{Method: "GET", Path: "/other"})
	s.AddPattern("MVC", "app.py")
	s.MarkProcessed("app.py", "entry point, wires routes")

	ctx := s.ContextForFile("app.py")
	if len(ctx.RelevantAPIs) != 1 || ctx.RelevantAPIs[0].API.Path != "/health" {
		t.Errorf("relevant APIs = %+v", ctx.RelevantAPIs)
	}
	if len(ctx.RelevantFunctions) != 1 || len(ctx.RelevantClasses) != 1 {
		t.Errorf("functions=%d classes=%d, want 1/1", len(ctx.RelevantFunctions), len(ctx.RelevantClasses))
	}
	if len(ctx.KnownPatterns) != 1 {
		t.Errorf("patterns = %v", ctx.KnownPatterns)
	}
	if !ctx.AlreadyProcessed || ctx.PreviousSummary == "" {
		t.Errorf("processed flag/summary not carried: %+v", ctx)
	}
}

func TestMarkProcessed(t *testing.T) {
	s := newTestStore()
	if s.IsProcessed("x.py") {
		t.Error("unprocessed file reported processed")
	}
	s.MarkProcessed("x.py", "does nothing interesting")
	if !s.IsProcessed("x.py") {
		t.Error("processed file not reported")
	}
	if summary, ok := s.AnalysisSummary("x.py"); !ok || summary != "does nothing interesting" {
		t.Errorf("summary = %q, ok=%v", summary, ok)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := newTestStore()
	s.AddAPIs("api.py", APIEndpoint{Method: "POST", Path: "/login"})
	s.AddImports("api.py", Import{Module: "db", Name: "connect"})
	s.AddDatabases("db.py", Database{Type: "postgres", ConnectionString: "env:DATABASE_URL"})
	s.AddCrossReference("api.py", "db.py", "uses")
	s.AddPattern("Repository", "db.py")
	s.AddFrameworkUsage("flask", "api.py", "Blueprint registration")
	s.MarkProcessed("api.py", "auth endpoints")

	data, err := s.Export()
	if err != nil {
		t.Fatal(err)
	}

	restored := newTestStore()
	if err := restored.Import(data); err != nil {
		t.Fatal(err)
	}

	// Dedup state was rebuilt: re-adding an exported entity is a no-op.
	if added := restored.AddAPIs("api.py", APIEndpoint{Method: "POST", Path: "/login"}); added != 0 {
		t.Errorf("re-adding exported endpoint added %d", added)
	}

	want := s.Summarize()
	got := restored.Summarize()
	if got.ProcessedFiles != want.ProcessedFiles ||
		got.FileDependencyCount != want.FileDependencyCount ||
		got.CrossReferenceCount != want.CrossReferenceCount {
		t.Errorf("summaries differ: %+v vs %+v", got, want)
	}
	for kind, n := range want.EntityCounts {
		if got.EntityCounts[kind] != n {
			t.Errorf("%s count = %d, want %d", kind, got.EntityCounts[kind], n)
		}
	}
	if len(got.Patterns) != 1 || len(got.Frameworks) != 1 {
		t.Errorf("patterns=%v frameworks=%v", got.Patterns, got.Frameworks)
	}

	related := restored.RelatedFiles("api.py")
	if len(related) != 2 { // imported module "db" plus cross-ref "db.py"
		t.Errorf("related after import = %v", related)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	s := newTestStore()
	if err := s.Import([]byte("{not json")); err == nil {
		t.Error("Import must reject malformed payloads")
	}
}

func TestImportRejectsMalformedEntities(t *testing.T) {
	cases := map[string]string{
		"missing payload": `{"sessionId":"s","apis":[{"kind":"api","sourceFile":"x.py"}]}`,
		"null entity":     `{"sessionId":"s","functions":[null]}`,
		"unknown kind":    `{"sessionId":"s","classes":[{"kind":"widget","sourceFile":"x.py"}]}`,
		"kind mismatch":   `{"sessionId":"s","imports":[{"kind":"class","sourceFile":"x.py","class":{"name":"C","line":1}}]}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTestStore()
			s.AddAPIs("kept.py", APIEndpoint{Method: "GET", Path: "/kept"})

			err := s.Import([]byte(payload))
			if err == nil {
				t.Fatal("Import accepted a shape-invalid payload")
			}
			if !errors.HasCode(err, errors.Corrupt) {
				t.Errorf("error code = %v, want Corrupt", errors.CodeOf(err))
			}
			// A rejected import leaves the store untouched.
			if s.Summarize().EntityCounts[KindAPI] != 1 {
				t.Error("failed import mutated the store")
			}
		})
	}
}

func TestDependencyCycles(t *testing.T) {
	s := newTestStore()
	s.AddImports("a.py", Import{Module: "b.py"})
	s.AddImports("b.py", Import{Module: "c.py"})
	s.AddImports("c.py", Import{Module: "a.py"})
	s.AddImports("d.py", Import{Module: "a.py"}) // feeds into the cycle, not part of it

	cycles := s.DependencyCycles()
	if len(cycles) != 1 {
		t.Fatalf("cycles = %v, want exactly one", cycles)
	}
	cycle := cycles[0]
	if len(cycle) != 4 || cycle[0] != cycle[len(cycle)-1] {
		t.Errorf("cycle %v should close on its first node", cycle)
	}
}

func TestDependencyCyclesAcyclic(t *testing.T) {
	s := newTestStore()
	s.AddImports("a.py", Import{Module: "b.py"})
	s.AddImports("b.py", Import{Module: "c.py"})

	if cycles := s.DependencyCycles(); len(cycles) != 0 {
		t.Errorf("acyclic imports reported cycles: %v", cycles)
	}
}
