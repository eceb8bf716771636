package registry

import (
	"path/filepath"
	"testing"

	"cab/internal/cache"
	"cab/internal/logging"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	logger := logging.New(logging.Config{Level: logging.ErrorLevel, Format: logging.JSONFormat})
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache"), cache.Options{}, logger)
	if err != nil {
		t.Fatal(err)
	}
	reg := New(store, logger)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestContextForIsStablePerSession(t *testing.T) {
	reg := newTestRegistry(t)

	a := reg.ContextFor("sess-a")
	if a != reg.ContextFor("sess-a") {
		t.Error("same session must get the same context store")
	}
	if a == reg.ContextFor("sess-b") {
		t.Error("different sessions must get distinct context stores")
	}

	// State written through one handle is visible through another.
	a.MarkProcessed("main.py", "entry point")
	if !reg.ContextFor("sess-a").IsProcessed("main.py") {
		t.Error("context store state must be shared per session")
	}
}

func TestIsolationBetweenRegistries(t *testing.T) {
	reg1 := newTestRegistry(t)
	reg2 := newTestRegistry(t)

	reg1.ContextFor("sess-x").MarkProcessed("a.py", "done")
	if reg2.ContextFor("sess-x").IsProcessed("a.py") {
		t.Error("registries must not share session state")
	}
}

func TestDropContext(t *testing.T) {
	reg := newTestRegistry(t)

	reg.ContextFor("sess-a").MarkProcessed("a.py", "done")
	reg.ContextFor("sess-b")
	if got := reg.LiveSessions(); len(got) != 2 {
		t.Fatalf("live sessions = %v", got)
	}

	reg.DropContext("sess-a")
	if got := reg.LiveSessions(); len(got) != 1 || got[0] != "sess-b" {
		t.Errorf("live sessions after drop = %v", got)
	}

	// A dropped session starts fresh.
	if reg.ContextFor("sess-a").IsProcessed("a.py") {
		t.Error("dropped context store must not resurrect old state")
	}
}
