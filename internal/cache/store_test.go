package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cab/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.ErrorLevel, Format: logging.JSONFormat})
}

func newTestStore(t *testing.T, opts Options) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "cache"), opts, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSetGetRoundTrip(t *testing.T) {
	store, dir := newTestStore(t, Options{})
	src := writeSource(t, dir, "main.py", "print('hi')")

	payload := []byte(`{"functions": ["main"]}`)
	if err := store.Set(src, "structure", nil, payload); err != nil {
		t.Fatal(err)
	}

	got, ok, err := store.Get(src, "structure", nil)
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v, want hit", ok, err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %q, want %q", got, payload)
	}

	// A different analysis kind is a different key.
	if _, ok, _ := store.Get(src, "security", nil); ok {
		t.Error("different analysis kind must miss")
	}

	// Extras participate in the key.
	if err := store.Set(src, "structure", map[string]string{"depth": "2"}, []byte("deep")); err != nil {
		t.Fatal(err)
	}
	if got, ok, _ := store.Get(src, "structure", map[string]string{"depth": "2"}); !ok || string(got) != "deep" {
		t.Errorf("extras lookup = %q, ok=%v", got, ok)
	}
}

func TestFileModificationInvalidates(t *testing.T) {
	store, dir := newTestStore(t, Options{MemoryItemLimitBytes: 1}) // force disk tier
	src := writeSource(t, dir, "app.go", "package main")

	if err := store.Set(src, "structure", nil, []byte("result-v1")); err != nil {
		t.Fatal(err)
	}

	// Bump the mtime well past the original.
	future := time.Now().Add(2 * time.Hour)
	if err := os.Chtimes(src, future, future); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := store.Get(src, "structure", nil); ok || err != nil {
		t.Fatalf("modified file must miss: ok=%v err=%v", ok, err)
	}

	// The stale row was purged.
	stats, err := store.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.DiskEntries != 0 {
		t.Errorf("stale entries remain: %+v", stats)
	}
}

func TestMissingFileMisses(t *testing.T) {
	store, dir := newTestStore(t, Options{})
	if _, ok, err := store.Get(filepath.Join(dir, "never-existed.go"), "structure", nil); ok || err != nil {
		t.Fatalf("missing file must miss without error: ok=%v err=%v", ok, err)
	}
}

func TestTTLExpiry(t *testing.T) {
	store, dir := newTestStore(t, Options{MemoryItemLimitBytes: 1})
	src := writeSource(t, dir, "lib.rb", "module Lib; end")

	base := time.Now()
	store.now = func() time.Time { return base }

	if err := store.SetWithTTL(src, "structure", nil, []byte("short-lived"), 1); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Get(src, "structure", nil); !ok {
		t.Fatal("entry should be fresh before expiry")
	}

	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, ok, _ := store.Get(src, "structure", nil); ok {
		t.Error("expired entry must miss")
	}

	stats, _ := store.Stats()
	if stats.DiskEntries != 0 {
		t.Errorf("expired entry not purged: %+v", stats)
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	store, dir := newTestStore(t, Options{MemoryItemLimitBytes: 1})
	src := writeSource(t, dir, "util.js", "export const x = 1")

	base := time.Now()
	store.now = func() time.Time { return base }
	if err := store.SetWithTTL(src, "structure", nil, []byte("permanent"), 0); err != nil {
		t.Fatal(err)
	}

	store.now = func() time.Time { return base.Add(24 * 365 * time.Hour) }
	if _, ok, _ := store.Get(src, "structure", nil); !ok {
		t.Error("zero-TTL entry must survive any clock advance")
	}
	if n, err := store.ClearExpired(); err != nil || n != 0 {
		t.Errorf("ClearExpired removed %d entries, err=%v", n, err)
	}
}

func TestMemoryEvictionOldestFirst(t *testing.T) {
	store, dir := newTestStore(t, Options{MemoryBudgetBytes: 25, MemoryItemLimitBytes: 50 * 1024})

	srcA := writeSource(t, dir, "a.py", "aaa")
	srcB := writeSource(t, dir, "b.py", "bbb")
	srcC := writeSource(t, dir, "c.py", "ccc")

	ten := bytes.Repeat([]byte("x"), 10)
	for _, src := range []string{srcA, srcB, srcC} {
		if err := store.Set(src, "structure", nil, ten); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.MemoryEntries != 2 || stats.MemoryBytes != 20 {
		t.Errorf("memory tier = %d entries / %d bytes, want 2 / 20", stats.MemoryEntries, stats.MemoryBytes)
	}
	if stats.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", stats.Evictions)
	}

	// The evicted entry still hits through the disk tier.
	if _, ok, _ := store.Get(srcA, "structure", nil); !ok {
		t.Error("evicted entry should fall back to disk")
	}
}

func TestReSetRefreshesEvictionOrder(t *testing.T) {
	store, dir := newTestStore(t, Options{MemoryBudgetBytes: 25, MemoryItemLimitBytes: 50 * 1024})

	srcA := writeSource(t, dir, "a.py", "aaa")
	srcB := writeSource(t, dir, "b.py", "bbb")
	srcC := writeSource(t, dir, "c.py", "ccc")

	ten := bytes.Repeat([]byte("x"), 10)
	store.Set(srcA, "structure", nil, ten)
	store.Set(srcB, "structure", nil, ten)
	store.Set(srcA, "structure", nil, ten) // re-set moves A to the back
	store.Set(srcC, "structure", nil, ten) // evicts B, the true oldest

	fpOf := func(src string) string {
		info, err := os.Stat(src)
		if err != nil {
			t.Fatal(err)
		}
		return Fingerprint(src, info.ModTime(), "structure", nil)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.memory[fpOf(srcA)]; !ok {
		t.Error("re-set entry was evicted ahead of older entries")
	}
	if _, ok := store.memory[fpOf(srcB)]; ok {
		t.Error("oldest entry survived eviction")
	}
	if len(store.memoryOrder) != len(store.memory) {
		t.Errorf("eviction order holds %d ids for %d entries", len(store.memoryOrder), len(store.memory))
	}
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	store, dir := newTestStore(t, Options{})
	src := writeSource(t, dir, "copy.py", "x = 1")

	if err := store.Set(src, "structure", nil, []byte("original")); err != nil {
		t.Fatal(err)
	}

	first, ok, err := store.Get(src, "structure", nil)
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v", ok, err)
	}
	copy(first, "CLOBBER!")

	second, ok, _ := store.Get(src, "structure", nil)
	if !ok || string(second) != "original" {
		t.Errorf("cached payload = %q, mutated through a returned slice", second)
	}
}

func TestCorruptBlobPurged(t *testing.T) {
	store, dir := newTestStore(t, Options{MemoryItemLimitBytes: 1})
	src := writeSource(t, dir, "core.go", "package core")

	if err := store.Set(src, "structure", nil, []byte("good data")); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(src)
	if err != nil {
		t.Fatal(err)
	}
	fp := Fingerprint(src, info.ModTime(), "structure", nil)
	if err := os.WriteFile(store.blobPath(fp), []byte("not zstd"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := store.Get(src, "structure", nil); ok || err != nil {
		t.Fatalf("corrupt blob must miss without error: ok=%v err=%v", ok, err)
	}
	stats, _ := store.Stats()
	if stats.DiskEntries != 0 {
		t.Errorf("corrupt entry not purged: %+v", stats)
	}
}

func TestClearForFile(t *testing.T) {
	store, dir := newTestStore(t, Options{})
	src := writeSource(t, dir, "svc.py", "class Svc: pass")
	other := writeSource(t, dir, "other.py", "x = 1")

	store.Set(src, "structure", nil, []byte("one"))
	store.Set(src, "security", nil, []byte("two"))
	store.Set(other, "structure", nil, []byte("keep"))

	n, err := store.ClearForFile(src)
	if err != nil || n != 2 {
		t.Fatalf("ClearForFile = %d, %v, want 2 entries", n, err)
	}

	if _, ok, _ := store.Get(src, "structure", nil); ok {
		t.Error("cleared entry must miss")
	}
	if _, ok, _ := store.Get(other, "structure", nil); !ok {
		t.Error("unrelated file's entry must survive")
	}
}

func TestClearExpiredSweep(t *testing.T) {
	store, dir := newTestStore(t, Options{})
	src := writeSource(t, dir, "mix.py", "pass")

	base := time.Now()
	store.now = func() time.Time { return base }
	store.SetWithTTL(src, "short", nil, []byte("short"), 1)
	store.SetWithTTL(src, "long", nil, []byte("long"), 100)

	store.now = func() time.Time { return base.Add(3 * time.Hour) }
	n, err := store.ClearExpired()
	if err != nil || n != 1 {
		t.Fatalf("ClearExpired = %d, %v, want 1", n, err)
	}
	if _, ok, _ := store.Get(src, "long", nil); !ok {
		t.Error("unexpired entry must survive the sweep")
	}
}

func TestStatsCounters(t *testing.T) {
	store, dir := newTestStore(t, Options{MemoryItemLimitBytes: 8})
	src := writeSource(t, dir, "count.py", "n = 0")

	store.Set(src, "structure", nil, []byte("data"))      // memory tier
	store.Set(src, "security", nil, []byte("ten bytes!")) // disk tier
	store.Get(src, "structure", nil)                      // hit
	store.Get(src, "dependencies", nil)                   // miss

	stats, err := store.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("hits=%d misses=%d, want 1/1", stats.Hits, stats.Misses)
	}
	// Each entry reports under its own tier.
	if stats.MemoryEntries != 1 || stats.MemoryBytes != 4 {
		t.Errorf("memory stats = %+v", stats)
	}
	if stats.DiskEntries != 1 || stats.DiskBytes != 10 {
		t.Errorf("disk stats = %+v", stats)
	}
}
