package batching

import (
	"testing"

	"cab/internal/catalog"
)

func rec(rel, language string, tokens int) catalog.FileRecord {
	return catalog.FileRecord{
		Path:            "/repo/" + rel,
		RelPath:         rel,
		Language:        language,
		Size:            int64(tokens * 4),
		EstimatedTokens: tokens,
	}
}

// collectFiles flattens batch file lists and fails on duplicates.
func collectFiles(t *testing.T, batches []Batch) map[string]bool {
	t.Helper()
	seen := make(map[string]bool)
	for _, b := range batches {
		for _, f := range b.Files {
			if seen[f] {
				t.Errorf("file %s appears in more than one batch", f)
			}
			seen[f] = true
		}
	}
	return seen
}

func TestSizePackingConcreteScenario(t *testing.T) {
	// tokens [20000, 9000, 1000] against a 15000 budget: 20000 exceeds
	// 80% of the budget and is isolated; 9000+1000 accumulate and flush
	// as one medium batch.
	records := []catalog.FileRecord{
		rec("c.py", "Python", 20000),
		rec("b.py", "Python", 9000),
		rec("a.py", "Python", 1000),
	}

	b := New(15000, nil)
	batches, err := b.CreateBatches(records, BySize)
	if err != nil {
		t.Fatalf("CreateBatches: %v", err)
	}

	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}

	isolated := batches[0]
	if len(isolated.Files) != 1 || isolated.Files[0] != "/repo/c.py" {
		t.Errorf("first batch should isolate the oversized file, got %v", isolated.Files)
	}
	if isolated.EstimatedTokens != 20000 || isolated.SizeClass != SizeLarge {
		t.Errorf("isolated batch = %d tokens class %s", isolated.EstimatedTokens, isolated.SizeClass)
	}

	packed := batches[1]
	if packed.EstimatedTokens != 10000 {
		t.Errorf("packed batch tokens = %d, want 10000", packed.EstimatedTokens)
	}
	if packed.SizeClass != SizeMedium {
		t.Errorf("packed batch class = %s, want medium", packed.SizeClass)
	}
	if len(packed.Files) != 2 || packed.Files[0] != "/repo/b.py" || packed.Files[1] != "/repo/a.py" {
		t.Errorf("packed files = %v, want [b.py a.py]", packed.Files)
	}
}

func TestSizeClassThresholds(t *testing.T) {
	cases := []struct {
		tokens int
		want   SizeClass
	}{
		{3000, SizeSmall},
		{5000, SizeSmall},
		{5001, SizeMedium},
		{10000, SizeMedium},
		{10001, SizeLarge},
	}
	for _, tc := range cases {
		if got := classify(tc.tokens); got != tc.want {
			t.Errorf("classify(%d) = %s, want %s", tc.tokens, got, tc.want)
		}
	}
}

func TestBudgetBoundaryFlush(t *testing.T) {
	// Two 8000-token records against a 15000 budget cannot share a batch.
	records := []catalog.FileRecord{
		rec("x.go", "Go", 8000),
		rec("y.go", "Go", 8000),
	}

	batches, err := New(15000, nil).CreateBatches(records, BySize)
	if err != nil {
		t.Fatalf("CreateBatches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	for _, b := range batches {
		if len(b.Files) != 1 {
			t.Errorf("batch %s has %d files, want 1", b.ID, len(b.Files))
		}
	}
}

func TestPartitionInvariantAllStrategies(t *testing.T) {
	records := []catalog.FileRecord{
		rec("api/server.go", "Go", 14000),
		rec("api/router.go", "Go", 3000),
		rec("web/app.ts", "TypeScript", 7000),
		rec("web/util.ts", "TypeScript", 200),
		rec("main.py", "Python", 2500),
		rec("db/schema.sql", "SQL", 16000), // oversized under default budget
		rec("db/seed.sql", "SQL", 400),
	}

	for _, strategy := range []Strategy{BySize, ByLanguage, ByDirectory, Mixed} {
		t.Run(string(strategy), func(t *testing.T) {
			batches, err := New(0, nil).CreateBatches(records, strategy)
			if err != nil {
				t.Fatalf("CreateBatches: %v", err)
			}
			seen := collectFiles(t, batches)
			if len(seen) != len(records) {
				t.Errorf("partition covers %d files, want %d", len(seen), len(records))
			}
			for _, r := range records {
				if !seen[r.Path] {
					t.Errorf("file %s missing from partition", r.Path)
				}
			}
		})
	}
}

func TestByLanguageGroupsAndIDs(t *testing.T) {
	records := []catalog.FileRecord{
		rec("a.go", "Go", 1000),
		rec("b.py", "Python", 900),
		rec("c.go", "Go", 800),
	}

	batches, err := New(15000, nil).CreateBatches(records, ByLanguage)
	if err != nil {
		t.Fatalf("CreateBatches: %v", err)
	}

	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2 (one per language)", len(batches))
	}
	for _, b := range batches {
		switch b.LanguageGroup {
		case "Go":
			if b.ID != "lang_go_0" {
				t.Errorf("Go batch id = %s", b.ID)
			}
			if len(b.Files) != 2 {
				t.Errorf("Go batch files = %v", b.Files)
			}
		case "Python":
			if b.ID != "lang_python_0" {
				t.Errorf("Python batch id = %s", b.ID)
			}
		default:
			t.Errorf("unexpected language group %q", b.LanguageGroup)
		}
	}
}

func TestByDirectoryNormalizesRoot(t *testing.T) {
	records := []catalog.FileRecord{
		rec("top.py", "Python", 500),
		rec("pkg/a.py", "Python", 400),
	}

	batches, err := New(15000, nil).CreateBatches(records, ByDirectory)
	if err != nil {
		t.Fatalf("CreateBatches: %v", err)
	}

	var groups []string
	for _, b := range batches {
		groups = append(groups, b.DirectoryGroup)
	}
	wantRoot := false
	for _, g := range groups {
		if g == "root" {
			wantRoot = true
		}
	}
	if !wantRoot {
		t.Errorf("top-level files should group under root, got %v", groups)
	}
}

func TestMixedGroupsByLanguageThenDirectory(t *testing.T) {
	records := []catalog.FileRecord{
		rec("api/a.go", "Go", 1000),
		rec("api/b.go", "Go", 900),
		rec("cli/c.go", "Go", 800),
		rec("api/d.py", "Python", 700),
	}

	batches, err := New(15000, nil).CreateBatches(records, Mixed)
	if err != nil {
		t.Fatalf("CreateBatches: %v", err)
	}

	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3 (Go/api, Go/cli, Python/api)", len(batches))
	}
	for _, b := range batches {
		if b.LanguageGroup == "" || b.DirectoryGroup == "" {
			t.Errorf("mixed batch %s lacks group tags: %+v", b.ID, b)
		}
	}
	// Mixed ids carry both group keys.
	if batches[0].ID != "mixed_go_api_0" {
		t.Errorf("first mixed id = %s", batches[0].ID)
	}
}

func TestUnknownStrategyRejected(t *testing.T) {
	_, err := New(15000, nil).CreateBatches(nil, Strategy("alphabetical"))
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestEmptyInputYieldsNoBatches(t *testing.T) {
	batches, err := New(15000, nil).CreateBatches(nil, Mixed)
	if err != nil {
		t.Fatalf("CreateBatches: %v", err)
	}
	if len(batches) != 0 {
		t.Errorf("got %d batches for empty input", len(batches))
	}
}
