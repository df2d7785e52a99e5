package aggregator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fizil"
)

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return tm
}

func newTestAggregator(t *testing.T) (*Aggregator, string) {
	t.Helper()
	root := t.TempDir()
	a, err := New(root, fizil.NoopStatusSink{}, 16, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, root
}

func TestNoveltyMonotonicity(t *testing.T) {
	a, _ := newTestAggregator(t)

	a.Submit(fizil.Result{SharedMemory: []byte{1, 2, 3}})
	a.Submit(fizil.Result{SharedMemory: []byte{1, 2, 3}})
	a.Submit(fizil.Result{SharedMemory: []byte{4, 5, 6}})

	summary := a.Drain()
	if summary.TestsRun != 3 {
		t.Fatalf("expected 3 tests run, got %d", summary.TestsRun)
	}
	if summary.PathsFound != 2 {
		t.Fatalf("expected 2 distinct paths, got %d", summary.PathsFound)
	}
}

func TestOnlyNewPathCrashesArePersisted(t *testing.T) {
	a, _ := newTestAggregator(t)

	// Same coverage twice: second is not novel even though it crashes.
	a.Submit(fizil.Result{
		TestCase:     fizil.TestCase{Data: []byte("aaa"), FileExtension: ".bin"},
		TestResult:   fizil.TestResult{Crashed: true},
		SharedMemory: []byte{0xaa},
	})
	a.Submit(fizil.Result{
		TestCase:     fizil.TestCase{Data: []byte("bbb"), FileExtension: ".bin"},
		TestResult:   fizil.TestResult{Crashed: true},
		SharedMemory: []byte{0xaa},
	})
	// Novel but not a crash: not persisted.
	a.Submit(fizil.Result{
		TestCase:     fizil.TestCase{Data: []byte("ccc"), FileExtension: ".bin"},
		TestResult:   fizil.TestResult{Crashed: false},
		SharedMemory: []byte{0xbb},
	})

	summary := a.Drain()
	if summary.FindingsSaved != 1 {
		t.Fatalf("expected exactly 1 persisted finding, got %d", summary.FindingsSaved)
	}

	entries, err := os.ReadDir(summary.FindingsFolder)
	if err != nil {
		t.Fatalf("ReadDir findings folder: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 file on disk, got %d", len(entries))
	}
}

func TestCrashingSeedIsNeverPersisted(t *testing.T) {
	a, _ := newTestAggregator(t)

	src := "seed.bin"
	a.Submit(fizil.Result{
		TestCase:     fizil.TestCase{Data: []byte("seed"), FileExtension: ".bin", SourceFile: &src},
		TestResult:   fizil.TestResult{Crashed: true},
		SharedMemory: []byte{0x01},
	})

	summary := a.Drain()
	if summary.FindingsSaved != 0 {
		t.Fatalf("a crashing seed must never be persisted as a finding, got %d saved", summary.FindingsSaved)
	}
}

func TestOnFindingCallbackFiresOncePerPersistedFinding(t *testing.T) {
	root := t.TempDir()
	calls := 0
	a, err := New(root, fizil.NoopStatusSink{}, 16, func() { calls++ })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a.Submit(fizil.Result{
		TestCase:     fizil.TestCase{Data: []byte("aaa"), FileExtension: ".bin"},
		TestResult:   fizil.TestResult{Crashed: true},
		SharedMemory: []byte{0xaa},
	})
	a.Submit(fizil.Result{
		TestCase:     fizil.TestCase{Data: []byte("ccc"), FileExtension: ".bin"},
		TestResult:   fizil.TestResult{Crashed: false},
		SharedMemory: []byte{0xbb},
	})
	a.Drain()

	if calls != 1 {
		t.Fatalf("expected onFinding to fire exactly once, got %d", calls)
	}
}

func TestFindingsFolderUniqueness(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "findings_2026-01-01_00-00-00")
	if err := os.MkdirAll(existing, 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	folder, err := uniqueFindingsFolder(root, mustParseTime(t, "2026-01-01T00:00:00Z"))
	if err != nil {
		t.Fatalf("uniqueFindingsFolder: %v", err)
	}
	if folder == existing {
		t.Fatalf("expected a distinct folder name, got a collision with %s", existing)
	}
}

func TestTwoRunsProduceTwoDistinctFolders(t *testing.T) {
	root := t.TempDir()
	a1, _ := New(root, fizil.NoopStatusSink{}, 16, nil)
	s1 := a1.Drain()
	a2, _ := New(root, fizil.NoopStatusSink{}, 16, nil)
	s2 := a2.Drain()

	if s1.FindingsFolder == s2.FindingsFolder {
		t.Fatal("two aggregators created against the same root must get distinct findings folders")
	}
}
