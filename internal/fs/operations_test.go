package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWalkSortedReturnsSortedRelativePaths(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{"c.txt", "a/b.txt", "a.txt"} {
		full := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	got, err := WalkSorted(dir)
	if err != nil {
		t.Fatalf("WalkSorted: %v", err)
	}
	want := []string{"a.txt", filepath.Join("a", "b.txt"), "c.txt"}
	sortStrings(want)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func TestStageAndCommitAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "out.bin")

	if err := StageAndCommit(final, func(f *os.File) error {
		_, err := f.Write([]byte("version 1"))
		return err
	}); err != nil {
		t.Fatalf("first StageAndCommit: %v", err)
	}
	data, err := os.ReadFile(final)
	if err != nil || string(data) != "version 1" {
		t.Fatalf("unexpected content after first commit: %q, err=%v", data, err)
	}

	if err := StageAndCommit(final, func(f *os.File) error {
		_, err := f.Write([]byte("version 2, longer"))
		return err
	}); err != nil {
		t.Fatalf("second StageAndCommit: %v", err)
	}
	data, err = os.ReadFile(final)
	if err != nil || string(data) != "version 2, longer" {
		t.Fatalf("unexpected content after second commit: %q, err=%v", data, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 file in %s, got %d", dir, len(entries))
	}
}

func TestStageAndCommitCleansUpOnFailure(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "out.bin")

	err := StageAndCommit(final, func(f *os.File) error {
		return os.ErrInvalid
	})
	if err == nil {
		t.Fatal("expected an error from a failing write callback")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftover temp files, found %d", len(entries))
	}
}

func TestPruneEmptyDirsStopsAtRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	PruneEmptyDirs(nested, root)

	if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
		t.Fatalf("expected intermediate directories to be pruned, stat err = %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("root directory must survive pruning: %v", err)
	}
}
