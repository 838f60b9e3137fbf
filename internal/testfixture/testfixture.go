// Package testfixture builds small deterministic directory trees for
// round-trip and property tests. Grounded on the generator in the
// teacher's cmd/testdata/main.go (a seeded math/rand source driving
// synthetic file generation), trimmed from a multi-format corporate
// dataset generator producing DOCX/PDF/PNG assets down to the handful
// of plain file shapes csync's own tests need: varied sizes, nested
// directories, and reproducible content for byte-identical comparison.
package testfixture

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// File describes one generated file relative to a tree's root.
type File struct {
	RelPath string
	Content []byte
}

// Tree is a deterministic synthetic source tree: the generated file
// list with each file's content, so a test can compare it against
// round-tripped output.
type Tree struct {
	Files []File
}

// Build generates a Tree with fileCount files distributed across a
// handful of nested directories, using rnd as the only source of
// randomness so the same *rand.Rand seed always yields the same tree.
func Build(rnd *rand.Rand, fileCount int, minBytes, maxBytes int) Tree {
	dirs := []string{"", "docs", "docs/reports", "images", "a/b/c"}

	var tree Tree
	for i := 0; i < fileCount; i++ {
		dir := dirs[rnd.Intn(len(dirs))]
		name := fmt.Sprintf("file-%04d.bin", i)
		relPath := name
		if dir != "" {
			relPath = filepath.Join(dir, name)
		}

		size := minBytes
		if maxBytes > minBytes {
			size += rnd.Intn(maxBytes - minBytes)
		}
		content := make([]byte, size)
		rnd.Read(content)

		tree.Files = append(tree.Files, File{RelPath: relPath, Content: content})
	}
	return tree
}

// Write materializes tree under rootDir on disk.
func Write(rootDir string, tree Tree) error {
	for _, f := range tree.Files {
		path := filepath.Join(rootDir, f.RelPath)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", f.RelPath, err)
		}
		if err := os.WriteFile(path, f.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.RelPath, err)
		}
	}
	return nil
}
