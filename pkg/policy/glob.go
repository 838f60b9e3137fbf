package policy

import "github.com/bmatcuk/doublestar/v4"

// matchGlob matches relativePath against a doublestar pattern
// (supporting ** for recursive directory matching), since the plain
// path/filepath.Match used by the teacher's exclusion lists cannot
// express "any depth" patterns that a sync policy's include/exclude
// globs need.
func matchGlob(pattern, relativePath string) (bool, error) {
	return doublestar.Match(pattern, relativePath)
}
