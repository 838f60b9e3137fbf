package syncer

import (
	"os"
	"path/filepath"
	"strings"

	"csync/internal/filenamecodec"
	"csync/internal/fs"
	"csync/internal/keyschedule"
	"csync/internal/pipeline"
)

// CleanResult reports what the clean operation removed.
type CleanResult struct {
	Removed []string
	Kept    int
}

// Clean walks outDir, verifies every .csync file's header MAC, and
// deletes any file that fails verification, pruning empty directories
// afterward. Per spec §4.9, it never touches plaintext and performs no
// repacking — only verification-driven deletion.
func Clean(outDir string, set *keyschedule.Set) (CleanResult, error) {
	candidates, err := fs.WalkFiles(outDir, func(path string, info os.FileInfo) bool {
		return strings.HasSuffix(path, filenamecodec.OutputExtension)
	})
	if err != nil {
		return CleanResult{}, err
	}

	var result CleanResult
	for _, path := range candidates {
		if verifyFile(path, set) {
			result.Kept++
			continue
		}
		if err := os.Remove(path); err == nil {
			result.Removed = append(result.Removed, path)
			fs.PruneEmptyDirs(filepath.Dir(path), outDir)
		}
	}
	return result, nil
}

func verifyFile(path string, set *keyschedule.Set) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	h, err := pipeline.VerifyOnly(f, set.MAC)
	if err != nil {
		return false
	}
	_, err = DecryptRelPath(set, h.ContentSalt, h.EncryptedPath)
	return err == nil
}
