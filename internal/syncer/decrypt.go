package syncer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"csync/internal/csyncerr"
	"csync/internal/filenamecodec"
	"csync/internal/fs"
	"csync/internal/keyschedule"
	"csync/internal/pipeline"
	"csync/internal/progress"
)

// DecryptUnit is one .csync file discovered under an encrypted tree.
// Its plaintext destination is computed by the worker once the header
// is decrypted; the unit itself holds only the ciphertext path.
type DecryptUnit struct {
	CiphertextPath string
}

// PlanDecrypt enumerates every .csync file under sourceDir in
// deterministic order. Unlike PlanEncrypt, the destination path is not
// known until the header is decrypted, so decrypt units carry only
// the ciphertext path.
func PlanDecrypt(sourceDir string) ([]DecryptUnit, error) {
	paths, err := fs.WalkFiles(sourceDir, func(path string, info os.FileInfo) bool {
		return strings.HasSuffix(path, filenamecodec.OutputExtension)
	})
	if err != nil {
		return nil, err
	}
	units := make([]DecryptUnit, len(paths))
	for i, p := range paths {
		units[i] = DecryptUnit{CiphertextPath: p}
	}
	return units, nil
}

// ExecuteDecrypt decrypts every unit into destDir, reconstructing the
// original relative path from each file's authenticated header. A
// unit whose tag fails to verify is recorded as a failure and its
// partial output (if any was ever staged) is never committed.
func ExecuteDecrypt(ctx context.Context, units []DecryptUnit, destDir string, set *keyschedule.Set, workerCount int, cancel *Cancel, sink progress.Sink) Result {
	counter := progress.NewCounter()
	unitChan := make(chan DecryptUnit, workerCount)

	var mu sync.Mutex
	var result Result

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			for unit := range unitChan {
				if cancel != nil && cancel.Requested() {
					mu.Lock()
					result.Cancelled = true
					mu.Unlock()
					continue
				}
				select {
				case <-gctx.Done():
					continue
				default:
				}

				bytesIn, bytesOut, err := decryptUnit(unit, destDir, set)
				if err != nil {
					mu.Lock()
					result.Failures = append(result.Failures, UnitResult{
						Unit: Unit{OutputPath: unit.CiphertextPath},
						Err:  err,
					})
					mu.Unlock()
				}
				if sink != nil {
					counter.AddFile(bytesIn, bytesOut)
					sink.Report(counter.Snapshot())
				}
			}
			return nil
		})
	}

	for _, unit := range units {
		unitChan <- unit
	}
	close(unitChan)

	_ = g.Wait()
	return result
}

func decryptUnit(unit DecryptUnit, destDir string, set *keyschedule.Set) (bytesIn, bytesOut int64, err error) {
	f, openErr := os.Open(unit.CiphertextPath)
	if openErr != nil {
		return 0, 0, csyncerr.Wrap(csyncerr.IoError, unit.CiphertextPath, openErr)
	}
	defer f.Close()

	result, decErr := pipeline.Decrypt(f, set)
	if decErr != nil {
		return 0, 0, csyncerr.Wrap(errKindFor(decErr), unit.CiphertextPath, decErr)
	}

	relPath, pathErr := DecryptRelPath(set, result.Header.ContentSalt, result.Header.EncryptedPath)
	if pathErr != nil {
		return 0, 0, csyncerr.Wrap(csyncerr.AuthenticationFailed, unit.CiphertextPath, pathErr)
	}

	destPath := filepath.Join(destDir, filepath.FromSlash(relPath))
	writeErr := fs.StageAndCommit(destPath, func(out *os.File) error {
		_, err := out.Write(result.Plaintext)
		return err
	})
	if writeErr != nil {
		return 0, 0, csyncerr.Wrap(csyncerr.IoError, destPath, writeErr)
	}

	info, statErr := os.Stat(unit.CiphertextPath)
	var inSize int64
	if statErr == nil {
		inSize = info.Size()
	}
	return inSize, int64(len(result.Plaintext)), nil
}
