// Package syncer implements C8: walking the source tree, planning
// create/update/skip/remove actions, and running the stream pipeline
// concurrently to commit output atomically. Grounded on the worker
// pool in the teacher's cmd/encrypt/main.go (processFiles: a buffered
// channel plus a fixed goroutine pool), adapted from an unordered
// fire-and-forget WaitGroup into golang.org/x/sync/errgroup so that
// cancellation of the run's context is observed between units, while
// per-file failures are captured individually in Result.Failures.
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

// Action is the planned disposition of one sync unit.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionSkip
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionSkip:
		return "skip"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Unit is a planned action on a single file, consumed by exactly one
// worker. SourceAbsPath and RelPath are empty for Remove units, which
// only need OutputPath.
type Unit struct {
	SourceAbsPath string
	RelPath       string
	MTime         int64
	Size          int64
	OutputPath    string
	OutRoot       string
	Action        Action
}

// Plan is the full ordered list of sync units for one run: the
// deterministic sorted source walk first, remove units last.
type Plan struct {
	Units []Unit
}

// PlanEncrypt walks sourceDir in sorted order, computes each file's
// spread output path under outDir, and compares it against any
// existing output file's authenticated (mtime, size) hints. Files
// under outDir with no corresponding source file are planned for
// removal.
func PlanEncrypt(sourceDir, outDir string, set *keyschedule.Set, spreadDepth int, includeMatch func(relPath string, size int64) (bool, error)) (Plan, error) {
	relPaths, err := fs.WalkSorted(sourceDir)
	if err != nil {
		return Plan{}, err
	}

	var plan Plan
	seenOutputs := make(map[string]struct{}, len(relPaths))

	for _, rel := range relPaths {
		absPath := filepath.Join(sourceDir, rel)
		info, statErr := os.Stat(absPath)
		if statErr != nil {
			continue
		}

		if includeMatch != nil {
			ok, matchErr := includeMatch(filepath.ToSlash(rel), info.Size())
			if matchErr != nil {
				return Plan{}, matchErr
			}
			if !ok {
				continue
			}
		}

		segments, err := filenamecodec.SpreadPath(set.Name, filepath.ToSlash(rel), spreadDepth)
		if err != nil {
			return Plan{}, err
		}
		outputPath := filepath.Join(append([]string{outDir}, segments...)...)
		seenOutputs[outputPath] = struct{}{}

		unit := Unit{
			SourceAbsPath: absPath,
			RelPath:       rel,
			MTime:         info.ModTime().Unix(),
			Size:          info.Size(),
			OutputPath:    outputPath,
			OutRoot:       outDir,
		}

		existing, openErr := os.Open(outputPath)
		if openErr != nil {
			unit.Action = ActionCreate
			plan.Units = append(plan.Units, unit)
			continue
		}
		h, verifyErr := pipeline.VerifyOnly(existing, set.MAC)
		existing.Close()
		if verifyErr != nil {
			// Unreadable or tampered existing output: treat as if it
			// never existed and recreate it.
			unit.Action = ActionCreate
			plan.Units = append(plan.Units, unit)
			continue
		}
		if h.ModTimeHint == unit.MTime && h.SizeHint == uint64(unit.Size) {
			unit.Action = ActionSkip
		} else {
			unit.Action = ActionUpdate
		}
		plan.Units = append(plan.Units, unit)
	}

	removeUnits, err := planRemovals(outDir, seenOutputs)
	if err != nil {
		return Plan{}, err
	}
	plan.Units = append(plan.Units, removeUnits...)

	return plan, nil
}

// planRemovals enumerates every .csync file under outDir and plans a
// Remove unit for any path not in seenOutputs.
func planRemovals(outDir string, seenOutputs map[string]struct{}) ([]Unit, error) {
	candidates, err := fs.WalkFiles(outDir, func(path string, info os.FileInfo) bool {
		return strings.HasSuffix(path, filenamecodec.OutputExtension)
	})
	if err != nil {
		return nil, err
	}

	var removals []Unit
	for _, path := range candidates {
		if _, ok := seenOutputs[path]; ok {
			continue
		}
		removals = append(removals, Unit{OutputPath: path, OutRoot: outDir, Action: ActionRemove})
	}
	return removals, nil
}
