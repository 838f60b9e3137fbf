package syncer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"csync/internal/csyncerr"
	"csync/internal/fs"
	"csync/internal/keyschedule"
	"csync/internal/progress"
)

// UnitResult records the outcome of one executed sync unit, returned
// through Result.Failures for the run's final summary and exit code.
type UnitResult struct {
	Unit Unit
	Err  error
}

// Result aggregates a completed run: every unit that failed (per spec
// §4.8, a per-unit error does not stop the pool), and whether the run
// was cancelled before the plan fully drained.
type Result struct {
	Failures  []UnitResult
	Cancelled bool
}

// Cancel is a cooperative cancellation flag. Workers poll it between
// units, and encrypt units also poll it at chunk boundaries while
// reading their source (inside internal/pipeline); once set, no new
// unit starts, and an encrypt unit still reading its source stops and
// discards its staging file.
type Cancel struct {
	flag atomic.Bool
}

func (c *Cancel) Set()          { c.flag.Store(true) }
func (c *Cancel) Requested() bool { return c.flag.Load() }

// Execute runs plan with workerCount concurrent workers over an
// errgroup, committing each Create/Update unit through the encrypt
// pipeline and deleting each Remove unit's output file. Backpressure
// comes from a channel buffered to workerCount, per spec §5's
// O(k*chunk_size) memory bound.
func Execute(ctx context.Context, plan Plan, set *keyschedule.Set, encParams EncryptionParams, workerCount int, cancel *Cancel, sink progress.Sink) Result {
	counter := progress.NewCounter()
	unitChan := make(chan Unit, workerCount)

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

				bytesIn, bytesOut, err := executeUnit(unit, set, encParams, cancel)
				if err != nil {
					mu.Lock()
					result.Failures = append(result.Failures, UnitResult{Unit: unit, Err: err})
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

	for _, unit := range plan.Units {
		if unit.Action == ActionSkip {
			if sink != nil {
				counter.AddFile(0, 0)
				sink.Report(counter.Snapshot())
			}
			continue
		}
		unitChan <- unit
	}
	close(unitChan)

	_ = g.Wait()
	return result
}

// EncryptionParams carries the algorithm choices resolved once for
// the whole run; each worker reuses it for every unit it processes.
type EncryptionParams struct {
	CipherID      int
	MACID         int
	CompressorID  int
	CompressLevel int
}

func executeUnit(unit Unit, set *keyschedule.Set, params EncryptionParams, cancel *Cancel) (bytesIn, bytesOut int64, err error) {
	switch unit.Action {
	case ActionRemove:
		return removeUnit(unit)
	case ActionCreate, ActionUpdate:
		return createOrUpdateUnit(unit, set, params, cancel)
	default:
		return 0, 0, nil
	}
}

func removeUnit(unit Unit) (int64, int64, error) {
	if err := os.Remove(unit.OutputPath); err != nil && !os.IsNotExist(err) {
		return 0, 0, csyncerr.Wrap(csyncerr.IoError, unit.OutputPath, err)
	}
	fs.PruneEmptyDirs(filepath.Dir(unit.OutputPath), unit.OutRoot)
	return 0, 0, nil
}
