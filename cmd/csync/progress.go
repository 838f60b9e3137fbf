package main

import (
	"fmt"
	"os"

	"csync/internal/progress"
)

// consoleSink prints one line per reported snapshot. Grounded on the
// teacher's fmt.Printf status lines in cmd/encrypt/main.go's worker
// loop, adapted from per-file log lines into a single overwritten
// progress line since csync's sink only ever receives cumulative
// counters, not individual file names.
type consoleSink struct {
	verbose bool
}

func (s consoleSink) Report(snap progress.Snapshot) {
	fmt.Fprintf(os.Stderr, "\r📦 %d files · %s -> %s · %.1fs",
		snap.FilesDone, formatBytes(snap.BytesIn), formatBytes(snap.BytesOut), snap.Elapsed.Seconds())
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
