package main

import (
	"log"
	"os"
)

// verboseLog is the diagnostic logger for --verbose output. Grounded
// on the teacher's package-level use of log.Fatalf for fatal errors in
// cmd/encrypt/main.go; csync needs distinct process exit codes per
// error kind, so fatal errors are reported and mapped to a code in
// run() instead of going through log.Fatalf, but this logger carries
// the same stdlib log.Logger the teacher uses for everything short of
// a fatal abort.
var verboseLog = log.New(os.Stderr, "csync: ", log.LstdFlags)

func logVerbose(verbose bool, format string, args ...any) {
	if !verbose {
		return
	}
	verboseLog.Printf(format, args...)
}
