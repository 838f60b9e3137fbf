// Command csync encrypts a directory tree into an obfuscated,
// individually-authenticated output tree (and reverses the process),
// per spec.md's external interface contract. Grounded on the
// teacher's cmd/encrypt, cmd/decrypt split, merged into one binary
// with subcommands the way the teacher's cmd/genkey and cmd/builder
// sit alongside cmd/encrypt as separate entry points performing
// distinct, focused operations.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"csync/internal/csyncerr"
	"csync/internal/syncer"
	"csync/pkg/config"
)

const appName = "csync"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cfg, err := config.ParseArgs(appName, argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		printHelp()
		return 1
	}

	if cfg.Subcommand == config.SubcommandHelp {
		printHelp()
		return 0
	}

	ctx := context.Background()

	var runErr error
	switch cfg.Subcommand {
	case config.SubcommandEncrypt:
		runErr = runEncrypt(ctx, cfg)
	case config.SubcommandDecrypt:
		runErr = runDecrypt(ctx, cfg)
	case config.SubcommandClean:
		runErr = runClean(cfg)
	}

	if runErr != nil {
		if pf, ok := runErr.(partialFailure); ok {
			reportFailures(pf.result)
			return 4
		}
		fmt.Fprintf(os.Stderr, "❌ %v\n", runErr)
		return csyncerr.ExitCode(runErr)
	}
	return 0
}

// partialFailure signals that the run completed but one or more
// individual sync units failed, which maps to exit code 4 per the
// external interface contract rather than the single-Kind mapping
// csyncerr.ExitCode provides for a fatal top-level error.
type partialFailure struct {
	result syncer.Result
}

func (partialFailure) Error() string { return "one or more sync units failed" }

// reportResult turns a completed syncer.Result into either nil (full
// success), or a partialFailure wrapping it so run() picks exit code
// 4 and prints each failed unit.
func reportResult(result syncer.Result) error {
	if len(result.Failures) == 0 {
		return nil
	}
	return partialFailure{result: result}
}

func reportFailures(result syncer.Result) {
	for _, f := range result.Failures {
		path := f.Unit.OutputPath
		if path == "" {
			path = f.Unit.SourceAbsPath
		}
		fmt.Fprintf(os.Stderr, "❌ %s: %v\n", path, f.Err)
	}
	fmt.Fprintf(os.Stderr, "⚠️  %d unit(s) failed\n", len(result.Failures))
}

// installSignalCancel requests cooperative cancellation on SIGINT and
// SIGTERM so an interrupted run stops starting new units; an in-flight
// encrypt unit still reading its source abandons its staging file, so
// no partially written output is committed.
func installSignalCancel(cancel *syncer.Cancel) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n🛑 Cancelling, finishing in-flight units...")
			cancel.Set()
		case <-done:
		}
	}()
	return func() {
		close(done)
		signal.Stop(sigCh)
	}
}

func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `%s - client-side directory-tree encryption

Usage:
  %s encrypt <source> --out-dir <dir> [options]
  %s decrypt <source> --out-dir <dir> [options]
  %s clean <dir> [options]
  %s help

Run "%s <subcommand> -h" for that subcommand's options.
`, appName, appName, appName, appName, appName, appName)
}
