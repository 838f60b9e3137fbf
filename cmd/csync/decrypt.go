package main

import (
	"context"
	"fmt"
	"os"

	"csync/internal/keyschedule"
	"csync/internal/manifest"
	"csync/internal/syncer"
	"csync/pkg/config"
)

func runDecrypt(ctx context.Context, cfg *config.Config) error {
	stored, err := manifest.Load(cfg.Source)
	if err != nil {
		return err
	}

	password, err := readPassword("Enter password: ")
	if err != nil {
		return err
	}
	defer zero(password)

	set, err := keyschedule.Bootstrap(password, stored.MasterSalt, stored.KDFID, stored.ScryptParams, stored.PBKDF2Params)
	if err != nil {
		return err
	}
	if err := keyschedule.CheckVerifier(set, stored.PasswordVerifier); err != nil {
		return err
	}

	units, err := syncer.PlanDecrypt(cfg.Source)
	if err != nil {
		return err
	}
	logVerbose(cfg.Verbose, "discovered %d encrypted file(s) under %s", len(units), cfg.Source)
	if !cfg.Quiet {
		fmt.Fprintf(os.Stderr, "📋 %d encrypted file(s) to decrypt\n", len(units))
	}
	if cfg.DryRun || len(units) == 0 {
		return nil
	}

	cancel := &syncer.Cancel{}
	stopSignals := installSignalCancel(cancel)
	defer stopSignals()

	sink := sinkFor(cfg)
	result := syncer.ExecuteDecrypt(ctx, units, cfg.OutDir, set, cfg.Workers, cancel, sink)
	if !cfg.Quiet {
		fmt.Fprintln(os.Stderr)
	}
	return reportResult(result)
}
