package main

import (
	"fmt"
	"os"

	"csync/internal/keyschedule"
	"csync/internal/manifest"
	"csync/pkg/config"

	"csync/internal/syncer"
)

func runClean(cfg *config.Config) error {
	stored, err := manifest.Load(cfg.OutDir)
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

	result, err := syncer.Clean(cfg.OutDir, set)
	if err != nil {
		return err
	}
	if !cfg.Quiet {
		fmt.Fprintf(os.Stderr, "🧹 Removed %d file(s), kept %d\n", len(result.Removed), result.Kept)
		for _, path := range result.Removed {
			fmt.Fprintf(os.Stderr, "   - %s\n", path)
		}
	}
	return nil
}
