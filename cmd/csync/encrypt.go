package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"csync/internal/crypto"
	"csync/internal/csyncerr"
	"csync/internal/keyschedule"
	"csync/internal/manifest"
	"csync/internal/progress"
	"csync/internal/rng"
	"csync/internal/syncer"
	"csync/pkg/config"
	"csync/pkg/policy"
)

func runEncrypt(ctx context.Context, cfg *config.Config) error {
	requested, err := requestedManifestFields(cfg)
	if err != nil {
		return err
	}

	stored, loadErr := manifest.Load(cfg.OutDir)
	firstRun := false
	if loadErr != nil {
		if ce, ok := loadErr.(*csyncerr.Error); !ok || ce.Kind != csyncerr.ManifestMissing {
			return loadErr
		}
		firstRun = true
	}

	var set *keyschedule.Set
	var finalManifest manifest.Manifest

	if firstRun {
		password, err := readNewPassword()
		if err != nil {
			return err
		}
		defer zero(password)

		salt, err := rng.New().Salt(cfg.SaltLen)
		if err != nil {
			return err
		}
		set, err = keyschedule.Bootstrap(password, salt, requested.KDFID, requested.ScryptParams, requested.PBKDF2Params)
		if err != nil {
			return err
		}
		verifier, err := keyschedule.Verifier(set)
		if err != nil {
			return err
		}

		finalManifest = requested
		finalManifest.MasterSalt = salt
		finalManifest.PasswordVerifier = verifier
		if err := manifest.Save(cfg.OutDir, finalManifest); err != nil {
			return err
		}
		if !cfg.Quiet {
			fmt.Fprintf(os.Stderr, "🔐 Created new manifest at %s\n", manifest.Path(cfg.OutDir))
		}
	} else {
		reconciled, err := manifest.Reconcile(stored, requested, true)
		if err != nil {
			return err
		}
		finalManifest = reconciled

		password, err := readPassword("Enter password: ")
		if err != nil {
			return err
		}
		defer zero(password)

		set, err = keyschedule.Bootstrap(password, stored.MasterSalt, stored.KDFID, stored.ScryptParams, stored.PBKDF2Params)
		if err != nil {
			return err
		}
		if err := keyschedule.CheckVerifier(set, stored.PasswordVerifier); err != nil {
			return err
		}
	}

	includeMatch, err := buildIncludeMatcher(cfg)
	if err != nil {
		return err
	}

	plan, err := syncer.PlanEncrypt(cfg.Source, cfg.OutDir, set, finalManifest.SpreadDepth, includeMatch)
	if err != nil {
		return err
	}
	logVerbose(cfg.Verbose, "planned %d sync units under %s -> %s", len(plan.Units), cfg.Source, cfg.OutDir)

	summarizePlan(plan)
	if cfg.DryRun {
		return nil
	}
	if len(plan.Units) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(os.Stderr, "✅ Nothing to do.")
		}
		return nil
	}
	if !cfg.AssumeYes && !confirm(fmt.Sprintf("Proceed with %d sync units?", len(plan.Units))) {
		fmt.Fprintln(os.Stderr, "Aborted.")
		return nil
	}

	encParams := syncer.EncryptionParams{
		CipherID:      int(finalManifest.CipherID),
		MACID:         int(finalManifest.MACID),
		CompressorID:  int(finalManifest.CompressorID),
		CompressLevel: finalManifest.CompressLevel,
	}

	cancel := &syncer.Cancel{}
	stopSignals := installSignalCancel(cancel)
	defer stopSignals()

	sink := sinkFor(cfg)
	result := syncer.Execute(ctx, plan, set, encParams, cfg.Workers, cancel, sink)
	if !cfg.Quiet {
		fmt.Fprintln(os.Stderr)
	}
	return reportResult(result)
}

// requestedManifestFields builds the Manifest fields implied by cfg,
// resolving KDF parameters by auto-tuning against cfg.KeyDerivTime
// unless the caller supplied explicit parameters. The MasterSalt and
// PasswordVerifier fields are filled in by the caller once it knows
// whether this is a first run or a reconciliation against a stored
// manifest.
func requestedManifestFields(cfg *config.Config) (manifest.Manifest, error) {
	cipherID, err := crypto.ParseCipherID(cfg.Cipher)
	if err != nil {
		return manifest.Manifest{}, csyncerr.Wrap(csyncerr.ConfigInvalid, "", err)
	}
	macID, err := crypto.ParseMACID(cfg.MAC)
	if err != nil {
		return manifest.Manifest{}, csyncerr.Wrap(csyncerr.ConfigInvalid, "", err)
	}
	compressorID, err := crypto.ParseCompressorID(cfg.Compressor)
	if err != nil {
		return manifest.Manifest{}, csyncerr.Wrap(csyncerr.ConfigInvalid, "", err)
	}
	kdfID, err := crypto.ParseKDFID(cfg.KDF)
	if err != nil {
		return manifest.Manifest{}, csyncerr.Wrap(csyncerr.ConfigInvalid, "", err)
	}

	var scryptParams crypto.ScryptParams
	var pbkdf2Params crypto.PBKDF2Params
	target := time.Duration(cfg.KeyDerivTime) * time.Second

	switch kdfID {
	case crypto.KDFScrypt:
		if cfg.KeyDerivByParams {
			scryptParams = crypto.ScryptParams{LogN: cfg.ScryptLogN, R: cfg.ScryptR, P: cfg.ScryptP}
		} else {
			scryptParams, err = crypto.AutoTuneScrypt(target, cfg.ScryptR, cfg.ScryptP, 10, 24)
			if err != nil {
				return manifest.Manifest{}, err
			}
		}
	case crypto.KDFPBKDF2:
		if cfg.KeyDerivByParams {
			pbkdf2Params = crypto.PBKDF2Params{Iterations: cfg.PBKDF2Iterations}
		} else {
			pbkdf2Params, err = crypto.AutoTunePBKDF2(target)
			if err != nil {
				return manifest.Manifest{}, err
			}
		}
	}

	return manifest.Manifest{
		CipherID:      cipherID,
		MACID:         macID,
		CompressorID:  compressorID,
		CompressLevel: cfg.CompressLevel,
		KDFID:         kdfID,
		ScryptParams:  scryptParams,
		PBKDF2Params:  pbkdf2Params,
		SaltLen:       cfg.SaltLen,
		SpreadDepth:   cfg.SpreadDepth,
	}, nil
}

// buildIncludeMatcher folds the CLI-level --include/--exclude globs
// (and, if a policy file was applied, its size bounds and glob lists)
// into a single predicate the planner calls per source file.
func buildIncludeMatcher(cfg *config.Config) (func(relPath string, size int64) (bool, error), error) {
	pol := &policy.Policy{
		Include: config.SplitGlobs(cfg.IncludeGlobs),
		Exclude: config.SplitGlobs(cfg.ExcludeGlobs),
	}
	if cfg.ActivePolicy != nil {
		pol.MinSize = cfg.ActivePolicy.MinSize
		pol.MaxSize = cfg.ActivePolicy.MaxSize
	}
	return func(relPath string, size int64) (bool, error) {
		return policy.Matches(pol, relPath, size)
	}, nil
}

func summarizePlan(plan syncer.Plan) {
	var create, update, skip, remove int
	for _, u := range plan.Units {
		switch u.Action {
		case syncer.ActionCreate:
			create++
		case syncer.ActionUpdate:
			update++
		case syncer.ActionSkip:
			skip++
		case syncer.ActionRemove:
			remove++
		}
	}
	fmt.Fprintf(os.Stderr, "📋 Plan: %d create, %d update, %d skip, %d remove\n", create, update, skip, remove)
}

func sinkFor(cfg *config.Config) progress.Sink {
	if cfg.Quiet {
		return progress.NullSink{}
	}
	return consoleSink{verbose: cfg.Verbose}
}
