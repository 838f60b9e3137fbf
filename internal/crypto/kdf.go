package crypto

import (
	"crypto/sha512"
	"fmt"
	"time"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// MasterKeySize is the length in bytes of the master key every KDF
// produces; per-purpose subkeys are derived from it via HKDF
// (internal/keyschedule), so the KDF itself only ever needs to emit one
// key size.
const MasterKeySize = 64

// ScryptParams tunes the scrypt KDF. LogN is stored rather than N so
// that a manifest always records a power of two exactly.
type ScryptParams struct {
	LogN int
	R    int
	P    int
}

// Validate enforces the parameter bounds from spec.md §4.1: log_n in
// [10,24], r and p at least 1. These bounds are checked before any
// derivation is attempted, so a corrupt manifest fails fast with an
// error (wrapped as CryptoError by keyschedule.Bootstrap) rather than
// spinning on an absurd N.
func (p ScryptParams) Validate() error {
	if p.LogN < 10 || p.LogN > 24 {
		return fmt.Errorf("scrypt log_n %d out of range [10,24]", p.LogN)
	}
	if p.R < 1 {
		return fmt.Errorf("scrypt r must be >= 1, got %d", p.R)
	}
	if p.P < 1 {
		return fmt.Errorf("scrypt p must be >= 1, got %d", p.P)
	}
	return nil
}

// PBKDF2Params tunes the PBKDF2 KDF.
type PBKDF2Params struct {
	Iterations int
}

func (p PBKDF2Params) Validate() error {
	if p.Iterations < 1 {
		return fmt.Errorf("pbkdf2 iterations must be >= 1, got %d", p.Iterations)
	}
	return nil
}

// DeriveMasterKey runs the chosen KDF over password+salt and returns a
// MasterKeySize-byte master key. scryptParams is used when id is
// KDFScrypt and ignored otherwise, and likewise for pbkdf2Params.
func DeriveMasterKey(id KDFID, password, salt []byte, scryptParams ScryptParams, pbkdf2Params PBKDF2Params) ([]byte, error) {
	switch id {
	case KDFScrypt:
		if err := scryptParams.Validate(); err != nil {
			return nil, err
		}
		n := 1 << uint(scryptParams.LogN)
		key, err := scrypt.Key(password, salt, n, scryptParams.R, scryptParams.P, MasterKeySize)
		if err != nil {
			return nil, fmt.Errorf("scrypt derivation: %w", err)
		}
		return key, nil
	case KDFPBKDF2:
		if err := pbkdf2Params.Validate(); err != nil {
			return nil, err
		}
		return pbkdf2.Key(password, salt, pbkdf2Params.Iterations, MasterKeySize, sha512.New), nil
	default:
		return nil, fmt.Errorf("unsupported kdf id %d", id)
	}
}

// AutoTuneScrypt picks the largest log_n in [minLogN, maxLogN] whose
// single derivation takes no longer than targetDuration, holding r and
// p fixed. It probes by doubling N (log_n += 1) and stops at the first
// trial that exceeds the target. If even minLogN exceeds the target,
// minLogN is returned.
//
// The probe itself spends real wall-clock time; callers on a budget
// should keep r and p modest (the defaults used by the CLI) so probing
// converges in a few derivations rather than minutes.
func AutoTuneScrypt(targetDuration time.Duration, r, p int, minLogN, maxLogN int) (ScryptParams, error) {
	probeSalt := make([]byte, 16)
	probePassword := []byte("csync-autotune-probe")

	best := ScryptParams{LogN: minLogN, R: r, P: p}
	for logN := minLogN; logN <= maxLogN; logN++ {
		params := ScryptParams{LogN: logN, R: r, P: p}
		if err := params.Validate(); err != nil {
			return ScryptParams{}, err
		}
		start := time.Now()
		n := 1 << uint(logN)
		if _, err := scrypt.Key(probePassword, probeSalt, n, r, p, MasterKeySize); err != nil {
			return ScryptParams{}, fmt.Errorf("scrypt autotune probe at log_n=%d: %w", logN, err)
		}
		elapsed := time.Since(start)
		if elapsed > targetDuration {
			break
		}
		best = params
	}
	return best, nil
}

// AutoTunePBKDF2 picks the iteration count projected to make a single
// derivation take about targetDuration, and never fewer than 10,000.
// It linearly scales up from an initial trial of a fixed iteration
// count, projecting the per-iteration cost measured in the trial
// rather than re-probing repeatedly, since PBKDF2's cost per iteration
// is constant.
func AutoTunePBKDF2(targetDuration time.Duration) (PBKDF2Params, error) {
	const trialIterations = 10_000
	probeSalt := make([]byte, 16)
	probePassword := []byte("csync-autotune-probe")

	start := time.Now()
	pbkdf2.Key(probePassword, probeSalt, trialIterations, MasterKeySize, sha512.New)
	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Microsecond
	}

	perIteration := float64(elapsed) / float64(trialIterations)
	target := float64(targetDuration) / perIteration
	iterations := int(target)
	if iterations < trialIterations {
		iterations = trialIterations
	}
	return PBKDF2Params{Iterations: iterations}, nil
}
