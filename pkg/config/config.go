// Package config binds the csync command surface to a validated
// Config struct. Grounded on the teacher's ParseFlags (flag.*Var bound
// directly into a struct field, flag.Usage overridden with a
// subcommand synopsis, a final Validate pass before the core ever sees the
// config), adapted from one flat flag set into one per subcommand
// since encrypt/decrypt/clean accept different option surfaces.
package config

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"csync/internal/crypto"
	"csync/pkg/policy"
)

// Subcommand identifies which of csync's operations a parsed Config
// drives.
type Subcommand string

const (
	SubcommandEncrypt Subcommand = "encrypt"
	SubcommandDecrypt Subcommand = "decrypt"
	SubcommandClean   Subcommand = "clean"
	SubcommandHelp    Subcommand = "help"
)

// Defaults mirror the external interface contract: ChaCha20 cipher,
// HMAC-SHA512 mac, Zstd level 3, Scrypt log_n=15/r=8/p=1, 512-byte
// master salt, 3-level spread, 4-second auto-tune target.
const (
	DefaultCipher        = "chacha20"
	DefaultMAC           = "hmac-sha512"
	DefaultCompressor    = "zstd"
	DefaultCompressLevel = 3
	DefaultKDF           = "scrypt"
	DefaultScryptLogN    = 15
	DefaultScryptR       = 8
	DefaultScryptP       = 1
	DefaultPBKDF2Iter    = 600_000
	DefaultSaltLen       = 512
	DefaultSpreadDepth   = 3
	DefaultKeyDerivTime  = 4 // seconds
)

// Config is the fully validated configuration the core operates from;
// it never re-parses flags or reads os.Args itself.
type Config struct {
	Subcommand Subcommand
	Source     string
	OutDir     string

	Cipher        string
	MAC           string
	Compressor    string
	CompressLevel int
	KDF           string

	KeyDerivTime     int
	KeyDerivByParams bool
	ScryptLogN       int
	ScryptR          int
	ScryptP          int
	PBKDF2Iterations int

	SaltLen     int
	SpreadDepth int
	Workers     int

	IncludeGlobs string
	ExcludeGlobs string
	PolicyPath   string

	DryRun    bool
	Verbose   bool
	Quiet     bool
	AssumeYes bool

	ActivePolicy *policy.Policy
}

func defaultConfig(sub Subcommand) *Config {
	return &Config{
		Subcommand:       sub,
		Cipher:           DefaultCipher,
		MAC:              DefaultMAC,
		Compressor:       DefaultCompressor,
		CompressLevel:    DefaultCompressLevel,
		KDF:              DefaultKDF,
		KeyDerivTime:     DefaultKeyDerivTime,
		ScryptLogN:       DefaultScryptLogN,
		ScryptR:          DefaultScryptR,
		ScryptP:          DefaultScryptP,
		PBKDF2Iterations: DefaultPBKDF2Iter,
		SaltLen:          DefaultSaltLen,
		SpreadDepth:      DefaultSpreadDepth,
		Workers:          runtime.NumCPU(),
	}
}

// ParseArgs parses argv (excluding the program name) into a Config.
// argv[0] selects the subcommand; the remainder is parsed by a flag
// set scoped to that subcommand's option surface.
func ParseArgs(appName string, argv []string) (*Config, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("missing subcommand: expected one of encrypt, decrypt, clean, help")
	}

	sub := Subcommand(argv[0])
	switch sub {
	case SubcommandHelp:
		return &Config{Subcommand: SubcommandHelp}, nil
	case SubcommandEncrypt:
		return parseEncrypt(appName, argv[1:])
	case SubcommandDecrypt:
		return parseDecrypt(appName, argv[1:])
	case SubcommandClean:
		return parseClean(appName, argv[1:])
	default:
		return nil, fmt.Errorf("unknown subcommand %q: expected one of encrypt, decrypt, clean, help", argv[0])
	}
}

func parseEncrypt(appName string, args []string) (*Config, error) {
	cfg := defaultConfig(SubcommandEncrypt)
	fs := flag.NewFlagSet(appName+" encrypt", flag.ContinueOnError)

	var outDir string
	fs.StringVar(&outDir, "out-dir", "", "Output directory for encrypted tree (required)")
	fs.StringVar(&cfg.Cipher, "cipher", cfg.Cipher, "Cipher: aes256cbc or chacha20")
	fs.StringVar(&cfg.MAC, "mac", cfg.MAC, "MAC algorithm: hmac-sha512")
	fs.StringVar(&cfg.Compressor, "compressor", cfg.Compressor, "Compressor: zstd")
	fs.IntVar(&cfg.CompressLevel, "level", cfg.CompressLevel, "Compression level 1-19")
	fs.StringVar(&cfg.KDF, "kdf", cfg.KDF, "Key derivation function: scrypt or pbkdf2")
	fs.IntVar(&cfg.KeyDerivTime, "key-deriv-time", cfg.KeyDerivTime, "Auto-tune target derivation time in seconds")
	fs.BoolVar(&cfg.KeyDerivByParams, "key-deriv-by-params", cfg.KeyDerivByParams, "Use explicit KDF parameters instead of auto-tuning")
	fs.IntVar(&cfg.ScryptLogN, "scrypt-log-n", cfg.ScryptLogN, "Scrypt log2(N) parameter, 10-24")
	fs.IntVar(&cfg.ScryptR, "scrypt-r", cfg.ScryptR, "Scrypt r parameter")
	fs.IntVar(&cfg.ScryptP, "scrypt-p", cfg.ScryptP, "Scrypt p parameter")
	fs.IntVar(&cfg.PBKDF2Iterations, "pbkdf2-iter", cfg.PBKDF2Iterations, "PBKDF2 iteration count")
	fs.IntVar(&cfg.SaltLen, "salt-len", cfg.SaltLen, "Master salt length in bytes")
	fs.IntVar(&cfg.SpreadDepth, "spread-depth", cfg.SpreadDepth, "Output tree spread depth")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Worker pool size")
	fs.StringVar(&cfg.IncludeGlobs, "include", "", "Comma-separated glob patterns to include")
	fs.StringVar(&cfg.ExcludeGlobs, "exclude", "", "Comma-separated glob patterns to exclude")
	fs.StringVar(&cfg.PolicyPath, "policy", "", "Path to a policy YAML scoping this run")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Plan without writing any output")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose diagnostic logging")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "Suppress non-error output")
	fs.BoolVar(&cfg.AssumeYes, "y", false, "Assume yes; skip confirmation prompts")
	fs.BoolVar(&cfg.AssumeYes, "yes", false, "Assume yes; skip confirmation prompts (alias)")

	setUsage(fs, appName, "encrypt <source> --out-dir <dir> [options]")
	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return nil, err
	}
	cfg.OutDir = outDir

	if len(positional) != 1 {
		return nil, fmt.Errorf("encrypt requires exactly one source directory argument")
	}
	cfg.Source = positional[0]

	if err := applyPolicy(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDecrypt(appName string, args []string) (*Config, error) {
	cfg := defaultConfig(SubcommandDecrypt)
	fs := flag.NewFlagSet(appName+" decrypt", flag.ContinueOnError)

	var outDir string
	fs.StringVar(&outDir, "out-dir", "", "Output directory to reconstruct the plaintext tree into (required)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Worker pool size")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose diagnostic logging")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "Suppress non-error output")

	setUsage(fs, appName, "decrypt <source> --out-dir <dir> [options]")
	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return nil, err
	}
	cfg.OutDir = outDir

	if len(positional) != 1 {
		return nil, fmt.Errorf("decrypt requires exactly one source directory argument")
	}
	cfg.Source = positional[0]

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseClean(appName string, args []string) (*Config, error) {
	cfg := defaultConfig(SubcommandClean)
	fs := flag.NewFlagSet(appName+" clean", flag.ContinueOnError)

	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Worker pool size")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose diagnostic logging")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "Suppress non-error output")

	setUsage(fs, appName, "clean <dir> [options]")
	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return nil, err
	}

	if len(positional) != 1 {
		return nil, fmt.Errorf("clean requires exactly one directory argument")
	}
	cfg.OutDir = positional[0]

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseInterleaved parses args with fs, accepting positional arguments
// before, between, or after flags, and returns the positionals in order.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func setUsage(fs *flag.FlagSet, appName, synopsis string) {
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s %s\n\nOptions:\n", appName, synopsis)
		fs.PrintDefaults()
	}
}

func applyPolicy(cfg *Config) error {
	if cfg.PolicyPath == "" {
		return nil
	}
	pol, err := policy.LoadFile(cfg.PolicyPath)
	if err != nil {
		return err
	}
	if len(pol.Include) > 0 {
		cfg.IncludeGlobs = strings.Join(pol.Include, ",")
	}
	if len(pol.Exclude) > 0 {
		cfg.ExcludeGlobs = strings.Join(pol.Exclude, ",")
	}
	if pol.Cipher != "" {
		cfg.Cipher = pol.Cipher
	}
	if pol.MAC != "" {
		cfg.MAC = pol.MAC
	}
	if pol.Compressor != "" {
		cfg.Compressor = pol.Compressor
	}
	if pol.CompressLevel != nil {
		cfg.CompressLevel = *pol.CompressLevel
	}
	if pol.KDF != "" {
		cfg.KDF = pol.KDF
	}
	if pol.SpreadDepth != nil {
		cfg.SpreadDepth = *pol.SpreadDepth
	}
	if pol.Workers != nil {
		cfg.Workers = *pol.Workers
	}
	if pol.DryRun != nil {
		cfg.DryRun = *pol.DryRun
	}
	if pol.AssumeYes != nil {
		cfg.AssumeYes = *pol.AssumeYes
	}
	cfg.ActivePolicy = pol
	return nil
}

// Validate enforces the tie-break rules from spec §4.1 plus basic
// argument sanity, so the core never receives an out-of-range
// parameter.
func (c *Config) Validate() error {
	if c.Subcommand != SubcommandClean && c.Source == "" {
		return fmt.Errorf("source directory is required")
	}
	if c.OutDir == "" {
		return fmt.Errorf("--out-dir is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}

	if c.Subcommand != SubcommandEncrypt {
		return nil
	}

	if _, err := crypto.ParseCipherID(c.Cipher); err != nil {
		return err
	}
	if _, err := crypto.ParseMACID(c.MAC); err != nil {
		return err
	}
	if _, err := crypto.ParseCompressorID(c.Compressor); err != nil {
		return err
	}
	if err := crypto.ValidateCompressionLevel(c.CompressLevel); err != nil {
		return err
	}
	kdfID, err := crypto.ParseKDFID(c.KDF)
	if err != nil {
		return err
	}
	if kdfID == crypto.KDFScrypt && c.KeyDerivByParams {
		if err := (crypto.ScryptParams{LogN: c.ScryptLogN, R: c.ScryptR, P: c.ScryptP}).Validate(); err != nil {
			return err
		}
	}
	if kdfID == crypto.KDFPBKDF2 && c.KeyDerivByParams {
		if err := (crypto.PBKDF2Params{Iterations: c.PBKDF2Iterations}).Validate(); err != nil {
			return err
		}
	}
	if c.SaltLen <= 0 {
		return fmt.Errorf("salt-len must be > 0")
	}
	if c.SpreadDepth < 0 {
		return fmt.Errorf("spread-depth must be >= 0")
	}
	if c.KeyDerivTime <= 0 && !c.KeyDerivByParams {
		return fmt.Errorf("key-deriv-time must be > 0")
	}
	return nil
}

// SplitGlobs splits a comma-separated glob list, trimming whitespace
// and dropping empty entries.
func SplitGlobs(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
