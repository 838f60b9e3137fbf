// Package csyncerr defines the typed error taxonomy shared across csync's
// core packages, so that cmd/csync can map a failure to the exit codes in
// the external interface contract without string-matching error text.
package csyncerr

import "fmt"

// Kind identifies the category of a csync failure.
type Kind int

const (
	_ Kind = iota
	ConfigInvalid
	PasswordMismatch
	ManifestMissing
	ManifestConflict
	ManifestCorrupt
	AuthenticationFailed
	IoError
	CryptoError
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "ConfigInvalid"
	case PasswordMismatch:
		return "PasswordMismatch"
	case ManifestMissing:
		return "ManifestMissing"
	case ManifestConflict:
		return "ManifestConflict"
	case ManifestCorrupt:
		return "ManifestCorrupt"
	case AuthenticationFailed:
		return "AuthenticationFailed"
	case IoError:
		return "IoError"
	case CryptoError:
		return "CryptoError"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is a csync failure carrying its kind and, where applicable, the
// offending filesystem path.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a bare Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf("%s", msg)}
}

// Wrap attaches a kind and offending path to an underlying error.
func Wrap(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// ExitCode maps a Kind to the process exit code from the external
// interface contract: 0 success, 1 user/argument error, 2 password
// error, 3 authentication/manifest error. It never returns 4 (partial
// failure); cmd/csync assigns that code from a run's per-unit failures.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *Error
	if !asError(err, &ce) {
		return 1
	}
	switch ce.Kind {
	case ConfigInvalid:
		return 1
	case PasswordMismatch:
		return 2
	case ManifestMissing, ManifestConflict, ManifestCorrupt, AuthenticationFailed:
		return 3
	case Cancelled:
		return 1
	default:
		return 1
	}
}

func asError(err error, target **Error) bool {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			*target = ce
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
