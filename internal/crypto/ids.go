// Package crypto implements the primitive adapters (C1): a uniform
// streaming interface over every cipher, MAC, compressor, and KDF csync
// uses. Each primitive is a tagged variant dispatched once when a
// pipeline or key schedule is constructed, never per chunk, per
// DESIGN NOTES §9 of the specification.
package crypto

import "fmt"

// CipherID is a closed, tagged choice of symmetric cipher.
type CipherID uint8

const (
	CipherAES256CBC CipherID = iota + 1
	CipherChaCha20
)

func (c CipherID) String() string {
	switch c {
	case CipherAES256CBC:
		return "aes256cbc"
	case CipherChaCha20:
		return "chacha20"
	default:
		return "unknown"
	}
}

// ParseCipherID parses a cipher name from the command surface or a
// persisted manifest back into a CipherID.
func ParseCipherID(name string) (CipherID, error) {
	switch name {
	case "aes256cbc":
		return CipherAES256CBC, nil
	case "chacha20":
		return CipherChaCha20, nil
	default:
		return 0, fmt.Errorf("unsupported cipher %q", name)
	}
}

// MACID is a closed, tagged choice of authentication primitive.
type MACID uint8

const (
	MACHMACSHA512 MACID = iota + 1
)

func (m MACID) String() string {
	switch m {
	case MACHMACSHA512:
		return "hmac-sha512"
	default:
		return "unknown"
	}
}

// ParseMACID parses a MAC name.
func ParseMACID(name string) (MACID, error) {
	switch name {
	case "hmac-sha512":
		return MACHMACSHA512, nil
	default:
		return 0, fmt.Errorf("unsupported mac %q", name)
	}
}

// CompressorID is a closed, tagged choice of compression algorithm.
type CompressorID uint8

const (
	CompressorZstd CompressorID = iota + 1
)

func (c CompressorID) String() string {
	switch c {
	case CompressorZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseCompressorID parses a compressor name.
func ParseCompressorID(name string) (CompressorID, error) {
	switch name {
	case "zstd":
		return CompressorZstd, nil
	default:
		return 0, fmt.Errorf("unsupported compressor %q", name)
	}
}

// KDFID is a closed, tagged choice of key-derivation function.
type KDFID uint8

const (
	KDFScrypt KDFID = iota + 1
	KDFPBKDF2
)

func (k KDFID) String() string {
	switch k {
	case KDFScrypt:
		return "scrypt"
	case KDFPBKDF2:
		return "pbkdf2"
	default:
		return "unknown"
	}
}

// ParseKDFID parses a KDF name.
func ParseKDFID(name string) (KDFID, error) {
	switch name {
	case "scrypt":
		return KDFScrypt, nil
	case "pbkdf2":
		return KDFPBKDF2, nil
	default:
		return 0, fmt.Errorf("unsupported kdf %q", name)
	}
}

// NonceSize returns the nonce/IV length required by a cipher.
func NonceSize(id CipherID) int {
	switch id {
	case CipherAES256CBC:
		return 16 // block size, used as the CBC IV
	case CipherChaCha20:
		return 12 // IETF chacha20 nonce
	default:
		return 0
	}
}
