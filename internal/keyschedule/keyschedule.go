// Package keyschedule implements C3: deriving a master key from a
// password and master salt, and deriving the three domain-separated
// subkeys (encryption, MAC, filename) from it. Grounded on the
// sequential SubkeyReader pattern in Picocrypt-NG's kdf.go, adapted
// from a single io.Reader drained three times into explicit labeled
// HKDF expansions so callers can request subkeys independently.
package keyschedule

import (
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"

	"csync/internal/crypto"
	"csync/internal/csyncerr"
)

// Labels domain-separate the three subkeys derived from one master
// key. They are ASCII and fixed: changing them would silently change
// every derived subkey for every existing manifest.
const (
	labelEnc  = "csync-subkey-enc"
	labelMAC  = "csync-subkey-mac"
	labelName = "csync-subkey-name"
)

// The subkey sizes are the lengths handed to each HKDF expansion.
// AES-256 and ChaCha20 both want a 32-byte key; HMAC-SHA512 accepts any
// length but 64 bytes matches its output size.
const (
	encSubkeySize  = 32
	macSubkeySize  = 64
	nameSubkeySize = 32
)

// verifierConstant is the fixed public message the password verifier
// MACs. It carries no secret information; its only role is to give
// decrypt something to check k_mac against before touching any file.
var verifierConstant = []byte("csync-password-verifier-v1")

// Set holds one session's derived key material. It is constructed once
// per run and shared read-only by every syncer worker.
type Set struct {
	MasterKey []byte
	Enc       []byte
	MAC       []byte
	Name      []byte
}

// Derive runs masterKey through three labeled HKDF-SHA512 expansions to
// produce k_enc, k_mac, k_name. masterKey itself is never written to
// disk; only the manifest fields that regenerate it (kdf params, salt)
// persist.
func Derive(masterKey []byte) (*Set, error) {
	enc, err := expand(masterKey, labelEnc, encSubkeySize)
	if err != nil {
		return nil, err
	}
	mac, err := expand(masterKey, labelMAC, macSubkeySize)
	if err != nil {
		return nil, err
	}
	name, err := expand(masterKey, labelName, nameSubkeySize)
	if err != nil {
		return nil, err
	}
	return &Set{MasterKey: masterKey, Enc: enc, MAC: mac, Name: name}, nil
}

func expand(masterKey []byte, label string, size int) ([]byte, error) {
	reader := hkdf.New(sha512.New, masterKey, nil, []byte(label))
	out := make([]byte, size)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	return out, nil
}

// Bootstrap derives the master key from a password and master salt
// using the KDF and parameters recorded in (or about to be written to)
// the Root Manifest, then derives the subkey Set from it.
func Bootstrap(password []byte, masterSalt []byte, kdfID crypto.KDFID, scryptParams crypto.ScryptParams, pbkdf2Params crypto.PBKDF2Params) (*Set, error) {
	masterKey, err := crypto.DeriveMasterKey(kdfID, password, masterSalt, scryptParams, pbkdf2Params)
	if err != nil {
		return nil, csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	return Derive(masterKey)
}

// Verifier computes the password verifier stored in the Root Manifest:
// an HMAC-SHA512 tag over verifierConstant keyed by k_mac.
func Verifier(set *Set) ([]byte, error) {
	m, err := crypto.NewMAC(crypto.MACHMACSHA512, set.MAC)
	if err != nil {
		return nil, err
	}
	if _, err := m.Write(verifierConstant); err != nil {
		return nil, err
	}
	return m.Sum(), nil
}

// fileEncLabel and filePathLabel seed the per-file HKDF pass that
// combines a subkey with a file's content_salt, so that two files
// never reuse identical key material even if their nonces were ever
// to collide. filePathLabel derives a key for encrypting the header's
// path field specifically; it is deliberately distinct from
// fileEncLabel so the body cipher and the path cipher never share key
// material.
const (
	fileEncLabel  = "csync-file-enc"
	filePathLabel = "csync-file-path"
)

// FileEncryptKey derives the per-file body encryption key by running
// k_enc and a file's content_salt through a further HKDF expansion,
// per the "content_salt feeds a second KDF pass" requirement for
// per-file encryption material.
func FileEncryptKey(set *Set, contentSalt []byte, size int) ([]byte, error) {
	return expandFileKey(set.Enc, contentSalt, fileEncLabel, size)
}

// FilePathKey derives the per-file key used to encrypt the original
// relative path stored in the header. Because content_salt is random
// per file, this key is unique per file even though the cipher is
// then run with a fixed (all-zero) nonce — there is no key/nonce pair
// reuse across files, and decrypt can derive this key from the
// header's own content_salt field before it knows the path, which a
// path-derived nonce could never allow.
func FilePathKey(set *Set, contentSalt []byte, size int) ([]byte, error) {
	return expandFileKey(set.Enc, contentSalt, filePathLabel, size)
}

func expandFileKey(subkey, contentSalt []byte, label string, size int) ([]byte, error) {
	reader := hkdf.New(sha512.New, subkey, contentSalt, []byte(label))
	out := make([]byte, size)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	return out, nil
}

// CheckVerifier recomputes the verifier from set and compares it in
// constant time against storedVerifier. A mismatch means the supplied
// password does not match the one the manifest was created with.
func CheckVerifier(set *Set, storedVerifier []byte) error {
	computed, err := Verifier(set)
	if err != nil {
		return err
	}
	if !crypto.VerifyTag(computed, storedVerifier) {
		return csyncerr.New(csyncerr.PasswordMismatch, "password does not match this output directory")
	}
	return nil
}
