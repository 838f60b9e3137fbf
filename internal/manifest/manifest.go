// Package manifest implements C7: the single per-output-directory
// record describing algorithm choices and holding the password
// verifier. Grounded on the teacher's atomic temp-file-then-rename
// persistence pattern (internal/fs), adapted from a ransomware run's
// one-shot config dump to a record that is read back and treated as
// authoritative on every subsequent run.
package manifest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"csync/internal/crypto"
	"csync/internal/csyncerr"
)

// Filename is the fixed sentinel name of the manifest file at an
// output directory's root.
const Filename = "csync.manifest"

const formatVersion = 1

// Manifest is the persisted, self-describing record read back on
// every run after the first. Decrypt reconstructs the Derived Key Set
// from nothing but this struct plus the password.
type Manifest struct {
	CipherID       crypto.CipherID
	MACID          crypto.MACID
	CompressorID   crypto.CompressorID
	CompressLevel  int
	KDFID          crypto.KDFID
	ScryptParams   crypto.ScryptParams
	PBKDF2Params   crypto.PBKDF2Params
	MasterSalt     []byte
	SaltLen        int
	SpreadDepth    int
	PasswordVerifier []byte
}

// Path returns the absolute path of the manifest file under outDir.
func Path(outDir string) string {
	return filepath.Join(outDir, Filename)
}

// Encode serializes m in a fixed field order mirroring the per-file
// header's length-prefixed layout.
func (m Manifest) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(formatVersion)
	buf.WriteByte(byte(m.CipherID))
	buf.WriteByte(byte(m.MACID))
	buf.WriteByte(byte(m.CompressorID))

	var scratch [8]byte
	putUint32 := func(v uint32) {
		binary.BigEndian.PutUint32(scratch[:4], v)
		buf.Write(scratch[:4])
	}
	putUint32(uint32(m.CompressLevel))
	buf.WriteByte(byte(m.KDFID))
	putUint32(uint32(m.ScryptParams.LogN))
	putUint32(uint32(m.ScryptParams.R))
	putUint32(uint32(m.ScryptParams.P))
	putUint32(uint32(m.PBKDF2Params.Iterations))
	putUint32(uint32(m.SaltLen))
	putUint32(uint32(m.SpreadDepth))

	writeLenPrefixed(&buf, m.MasterSalt)
	writeLenPrefixed(&buf, m.PasswordVerifier)

	return buf.Bytes()
}

func writeLenPrefixed(buf *bytes.Buffer, field []byte) {
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(field)))
	buf.Write(lenBytes[:])
	buf.Write(field)
}

// Decode parses a Manifest previously produced by Encode.
func Decode(r io.Reader) (Manifest, error) {
	var versionByte [1]byte
	if _, err := io.ReadFull(r, versionByte[:]); err != nil {
		return Manifest{}, fmt.Errorf("read format version: %w", err)
	}
	if versionByte[0] != formatVersion {
		return Manifest{}, fmt.Errorf("unsupported manifest format version %d", versionByte[0])
	}

	var idBytes [3]byte
	if _, err := io.ReadFull(r, idBytes[:]); err != nil {
		return Manifest{}, fmt.Errorf("read algorithm ids: %w", err)
	}

	readUint32 := func(name string) (uint32, error) {
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("read %s: %w", name, err)
		}
		return binary.BigEndian.Uint32(b[:]), nil
	}

	compressLevel, err := readUint32("compress_level")
	if err != nil {
		return Manifest{}, err
	}

	var kdfByte [1]byte
	if _, err := io.ReadFull(r, kdfByte[:]); err != nil {
		return Manifest{}, fmt.Errorf("read kdf id: %w", err)
	}

	logN, err := readUint32("scrypt_log_n")
	if err != nil {
		return Manifest{}, err
	}
	rParam, err := readUint32("scrypt_r")
	if err != nil {
		return Manifest{}, err
	}
	pParam, err := readUint32("scrypt_p")
	if err != nil {
		return Manifest{}, err
	}
	iterations, err := readUint32("pbkdf2_iterations")
	if err != nil {
		return Manifest{}, err
	}
	saltLen, err := readUint32("salt_len")
	if err != nil {
		return Manifest{}, err
	}
	spreadDepth, err := readUint32("spread_depth")
	if err != nil {
		return Manifest{}, err
	}

	masterSalt, err := readLenPrefixed(r, "master_salt")
	if err != nil {
		return Manifest{}, err
	}
	verifier, err := readLenPrefixed(r, "password_verifier")
	if err != nil {
		return Manifest{}, err
	}

	return Manifest{
		CipherID:      crypto.CipherID(idBytes[0]),
		MACID:         crypto.MACID(idBytes[1]),
		CompressorID:  crypto.CompressorID(idBytes[2]),
		CompressLevel: int(compressLevel),
		KDFID:         crypto.KDFID(kdfByte[0]),
		ScryptParams: crypto.ScryptParams{
			LogN: int(logN),
			R:    int(rParam),
			P:    int(pParam),
		},
		PBKDF2Params:     crypto.PBKDF2Params{Iterations: int(iterations)},
		MasterSalt:       masterSalt,
		SaltLen:          int(saltLen),
		SpreadDepth:      int(spreadDepth),
		PasswordVerifier: verifier,
	}, nil
}

const maxFieldLen = 1 << 16

func readLenPrefixed(r io.Reader, name string) ([]byte, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return nil, fmt.Errorf("read %s length: %w", name, err)
	}
	n := binary.BigEndian.Uint32(lenBytes[:])
	if n > maxFieldLen {
		return nil, fmt.Errorf("%s length %d exceeds sanity bound", name, n)
	}
	field := make([]byte, n)
	if _, err := io.ReadFull(r, field); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return field, nil
}

// Load reads and parses the manifest from outDir. A missing file is
// reported as ManifestMissing so callers can distinguish "first run,
// create one" from "corrupt, abort".
func Load(outDir string) (Manifest, error) {
	f, err := os.Open(Path(outDir))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, csyncerr.Wrap(csyncerr.ManifestMissing, Path(outDir), err)
		}
		return Manifest{}, csyncerr.Wrap(csyncerr.IoError, Path(outDir), err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return Manifest{}, csyncerr.Wrap(csyncerr.ManifestCorrupt, Path(outDir), err)
	}
	return m, nil
}

// Save writes m to outDir atomically: a temp file in the same
// directory, fsync'd, then renamed into place, so a crash mid-write
// never leaves a torn manifest.
func Save(outDir string, m Manifest) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return csyncerr.Wrap(csyncerr.IoError, outDir, err)
	}

	tmp, err := os.CreateTemp(outDir, "."+Filename+".tmp-*")
	if err != nil {
		return csyncerr.Wrap(csyncerr.IoError, outDir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(m.Encode()); err != nil {
		tmp.Close()
		return csyncerr.Wrap(csyncerr.IoError, tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return csyncerr.Wrap(csyncerr.IoError, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return csyncerr.Wrap(csyncerr.IoError, tmpPath, err)
	}
	if err := os.Rename(tmpPath, Path(outDir)); err != nil {
		return csyncerr.Wrap(csyncerr.IoError, Path(outDir), err)
	}
	return nil
}

// Reconcile compares the manifest loaded from disk against the
// algorithm choices requested on the command line. Matching fields are
// accepted silently; a mismatch on any algorithm/spread-depth choice
// either adopts the stored value (adoptStored=true, the default) or
// returns ManifestConflict.
func Reconcile(stored, requested Manifest, adoptStored bool) (Manifest, error) {
	conflicts := []string{}
	if stored.CipherID != requested.CipherID {
		conflicts = append(conflicts, "cipher")
	}
	if stored.MACID != requested.MACID {
		conflicts = append(conflicts, "mac")
	}
	if stored.CompressorID != requested.CompressorID {
		conflicts = append(conflicts, "compressor")
	}
	if stored.SpreadDepth != requested.SpreadDepth {
		conflicts = append(conflicts, "spread-depth")
	}

	if len(conflicts) == 0 {
		return stored, nil
	}
	if adoptStored {
		return stored, nil
	}
	return Manifest{}, csyncerr.New(csyncerr.ManifestConflict, fmt.Sprintf("manifest disagrees with requested options: %v", conflicts))
}
