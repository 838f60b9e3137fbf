package syncer

import (
	"os"

	"csync/internal/crypto"
	"csync/internal/csyncerr"
	"csync/internal/fs"
	"csync/internal/keyschedule"
	"csync/internal/pipeline"
	"csync/internal/rng"
)

// contentSaltLen sizes the per-file content salt. The nonce length
// depends on the cipher (see crypto.NonceSize); the content salt
// length is fixed so HKDF expansion input is uniform
// regardless of cipher choice.
const contentSaltLen = 32

var sharedRNG = rng.New()

func createOrUpdateUnit(unit Unit, set *keyschedule.Set, params EncryptionParams, cancel *Cancel) (int64, int64, error) {
	cipherID := crypto.CipherID(params.CipherID)
	macID := crypto.MACID(params.MACID)
	compressorID := crypto.CompressorID(params.CompressorID)

	contentSalt, err := sharedRNG.Salt(contentSaltLen)
	if err != nil {
		return 0, 0, err
	}
	nonce, err := sharedRNG.Nonce(crypto.NonceSize(cipherID))
	if err != nil {
		return 0, 0, err
	}

	fileKeys, err := pipeline.DeriveFileKeys(set, contentSalt)
	if err != nil {
		return 0, 0, err
	}

	encryptedPath, err := encryptRelPath(set, contentSalt, unit.RelPath)
	if err != nil {
		return 0, 0, err
	}

	encParams := pipeline.EncryptParams{
		CipherID:      cipherID,
		MACID:         macID,
		CompressorID:  compressorID,
		CompressLevel: params.CompressLevel,
		Nonce:         nonce,
		ContentSalt:   contentSalt,
		EncryptedPath: encryptedPath,
		SizeHint:      uint64(unit.Size),
		ModTimeHint:   unit.MTime,
	}

	src, err := os.Open(unit.SourceAbsPath)
	if err != nil {
		return 0, 0, csyncerr.Wrap(csyncerr.IoError, unit.SourceAbsPath, err)
	}
	defer src.Close()

	var bytesOut int64
	writeErr := fs.StageAndCommit(unit.OutputPath, func(f *os.File) error {
		counting := &countingWriter{w: f}
		cancelFn := func() bool { return cancel != nil && cancel.Requested() }
		if err := pipeline.Encrypt(counting, src, encParams, fileKeys, cancelFn); err != nil {
			return err
		}
		bytesOut = counting.n
		return nil
	})
	if writeErr != nil {
		return unit.Size, 0, csyncerr.Wrap(errKindFor(writeErr), unit.SourceAbsPath, writeErr)
	}

	return unit.Size, bytesOut, nil
}

// pathCipherNonce is fixed and all-zero: FilePathKey already makes the
// key unique per file via content_salt, so the (key, nonce) pair this
// ChaCha20 instance uses is never repeated across files.
var pathCipherNonce = make([]byte, 12)

// encryptRelPath produces the per-file header's encrypted-path field.
// The key is derived from content_salt alone (FilePathKey), which is
// already known before the path is, so decrypt can recover the path
// without a chicken-and-egg dependency on the plaintext it is trying
// to decrypt.
func encryptRelPath(set *keyschedule.Set, contentSalt []byte, relPath string) ([]byte, error) {
	pathKey, err := keyschedule.FilePathKey(set, contentSalt, 32)
	if err != nil {
		return nil, err
	}
	stage, err := crypto.NewEncryptCipherStage(crypto.CipherChaCha20, pathKey, pathCipherNonce)
	if err != nil {
		return nil, err
	}
	return stage.Push([]byte(relPath))
}

// DecryptRelPath inverts encryptRelPath: given the content_salt read
// from a file's own header, it recovers the original relative path
// from the header's encrypted-path field.
func DecryptRelPath(set *keyschedule.Set, contentSalt, encryptedPath []byte) (string, error) {
	pathKey, err := keyschedule.FilePathKey(set, contentSalt, 32)
	if err != nil {
		return "", err
	}
	stage, err := crypto.NewDecryptCipherStage(crypto.CipherChaCha20, pathKey, pathCipherNonce)
	if err != nil {
		return "", err
	}
	out, err := stage.Push(encryptedPath)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func errKindFor(err error) csyncerr.Kind {
	if ce, ok := err.(*csyncerr.Error); ok {
		return ce.Kind
	}
	return csyncerr.IoError
}

type countingWriter struct {
	w interface{ Write([]byte) (int, error) }
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
