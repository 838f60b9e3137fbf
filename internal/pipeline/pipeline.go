// Package pipeline implements C4: composing the primitive adapters
// into an encrypt-path and decrypt-path stream. Grounded on the
// teacher's EncryptStream/DecryptStream chunked-read loop in
// internal/crypto/crypto.go, generalized from a single hardcoded
// cipher/compressor pair into the tagged-variant composition this
// codebase's primitive adapters expose.
package pipeline

import (
	"io"
	"os"

	"csync/internal/crypto"
	"csync/internal/csyncerr"
	"csync/internal/header"
	"csync/internal/keyschedule"
)

// ChunkSize is the unit of I/O the encrypt and decrypt paths read and
// write in, and the granularity at which cancellation is observed.
const ChunkSize = 256 * 1024

// FileKeys holds the per-file key material derived once before a
// pipeline runs: the file's own encryption key (from content_salt) and
// the shared MAC subkey.
type FileKeys struct {
	EncKey []byte
	MACKey []byte
}

// DeriveFileKeys produces the per-file encryption key from the session
// key set and this file's content_salt, per spec §4.3's "content_salt
// feeds a second KDF pass" requirement.
func DeriveFileKeys(set *keyschedule.Set, contentSalt []byte) (FileKeys, error) {
	encKey, err := keyschedule.FileEncryptKey(set, contentSalt, 32)
	if err != nil {
		return FileKeys{}, err
	}
	return FileKeys{EncKey: encKey, MACKey: set.MAC}, nil
}

// EncryptParams describes one file's pipeline configuration, already
// resolved from the manifest/config at construction time.
type EncryptParams struct {
	CipherID        crypto.CipherID
	MACID           crypto.MACID
	CompressorID    crypto.CompressorID
	CompressLevel   int
	Nonce           []byte
	ContentSalt     []byte
	EncryptedPath   []byte
	SizeHint        uint64
	ModTimeHint     int64
}

// CancelFunc is polled by Encrypt at each chunk boundary while it
// reads the source; it is the only cooperative cancellation mechanism
// inside the pipeline. Decrypt takes no CancelFunc.
type CancelFunc func() bool

// Encrypt reads plaintext from src, runs it through
// Compress -> Encrypt -> TeeIntoMac, and writes the header, ciphertext
// body, and trailing MAC tag to dst in order. The header is included
// in the MAC input as associated data.
func Encrypt(dst io.Writer, src io.Reader, params EncryptParams, keys FileKeys, cancelled CancelFunc) error {
	compressStage, err := crypto.NewCompressEncodeStage(params.CompressLevel)
	if err != nil {
		return csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	encryptStage, err := crypto.NewEncryptCipherStage(params.CipherID, keys.EncKey, params.Nonce)
	if err != nil {
		return csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	mac, err := crypto.NewMAC(params.MACID, keys.MACKey)
	if err != nil {
		return csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}

	h := header.Header{
		CipherID:      params.CipherID,
		MACID:         params.MACID,
		CompressorID:  params.CompressorID,
		Nonce:         params.Nonce,
		ContentSalt:   params.ContentSalt,
		EncryptedPath: params.EncryptedPath,
		SizeHint:      params.SizeHint,
		ModTimeHint:   params.ModTimeHint,
	}
	headerBytes := h.Encode()
	if _, err := dst.Write(headerBytes); err != nil {
		return csyncerr.Wrap(csyncerr.IoError, "", err)
	}
	mac.Write(headerBytes)

	buf := make([]byte, ChunkSize)
	var plaintextBuf []byte
	for {
		if cancelled != nil && cancelled() {
			return csyncerr.New(csyncerr.Cancelled, "encryption cancelled")
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			plaintextBuf = append(plaintextBuf, buf[:n]...)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return csyncerr.Wrap(csyncerr.IoError, "", readErr)
		}
	}

	compressed, err := compressStage.Push(plaintextBuf)
	if err != nil {
		return csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	if err := writeEncryptedChunk(dst, encryptStage, mac, compressed); err != nil {
		return err
	}
	compressedFinal, err := compressStage.Finalize()
	if err != nil {
		return csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	if err := writeEncryptedChunk(dst, encryptStage, mac, compressedFinal); err != nil {
		return err
	}

	cipherFinal, err := encryptStage.Finalize()
	if err != nil {
		return csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	if len(cipherFinal) > 0 {
		if _, err := dst.Write(cipherFinal); err != nil {
			return csyncerr.Wrap(csyncerr.IoError, "", err)
		}
		mac.Write(cipherFinal)
	}

	tag := mac.Sum()
	if _, err := dst.Write(tag); err != nil {
		return csyncerr.Wrap(csyncerr.IoError, "", err)
	}
	return nil
}

func writeEncryptedChunk(dst io.Writer, encryptStage crypto.Stage, mac crypto.MAC, plaintext []byte) error {
	if len(plaintext) == 0 {
		return nil
	}
	ciphertext, err := encryptStage.Push(plaintext)
	if err != nil {
		return csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	if len(ciphertext) == 0 {
		return nil
	}
	if _, err := dst.Write(ciphertext); err != nil {
		return csyncerr.Wrap(csyncerr.IoError, "", err)
	}
	mac.Write(ciphertext)
	return nil
}

// DecryptResult carries the plaintext and the header fields the syncer
// needs (the original relative path, size, mtime) once decryption
// has verified successfully.
type DecryptResult struct {
	Header    header.Header
	Plaintext []byte
}

// Decrypt reads an entire csync file from src, verifies its MAC tag
// over header+ciphertext before releasing any plaintext, and only then
// decrypts and decompresses. Per spec §4.4, the body is never streamed
// twice: the single read below both feeds the MAC and buffers the
// ciphertext, and decryption/decompression only runs after the tag
// check succeeds.
//
// The per-file encryption key cannot be supplied up front the way the
// MAC key can: it is derived from content_salt, a field that only
// becomes available once the header has been decoded. Decrypt takes
// the session key Set and derives the body key itself, after the
// header is in hand and before the tag check trusts anything it says.
func Decrypt(src io.Reader, set *keyschedule.Set) (DecryptResult, error) {
	h, ciphertext, err := verifyTag(src, set.MAC)
	if err != nil {
		return DecryptResult{}, err
	}

	encKey, err := DeriveFileKeys(set, h.ContentSalt)
	if err != nil {
		return DecryptResult{}, err
	}

	decryptStage, err := crypto.NewDecryptCipherStage(h.CipherID, encKey.EncKey, h.Nonce)
	if err != nil {
		return DecryptResult{}, csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	compressed, err := decryptStage.Push(ciphertext)
	if err != nil {
		return DecryptResult{}, csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	cipherTail, err := decryptStage.Finalize()
	if err != nil {
		return DecryptResult{}, csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	compressed = append(compressed, cipherTail...)

	decompressStage := crypto.NewDecompressDecodeStage()
	plaintext, err := decompressStage.Push(compressed)
	if err != nil {
		return DecryptResult{}, csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	plainTail, err := decompressStage.Finalize()
	if err != nil {
		return DecryptResult{}, csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	plaintext = append(plaintext, plainTail...)

	return DecryptResult{Header: h, Plaintext: plaintext}, nil
}

// verifyTag reads the header and the remaining ciphertext+tag bytes
// from src, verifies the MAC, and returns the header plus the
// ciphertext body (tag stripped) on success. It is the single place
// both Decrypt and VerifyOnly check authenticity, so a planning-time
// header read and a full decrypt can never disagree about what counts
// as a valid file.
func verifyTag(src io.Reader, macKey []byte) (header.Header, []byte, error) {
	h, err := header.Decode(src)
	if err != nil {
		return header.Header{}, nil, csyncerr.Wrap(csyncerr.ManifestCorrupt, "", err)
	}

	rest, err := io.ReadAll(src)
	if err != nil {
		return header.Header{}, nil, csyncerr.Wrap(csyncerr.IoError, "", err)
	}
	if len(rest) < header.TagSize {
		return header.Header{}, nil, csyncerr.New(csyncerr.AuthenticationFailed, "file too short to contain a mac tag")
	}
	ciphertext := rest[:len(rest)-header.TagSize]
	trailerTag := rest[len(rest)-header.TagSize:]

	mac, err := crypto.NewMAC(h.MACID, macKey)
	if err != nil {
		return header.Header{}, nil, csyncerr.Wrap(csyncerr.CryptoError, "", err)
	}
	mac.Write(h.Encode())
	mac.Write(ciphertext)

	if !crypto.VerifyTag(mac.Sum(), trailerTag) {
		return header.Header{}, nil, csyncerr.New(csyncerr.AuthenticationFailed, "mac verification failed")
	}
	return h, ciphertext, nil
}

// VerifyOnly checks an existing output file's MAC tag and returns its
// header without decrypting or decompressing the body. The planner
// uses this to compare a candidate file's authenticated (mtime, size)
// hints against the source tree far more cheaply than a full decrypt,
// and the clean operation uses it to decide whether a file survives.
func VerifyOnly(src io.Reader, macKey []byte) (header.Header, error) {
	h, _, err := verifyTag(src, macKey)
	return h, err
}

// DecryptFile opens path, runs Decrypt, and deletes the partial output
// at outPath on authentication failure so no tampered plaintext is ever
// left on disk.
func DecryptFile(path string, set *keyschedule.Set, outPath string) (DecryptResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return DecryptResult{}, csyncerr.Wrap(csyncerr.IoError, path, err)
	}
	defer f.Close()

	result, err := Decrypt(f, set)
	if err != nil {
		if outPath != "" {
			_ = os.Remove(outPath)
		}
		if ce, ok := err.(*csyncerr.Error); ok && ce.Path == "" {
			ce.Path = path
		}
		return DecryptResult{}, err
	}
	return result, nil
}
