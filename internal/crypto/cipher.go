package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// NewEncryptCipherStage returns a Stage that encrypts pushed plaintext
// chunks with the named cipher, a 32-byte key, and a nonce/IV sized per
// NonceSize(id).
func NewEncryptCipherStage(id CipherID, key, nonce []byte) (Stage, error) {
	switch id {
	case CipherAES256CBC:
		return newCBCEncryptStage(key, nonce)
	case CipherChaCha20:
		return newChaChaStage(key, nonce)
	default:
		return nil, fmt.Errorf("unsupported cipher id %d", id)
	}
}

// NewDecryptCipherStage is the inverse of NewEncryptCipherStage.
func NewDecryptCipherStage(id CipherID, key, nonce []byte) (Stage, error) {
	switch id {
	case CipherAES256CBC:
		return newCBCDecryptStage(key, nonce)
	case CipherChaCha20:
		return newChaChaStage(key, nonce) // ChaCha20 is its own inverse
	default:
		return nil, fmt.Errorf("unsupported cipher id %d", id)
	}
}

// cbcEncryptStage encrypts in whole-block increments as data accumulates,
// holding back a sub-block remainder until Finalize applies PKCS#7
// padding to the last block. cipher.BlockMode carries the chaining state
// across calls to CryptBlocks, so encrypting in increments is equivalent
// to encrypting the whole message at once.
type cbcEncryptStage struct {
	mode    cipher.BlockMode
	pending []byte
}

func newCBCEncryptStage(key, iv []byte) (Stage, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("construct aes cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("aes256cbc iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &cbcEncryptStage{mode: cipher.NewCBCEncrypter(block, iv)}, nil
}

func (s *cbcEncryptStage) Push(chunk []byte) ([]byte, error) {
	s.pending = append(s.pending, chunk...)
	wholeLen := len(s.pending) - len(s.pending)%aes.BlockSize
	if wholeLen == 0 {
		return nil, nil
	}
	out := make([]byte, wholeLen)
	s.mode.CryptBlocks(out, s.pending[:wholeLen])
	s.pending = append([]byte(nil), s.pending[wholeLen:]...)
	return out, nil
}

func (s *cbcEncryptStage) Finalize() ([]byte, error) {
	padded := pkcs7Pad(s.pending, aes.BlockSize)
	out := make([]byte, len(padded))
	s.mode.CryptBlocks(out, padded)
	return out, nil
}

type cbcDecryptStage struct {
	mode    cipher.BlockMode
	pending []byte
}

func newCBCDecryptStage(key, iv []byte) (Stage, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("construct aes cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("aes256cbc iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &cbcDecryptStage{mode: cipher.NewCBCDecrypter(block, iv)}, nil
}

// Push withholds the final block: PKCS#7 unpadding can only happen once
// we know which block is last, so decryption output always trails the
// ciphertext by up to one block until Finalize.
func (s *cbcDecryptStage) Push(chunk []byte) ([]byte, error) {
	s.pending = append(s.pending, chunk...)
	if len(s.pending) <= aes.BlockSize {
		return nil, nil
	}
	decryptLen := len(s.pending) - aes.BlockSize
	decryptLen -= decryptLen % aes.BlockSize
	if decryptLen == 0 {
		return nil, nil
	}
	out := make([]byte, decryptLen)
	s.mode.CryptBlocks(out, s.pending[:decryptLen])
	s.pending = append([]byte(nil), s.pending[decryptLen:]...)
	return out, nil
}

func (s *cbcDecryptStage) Finalize() ([]byte, error) {
	if len(s.pending) == 0 || len(s.pending)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of the block size")
	}
	out := make([]byte, len(s.pending))
	s.mode.CryptBlocks(out, s.pending)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unpad empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid pkcs7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("invalid pkcs7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}

// chachaStage XORs pushed chunks against the ChaCha20 keystream. The
// stream cipher needs no buffering or padding, so encrypt and decrypt
// share one implementation.
type chachaStage struct {
	c *chacha20.Cipher
}

func newChaChaStage(key, nonce []byte) (Stage, error) {
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, fmt.Errorf("construct chacha20 cipher: %w", err)
	}
	return &chachaStage{c: c}, nil
}

func (s *chachaStage) Push(chunk []byte) ([]byte, error) {
	if len(chunk) == 0 {
		return nil, nil
	}
	out := make([]byte, len(chunk))
	s.c.XORKeyStream(out, chunk)
	return out, nil
}

func (s *chachaStage) Finalize() ([]byte, error) {
	return nil, nil
}
