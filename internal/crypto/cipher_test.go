package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func roundTripCipher(t *testing.T, id CipherID) {
	t.Helper()
	key := make([]byte, 32)
	rand.Read(key)
	nonce := make([]byte, NonceSize(id))
	rand.Read(nonce)

	plaintext := []byte("the quick brown fox jumps over the lazy dog, repeated. " + string(make([]byte, 5000)))

	enc, err := NewEncryptCipherStage(id, key, nonce)
	if err != nil {
		t.Fatalf("NewEncryptCipherStage: %v", err)
	}
	var ciphertext []byte
	mid := len(plaintext) / 3
	out, err := enc.Push(plaintext[:mid])
	if err != nil {
		t.Fatalf("push 1: %v", err)
	}
	ciphertext = append(ciphertext, out...)
	out, err = enc.Push(plaintext[mid:])
	if err != nil {
		t.Fatalf("push 2: %v", err)
	}
	ciphertext = append(ciphertext, out...)
	out, err = enc.Finalize()
	if err != nil {
		t.Fatalf("finalize encrypt: %v", err)
	}
	ciphertext = append(ciphertext, out...)

	dec, err := NewDecryptCipherStage(id, key, nonce)
	if err != nil {
		t.Fatalf("NewDecryptCipherStage: %v", err)
	}
	var recovered []byte
	out, err = dec.Push(ciphertext)
	if err != nil {
		t.Fatalf("decrypt push: %v", err)
	}
	recovered = append(recovered, out...)
	out, err = dec.Finalize()
	if err != nil {
		t.Fatalf("finalize decrypt: %v", err)
	}
	recovered = append(recovered, out...)

	if !bytes.Equal(recovered, plaintext) {
		t.Fatalf("round trip mismatch for cipher %v: got %d bytes, want %d", id, len(recovered), len(plaintext))
	}
}

func TestCipherRoundTrip(t *testing.T) {
	roundTripCipher(t, CipherAES256CBC)
	roundTripCipher(t, CipherChaCha20)
}

func TestCBCRejectsBadPadding(t *testing.T) {
	key := make([]byte, 32)
	nonce := make([]byte, 16)
	rand.Read(key)
	rand.Read(nonce)

	enc, _ := NewEncryptCipherStage(CipherAES256CBC, key, nonce)
	ciphertext, _ := enc.Push([]byte("0123456789abcdef"))
	tail, _ := enc.Finalize()
	ciphertext = append(ciphertext, tail...)

	ciphertext[len(ciphertext)-1] ^= 0xFF

	dec, _ := NewDecryptCipherStage(CipherAES256CBC, key, nonce)
	if _, err := dec.Push(ciphertext); err != nil {
		return
	}
	if _, err := dec.Finalize(); err == nil {
		t.Fatal("expected padding error on tampered ciphertext")
	}
}
