package pipeline

import (
	"bytes"
	"testing"

	"csync/internal/crypto"
	"csync/internal/keyschedule"
)

func testKeySet(t *testing.T) *keyschedule.Set {
	t.Helper()
	set, err := keyschedule.Bootstrap([]byte("swordfish"), bytes.Repeat([]byte{3}, 16),
		crypto.KDFScrypt, crypto.ScryptParams{LogN: 10, R: 8, P: 1}, crypto.PBKDF2Params{})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return set
}

func encryptSample(t *testing.T, set *keyschedule.Set, plaintext []byte) []byte {
	t.Helper()
	contentSalt := bytes.Repeat([]byte{6}, 32)
	nonce := bytes.Repeat([]byte{4}, crypto.NonceSize(crypto.CipherChaCha20))

	keys, err := DeriveFileKeys(set, contentSalt)
	if err != nil {
		t.Fatalf("DeriveFileKeys: %v", err)
	}
	params := EncryptParams{
		CipherID:      crypto.CipherChaCha20,
		MACID:         crypto.MACHMACSHA512,
		CompressorID:  crypto.CompressorZstd,
		CompressLevel: 3,
		Nonce:         nonce,
		ContentSalt:   contentSalt,
		EncryptedPath: []byte("encrypted-path"),
		SizeHint:      uint64(len(plaintext)),
		ModTimeHint:   1700000000,
	}

	var out bytes.Buffer
	if err := Encrypt(&out, bytes.NewReader(plaintext), params, keys, nil); err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	return out.Bytes()
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	set := testKeySet(t)
	plaintext := bytes.Repeat([]byte("csync pipeline round trip test data. "), 500)

	encoded := encryptSample(t, set, plaintext)

	result, err := Decrypt(bytes.NewReader(encoded), set)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(result.Plaintext, plaintext) {
		t.Fatalf("decrypted plaintext mismatch: got %d bytes, want %d", len(result.Plaintext), len(plaintext))
	}
}

func TestDecryptDetectsTamperedCiphertext(t *testing.T) {
	set := testKeySet(t)
	encoded := encryptSample(t, set, []byte("some secret contents"))

	tampered := append([]byte(nil), encoded...)
	tampered[len(tampered)/2] ^= 0xFF

	if _, err := Decrypt(bytes.NewReader(tampered), set); err == nil {
		t.Fatal("expected an authentication error decrypting tampered ciphertext")
	}
}

func TestDecryptDetectsTamperedTrailer(t *testing.T) {
	set := testKeySet(t)
	encoded := encryptSample(t, set, []byte("some secret contents"))
	encoded[len(encoded)-1] ^= 0xFF

	if _, err := Decrypt(bytes.NewReader(encoded), set); err == nil {
		t.Fatal("expected an authentication error decrypting a tampered MAC trailer")
	}
}

func TestVerifyOnlyChecksTagWithoutDecrypting(t *testing.T) {
	set := testKeySet(t)
	plaintext := []byte("verify-only should not need to touch this plaintext")
	encoded := encryptSample(t, set, plaintext)

	h, err := VerifyOnly(bytes.NewReader(encoded), set.MAC)
	if err != nil {
		t.Fatalf("VerifyOnly: %v", err)
	}
	if h.SizeHint != uint64(len(plaintext)) {
		t.Fatalf("SizeHint = %d, want %d", h.SizeHint, len(plaintext))
	}

	tampered := append([]byte(nil), encoded...)
	tampered[len(tampered)-1] ^= 0xFF
	if _, err := VerifyOnly(bytes.NewReader(tampered), set.MAC); err == nil {
		t.Fatal("VerifyOnly must reject a tampered tag")
	}
}

func TestDecryptRejectsWrongKeySet(t *testing.T) {
	set := testKeySet(t)
	encoded := encryptSample(t, set, []byte("secret"))

	wrongSet, err := keyschedule.Bootstrap([]byte("different password"), bytes.Repeat([]byte{3}, 16),
		crypto.KDFScrypt, crypto.ScryptParams{LogN: 10, R: 8, P: 1}, crypto.PBKDF2Params{})
	if err != nil {
		t.Fatalf("Bootstrap wrong set: %v", err)
	}

	if _, err := Decrypt(bytes.NewReader(encoded), wrongSet); err == nil {
		t.Fatal("expected an authentication error decrypting with the wrong key set")
	}
}
