package keyschedule

import (
	"bytes"
	"testing"

	"csync/internal/crypto"
)

func testSet(t *testing.T) *Set {
	t.Helper()
	set, err := Bootstrap([]byte("hunter2"), bytes.Repeat([]byte{7}, 16), crypto.KDFScrypt,
		crypto.ScryptParams{LogN: 10, R: 8, P: 1}, crypto.PBKDF2Params{})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return set
}

func TestDeriveProducesDistinctSubkeys(t *testing.T) {
	set := testSet(t)
	if bytes.Equal(set.Enc, set.MAC[:len(set.Enc)]) {
		t.Fatal("enc and mac subkeys must not collide")
	}
	if bytes.Equal(set.Enc, set.Name) {
		t.Fatal("enc and name subkeys must not collide")
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	masterKey := bytes.Repeat([]byte{1}, crypto.MasterKeySize)
	a, err := Derive(masterKey)
	if err != nil {
		t.Fatalf("derive a: %v", err)
	}
	b, err := Derive(masterKey)
	if err != nil {
		t.Fatalf("derive b: %v", err)
	}
	if !bytes.Equal(a.Enc, b.Enc) || !bytes.Equal(a.MAC, b.MAC) || !bytes.Equal(a.Name, b.Name) {
		t.Fatal("same master key must derive identical subkeys")
	}
}

func TestVerifierRoundTripAndMismatch(t *testing.T) {
	set := testSet(t)
	verifier, err := Verifier(set)
	if err != nil {
		t.Fatalf("Verifier: %v", err)
	}
	if err := CheckVerifier(set, verifier); err != nil {
		t.Fatalf("CheckVerifier with correct verifier: %v", err)
	}

	wrongSet, err := Bootstrap([]byte("wrong password"), bytes.Repeat([]byte{7}, 16), crypto.KDFScrypt,
		crypto.ScryptParams{LogN: 10, R: 8, P: 1}, crypto.PBKDF2Params{})
	if err != nil {
		t.Fatalf("Bootstrap wrong: %v", err)
	}
	if err := CheckVerifier(wrongSet, verifier); err == nil {
		t.Fatal("wrong password must fail verification")
	}
}

func TestFileKeysVaryByContentSalt(t *testing.T) {
	set := testSet(t)
	saltA := bytes.Repeat([]byte{0xAA}, 32)
	saltB := bytes.Repeat([]byte{0xBB}, 32)

	encA, err := FileEncryptKey(set, saltA, 32)
	if err != nil {
		t.Fatalf("FileEncryptKey A: %v", err)
	}
	encB, err := FileEncryptKey(set, saltB, 32)
	if err != nil {
		t.Fatalf("FileEncryptKey B: %v", err)
	}
	if bytes.Equal(encA, encB) {
		t.Fatal("distinct content salts must derive distinct file encryption keys")
	}

	pathA, err := FilePathKey(set, saltA, 32)
	if err != nil {
		t.Fatalf("FilePathKey A: %v", err)
	}
	if bytes.Equal(pathA, encA) {
		t.Fatal("file body key and path key must not collide for the same salt")
	}
}
