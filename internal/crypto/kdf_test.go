package crypto

import (
	"bytes"
	"testing"
	"time"
)

func TestDeriveMasterKeyDeterministic(t *testing.T) {
	password := []byte("correct horse battery staple")
	salt := bytes.Repeat([]byte{0x42}, 16)
	params := ScryptParams{LogN: 10, R: 8, P: 1}

	k1, err := DeriveMasterKey(KDFScrypt, password, salt, params, PBKDF2Params{})
	if err != nil {
		t.Fatalf("derive 1: %v", err)
	}
	k2, err := DeriveMasterKey(KDFScrypt, password, salt, params, PBKDF2Params{})
	if err != nil {
		t.Fatalf("derive 2: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("same password/salt/params must derive the same master key")
	}

	k3, err := DeriveMasterKey(KDFScrypt, []byte("different password"), salt, params, PBKDF2Params{})
	if err != nil {
		t.Fatalf("derive 3: %v", err)
	}
	if bytes.Equal(k1, k3) {
		t.Fatal("different passwords must derive different master keys")
	}
}

func TestScryptParamsValidate(t *testing.T) {
	if err := (ScryptParams{LogN: 9, R: 8, P: 1}).Validate(); err == nil {
		t.Fatal("log_n below floor must be rejected")
	}
	if err := (ScryptParams{LogN: 15, R: 8, P: 1}).Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
}

func TestAutoTuneScryptMeetsFloor(t *testing.T) {
	params, err := AutoTuneScrypt(10*time.Millisecond, 1, 1, 10, 16)
	if err != nil {
		t.Fatalf("AutoTuneScrypt: %v", err)
	}
	if params.LogN < 10 {
		t.Fatalf("log_n = %d below configured floor 10", params.LogN)
	}
}

func TestAutoTunePBKDF2Scales(t *testing.T) {
	params, err := AutoTunePBKDF2(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("AutoTunePBKDF2: %v", err)
	}
	if params.Iterations <= 0 {
		t.Fatalf("iterations = %d, want > 0", params.Iterations)
	}
}
