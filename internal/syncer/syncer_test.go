package syncer

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"csync/internal/crypto"
	"csync/internal/keyschedule"
	"csync/internal/manifest"
	"csync/internal/progress"
	"csync/internal/testfixture"
)

func testKeySet(t *testing.T) *keyschedule.Set {
	t.Helper()
	set, err := keyschedule.Bootstrap([]byte("integration-test-password"), make([]byte, 16),
		crypto.KDFScrypt, crypto.ScryptParams{LogN: 10, R: 8, P: 1}, crypto.PBKDF2Params{})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return set
}

func testEncParams() EncryptionParams {
	return EncryptionParams{
		CipherID:      int(crypto.CipherChaCha20),
		MACID:         int(crypto.MACHMACSHA512),
		CompressorID:  int(crypto.CompressorZstd),
		CompressLevel: 3,
	}
}

func buildTree(t *testing.T) (srcDir string, tree testfixture.Tree) {
	t.Helper()
	srcDir = t.TempDir()
	tree = testfixture.Build(rand.New(rand.NewSource(42)), 12, 16, 4096)
	if err := testfixture.Write(srcDir, tree); err != nil {
		t.Fatalf("testfixture.Write: %v", err)
	}
	return srcDir, tree
}

func TestEncryptDecryptRoundTripTree(t *testing.T) {
	set := testKeySet(t)
	srcDir, tree := buildTree(t)
	outDir := t.TempDir()
	destDir := t.TempDir()

	plan, err := PlanEncrypt(srcDir, outDir, set, 2, nil)
	if err != nil {
		t.Fatalf("PlanEncrypt: %v", err)
	}
	for _, u := range plan.Units {
		if u.Action != ActionCreate {
			t.Fatalf("expected ActionCreate on first run, got %v for %s", u.Action, u.RelPath)
		}
	}

	result := Execute(context.Background(), plan, set, testEncParams(), 4, &Cancel{}, progress.NullSink{})
	if len(result.Failures) != 0 {
		t.Fatalf("encrypt failures: %+v", result.Failures)
	}

	units, err := PlanDecrypt(outDir)
	if err != nil {
		t.Fatalf("PlanDecrypt: %v", err)
	}
	if len(units) != len(tree.Files) {
		t.Fatalf("decrypt plan has %d units, want %d", len(units), len(tree.Files))
	}

	decResult := ExecuteDecrypt(context.Background(), units, destDir, set, 4, &Cancel{}, progress.NullSink{})
	if len(decResult.Failures) != 0 {
		t.Fatalf("decrypt failures: %+v", decResult.Failures)
	}

	for _, f := range tree.Files {
		got, err := os.ReadFile(filepath.Join(destDir, filepath.FromSlash(f.RelPath)))
		if err != nil {
			t.Fatalf("read back %s: %v", f.RelPath, err)
		}
		if string(got) != string(f.Content) {
			t.Fatalf("content mismatch for %s", f.RelPath)
		}
	}
}

func TestPlanEncryptIsIncremental(t *testing.T) {
	set := testKeySet(t)
	srcDir, _ := buildTree(t)
	outDir := t.TempDir()

	plan, err := PlanEncrypt(srcDir, outDir, set, 2, nil)
	if err != nil {
		t.Fatalf("PlanEncrypt: %v", err)
	}
	result := Execute(context.Background(), plan, set, testEncParams(), 4, &Cancel{}, progress.NullSink{})
	if len(result.Failures) != 0 {
		t.Fatalf("encrypt failures: %+v", result.Failures)
	}

	second, err := PlanEncrypt(srcDir, outDir, set, 2, nil)
	if err != nil {
		t.Fatalf("second PlanEncrypt: %v", err)
	}
	for _, u := range second.Units {
		if u.Action != ActionSkip {
			t.Fatalf("expected ActionSkip on unchanged re-plan, got %v for %s", u.Action, u.RelPath)
		}
	}
}

func TestPlanEncryptDetectsRemovedSource(t *testing.T) {
	set := testKeySet(t)
	srcDir, tree := buildTree(t)
	outDir := t.TempDir()

	plan, err := PlanEncrypt(srcDir, outDir, set, 2, nil)
	if err != nil {
		t.Fatalf("PlanEncrypt: %v", err)
	}
	result := Execute(context.Background(), plan, set, testEncParams(), 4, &Cancel{}, progress.NullSink{})
	if len(result.Failures) != 0 {
		t.Fatalf("encrypt failures: %+v", result.Failures)
	}

	removedAbs := filepath.Join(srcDir, filepath.FromSlash(tree.Files[0].RelPath))
	if err := os.Remove(removedAbs); err != nil {
		t.Fatalf("remove source file: %v", err)
	}

	second, err := PlanEncrypt(srcDir, outDir, set, 2, nil)
	if err != nil {
		t.Fatalf("second PlanEncrypt: %v", err)
	}
	var removeCount int
	for _, u := range second.Units {
		if u.Action == ActionRemove {
			removeCount++
		}
	}
	if removeCount != 1 {
		t.Fatalf("expected exactly 1 remove unit, got %d", removeCount)
	}
}

func TestCleanRemovesTamperedOutputOnly(t *testing.T) {
	set := testKeySet(t)
	srcDir, tree := buildTree(t)
	outDir := t.TempDir()

	plan, err := PlanEncrypt(srcDir, outDir, set, 2, nil)
	if err != nil {
		t.Fatalf("PlanEncrypt: %v", err)
	}
	Execute(context.Background(), plan, set, testEncParams(), 4, &Cancel{}, progress.NullSink{})

	var outputs []string
	for _, u := range plan.Units {
		if u.OutputPath != "" {
			outputs = append(outputs, u.OutputPath)
		}
	}
	if len(outputs) != len(tree.Files) {
		t.Fatalf("expected %d output files, got %d", len(tree.Files), len(outputs))
	}

	tamperedPath := outputs[0]
	data, err := os.ReadFile(tamperedPath)
	if err != nil {
		t.Fatalf("read output to tamper: %v", err)
	}
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(tamperedPath, data, 0o644); err != nil {
		t.Fatalf("write tampered output: %v", err)
	}

	result, err := Clean(outDir, set)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(result.Removed) != 1 {
		t.Fatalf("expected exactly 1 removed file, got %d: %v", len(result.Removed), result.Removed)
	}
	if result.Kept != len(tree.Files)-1 {
		t.Fatalf("expected %d kept files, got %d", len(tree.Files)-1, result.Kept)
	}

	second, err := Clean(outDir, set)
	if err != nil {
		t.Fatalf("second Clean: %v", err)
	}
	if len(second.Removed) != 0 {
		t.Fatal("clean should be idempotent: nothing left to remove on a second pass")
	}
}

func TestManifestPersistsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	m := manifest.Manifest{
		CipherID:         crypto.CipherChaCha20,
		MACID:            crypto.MACHMACSHA512,
		CompressorID:     crypto.CompressorZstd,
		CompressLevel:    3,
		KDFID:            crypto.KDFScrypt,
		ScryptParams:     crypto.ScryptParams{LogN: 10, R: 8, P: 1},
		MasterSalt:       make([]byte, 16),
		SaltLen:          16,
		SpreadDepth:      2,
		PasswordVerifier: make([]byte, 64),
	}
	if err := manifest.Save(dir, m); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := manifest.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded, m) {
		t.Fatal("manifest did not survive a save/load cycle unchanged")
	}
}
