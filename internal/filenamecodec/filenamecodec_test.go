package filenamecodec

import (
	"bytes"
	"fmt"
	"testing"
)

func TestHashIsDeterministicAndSensitiveToPath(t *testing.T) {
	kName := bytes.Repeat([]byte{0x11}, 32)

	h1 := Hash(kName, "docs/report.txt")
	h2 := Hash(kName, "docs/report.txt")
	if !bytes.Equal(h1, h2) {
		t.Fatal("hashing the same path twice must be deterministic")
	}

	h3 := Hash(kName, "docs/report2.txt")
	if bytes.Equal(h1, h3) {
		t.Fatal("distinct paths must hash to distinct digests")
	}

	kOther := bytes.Repeat([]byte{0x22}, 32)
	h4 := Hash(kOther, "docs/report.txt")
	if bytes.Equal(h1, h4) {
		t.Fatal("distinct keys must hash the same path to distinct digests")
	}
}

func TestSpreadPathUniformAndUnique(t *testing.T) {
	kName := bytes.Repeat([]byte{0x33}, 32)
	buckets := make(map[string]int)

	const n = 2000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("file-%05d.bin", i)
		segments, err := SpreadPath(kName, path, 2)
		if err != nil {
			t.Fatalf("SpreadPath(%q): %v", path, err)
		}
		if len(segments) != 3 {
			t.Fatalf("expected 3 segments (2 spread + leaf), got %d", len(segments))
		}
		buckets[segments[0]]++
		full := segments[0] + "/" + segments[1] + "/" + segments[2]
		if _, dup := seen[full]; dup {
			t.Fatalf("duplicate output path for distinct source path %q", path)
		}
		seen[full] = struct{}{}
	}

	// base32hex alphabet gives 32 possible first characters; with 2000
	// samples no bucket should be wildly over- or under-represented.
	if len(buckets) < 16 {
		t.Fatalf("spread only used %d distinct first-level buckets, want reasonable coverage", len(buckets))
	}
}

func TestEncodeIsLowercaseUnpadded(t *testing.T) {
	kName := bytes.Repeat([]byte{0x44}, 32)
	digest := Hash(kName, "a/b/c")
	encoded := Encode(digest)
	for _, r := range encoded {
		if r >= 'A' && r <= 'Z' {
			t.Fatalf("encoded output contains uppercase: %q", encoded)
		}
	}
	if len(encoded) > 0 && encoded[len(encoded)-1] == '=' {
		t.Fatalf("encoded output should not be padded: %q", encoded)
	}
}
