package policy

import "testing"

func TestFromYAMLRequiresName(t *testing.T) {
	if _, err := FromYAML("include: [\"*.txt\"]"); err == nil {
		t.Fatal("expected an error for a policy missing 'name'")
	}
}

func TestFromYAMLParsesFields(t *testing.T) {
	yaml := `
name: finance-docs
include:
  - "**/*.xlsx"
  - "**/*.pdf"
exclude:
  - "**/tmp/**"
min_size_bytes: 10
max_size_bytes: 1000000
cipher: chacha20
spread_depth: 4
`
	pol, err := FromYAML(yaml)
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if pol.Name != "finance-docs" {
		t.Fatalf("Name = %q", pol.Name)
	}
	if len(pol.Include) != 2 || len(pol.Exclude) != 1 {
		t.Fatalf("unexpected include/exclude lengths: %+v", pol)
	}
	if pol.SpreadDepth == nil || *pol.SpreadDepth != 4 {
		t.Fatalf("SpreadDepth = %v, want 4", pol.SpreadDepth)
	}
}

func TestMatchesExcludeWinsOverInclude(t *testing.T) {
	pol := &Policy{
		Include: []string{"**/*.txt"},
		Exclude: []string{"**/secret/**"},
	}
	ok, err := Matches(pol, "docs/report.txt", 100)
	if err != nil || !ok {
		t.Fatalf("expected docs/report.txt to match, got ok=%v err=%v", ok, err)
	}
	ok, err = Matches(pol, "secret/report.txt", 100)
	if err != nil || ok {
		t.Fatalf("expected secret/report.txt to be excluded, got ok=%v err=%v", ok, err)
	}
	ok, err = Matches(pol, "docs/report.csv", 100)
	if err != nil || ok {
		t.Fatalf("expected docs/report.csv not to match include globs, got ok=%v err=%v", ok, err)
	}
}

func TestMatchesSizeBounds(t *testing.T) {
	pol := &Policy{MinSize: 100, MaxSize: 1000}
	if ok, _ := Matches(pol, "f.bin", 50); ok {
		t.Fatal("file below MinSize should not match")
	}
	if ok, _ := Matches(pol, "f.bin", 2000); ok {
		t.Fatal("file above MaxSize should not match")
	}
	if ok, _ := Matches(pol, "f.bin", 500); !ok {
		t.Fatal("file within bounds should match")
	}
}

func TestMatchesNilPolicyAllowsEverything(t *testing.T) {
	ok, err := Matches(nil, "anything.txt", 0)
	if err != nil || !ok {
		t.Fatalf("nil policy should match everything, got ok=%v err=%v", ok, err)
	}
}
