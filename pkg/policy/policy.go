// Package policy loads a YAML policy file that scopes a sync run:
// which paths to include/exclude and the algorithm choices to request.
// Grounded on the teacher's Policy/FromYAML/LoadFile structure,
// adapted from a simulation-scoping SimulationSpec into sync-scoping
// fields (glob filters, size bounds, algorithm selection) and with the
// ransomware SimulationSpec and embedded-policy ldflag mechanism
// dropped — csync has no build-time embedding story.
package policy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy is a policy-driven configuration for a sync run's scope and
// algorithm choices, loaded from a YAML file via the --policy flag.
type Policy struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Include     []string `yaml:"include"`
	Exclude     []string `yaml:"exclude"`
	MinSize     int64    `yaml:"min_size_bytes"`
	MaxSize     int64    `yaml:"max_size_bytes"`

	Cipher       string `yaml:"cipher"`
	MAC          string `yaml:"mac"`
	Compressor   string `yaml:"compressor"`
	CompressLevel *int  `yaml:"compress_level"`
	KDF          string `yaml:"kdf"`
	SpreadDepth  *int   `yaml:"spread_depth"`
	Workers      *int   `yaml:"workers"`
	DryRun       *bool  `yaml:"dry_run"`
	AssumeYes    *bool  `yaml:"assume_yes"`

	Source string `yaml:"-"`
}

// FromYAML parses a raw YAML policy definition.
func FromYAML(data string) (*Policy, error) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return nil, errors.New("policy YAML is empty")
	}
	var pol Policy
	if err := yaml.Unmarshal([]byte(trimmed), &pol); err != nil {
		return nil, fmt.Errorf("failed to parse policy YAML: %w", err)
	}
	if pol.Name == "" {
		return nil, errors.New("policy missing required field 'name'")
	}
	return &pol, nil
}

// LoadFile loads a policy from a YAML file path.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	pol, err := FromYAML(string(data))
	if err != nil {
		return nil, err
	}
	pol.Source = path
	return pol, nil
}

// Matches reports whether relativePath (using '/' separators) passes
// this policy's include/exclude glob filters. An empty Include list
// means "everything is included unless excluded". Exclude always wins
// over Include.
func Matches(pol *Policy, relativePath string, size int64) (bool, error) {
	if pol == nil {
		return true, nil
	}
	if pol.MinSize > 0 && size < pol.MinSize {
		return false, nil
	}
	if pol.MaxSize > 0 && size > pol.MaxSize {
		return false, nil
	}
	for _, pattern := range pol.Exclude {
		matched, err := matchGlob(pattern, relativePath)
		if err != nil {
			return false, err
		}
		if matched {
			return false, nil
		}
	}
	if len(pol.Include) == 0 {
		return true, nil
	}
	for _, pattern := range pol.Include {
		matched, err := matchGlob(pattern, relativePath)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}
