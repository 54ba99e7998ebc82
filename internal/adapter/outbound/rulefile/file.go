// Package rulefile loads and saves rule definitions as YAML files, the
// plain-file rule source for small deployments and for seeding stores.
package rulefile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aegis-authz/aegis/internal/domain/policy"
)

// File is the on-disk document shape:
//
//	rules:
//	  - name: update_user
//	    text: user.admin or user == target
//	    doc: controls user record updates
//	    attrs:
//	      payment: false
type File struct {
	Rules []policy.RuleDefinition `yaml:"rules"`
}

// Load reads and parses the rule file at path. Every rule's text is
// compile-checked; the first failure aborts the load so a broken file is
// rejected as a whole.
func Load(path string) ([]policy.RuleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule file: %w", err)
	}
	return Parse(data)
}

// Parse parses rule-file bytes and validates each definition.
func Parse(data []byte) ([]policy.RuleDefinition, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rule file: %w", err)
	}
	seen := make(map[string]bool, len(f.Rules))
	for i := range f.Rules {
		def := &f.Rules[i]
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("rule %q: %w", def.Name, err)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("rule %q: duplicate name", def.Name)
		}
		seen[def.Name] = true
	}
	return f.Rules, nil
}

// Save writes the definitions to path as a YAML rule file.
func Save(path string, defs []policy.RuleDefinition) error {
	data, err := yaml.Marshal(File{Rules: defs})
	if err != nil {
		return fmt.Errorf("encoding rule file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing rule file: %w", err)
	}
	return nil
}
