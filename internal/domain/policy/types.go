// Package policy contains domain types for rule storage and management.
// The expression language itself lives in pkg/rules; this package deals in
// serializable rule definitions the stores and the admin API exchange.
package policy

import (
	"time"

	"github.com/aegis-authz/aegis/pkg/rules"
)

// RuleDefinition is the storable form of one policy rule.
type RuleDefinition struct {
	// Name is the unique rule name within a policy set.
	Name string `yaml:"name" json:"name"`
	// Text is the rule source in the policy expression language.
	Text string `yaml:"text" json:"text"`
	// Doc describes the purpose of the rule.
	Doc string `yaml:"doc,omitempty" json:"doc,omitempty"`
	// Attrs holds default values for the rule's authorization attributes,
	// as plain JSON-shaped data.
	Attrs map[string]any `yaml:"attrs,omitempty" json:"attrs,omitempty"`
	// AttrDocs describes each authorization attribute.
	AttrDocs map[string]string `yaml:"attr_docs,omitempty" json:"attr_docs,omitempty"`
	// UpdatedAt is when the definition was last modified (UTC). Zero for
	// definitions loaded from plain files.
	UpdatedAt time.Time `yaml:"-" json:"updated_at,omitempty"`
}

// Decision is the outcome of evaluating a rule for a caller: the
// Authorization flattened into transportable data.
type Decision struct {
	// ID uniquely identifies this evaluation for audit correlation.
	ID string `json:"id"`
	// Rule is the evaluated rule's name.
	Rule string `json:"rule"`
	// Allowed is the authorization verdict.
	Allowed bool `json:"allowed"`
	// Attrs carries the authorization attributes as plain data.
	Attrs map[string]any `json:"attrs"`
	// Cached is true when the decision came from the service's result
	// cache rather than a fresh evaluation.
	Cached bool `json:"cached"`
	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration_ns"`
}

// Install registers the definition on the engine policy: documentation
// and attribute defaults via Declare, the text as the installed rule. A
// ParseError from the rule text is returned without installing the text.
func (d *RuleDefinition) Install(p *rules.Policy) error {
	attrs := make(map[string]rules.Value, len(d.Attrs))
	for k, v := range d.Attrs {
		attrs[k] = rules.FromGo(v)
	}
	p.Declare(d.Name, "", attrs, d.Doc, d.AttrDocs)
	if d.Text == "" {
		return nil
	}
	return p.SetRuleText(d.Name, d.Text)
}

// Validate checks a definition before storage: the name must be
// non-empty and the text must compile.
func (d *RuleDefinition) Validate() error {
	if d.Name == "" {
		return ErrEmptyRuleName
	}
	_, err := rules.Parse(d.Text)
	return err
}
