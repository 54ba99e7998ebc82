package rules

import (
	"sort"
	"strings"
	"sync"
)

// Rule is one named policy rule: its source text, default values for its
// authorization attributes, and the lazily compiled instruction stream.
// Compilation happens on first evaluation and is cached until the text is
// reassigned. A Rule is safe for concurrent evaluation.
type Rule struct {
	name string

	mu       sync.Mutex
	text     string
	program  *Program
	compiled bool
	compErr  error

	attrs map[string]Value
}

// NewRule builds a rule. Attribute-default names beginning with an
// underscore are dropped; text may be empty, in which case the rule
// always denies.
func NewRule(name, text string, attrs map[string]Value) *Rule {
	r := &Rule{name: name, text: text}
	if len(attrs) > 0 {
		r.attrs = make(map[string]Value, len(attrs))
		for k, v := range attrs {
			if strings.HasPrefix(k, "_") {
				continue
			}
			r.attrs[k] = v
		}
	}
	return r
}

// Name returns the rule's name, unique within a Policy.
func (r *Rule) Name() string { return r.name }

// Text returns the rule's source text.
func (r *Rule) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text
}

// SetText replaces the rule's source text and discards any cached
// compilation.
func (r *Rule) SetText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = text
	r.program = nil
	r.compiled = false
	r.compErr = nil
}

// Attrs returns a copy of the declared attribute defaults.
func (r *Rule) Attrs() map[string]Value {
	out := make(map[string]Value, len(r.attrs))
	for k, v := range r.attrs {
		out[k] = v
	}
	return out
}

// AttrNames returns the declared attribute names in sorted order.
func (r *Rule) AttrNames() []string {
	names := make([]string, 0, len(r.attrs))
	for k := range r.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Program compiles the rule text on first use and caches the result.
// Subsequent calls return the cached program (or the cached ParseError)
// until SetText clears it.
func (r *Rule) Program() (*Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.compiled {
		r.program, r.compErr = Parse(r.text)
		r.compiled = true
	}
	return r.program, r.compErr
}

// Check compiles the rule text eagerly and reports any ParseError without
// evaluating.
func (r *Rule) Check() error {
	_, err := r.Program()
	return err
}

// RuleDoc carries human-readable documentation for a rule and its
// authorization attributes. Opaque to the evaluation core.
type RuleDoc struct {
	// Name is the documented rule's name.
	Name string
	// Doc describes the purpose of the rule.
	Doc string
	// AttrDocs describes the purpose of each authorization attribute.
	AttrDocs map[string]string
}

// Format renders the documentation as commented lines for a sample policy
// file: the rule doc, then each attribute doc, each prefixed with "# ".
func (d *RuleDoc) Format() string {
	var b strings.Builder
	writeWrapped := func(prefix, text string) {
		for _, line := range strings.Split(text, "\n") {
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	if d.Doc != "" {
		writeWrapped("# ", d.Doc)
	}
	names := make([]string, 0, len(d.AttrDocs))
	for k := range d.AttrDocs {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		writeWrapped("#   "+name+": ", d.AttrDocs[name])
	}
	return b.String()
}
