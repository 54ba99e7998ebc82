package rules

import (
	"sort"
	"strings"
)

// Authorization is the immutable result of evaluating a rule: a boolean
// verdict plus named authorization attributes carrying sub-decisions.
type Authorization struct {
	verdict bool
	attrs   map[string]Value
}

// NewAuthorization builds an Authorization. The verdict is the truth value
// of the rule; attrs maps attribute names to their values and may be nil.
// The map is copied.
func NewAuthorization(verdict bool, attrs map[string]Value) *Authorization {
	a := &Authorization{verdict: verdict}
	if len(attrs) > 0 {
		a.attrs = make(map[string]Value, len(attrs))
		for k, v := range attrs {
			a.attrs[k] = v
		}
	}
	return a
}

// Deny is a falsy Authorization with no attributes, returned for missing
// rules and failed evaluations.
func Deny() *Authorization { return &Authorization{} }

// Verdict returns the access decision.
func (a *Authorization) Verdict() bool { return a.verdict }

// Attr returns the named authorization attribute. Unknown names yield
// Nothing, never an error.
func (a *Authorization) Attr(name string) Value {
	if v, ok := a.attrs[name]; ok {
		return v
	}
	return Nothing
}

// Attrs returns a copy of the attribute map.
func (a *Authorization) Attrs() map[string]Value {
	out := make(map[string]Value, len(a.attrs))
	for k, v := range a.attrs {
		out[k] = v
	}
	return out
}

// AttrNames returns the attribute names in sorted order.
func (a *Authorization) AttrNames() []string {
	names := make([]string, 0, len(a.attrs))
	for k := range a.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Equal reports structural equality of two authorizations.
func (a *Authorization) Equal(o *Authorization) bool {
	if a == nil || o == nil {
		return a == o
	}
	if a.verdict != o.verdict || len(a.attrs) != len(o.attrs) {
		return false
	}
	for k, v := range a.attrs {
		ov, ok := o.attrs[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// String renders the authorization for diagnostics.
func (a *Authorization) String() string {
	var b strings.Builder
	b.WriteString("Authorization(")
	if a.verdict {
		b.WriteString("True")
	} else {
		b.WriteString("False")
	}
	for _, name := range a.AttrNames() {
		b.WriteString(", ")
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(a.attrs[name].String())
	}
	b.WriteByte(')')
	return b.String()
}
