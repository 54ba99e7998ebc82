package rulefile

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/aegis-authz/aegis/internal/domain/policy"
	"github.com/aegis-authz/aegis/pkg/rules"
)

const sample = `
rules:
  - name: update_user
    text: user.admin or user == target
    doc: controls user record updates
    attrs:
      payment: false
  - name: view_user
    text: "True"
`

func TestParse(t *testing.T) {
	defs, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("got %d rules, want 2", len(defs))
	}
	if defs[0].Name != "update_user" || defs[0].Attrs["payment"] != false {
		t.Errorf("defs[0] = %+v", defs[0])
	}
}

func TestParseRejectsBadRuleText(t *testing.T) {
	_, err := Parse([]byte("rules:\n  - name: bad\n    text: \"user.admin {{ _x=1 }}\"\n"))
	if err == nil {
		t.Fatal("expected error for invalid rule text")
	}
	var perr *rules.ParseError
	if !errors.As(err, &perr) {
		t.Errorf("error = %v, want a wrapped ParseError", err)
	}
}

func TestParseRejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte("rules:\n  - name: r\n    text: \"True\"\n  - name: r\n    text: \"False\"\n"))
	if err == nil {
		t.Fatal("expected error for duplicate rule names")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	defs := []policy.RuleDefinition{
		{Name: "a", Text: "True", Attrs: map[string]any{"x": float64(1)}},
		{Name: "b", Text: `1 in {1, 2, 3}`},
	}
	if err := Save(path, defs); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Text != defs[1].Text {
		t.Errorf("round trip = %+v", got)
	}
}
