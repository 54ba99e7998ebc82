package rules

import "testing"

func TestRuleLazyCompileCached(t *testing.T) {
	r := NewRule("r", "1 + 2 > 2", nil)
	p1, err := r.Program()
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	p2, err := r.Program()
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	if p1 != p2 {
		t.Error("compilation should be cached between calls")
	}
}

func TestRuleSetTextInvalidatesCache(t *testing.T) {
	r := NewRule("r", "True", nil)
	p1, err := r.Program()
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	r.SetText("False")
	p2, err := r.Program()
	if err != nil {
		t.Fatalf("Program after SetText: %v", err)
	}
	if p1 == p2 {
		t.Error("SetText must discard the cached compilation")
	}
	if r.Text() != "False" {
		t.Errorf("Text() = %q", r.Text())
	}
}

func TestRuleParseErrorCached(t *testing.T) {
	r := NewRule("r", "1 +", nil)
	if err := r.Check(); err == nil {
		t.Fatal("expected ParseError")
	}
	// The error is cached, not re-parsed.
	if _, err := r.Program(); err == nil {
		t.Fatal("cached compilation should still report the error")
	}
	// Fixing the text clears it.
	r.SetText("True")
	if err := r.Check(); err != nil {
		t.Errorf("Check after fix: %v", err)
	}
}

func TestRuleDropsUnderscoreAttrs(t *testing.T) {
	r := NewRule("r", "True", map[string]Value{"ok": True, "_hidden": True})
	attrs := r.Attrs()
	if _, ok := attrs["_hidden"]; ok {
		t.Error("underscore attribute defaults must be dropped")
	}
	if _, ok := attrs["ok"]; !ok {
		t.Error("regular attribute defaults must be kept")
	}
}

func TestRuleDocFormat(t *testing.T) {
	d := &RuleDoc{
		Name:     "update_user",
		Doc:      "controls user record updates",
		AttrDocs: map[string]string{"payment": "may edit payment fields"},
	}
	got := d.Format()
	want := "# controls user record updates\n#   payment: may edit payment fields\n"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}
