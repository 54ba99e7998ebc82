package rules

import (
	"errors"
	"strings"
	"testing"
)

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"empty set literal", "{}", "'{}' is reserved"},
		{"underscore attribute", "user.admin {{ _secret=1 }}", "underscore"},
		{"duplicate attribute", "True {{ a=1, a=2 }}", "duplicate"},
		{"trailing text", "True }} extra", ""},
		{"trailing after block", "True {{ a=1 }} extra", "unexpected"},
		{"missing else", "1 if a", "expected 'else'"},
		{"unclosed paren", "(1 + 2", "expected ')'"},
		{"unclosed bracket", "a[1", "expected ']'"},
		{"unclosed set", "{1, 2", "expected '}'"},
		{"bare operator", "1 +", "unexpected"},
		{"missing assign", "True {{ a 1 }}", "expected '='"},
		{"keyword attribute name", "True {{ in=1 }}", "expected attribute name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatalf("expected ParseError for %q", tt.src)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error type = %T, want *ParseError", err)
			}
			if perr.Line < 1 || perr.Col < 1 {
				t.Errorf("error position %d:%d not set", perr.Line, perr.Col)
			}
			if tt.wantMsg != "" && !strings.Contains(perr.Msg, tt.wantMsg) {
				t.Errorf("error %q does not mention %q", perr.Msg, tt.wantMsg)
			}
		})
	}
}

func TestParseValidRules(t *testing.T) {
	srcs := []string{
		"",
		"True",
		"user.is_admin() or user == target",
		`user.in_group("admins") and user.admin`,
		"a {{ payment=user.is_admin() }}",
		"a {{ x=1, y=2, }}",
		"{{ x=1 }}",
		"{{ x= }}",
		"{{ x=, y=2 }}",
		"a {{ s={1, 2} }}",
		"a {{ s={1, {2, 3}} }}",
		"{{1, 2}, {3}}", // a set of sets, not an attribute block
		"x[1][2].y(z).w",
		"not not a",
		"- - 1",
		"a if b else c if d else e",
		"# only a comment",
	}
	for _, src := range srcs {
		t.Run(src, func(t *testing.T) {
			if _, err := Parse(src); err != nil {
				t.Errorf("Parse(%q) error: %v", src, err)
			}
		})
	}
}

func TestParseEmptyRuleDenies(t *testing.T) {
	prog, err := Parse("")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	code := prog.Instructions()
	if len(code) != 2 {
		t.Fatalf("got %d instructions, want PushConst + SetAuthz", len(code))
	}
	if code[0].Op != OpPushConst || code[0].Const.Truthy() {
		t.Errorf("instruction 0 = %s, want PushConst(False)", code[0])
	}
	if code[1].Op != OpSetAuthz {
		t.Errorf("instruction 1 = %s, want SetAuthz", code[1])
	}
}

func TestConstantFolding(t *testing.T) {
	// "5 + 23" folds to a single constant; the comparison against the
	// variable cannot fold.
	prog, err := Parse("5 + 23 > user.spam")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var sawFolded bool
	for _, in := range prog.Instructions() {
		if in.Op == OpAdd {
			t.Errorf("unexpected Add in folded program:\n%s", prog)
		}
		if in.Op == OpPushConst && in.Const.Equal(Int(28)) {
			sawFolded = true
		}
	}
	if !sawFolded {
		t.Errorf("expected PushConst(28) in program:\n%s", prog)
	}
}

func TestConstantFoldingAbandonedOnError(t *testing.T) {
	// Division by zero in a literal subtree is not raised at compile
	// time; the runtime instruction is emitted instead.
	prog, err := Parse("1 / 0")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var sawDiv bool
	for _, in := range prog.Instructions() {
		if in.Op == OpDiv {
			sawDiv = true
		}
	}
	if !sawDiv {
		t.Errorf("expected runtime Div in program:\n%s", prog)
	}

	// The error surfaces only when the code path executes.
	_, execErr := tryEvalValue("1 / 0", nil)
	if !errors.Is(execErr, ErrDivisionByZero) {
		t.Errorf("error = %v, want division by zero", execErr)
	}
	if v, err := tryEvalValue("True or 1 / 0", nil); err != nil || !v.Equal(True) {
		t.Errorf("short-circuited division = %s, %v; want True, nil", v, err)
	}
}

func TestFoldingPreservesSemantics(t *testing.T) {
	srcs := []string{
		"5 + 23 > 10",
		"2 ** 10 - 1",
		"{1, 2} | {3}",
		"1 in {1, 2, 3} and 4 not in {1, 2, 3}",
		"not (1 < 2)",
		`"a" + "b" == "ab"`,
		"1 if 2 > 1 else 0",
		"False and x",
		"True or x",
		"0 or 7",
		"1 and 7",
		"-2 ** 2",
		"~5 + 1",
		"3.0 * 2",
	}
	for _, src := range srcs {
		t.Run(src, func(t *testing.T) {
			folded := mustRun(t, src, true)
			plain := mustRun(t, src, false)
			if !folded.Equal(plain) || folded.Kind() != plain.Kind() {
				t.Errorf("folded %s (%s) != unfolded %s (%s)", folded, folded.Kind(), plain, plain.Kind())
			}
		})
	}
}

func mustRun(t *testing.T, src string, fold bool) Value {
	t.Helper()
	prog, err := parse(src, fold)
	if err != nil {
		t.Fatalf("parse(%q, fold=%v): %v", src, fold, err)
	}
	ctx := newContext(NewPolicy(), nil)
	ctx.pushFrame("test", nil)
	if err := exec(ctx, &Program{code: prog.code[:len(prog.code)-1]}); err != nil {
		t.Fatalf("exec(%q, fold=%v): %v", src, fold, err)
	}
	v, err := ctx.pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	return v
}

func TestAttrNames(t *testing.T) {
	names, err := AttrNames("True {{ b=2, a=1 }}")
	if err != nil {
		t.Fatalf("AttrNames: %v", err)
	}
	if len(names) != 2 || names[0] != "b" || names[1] != "a" {
		t.Errorf("AttrNames = %v, want declaration order [b a]", names)
	}
}

func TestAttrBlockCompilation(t *testing.T) {
	prog, err := Parse("True {{ payment=f(), limit=500 }}")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	code := prog.Instructions()
	last := code[len(code)-1]
	if last.Op != OpSetAuthz {
		t.Fatalf("last instruction = %s, want SetAuthz", last)
	}
	if len(last.Names) != 2 || last.Names[0] != "payment" || last.Names[1] != "limit" {
		t.Errorf("SetAuthz names = %v, want [payment limit]", last.Names)
	}
}
