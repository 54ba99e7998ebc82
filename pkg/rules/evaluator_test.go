package rules

import (
	"errors"
	"testing"
)

// evalValue compiles src as a rule, strips the terminating SetAuthz, and
// returns the raw value of the verdict expression.
func evalValue(t *testing.T, src string, vars map[string]Value) Value {
	t.Helper()
	v, err := tryEvalValue(src, vars)
	if err != nil {
		t.Fatalf("evaluating %q: %v", src, err)
	}
	return v
}

func tryEvalValue(src string, vars map[string]Value) (Value, error) {
	prog, err := Parse(src)
	if err != nil {
		return Nothing, err
	}
	code := prog.code[:len(prog.code)-1]
	ctx := newContext(NewPolicy(), vars)
	ctx.pushFrame("test", nil)
	if err := exec(ctx, &Program{code: code}); err != nil {
		return Nothing, err
	}
	return ctx.pop()
}

func TestEvaluateExpressions(t *testing.T) {
	obj := MapObject{"attr": Int(5)}
	tests := []struct {
		src  string
		vars map[string]Value
		want Value
	}{
		{"True", nil, True},
		{"False", nil, False},
		{"None", nil, Nothing},
		{"23", nil, Int(23)},
		{"-23", nil, Int(-23)},
		{"23.", nil, Float(23.0)},
		{"23.1", nil, Float(23.1)},
		{"-23e1", nil, Float(-230.0)},
		{"23e-1", nil, Float(2.3)},
		{`"this is \" a test"`, nil, Str(`this is " a test`)},
		{`"foo" "bar"`, nil, Str("foobar")},
		{"foobar", map[string]Value{"foobar": Str("foo")}, Str("foo")},

		{"{1, 2, 3}", nil, SetValue(Int(1), Int(2), Int(3))},
		{"{1, b, 3}", map[string]Value{"b": Int(2)}, SetValue(Int(1), Int(2), Int(3))},
		{"{a, b}", map[string]Value{"a": Int(1), "b": Int(2)}, SetValue(Int(1), Int(2))},
		{"{1, 2, 3,}", nil, SetValue(Int(1), Int(2), Int(3))},

		{"~3", nil, Int(-4)},
		{"~a", map[string]Value{"a": Int(3)}, Int(-4)},
		{"+(3)", nil, Int(3)},
		{"-(3)", nil, Int(-3)},
		{"-a", map[string]Value{"a": Int(3)}, Int(-3)},

		{"not True", nil, False},
		{"not False", nil, True},
		{"not a", map[string]Value{"a": True}, False},
		{"not a", map[string]Value{"a": Str("")}, True},

		{"3 ** 2", nil, Int(9)},
		{"a ** b", map[string]Value{"a": Int(3), "b": Int(2)}, Int(9)},
		{"2 ** -1", nil, Float(0.5)},
		{"3 * 2", nil, Int(6)},
		{"3 / 2", nil, Float(1.5)},
		{"a / b", map[string]Value{"a": Int(3), "b": Int(2)}, Float(1.5)},
		{"3 // 2", nil, Int(1)},
		{"-7 // 2", nil, Int(-4)},
		{"3 % 2", nil, Int(1)},
		{"-7 % 3", nil, Int(2)},
		{"3 + 2", nil, Int(5)},
		{"3 - 2", nil, Int(1)},
		{`"foo" + "bar"`, nil, Str("foobar")},
		{"3 << 2", nil, Int(12)},
		{"3 >> 2", nil, Int(0)},
		{"3 & 2", nil, Int(2)},
		{"3 ^ 2", nil, Int(1)},
		{"3 | 2", nil, Int(3)},

		// Precedence.
		{"2 + 3 * 4", nil, Int(14)},
		{"(2 + 3) * 4", nil, Int(20)},
		{"2 ** 3 ** 2", nil, Int(512)},
		{"-2 ** 2", nil, Int(-4)},
		{"1 + 2 == 3", nil, True},
		{"1 | 2 == 2", nil, False}, // | binds tighter than ==

		// Comparisons.
		{"3 < 5", nil, True},
		{"5 <= 5", nil, True},
		{"5 > 5", nil, False},
		{"5 >= 5", nil, True},
		{"3 == 3.0", nil, True},
		{"3 != 4", nil, True},
		{`"abc" < "abd"`, nil, True},
		{"1 < 2 < 3", nil, True},
		{"1 < 2 < 2", nil, False},
		{"3 > 2 > 1", nil, True},

		// Membership.
		{"1 in {1, 2, 3}", nil, True},
		{"4 in {1, 2, 3}", nil, False},
		{"4 not in {1, 2, 3}", nil, True},
		{`"oo" in "foo"`, nil, True},
		{`"x" not in "foo"`, nil, True},
		{"{1, 2, 3} == {3, 2, 1}", nil, True},

		// Set algebra.
		{"{1, 2} | {2, 3}", nil, SetValue(Int(1), Int(2), Int(3))},
		{"{1, 2} & {2, 3}", nil, SetValue(Int(2))},
		{"{1, 2} - {2, 3}", nil, SetValue(Int(1))},
		{"{1, 2} ^ {2, 3}", nil, SetValue(Int(1), Int(3))},

		// Short-circuit values (Python-style, value preserving).
		{"1 and 2", nil, Int(2)},
		{"0 and 2", nil, Int(0)},
		{"1 or 2", nil, Int(1)},
		{"0 or 2", nil, Int(2)},
		{`"" or "fallback"`, nil, Str("fallback")},
		{"a and b", map[string]Value{"a": True, "b": Int(7)}, Int(7)},
		{"a or b", map[string]Value{"a": False, "b": Int(7)}, Int(7)},

		// Ternary.
		{"1 if True else 2", nil, Int(1)},
		{"1 if False else 2", nil, Int(2)},
		{"a if c else b", map[string]Value{"a": Int(1), "b": Int(2), "c": True}, Int(1)},
		{"a if c else b", map[string]Value{"a": Int(1), "b": Int(2), "c": False}, Int(2)},

		// Attribute access, subscription, calls.
		{"obj.attr", map[string]Value{"obj": ObjectValue(obj)}, Int(5)},
		{"obj.missing", map[string]Value{"obj": ObjectValue(obj)}, Nothing},
		{`obj["attr"]`, map[string]Value{"obj": ObjectValue(obj)}, Int(5)},
		{`"abc"[1]`, nil, Str("b")},
		{`"abc"[-1]`, nil, Str("c")},
		{"f(2, 3)", map[string]Value{"f": FuncValue(NewFunc("f", func(args []Value) (Value, error) {
			return applyBinary(OpAdd, args[0], args[1])
		}))}, Int(5)},

		// Missing-name tolerance.
		{"missing", nil, Nothing},
		{"missing.attr", nil, Nothing},
		{"missing.attr.deeper", nil, Nothing},
		{"missing[0]", nil, Nothing},
		{"missing(1, 2)", nil, Nothing},
		{"not missing", nil, True},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := evalValue(t, tt.src, tt.vars)
			if !got.Equal(tt.want) || got.Kind() != tt.want.Kind() {
				t.Errorf("%q = %s (%s), want %s (%s)", tt.src, got, got.Kind(), tt.want, tt.want.Kind())
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		vars map[string]Value
		want error
	}{
		{"division by zero", "1 / a", map[string]Value{"a": Int(0)}, ErrDivisionByZero},
		{"floor division by zero", "1 // a", map[string]Value{"a": Int(0)}, ErrDivisionByZero},
		{"modulo by zero", "1 % a", map[string]Value{"a": Int(0)}, ErrDivisionByZero},
		{"type mismatch", `1 + a`, map[string]Value{"a": Str("x")}, errNotSupported},
		{"not orderable", `1 < a`, map[string]Value{"a": Str("x")}, errNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tryEvalValue(tt.src, tt.vars)
			if err == nil {
				t.Fatalf("expected error evaluating %q", tt.src)
			}
			var evalErr *EvalError
			if !errors.As(err, &evalErr) {
				t.Fatalf("error type = %T, want *EvalError", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

// tripwire is a host object whose capabilities record use; the
// short-circuit tests assert the skipped operand is never touched.
type tripwire struct {
	touched *bool
}

func (tr tripwire) GetAttr(string) (Value, bool) {
	*tr.touched = true
	return True, true
}

func (tr tripwire) Call([]Value) (Value, error) {
	*tr.touched = true
	return True, nil
}

func TestShortCircuitNeverTouchesSkippedOperand(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"and", "False and trap.attr"},
		{"or", "True or trap.attr"},
		{"ternary", "1 if True else trap.attr"},
		{"and call", "False and trap()"},
		{"chain", "1 > 2 < trap.attr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			touched := false
			vars := map[string]Value{"trap": ObjectValue(tripwire{touched: &touched})}
			if _, err := tryEvalValue(tt.src, vars); err != nil {
				t.Fatalf("evaluating %q: %v", tt.src, err)
			}
			if touched {
				t.Errorf("%q touched the skipped operand", tt.src)
			}
		})
	}
}

func TestComparisonChainShortCircuit(t *testing.T) {
	// The chain stops at the first false link; the trap on the right is
	// never compared.
	touched := false
	vars := map[string]Value{"trap": ObjectValue(tripwire{touched: &touched})}
	got := evalValue(t, "2 < 1 < trap.attr", vars)
	if !got.Equal(False) {
		t.Errorf("chain = %s, want False", got)
	}
	if touched {
		t.Error("chain touched operand after first false comparison")
	}
}

func TestInstructionBudget(t *testing.T) {
	p := NewPolicy(WithInstructionBudget(5))
	if err := p.SetRuleText("r", "1 + a + a + a + a + a + a"); err != nil {
		t.Fatalf("SetRuleText: %v", err)
	}
	az, err := p.Evaluate("r", map[string]Value{"a": Int(1)})
	if err == nil {
		t.Fatal("expected budget error")
	}
	if !IsBudgetExceeded(err) {
		t.Errorf("error = %v, want budget exceeded", err)
	}
	if az.Verdict() {
		t.Error("budget exhaustion must fail closed")
	}
}

func TestCallableObject(t *testing.T) {
	adder := callerFunc(func(args []Value) (Value, error) {
		return applyBinary(OpAdd, args[0], args[1])
	})
	got := evalValue(t, "f(20, 3)", map[string]Value{"f": ObjectValue(adder)})
	if !got.Equal(Int(23)) {
		t.Errorf("f(20, 3) = %s, want 23", got)
	}
}

type callerFunc func(args []Value) (Value, error)

func (f callerFunc) Call(args []Value) (Value, error) { return f(args) }

func TestCallingNonCallableYieldsNothing(t *testing.T) {
	for _, src := range []string{"x()", "None()", `"str"()`} {
		got := evalValue(t, src, map[string]Value{"x": Int(1)})
		if !got.IsNothing() {
			t.Errorf("%q = %s, want Nothing", src, got)
		}
	}
}
