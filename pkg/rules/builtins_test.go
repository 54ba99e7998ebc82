package rules

import "testing"

func TestBuiltins(t *testing.T) {
	tests := []struct {
		src  string
		want Value
	}{
		{"abs(-5)", Int(5)},
		{"abs(-5.5)", Float(5.5)},
		{"bin(5)", Str("0b101")},
		{"hex(255)", Str("0xff")},
		{"oct(8)", Str("0o10")},
		{"hex(-1)", Str("-0x1")},
		{"bool(3)", True},
		{"bool(0)", False},
		{`bool("")`, False},
		{"callable(len)", True},
		{"callable(3)", False},
		{"chr(65)", Str("A")},
		{`ord("A")`, Int(65)},
		{"float(3)", Float(3.0)},
		{`float("2.5")`, Float(2.5)},
		{"int(3.9)", Int(3)},
		{`int("42")`, Int(42)},
		{`int("ff", 16)`, Int(255)},
		{`len("abc")`, Int(3)},
		{"len({1, 2, 3})", Int(3)},
		{"max(1, 2, 3)", Int(3)},
		{"min({5, 2, 9})", Int(2)},
		{"max({1.5, 2})", Int(2)},
		{"round(2.5)", Int(2)},
		{"round(3.5)", Int(4)},
		{"round(2.345, 2)", Float(2.35)},
		{"set(1, 2, 2)", SetValue(Int(1), Int(2))},
		{"frozenset(1, 2)", SetValue(Int(1), Int(2))},
		{"str(23)", Str("23")},
		{"str(True)", Str("True")},
		{"str(None)", Str("None")},
		{"sum({1, 2, 3})", Int(6)},
		{"sum({1, 2, 3}, 10)", Int(16)},
		{`type(3)`, Str("int")},
		{`type("x")`, Str("str")},
		{`type({1})`, Str("set")},
		{`isinstance(3, "int")`, True},
		{`isinstance(3, "str")`, False},
		{`isinstance(True, "int")`, True},
		{`isinstance(3, {"int", "float"})`, True},
		{"3 in range(10)", True},
		{"10 in range(10)", False},
		{"5 in range(1, 10, 2)", True},
		{"4 in range(1, 10, 2)", False},
		{`getattr(obj, "a")`, Int(1)},
		{`getattr(obj, "zz", 7)`, Int(7)},
		{`hasattr(obj, "a")`, True},
		{`hasattr(obj, "zz")`, False},
		{`repr("x")`, Str(`"x"`)},
	}
	vars := map[string]Value{"obj": ObjectValue(MapObject{"a": Int(1)})}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := evalValue(t, tt.src, vars)
			if !got.Equal(tt.want) {
				t.Errorf("%q = %s (%s), want %s", tt.src, got, got.Kind(), tt.want)
			}
		})
	}
}

func TestSequenceBuiltinsAbsent(t *testing.T) {
	// Builtins needing sequence values are deliberately not provided;
	// they degrade like any unresolved name.
	for _, src := range []string{"sorted({3, 1})", "zip({1}, {2})", "list({1})"} {
		got := evalValue(t, src, nil)
		if !got.IsNothing() {
			t.Errorf("%q = %s, want Nothing", src, got)
		}
	}
}
