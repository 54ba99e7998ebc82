package rules

import "testing"

func TestAuthorizationVerdict(t *testing.T) {
	if !NewAuthorization(true, nil).Verdict() {
		t.Error("expected truthy authorization")
	}
	if NewAuthorization(false, nil).Verdict() {
		t.Error("expected falsy authorization")
	}
	if Deny().Verdict() {
		t.Error("Deny() must be falsy")
	}
}

func TestAuthorizationAttr(t *testing.T) {
	az := NewAuthorization(true, map[string]Value{"payment": False, "limit": Int(500)})

	if got := az.Attr("payment"); !got.Equal(False) {
		t.Errorf("Attr(payment) = %s, want False", got)
	}
	if got := az.Attr("limit"); !got.Equal(Int(500)) {
		t.Errorf("Attr(limit) = %s, want 500", got)
	}
	// Unknown attributes yield Nothing, never an error.
	if got := az.Attr("unknown"); !got.IsNothing() {
		t.Errorf("Attr(unknown) = %s, want Nothing", got)
	}
}

func TestAuthorizationImmutable(t *testing.T) {
	src := map[string]Value{"a": Int(1)}
	az := NewAuthorization(true, src)
	src["a"] = Int(2)
	if got := az.Attr("a"); !got.Equal(Int(1)) {
		t.Errorf("mutating the source map changed the authorization: %s", got)
	}

	attrs := az.Attrs()
	attrs["a"] = Int(3)
	if got := az.Attr("a"); !got.Equal(Int(1)) {
		t.Errorf("mutating the copy changed the authorization: %s", got)
	}
}

func TestAuthorizationEqual(t *testing.T) {
	a := NewAuthorization(true, map[string]Value{"x": Int(1)})
	b := NewAuthorization(true, map[string]Value{"x": Int(1)})
	c := NewAuthorization(true, map[string]Value{"x": Int(2)})
	d := NewAuthorization(false, map[string]Value{"x": Int(1)})

	if !a.Equal(b) {
		t.Error("expected structural equality")
	}
	if a.Equal(c) {
		t.Error("different attribute values must not be equal")
	}
	if a.Equal(d) {
		t.Error("different verdicts must not be equal")
	}
}

func TestAuthorizationString(t *testing.T) {
	az := NewAuthorization(true, map[string]Value{"b": Int(2), "a": Int(1)})
	want := "Authorization(True, a=1, b=2)"
	if got := az.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
