package auth

import (
	"context"
	"errors"
	"testing"
)

func TestKeyringSHA256(t *testing.T) {
	k := NewKeyring(map[string]string{"ci": HashKey("secret-token")})

	id, err := k.Validate("secret-token")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if id.Name != "ci" {
		t.Errorf("identity = %q, want ci", id.Name)
	}

	if _, err := k.Validate("wrong-token"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Validate(wrong) = %v, want ErrInvalidKey", err)
	}
}

func TestKeyringArgon2(t *testing.T) {
	hash, err := HashKeyArgon2("secret-token")
	if err != nil {
		t.Fatalf("HashKeyArgon2: %v", err)
	}
	k := NewKeyring(map[string]string{"admin": hash})

	id, err := k.Validate("secret-token")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if id.Name != "admin" {
		t.Errorf("identity = %q, want admin", id.Name)
	}
	if _, err := k.Validate("wrong-token"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Validate(wrong) = %v, want ErrInvalidKey", err)
	}
}

func TestKeyringEmpty(t *testing.T) {
	if !NewKeyring(nil).Empty() {
		t.Error("empty keyring should report Empty")
	}
	if NewKeyring(map[string]string{"a": HashKey("x")}).Empty() {
		t.Error("non-empty keyring should not report Empty")
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	if IdentityFromContext(ctx) != nil {
		t.Error("expected nil identity on a bare context")
	}
	ctx = WithIdentity(ctx, &Identity{Name: "ci"})
	id := IdentityFromContext(ctx)
	if id == nil || id.Name != "ci" {
		t.Errorf("IdentityFromContext = %v", id)
	}
}
