package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/aegis-authz/aegis/internal/domain/policy"
)

func TestRuleStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewRuleStore()

	def := &policy.RuleDefinition{
		Name:  "update_user",
		Text:  `user.admin or user == target`,
		Doc:   "controls user record updates",
		Attrs: map[string]any{"payment": false},
	}
	if err := s.SaveRule(ctx, def); err != nil {
		t.Fatalf("SaveRule: %v", err)
	}

	got, err := s.GetRule(ctx, "update_user")
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if got.Text != def.Text || got.Doc != def.Doc {
		t.Errorf("GetRule = %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be stamped on save")
	}

	// Mutating the returned copy must not affect the store.
	got.Attrs["payment"] = true
	again, _ := s.GetRule(ctx, "update_user")
	if again.Attrs["payment"] != false {
		t.Error("store state mutated through a returned copy")
	}

	defs, err := s.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(defs) != 1 || defs[0].Name != "update_user" {
		t.Errorf("ListRules = %v", defs)
	}

	if err := s.DeleteRule(ctx, "update_user"); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	if _, err := s.GetRule(ctx, "update_user"); !errors.Is(err, policy.ErrRuleNotFound) {
		t.Errorf("GetRule after delete: %v, want ErrRuleNotFound", err)
	}
	if err := s.DeleteRule(ctx, "update_user"); !errors.Is(err, policy.ErrRuleNotFound) {
		t.Errorf("DeleteRule twice: %v, want ErrRuleNotFound", err)
	}
}

func TestRuleStoreListSorted(t *testing.T) {
	ctx := context.Background()
	s := NewRuleStore()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := s.SaveRule(ctx, &policy.RuleDefinition{Name: name, Text: "True"}); err != nil {
			t.Fatalf("SaveRule(%s): %v", name, err)
		}
	}
	defs, err := s.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("defs[%d] = %s, want %s", i, defs[i].Name, name)
		}
	}
}

func TestRuleStoreEmptyName(t *testing.T) {
	if err := NewRuleStore().SaveRule(context.Background(), &policy.RuleDefinition{}); !errors.Is(err, policy.ErrEmptyRuleName) {
		t.Errorf("SaveRule with empty name: %v, want ErrEmptyRuleName", err)
	}
}
