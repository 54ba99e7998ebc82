package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/aegis-authz/aegis/internal/domain/policy"
)

func openTestStore(t *testing.T) *RuleStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "rules.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRuleStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	def := &policy.RuleDefinition{
		Name:     "update_user",
		Text:     `user.admin or user == target {{ payment=user.admin }}`,
		Doc:      "controls user record updates",
		Attrs:    map[string]any{"payment": false, "limit": float64(100)},
		AttrDocs: map[string]string{"payment": "may edit payment fields"},
	}
	if err := s.SaveRule(ctx, def); err != nil {
		t.Fatalf("SaveRule: %v", err)
	}

	got, err := s.GetRule(ctx, "update_user")
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if got.Text != def.Text || got.Doc != def.Doc {
		t.Errorf("round trip changed rule: %+v", got)
	}
	if got.Attrs["payment"] != false || got.Attrs["limit"] != float64(100) {
		t.Errorf("round trip changed attrs: %v", got.Attrs)
	}
	if got.AttrDocs["payment"] != "may edit payment fields" {
		t.Errorf("round trip changed attr docs: %v", got.AttrDocs)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be stamped")
	}
}

func TestSQLiteRuleStoreUpsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.SaveRule(ctx, &policy.RuleDefinition{Name: "r", Text: "False"}); err != nil {
		t.Fatalf("SaveRule: %v", err)
	}
	if err := s.SaveRule(ctx, &policy.RuleDefinition{Name: "r", Text: "True"}); err != nil {
		t.Fatalf("SaveRule update: %v", err)
	}
	got, err := s.GetRule(ctx, "r")
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if got.Text != "True" {
		t.Errorf("text = %q after upsert, want True", got.Text)
	}

	defs, err := s.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(defs) != 1 {
		t.Errorf("upsert duplicated the row: %d rules", len(defs))
	}
}

func TestSQLiteRuleStoreMissing(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.GetRule(ctx, "nope"); !errors.Is(err, policy.ErrRuleNotFound) {
		t.Errorf("GetRule(nope): %v, want ErrRuleNotFound", err)
	}
	if err := s.DeleteRule(ctx, "nope"); !errors.Is(err, policy.ErrRuleNotFound) {
		t.Errorf("DeleteRule(nope): %v, want ErrRuleNotFound", err)
	}
}
