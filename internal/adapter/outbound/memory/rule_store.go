// Package memory provides in-memory store implementations, suitable for
// development, testing and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aegis-authz/aegis/internal/domain/policy"
)

// RuleStore implements policy.RuleStore with an in-memory map.
// Thread-safe for concurrent access.
type RuleStore struct {
	mu    sync.RWMutex
	rules map[string]*policy.RuleDefinition
}

// NewRuleStore creates a new in-memory rule store.
func NewRuleStore() *RuleStore {
	return &RuleStore{rules: make(map[string]*policy.RuleDefinition)}
}

// ListRules returns all stored definitions sorted by name.
func (s *RuleStore) ListRules(ctx context.Context) ([]policy.RuleDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]policy.RuleDefinition, 0, len(s.rules))
	for _, def := range s.rules {
		out = append(out, *copyDefinition(def))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetRule returns a definition by name.
// Returns policy.ErrRuleNotFound if no such rule exists.
func (s *RuleStore) GetRule(ctx context.Context, name string) (*policy.RuleDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.rules[name]
	if !ok {
		return nil, policy.ErrRuleNotFound
	}
	return copyDefinition(def), nil
}

// SaveRule creates or updates a definition.
func (s *RuleStore) SaveRule(ctx context.Context, def *policy.RuleDefinition) error {
	if def.Name == "" {
		return policy.ErrEmptyRuleName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyDefinition(def)
	stored.UpdatedAt = time.Now().UTC()
	s.rules[def.Name] = stored
	return nil
}

// DeleteRule removes a definition by name.
// Returns policy.ErrRuleNotFound if no such rule exists.
func (s *RuleStore) DeleteRule(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[name]; !ok {
		return policy.ErrRuleNotFound
	}
	delete(s.rules, name)
	return nil
}

// copyDefinition deep-copies a definition so callers cannot mutate stored
// state.
func copyDefinition(def *policy.RuleDefinition) *policy.RuleDefinition {
	out := *def
	if def.Attrs != nil {
		out.Attrs = make(map[string]any, len(def.Attrs))
		for k, v := range def.Attrs {
			out.Attrs[k] = v
		}
	}
	if def.AttrDocs != nil {
		out.AttrDocs = make(map[string]string, len(def.AttrDocs))
		for k, v := range def.AttrDocs {
			out.AttrDocs[k] = v
		}
	}
	return &out
}
