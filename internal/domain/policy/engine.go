package policy

import (
	"context"
	"errors"
)

// Error types for rule store operations.
var (
	ErrRuleNotFound  = errors.New("rule not found")
	ErrEmptyRuleName = errors.New("rule name must not be empty")
)

// Evaluator evaluates a named rule against caller-supplied variables.
// Implemented by service.EvaluationService.
type Evaluator interface {
	// Evaluate returns the Decision for the named rule. A missing rule
	// yields a deny Decision, not an error.
	Evaluate(ctx context.Context, rule string, variables map[string]any) (Decision, error)
}

// RuleStore persists and retrieves rule definitions.
type RuleStore interface {
	// ListRules returns all stored definitions sorted by name.
	ListRules(ctx context.Context) ([]RuleDefinition, error)
	// GetRule returns a definition by name.
	// Returns ErrRuleNotFound if no such rule exists.
	GetRule(ctx context.Context, name string) (*RuleDefinition, error)
	// SaveRule creates or updates a definition.
	SaveRule(ctx context.Context, def *RuleDefinition) error
	// DeleteRule removes a definition by name.
	// Returns ErrRuleNotFound if no such rule exists.
	DeleteRule(ctx context.Context, name string) error
}
