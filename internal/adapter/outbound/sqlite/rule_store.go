// Package sqlite provides a rule store backed by an embedded SQLite
// database, for deployments that need durable rule storage without an
// external service.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aegis-authz/aegis/internal/domain/policy"
)

const schema = `
CREATE TABLE IF NOT EXISTS rules (
	name       TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	doc        TEXT NOT NULL DEFAULT '',
	attrs      TEXT NOT NULL DEFAULT '{}',
	attr_docs  TEXT NOT NULL DEFAULT '{}',
	updated_at TIMESTAMP NOT NULL
);`

// RuleStore implements policy.RuleStore on an SQLite database.
type RuleStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and bootstraps the
// schema. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*RuleStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening rule database: %w", err)
	}
	// The database is embedded; a single connection avoids table locking
	// surprises under concurrent writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping rule schema: %w", err)
	}
	return &RuleStore{db: db}, nil
}

// Close releases the database handle.
func (s *RuleStore) Close() error { return s.db.Close() }

// ListRules returns all stored definitions sorted by name.
func (s *RuleStore) ListRules(ctx context.Context) ([]policy.RuleDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, text, doc, attrs, attr_docs, updated_at FROM rules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var out []policy.RuleDefinition
	for rows.Next() {
		def, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *def)
	}
	return out, rows.Err()
}

// GetRule returns a definition by name.
// Returns policy.ErrRuleNotFound if no such rule exists.
func (s *RuleStore) GetRule(ctx context.Context, name string) (*policy.RuleDefinition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, text, doc, attrs, attr_docs, updated_at FROM rules WHERE name = ?`, name)
	def, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, policy.ErrRuleNotFound
	}
	return def, err
}

// SaveRule creates or updates a definition.
func (s *RuleStore) SaveRule(ctx context.Context, def *policy.RuleDefinition) error {
	if def.Name == "" {
		return policy.ErrEmptyRuleName
	}
	attrs, err := json.Marshal(orEmpty(def.Attrs))
	if err != nil {
		return fmt.Errorf("encoding rule attrs: %w", err)
	}
	attrDocs, err := json.Marshal(orEmptyDocs(def.AttrDocs))
	if err != nil {
		return fmt.Errorf("encoding rule attr docs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (name, text, doc, attrs, attr_docs, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			text = excluded.text,
			doc = excluded.doc,
			attrs = excluded.attrs,
			attr_docs = excluded.attr_docs,
			updated_at = excluded.updated_at`,
		def.Name, def.Text, def.Doc, string(attrs), string(attrDocs), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving rule %q: %w", def.Name, err)
	}
	return nil
}

// DeleteRule removes a definition by name.
// Returns policy.ErrRuleNotFound if no such rule exists.
func (s *RuleStore) DeleteRule(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting rule %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return policy.ErrRuleNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*policy.RuleDefinition, error) {
	var (
		def             policy.RuleDefinition
		attrs, attrDocs string
	)
	if err := row.Scan(&def.Name, &def.Text, &def.Doc, &attrs, &attrDocs, &def.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attrs), &def.Attrs); err != nil {
		return nil, fmt.Errorf("decoding rule attrs for %q: %w", def.Name, err)
	}
	if err := json.Unmarshal([]byte(attrDocs), &def.AttrDocs); err != nil {
		return nil, fmt.Errorf("decoding rule attr docs for %q: %w", def.Name, err)
	}
	if len(def.Attrs) == 0 {
		def.Attrs = nil
	}
	if len(def.AttrDocs) == 0 {
		def.AttrDocs = nil
	}
	return &def, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptyDocs(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
