// Package service contains application services.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aegis-authz/aegis/internal/domain/policy"
	"github.com/aegis-authz/aegis/pkg/rules"
)

// lruEntry is a doubly-linked list node for the LRU cache.
type lruEntry struct {
	key      uint64
	decision policy.Decision
	prev     *lruEntry
	next     *lruEntry
}

// ResultCache provides bounded LRU caching for evaluation results.
// Thread-safe with Mutex (both Get and Put mutate LRU order).
type ResultCache struct {
	mu      sync.Mutex
	entries map[uint64]*lruEntry
	head    *lruEntry // most recently used
	tail    *lruEntry // least recently used
	maxSize int
}

// NewResultCache creates a new LRU cache with the given max size.
func NewResultCache(maxSize int) *ResultCache {
	return &ResultCache{
		entries: make(map[uint64]*lruEntry, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a cached decision. Returns (decision, true) on hit.
// On hit, the entry is promoted to the head (most recently used).
func (c *ResultCache) Get(key uint64) (policy.Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.moveToHeadLocked(e)
		return e.decision, true
	}
	return policy.Decision{}, false
}

// Put stores a decision. If at capacity, the least recently used entry is
// evicted.
func (c *ResultCache) Put(key uint64, decision policy.Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.decision = decision
		c.moveToHeadLocked(e)
		return
	}
	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}
	e := &lruEntry{key: key, decision: decision}
	c.entries[key] = e
	c.pushHeadLocked(e)
}

// Clear empties the cache. Called on rule reload.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*lruEntry, c.maxSize)
	c.head = nil
	c.tail = nil
}

// Size returns the current cache size.
func (c *ResultCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResultCache) moveToHeadLocked(e *lruEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

func (c *ResultCache) pushHeadLocked(e *lruEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *ResultCache) unlinkLocked(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (c *ResultCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	evicted := c.tail
	c.unlinkLocked(evicted)
	delete(c.entries, evicted.key)
}

// computeCacheKey hashes the rule name and the canonical JSON encoding of
// the variable bindings. Bindings that cannot encode (host objects,
// functions) return ok=false and bypass the cache.
func computeCacheKey(rule string, variables map[string]any) (uint64, bool) {
	encoded, err := json.Marshal(variables)
	if err != nil {
		return 0, false
	}
	h := xxhash.New()
	_, _ = h.WriteString(rule)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(encoded)
	return h.Sum64(), true
}

// EvaluationService wraps a rules.Policy with rule storage, decision
// caching, logging and tracing. It is the application-facing evaluator
// behind the HTTP API and the CLI.
type EvaluationService struct {
	store  policy.RuleStore
	logger *slog.Logger
	tracer trace.Tracer
	cache  *ResultCache

	mu     sync.RWMutex
	engine *rules.Policy

	engineOpts []rules.Option
}

// EvaluationServiceOption configures the service.
type EvaluationServiceOption func(*EvaluationService)

// WithCacheSize sets the decision cache capacity; 0 disables caching.
func WithCacheSize(size int) EvaluationServiceOption {
	return func(s *EvaluationService) {
		if size > 0 {
			s.cache = NewResultCache(size)
		} else {
			s.cache = nil
		}
	}
}

// WithEngineOptions passes options (entrypoint group, resolver,
// instruction budget) through to the engine policies the service builds.
func WithEngineOptions(opts ...rules.Option) EvaluationServiceOption {
	return func(s *EvaluationService) { s.engineOpts = opts }
}

// NewEvaluationService builds the service and loads all rule definitions
// from the store. Definitions that fail to compile abort construction;
// a policy server must not come up half-loaded.
func NewEvaluationService(ctx context.Context, store policy.RuleStore, logger *slog.Logger, opts ...EvaluationServiceOption) (*EvaluationService, error) {
	s := &EvaluationService{
		store:  store,
		logger: logger,
		tracer: otel.Tracer("aegis/service"),
		cache:  NewResultCache(1024),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload rebuilds the engine policy from the store and clears the
// decision cache. Concurrent evaluations keep using the previous policy
// until the swap.
func (s *EvaluationService) Reload(ctx context.Context) error {
	defs, err := s.store.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	engine := rules.NewPolicy(append([]rules.Option{rules.WithLogger(s.logger)}, s.engineOpts...)...)
	for i := range defs {
		if err := defs[i].Install(engine); err != nil {
			return fmt.Errorf("installing rule %q: %w", defs[i].Name, err)
		}
	}

	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()
	if s.cache != nil {
		s.cache.Clear()
	}
	s.logger.Info("rules loaded", "count", len(defs))
	return nil
}

func (s *EvaluationService) currentEngine() *rules.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// Evaluate evaluates the named rule against the given variables and
// returns the Decision. A missing rule denies without error; an
// evaluation failure denies and reports the error.
func (s *EvaluationService) Evaluate(ctx context.Context, rule string, variables map[string]any) (policy.Decision, error) {
	_, span := s.tracer.Start(ctx, "policy.evaluate",
		trace.WithAttributes(attribute.String("rule", rule)))
	defer span.End()

	key, cacheable := uint64(0), false
	if s.cache != nil {
		key, cacheable = computeCacheKey(rule, variables)
		if cacheable {
			if d, ok := s.cache.Get(key); ok {
				d.Cached = true
				span.SetAttributes(attribute.Bool("cached", true))
				return d, nil
			}
		}
	}

	start := time.Now()
	az, evalErr := s.currentEngine().Evaluate(rule, rules.FromGoMap(variables))
	elapsed := time.Since(start)

	attrs := make(map[string]any)
	for name, v := range az.Attrs() {
		attrs[name] = rules.ToGo(v)
	}
	d := policy.Decision{
		ID:       uuid.NewString(),
		Rule:     rule,
		Allowed:  az.Verdict(),
		Attrs:    attrs,
		Duration: elapsed,
	}
	span.SetAttributes(attribute.Bool("allowed", d.Allowed))

	if evalErr != nil {
		s.logger.Warn("rule evaluation failed",
			"rule", rule, "decision_id", d.ID, "error", evalErr)
		// Failed evaluations are not cached; they may be transient
		// (budget) and must stay observable.
		return d, evalErr
	}

	s.logger.Debug("rule evaluated",
		"rule", rule, "decision_id", d.ID, "allowed", d.Allowed, "duration", elapsed)
	if s.cache != nil && cacheable {
		s.cache.Put(key, d)
	}
	return d, nil
}

// SaveRule validates and persists a definition, then reloads the engine.
func (s *EvaluationService) SaveRule(ctx context.Context, def *policy.RuleDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if err := s.store.SaveRule(ctx, def); err != nil {
		return err
	}
	return s.Reload(ctx)
}

// DeleteRule removes a definition and reloads the engine.
func (s *EvaluationService) DeleteRule(ctx context.Context, name string) error {
	if err := s.store.DeleteRule(ctx, name); err != nil {
		return err
	}
	return s.Reload(ctx)
}

// ListRules returns the stored definitions.
func (s *EvaluationService) ListRules(ctx context.Context) ([]policy.RuleDefinition, error) {
	return s.store.ListRules(ctx)
}

// GetRule returns one stored definition.
func (s *EvaluationService) GetRule(ctx context.Context, name string) (*policy.RuleDefinition, error) {
	return s.store.GetRule(ctx, name)
}

// CacheSize reports the current decision cache population, for the health
// endpoint.
func (s *EvaluationService) CacheSize() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Size()
}
