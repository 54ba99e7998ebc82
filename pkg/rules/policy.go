package rules

import (
	"log/slog"
	"sort"
	"sync"
)

// Policy is a registry of rules, builtins and declared defaults, and the
// entry point for evaluation. After setup it is read-mostly and safe for
// concurrent evaluation; rule installation and declaration may run
// concurrently with readers.
type Policy struct {
	group    string
	resolver EntrypointResolver
	logger   *slog.Logger
	budget   int64

	mu       sync.RWMutex
	rules    map[string]*Rule
	defaults map[string]*Rule
	docs     map[string]*RuleDoc
	builtins map[string]Value

	// epMu guards the entrypoint resolution cache. Hits and misses are
	// both memoized (misses as Nothing) so each name is resolved at most
	// once per Policy lifetime.
	epMu    sync.Mutex
	epCache map[string]Value
}

// Option configures a Policy.
type Option func(*Policy)

// WithGroup sets the entrypoint group searched for unresolved names. When
// unset, entrypoint resolution is skipped entirely.
func WithGroup(group string) Option {
	return func(p *Policy) { p.group = group }
}

// WithResolver installs the entrypoint resolver backing the policy's
// group lookups.
func WithResolver(r EntrypointResolver) Option {
	return func(p *Policy) { p.resolver = r }
}

// WithBuiltins replaces the default builtin map. The "rule" builtin is
// re-added afterwards unless the map carries its own.
func WithBuiltins(builtins map[string]Value) Option {
	return func(p *Policy) {
		p.builtins = make(map[string]Value, len(builtins)+1)
		for k, v := range builtins {
			p.builtins[k] = v
		}
	}
}

// WithLogger sets the logger for parse and evaluation warnings. Without
// it the policy is silent.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) { p.logger = logger }
}

// WithInstructionBudget bounds the number of instructions a single
// Evaluate call may execute, including nested rule() invocations. Zero
// means unlimited.
func WithInstructionBudget(n int64) Option {
	return func(p *Policy) { p.budget = n }
}

// NewPolicy builds a Policy. Without options it carries the default
// builtins, no entrypoint group, and no logger.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		rules:    make(map[string]*Rule),
		defaults: make(map[string]*Rule),
		docs:     make(map[string]*RuleDoc),
		epCache:  make(map[string]Value),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.builtins == nil {
		p.builtins = defaultBuiltins()
	}
	if _, ok := p.builtins["rule"]; !ok {
		p.builtins["rule"] = FuncValue(NewContextFunc("rule", ruleBuiltin))
	}
	return p
}

func (p *Policy) logWarn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

// SetRule installs a rule, replacing any rule with the same name.
func (p *Policy) SetRule(r *Rule) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules[r.Name()] = r
}

// SetRuleText installs rule text under the given name, compiling eagerly
// so syntax errors surface at installation. On a ParseError nothing is
// installed.
func (p *Policy) SetRuleText(name, text string) error {
	r := NewRule(name, text, nil)
	if err := r.Check(); err != nil {
		return err
	}
	p.SetRule(r)
	return nil
}

// GetRule retrieves a rule by name: the installed rule, or the declared
// default when no rule was set.
func (p *Policy) GetRule(name string) (*Rule, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if r, ok := p.rules[name]; ok {
		return r, true
	}
	if d, ok := p.defaults[name]; ok {
		return d, true
	}
	return nil, false
}

// DelRule removes an installed rule, restoring the declared default if
// one exists. Unknown names are a no-op.
func (p *Policy) DelRule(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rules, name)
}

// RuleNames returns the names of all installed and declared rules,
// sorted.
func (p *Policy) RuleNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := make(map[string]bool, len(p.rules)+len(p.defaults))
	for name := range p.rules {
		seen[name] = true
	}
	for name := range p.defaults {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of distinct installed or declared rules.
func (p *Policy) Len() int {
	return len(p.RuleNames())
}

// Declare registers a default for a rule: its fallback text, default
// values for its authorization attributes, and documentation. The default
// applies when no rule of that name has been set.
func (p *Policy) Declare(name, text string, attrs map[string]Value, doc string, attrDocs map[string]string) *Rule {
	r := NewRule(name, text, attrs)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaults[name] = r
	p.docs[name] = &RuleDoc{Name: name, Doc: doc, AttrDocs: attrDocs}
	return r
}

// Declared reports whether Declare has been called for name. It can be
// false for rules that were only set.
func (p *Policy) Declared(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.defaults[name]
	return ok
}

// GetDefault retrieves the declared default rule for name.
func (p *Policy) GetDefault(name string) (*Rule, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.defaults[name]
	return d, ok
}

// GetDoc retrieves the documentation for a rule, creating an empty record
// if none was declared.
func (p *Policy) GetDoc(name string) *RuleDoc {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.docs[name]; ok {
		return d
	}
	d := &RuleDoc{Name: name}
	p.docs[name] = d
	return d
}

// GetDocs returns documentation for all declared rules, sorted by name.
func (p *Policy) GetDocs() []*RuleDoc {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.docs))
	for name := range p.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*RuleDoc, 0, len(names))
	for _, name := range names {
		out = append(out, p.docs[name])
	}
	return out
}

// Builtins returns a copy of the policy's builtin map.
func (p *Policy) Builtins() map[string]Value {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]Value, len(p.builtins))
	for k, v := range p.builtins {
		out[k] = v
	}
	return out
}

// resolve implements steps 2 and 3 of the name resolution chain: policy
// builtins, then memoized entrypoint resolution. Unresolved names yield
// Nothing.
func (p *Policy) resolve(name string) Value {
	p.mu.RLock()
	v, ok := p.builtins[name]
	p.mu.RUnlock()
	if ok {
		return v
	}
	if p.group == "" || p.resolver == nil {
		return Nothing
	}

	p.epMu.Lock()
	defer p.epMu.Unlock()
	if v, ok := p.epCache[name]; ok {
		return v
	}
	resolved := Nothing
	if fn, ok := p.resolver.Resolve(p.group, name); ok {
		resolved = FuncValue(fn)
	}
	// Negative results memoize as Nothing so the resolver is consulted at
	// most once per name.
	p.epCache[name] = resolved
	return resolved
}

// Evaluate evaluates the named rule against the given variable bindings
// and returns the resulting Authorization.
//
// A missing rule returns a falsy Authorization, never an error. An
// evaluation failure (division by zero, refused capability, budget
// exhaustion) returns a falsy Authorization carrying the declared
// attribute defaults together with the EvalError, distinct from a rule
// that simply evaluated to false.
func (p *Policy) Evaluate(name string, variables map[string]Value) (*Authorization, error) {
	rule, def := p.lookup(name)
	if rule == nil && def == nil {
		return Deny(), nil
	}

	attrs := marryDefaults(def, rule)
	if rule == nil {
		rule = def
	}

	prog, err := rule.Program()
	if err != nil {
		// Fail closed on unparsable text, keeping declared defaults.
		p.logWarn("failed to parse rule", "rule", name, "error", err)
		return NewAuthorization(false, attrs), err
	}

	ctx := newContext(p, variables)
	ctx.pushFrame(name, attrs)
	defer ctx.popFrame()

	if err := exec(ctx, prog); err != nil {
		p.logWarn("rule evaluation failed", "rule", name, "error", err)
		return NewAuthorization(false, attrs), err
	}

	result, perr := ctx.pop()
	if perr != nil || result.Kind() != KindAuthz {
		return NewAuthorization(false, attrs), evalErrf(name, perr, "rule did not produce an authorization")
	}
	return result.AsAuthz(), nil
}

func (p *Policy) lookup(name string) (rule, def *Rule) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rules[name], p.defaults[name]
}

// marryDefaults merges declared attribute defaults with the installed
// rule's defaults; the installed rule wins on conflicts.
func marryDefaults(def, rule *Rule) map[string]Value {
	attrs := make(map[string]Value)
	if def != nil {
		for k, v := range def.attrs {
			attrs[k] = v
		}
	}
	if rule != nil {
		for k, v := range rule.attrs {
			attrs[k] = v
		}
	}
	return attrs
}

// ruleBuiltin implements the rule() builtin: evaluating another rule from
// within a rule, with per-evaluation memoization. It is context-wanting
// and pushes the sub-rule's full Authorization itself.
func ruleBuiltin(ctx *Context, args []Value) error {
	if len(args) != 1 || args[0].Kind() != KindStr {
		ctx.Push(AuthzValue(Deny()))
		return nil
	}
	name := args[0].AsStr()

	if az, ok := ctx.ruleCache[name]; ok {
		ctx.Push(AuthzValue(az))
		return nil
	}

	// A rule already on the evaluation path re-entered here terminates
	// with a falsy result. It is not cached, so a later invocation under
	// different bindings may still succeed.
	if ctx.onPath(name) {
		if p := ctx.policy; p != nil {
			p.logWarn("rule recursion detected", "rule", name, "from", ctx.RuleName())
		}
		ctx.Push(AuthzValue(Deny()))
		return nil
	}

	p := ctx.policy
	if p == nil {
		ctx.Push(AuthzValue(Deny()))
		return nil
	}

	rule, def := p.lookup(name)
	if rule == nil && def == nil {
		p.logWarn("request to evaluate unknown rule", "rule", name, "from", ctx.RuleName())
		az := Deny()
		ctx.ruleCache[name] = az
		ctx.Push(AuthzValue(az))
		return nil
	}

	attrs := marryDefaults(def, rule)
	if rule == nil {
		rule = def
	}

	az, err := runSubRule(ctx, rule, name, attrs)
	if err != nil {
		// A failing sub-rule reads as falsy and evaluation continues.
		p.logWarn("sub-rule evaluation failed", "rule", name, "error", err)
		az = NewAuthorization(false, attrs)
	}
	ctx.ruleCache[name] = az
	ctx.Push(AuthzValue(az))
	return nil
}

func runSubRule(ctx *Context, rule *Rule, name string, attrs map[string]Value) (*Authorization, error) {
	prog, err := rule.Program()
	if err != nil {
		return nil, err
	}
	ctx.pushFrame(name, attrs)
	defer ctx.popFrame()
	base := len(ctx.stack)
	if err := exec(ctx, prog); err != nil {
		// Discard whatever the failed stream left behind so the outer
		// rule's stack stays balanced.
		ctx.stack = ctx.stack[:base]
		return nil, err
	}
	result, perr := ctx.pop()
	if perr != nil || result.Kind() != KindAuthz {
		return nil, evalErrf(name, perr, "rule did not produce an authorization")
	}
	return result.AsAuthz(), nil
}
