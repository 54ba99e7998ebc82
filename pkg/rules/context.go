package rules

// Context is the per-evaluation mutable state: the caller's variable
// bindings, the value stack the instructions operate on, and the
// per-evaluation cache of rule() results. A Context is owned by exactly
// one Policy.Evaluate call and is discarded when it returns; it is never
// shared between goroutines.
type Context struct {
	policy    *Policy
	variables map[string]Value
	stack     []Value

	// ruleCache memoizes rule() invocations for the duration of one
	// evaluation, so a sub-rule's body runs at most once.
	ruleCache map[string]*Authorization

	// frames tracks the rules currently on the evaluation path, outermost
	// first. The top frame supplies the attribute defaults for SetAuthz
	// and the path is the recursion guard for rule().
	frames []ruleFrame

	// budget is the remaining instruction budget; negative means
	// unlimited.
	budget int64
}

// ruleFrame is one rule on the evaluation path.
type ruleFrame struct {
	name     string
	defaults map[string]Value
}

func newContext(p *Policy, variables map[string]Value) *Context {
	budget := int64(-1)
	if p != nil && p.budget > 0 {
		budget = p.budget
	}
	return &Context{
		policy:    p,
		variables: variables,
		ruleCache: make(map[string]*Authorization),
		budget:    budget,
	}
}

// Policy returns the policy this evaluation runs against.
func (c *Context) Policy() *Policy { return c.policy }

// Push pushes a value onto the evaluation stack. Exposed for
// context-wanting functions, which manage the stack directly.
func (c *Context) Push(v Value) { c.stack = append(c.stack, v) }

// pop removes and returns the top of the stack. The compiler keeps the
// stream balanced, so an empty stack is a compiler bug.
func (c *Context) pop() (Value, error) {
	if len(c.stack) == 0 {
		return Nothing, ErrStackUnderflow
	}
	v := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return v, nil
}

// popN removes the top n values, returning them in stack order (the value
// pushed first comes first).
func (c *Context) popN(n int) ([]Value, error) {
	if len(c.stack) < n {
		return nil, ErrStackUnderflow
	}
	vals := c.stack[len(c.stack)-n:]
	c.stack = c.stack[:len(c.stack)-n]
	return vals, nil
}

// RuleName returns the name of the rule currently being evaluated.
func (c *Context) RuleName() string {
	if len(c.frames) == 0 {
		return ""
	}
	return c.frames[len(c.frames)-1].name
}

// onPath reports whether the named rule is already being evaluated,
// directly or transitively.
func (c *Context) onPath(name string) bool {
	for _, f := range c.frames {
		if f.name == name {
			return true
		}
	}
	return false
}

func (c *Context) pushFrame(name string, defaults map[string]Value) {
	c.frames = append(c.frames, ruleFrame{name: name, defaults: defaults})
}

func (c *Context) popFrame() {
	c.frames = c.frames[:len(c.frames)-1]
}

func (c *Context) currentDefaults() map[string]Value {
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1].defaults
}

// resolve implements the variable resolution order: caller variables,
// policy builtins, then entrypoint resolution. Unresolved names yield
// Nothing, never an error.
func (c *Context) resolve(name string) Value {
	if v, ok := c.variables[name]; ok {
		return v
	}
	if c.policy == nil {
		return Nothing
	}
	return c.policy.resolve(name)
}
