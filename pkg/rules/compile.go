package rules

// Parse compiles rule text into a Program: the verdict expression, the
// attribute-block right-hand sides in declared order, and a terminating
// SetAuthz. Literal-only subtrees are folded at compile time.
func Parse(text string) (*Program, error) {
	return parse(text, true)
}

// parseNoFold compiles with constant folding disabled. Folding must never
// change semantics; tests compare the two compilations.
func parseNoFold(text string) (*Program, error) {
	return parse(text, false)
}

func parse(text string, fold bool) (*Program, error) {
	ast, err := parseRuleText(text)
	if err != nil {
		return nil, err
	}
	c := &compiler{fold: fold}
	c.emit(ast.expr)
	names := make([]string, 0, len(ast.attrs))
	for _, a := range ast.attrs {
		names = append(names, a.name)
		c.emit(a.rhs)
	}
	c.code = append(c.code, Instr{Op: OpSetAuthz, Names: names})
	return &Program{code: c.code}, nil
}

// AttrNames returns the authorization attribute names declared in rule
// text, without retaining the compilation. Useful for documentation
// tooling.
func AttrNames(text string) ([]string, error) {
	ast, err := parseRuleText(text)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ast.attrs))
	for _, a := range ast.attrs {
		names = append(names, a.name)
	}
	return names, nil
}

type compiler struct {
	fold bool
	code []Instr
}

func (c *compiler) push(in Instr) int {
	c.code = append(c.code, in)
	return len(c.code) - 1
}

// patch sets the jump target of the instruction at idx to the next
// emitted instruction.
func (c *compiler) patch(idx int) {
	c.code[idx].Target = len(c.code)
}

// constFold evaluates a literal-only subtree at compile time. The second
// return is false when the subtree is not constant or when evaluating it
// fails (division by zero, overflow, type mismatch); in that case the
// runtime instructions are emitted instead, so the error surfaces only if
// the code path executes.
func (c *compiler) constFold(n node) (Value, bool) {
	if !c.fold {
		return Nothing, false
	}
	switch n := n.(type) {
	case *litNode:
		return n.val, true
	case *setNode:
		elems := make([]Value, 0, len(n.elems))
		for _, e := range n.elems {
			v, ok := c.constFold(e)
			if !ok {
				return Nothing, false
			}
			elems = append(elems, v)
		}
		return SetValue(elems...), true
	case *unaryNode:
		x, ok := c.constFold(n.x)
		if !ok {
			return Nothing, false
		}
		v, err := applyUnary(n.op, x)
		return v, err == nil
	case *binNode:
		x, ok := c.constFold(n.x)
		if !ok {
			return Nothing, false
		}
		y, ok := c.constFold(n.y)
		if !ok {
			return Nothing, false
		}
		var (
			v   Value
			err error
		)
		if isCompareOp(n.op) {
			v, err = applyCompare(n.op, x, y)
		} else {
			v, err = applyBinary(n.op, x, y)
		}
		return v, err == nil
	case *boolNode:
		// Folds only when the chain resolves from constants alone:
		// short-circuit semantics pick the first deciding value.
		breakOn := n.op == OpJumpIfTrueElseKeep // or: stop on truthy
		for i, item := range n.items {
			v, ok := c.constFold(item)
			if !ok {
				return Nothing, false
			}
			if i == len(n.items)-1 || v.Truthy() == breakOn {
				return v, true
			}
		}
		return Nothing, false
	case *condNode:
		cond, ok := c.constFold(n.cond)
		if !ok {
			return Nothing, false
		}
		if cond.Truthy() {
			return c.constFold(n.then)
		}
		return c.constFold(n.els)
	}
	return Nothing, false
}

func isCompareOp(op Op) bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

func (c *compiler) emit(n node) {
	if v, ok := c.constFold(n); ok {
		c.push(Instr{Op: OpPushConst, Const: v})
		return
	}
	switch n := n.(type) {
	case *litNode:
		c.push(Instr{Op: OpPushConst, Const: n.val})
	case *nameNode:
		c.push(Instr{Op: OpLoadName, Name: n.name})
	case *attrNode:
		c.emit(n.x)
		c.push(Instr{Op: OpGetAttr, Name: n.name})
	case *itemNode:
		c.emit(n.x)
		c.emit(n.key)
		c.push(Instr{Op: OpGetItem})
	case *callNode:
		c.emit(n.fn)
		for _, a := range n.args {
			c.emit(a)
		}
		c.push(Instr{Op: OpCall, Argc: len(n.args)})
	case *setNode:
		for _, e := range n.elems {
			c.emit(e)
		}
		c.push(Instr{Op: OpMakeSet, Argc: len(n.elems)})
	case *unaryNode:
		c.emit(n.x)
		c.push(Instr{Op: n.op})
	case *binNode:
		c.emit(n.x)
		c.emit(n.y)
		c.push(Instr{Op: n.op})
	case *boolNode:
		c.emitBool(n)
	case *condNode:
		c.emitCond(n)
	}
}

// emitBool lowers an and/or chain using value-preserving short-circuit
// jumps: the tested value stays on the stack when the jump is taken.
func (c *compiler) emitBool(n *boolNode) {
	items := n.items
	if c.fold {
		items = c.pruneBool(n)
		if len(items) == 1 {
			c.emit(items[0])
			return
		}
	}
	var jumps []int
	for i, item := range items {
		c.emit(item)
		if i < len(items)-1 {
			jumps = append(jumps, c.push(Instr{Op: n.op}))
		}
	}
	for _, j := range jumps {
		c.patch(j)
	}
}

// pruneBool drops chain items whose constant value cannot decide the
// chain, and truncates at the first constant that always decides it. The
// operands after a deciding constant are never evaluated, preserving
// short-circuit semantics.
func (c *compiler) pruneBool(n *boolNode) []node {
	breakOn := n.op == OpJumpIfTrueElseKeep
	var kept []node
	for i, item := range n.items {
		v, ok := c.constFold(item)
		if !ok {
			kept = append(kept, item)
			continue
		}
		if v.Truthy() == breakOn || i == len(n.items)-1 {
			// This constant decides the chain (or ends it): it becomes
			// the final item and the rest is dead code.
			kept = append(kept, &litNode{val: v})
			return kept
		}
		// A non-deciding constant falls through; only keep it when it is
		// all we have at the end.
	}
	if len(kept) == 0 {
		// Every item was a non-deciding constant; the last one is the
		// result.
		last, _ := c.constFold(n.items[len(n.items)-1])
		return []node{&litNode{val: last}}
	}
	return kept
}

func (c *compiler) emitCond(n *condNode) {
	if c.fold {
		if v, ok := c.constFold(n.cond); ok {
			if v.Truthy() {
				c.emit(n.then)
			} else {
				c.emit(n.els)
			}
			return
		}
	}
	c.emit(n.cond)
	jumpFalse := c.push(Instr{Op: OpJumpIfFalsePop})
	c.emit(n.then)
	jumpEnd := c.push(Instr{Op: OpJump})
	c.patch(jumpFalse)
	c.emit(n.els)
	c.patch(jumpEnd)
}
