package rules

import "errors"

// exec runs a compiled instruction stream against the context's stack. On
// return the stream has pushed exactly one value (the Authorization built
// by the terminating SetAuthz) above the entry watermark.
func exec(ctx *Context, prog *Program) error {
	rule := ctx.RuleName()
	base := len(ctx.stack)
	code := prog.code

	for pc := 0; pc < len(code); {
		if ctx.budget == 0 {
			return evalErrf(rule, ErrBudgetExceeded, "evaluation stopped after instruction budget")
		}
		if ctx.budget > 0 {
			ctx.budget--
		}

		in := &code[pc]
		next := pc + 1

		switch in.Op {
		case OpPushConst:
			ctx.Push(in.Const)

		case OpLoadName:
			ctx.Push(ctx.resolve(in.Name))

		case OpGetAttr:
			v, err := ctx.pop()
			if err != nil {
				return evalErrf(rule, err, "GetAttr(%s)", in.Name)
			}
			ctx.Push(getAttr(v, in.Name))

		case OpGetItem:
			vals, err := ctx.popN(2)
			if err != nil {
				return evalErrf(rule, err, "GetItem")
			}
			ctx.Push(getItem(vals[0], vals[1]))

		case OpCall:
			args, err := ctx.popN(in.Argc)
			if err != nil {
				return evalErrf(rule, err, "Call(%d)", in.Argc)
			}
			callee, err := ctx.pop()
			if err != nil {
				return evalErrf(rule, err, "Call(%d)", in.Argc)
			}
			if err := call(ctx, callee, args); err != nil {
				return evalErrf(rule, err, "calling %s", callee)
			}

		case OpMakeSet:
			elems, err := ctx.popN(in.Argc)
			if err != nil {
				return evalErrf(rule, err, "MakeSet(%d)", in.Argc)
			}
			ctx.Push(SetValue(elems...))

		case OpNeg, OpPos, OpNot, OpInvert:
			v, err := ctx.pop()
			if err != nil {
				return evalErrf(rule, err, "%s", in.Op)
			}
			r, err := applyUnary(in.Op, v)
			if err != nil {
				return evalErrf(rule, err, "%s", in.Op)
			}
			ctx.Push(r)

		case OpAdd, OpSub, OpMul, OpDiv, OpFloorDiv, OpMod, OpPow,
			OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr, OpIn, OpNotIn:
			vals, err := ctx.popN(2)
			if err != nil {
				return evalErrf(rule, err, "%s", in.Op)
			}
			r, err := applyBinary(in.Op, vals[0], vals[1])
			if err != nil {
				return evalErrf(rule, err, "%s", in.Op)
			}
			ctx.Push(r)

		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			vals, err := ctx.popN(2)
			if err != nil {
				return evalErrf(rule, err, "%s", in.Op)
			}
			r, err := applyCompare(in.Op, vals[0], vals[1])
			if err != nil {
				return evalErrf(rule, err, "%s", in.Op)
			}
			ctx.Push(r)

		case OpJumpIfFalseElseKeep:
			v, err := ctx.pop()
			if err != nil {
				return evalErrf(rule, err, "%s", in.Op)
			}
			if !v.Truthy() {
				// Keep the deciding value as the chain's result.
				ctx.Push(v)
				next = in.Target
			}

		case OpJumpIfTrueElseKeep:
			v, err := ctx.pop()
			if err != nil {
				return evalErrf(rule, err, "%s", in.Op)
			}
			if v.Truthy() {
				ctx.Push(v)
				next = in.Target
			}

		case OpJumpIfFalsePop:
			v, err := ctx.pop()
			if err != nil {
				return evalErrf(rule, err, "%s", in.Op)
			}
			if !v.Truthy() {
				next = in.Target
			}

		case OpJump:
			next = in.Target

		case OpSetAuthz:
			attrs := make(map[string]Value, len(in.Names))
			for k, v := range ctx.currentDefaults() {
				attrs[k] = v
			}
			vals, err := ctx.popN(len(in.Names))
			if err != nil {
				return evalErrf(rule, err, "SetAuthz")
			}
			for i, name := range in.Names {
				attrs[name] = vals[i]
			}
			verdict, err := ctx.pop()
			if err != nil {
				return evalErrf(rule, err, "SetAuthz")
			}
			ctx.Push(AuthzValue(NewAuthorization(verdict.Truthy(), attrs)))

		default:
			return evalErrf(rule, nil, "unknown opcode %s", in.Op)
		}
		pc = next
	}

	if len(ctx.stack) != base+1 {
		return evalErrf(rule, nil, "unbalanced instruction stream: %d values left", len(ctx.stack)-base)
	}
	return nil
}

// getAttr resolves attribute access with the tolerance rules: a missing
// attribute, an attribute on Nothing, or an attribute on a value with no
// attribute capability all degrade to Nothing.
func getAttr(v Value, name string) Value {
	switch v.Kind() {
	case KindObject:
		if g, ok := v.AsObject().(AttrGetter); ok {
			if attr, ok := g.GetAttr(name); ok {
				return attr
			}
		}
		return Nothing
	case KindAuthz:
		return v.AsAuthz().Attr(name)
	}
	return Nothing
}

// getItem resolves subscription with the same tolerance: non-subscriptable
// values and missing keys degrade to Nothing.
func getItem(container, key Value) Value {
	switch container.Kind() {
	case KindObject:
		if g, ok := container.AsObject().(ItemGetter); ok {
			if v, ok := g.GetItem(key); ok {
				return v
			}
		}
		return Nothing
	case KindStr:
		if i, ok := intOperand(key); ok {
			s := container.AsStr()
			if i < 0 {
				i += int64(len(s))
			}
			if i >= 0 && i < int64(len(s)) {
				return Str(string(s[i]))
			}
		}
		return Nothing
	case KindBytes:
		if i, ok := intOperand(key); ok {
			b := container.AsBytes()
			if i < 0 {
				i += int64(len(b))
			}
			if i >= 0 && i < int64(len(b)) {
				return Int(int64(b[i]))
			}
		}
		return Nothing
	case KindAuthz:
		if key.Kind() == KindStr {
			return container.AsAuthz().Attr(key.AsStr())
		}
		return Nothing
	}
	return Nothing
}

// call invokes a callee. Calling Nothing or a non-callable pushes Nothing
// rather than failing; rule authors misspelling a function name get a
// falsy rule, not a crash. Context-wanting functions receive the context
// and push their own result.
func call(ctx *Context, callee Value, args []Value) error {
	switch callee.Kind() {
	case KindFunc:
		f := callee.AsFunc()
		if f.ctx != nil {
			return f.ctx(ctx, args)
		}
		r, err := f.fn(args)
		if err != nil {
			return err
		}
		ctx.Push(r)
		return nil
	case KindObject:
		if c, ok := callee.AsObject().(Caller); ok {
			r, err := c.Call(args)
			if err != nil {
				return err
			}
			ctx.Push(r)
			return nil
		}
	}
	ctx.Push(Nothing)
	return nil
}

// IsBudgetExceeded reports whether err is an evaluation failure caused by
// the optional instruction budget.
func IsBudgetExceeded(err error) bool {
	return errors.Is(err, ErrBudgetExceeded)
}
