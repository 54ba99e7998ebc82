package rules

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// errNotSupported marks an operand-type mismatch. During constant folding
// it abandons the fold; at runtime it becomes an EvalError.
var errNotSupported = errors.New("unsupported operand type")

func typeErrf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errNotSupported)
}

// applyUnary implements OpNeg, OpPos, OpNot and OpInvert.
func applyUnary(op Op, v Value) (Value, error) {
	switch op {
	case OpNot:
		return Bool(!v.Truthy()), nil
	case OpNeg:
		switch v.Kind() {
		case KindInt:
			return Int(-v.AsInt()), nil
		case KindFloat:
			return Float(-v.AsFloat()), nil
		case KindBool:
			return Int(-boolInt(v)), nil
		}
		return Nothing, typeErrf("bad operand type for unary -: %s", v.Kind())
	case OpPos:
		switch v.Kind() {
		case KindInt, KindFloat:
			return v, nil
		case KindBool:
			return Int(boolInt(v)), nil
		}
		return Nothing, typeErrf("bad operand type for unary +: %s", v.Kind())
	case OpInvert:
		switch v.Kind() {
		case KindInt:
			return Int(^v.AsInt()), nil
		case KindBool:
			return Int(^boolInt(v)), nil
		}
		return Nothing, typeErrf("bad operand type for unary ~: %s", v.Kind())
	}
	return Nothing, typeErrf("bad unary opcode %s", op)
}

func boolInt(v Value) int64 {
	if v.AsBool() {
		return 1
	}
	return 0
}

// intOperand widens bools to ints the way the arithmetic does, so
// True + 1 == 2.
func intOperand(v Value) (int64, bool) {
	switch v.Kind() {
	case KindInt:
		return v.AsInt(), true
	case KindBool:
		return boolInt(v), true
	}
	return 0, false
}

func floatOperand(v Value) (float64, bool) {
	switch v.Kind() {
	case KindInt:
		return float64(v.AsInt()), true
	case KindFloat:
		return v.AsFloat(), true
	case KindBool:
		return float64(boolInt(v)), true
	}
	return 0, false
}

func bothInt(a, b Value) (int64, int64, bool) {
	x, ok := intOperand(a)
	if !ok {
		return 0, 0, false
	}
	y, ok := intOperand(b)
	return x, y, ok
}

func bothFloat(a, b Value) (float64, float64, bool) {
	x, ok := floatOperand(a)
	if !ok {
		return 0, 0, false
	}
	y, ok := floatOperand(b)
	return x, y, ok
}

// applyBinary implements the arithmetic, bitwise and membership operators.
// Comparison opcodes are handled by applyCompare.
func applyBinary(op Op, a, b Value) (Value, error) {
	switch op {
	case OpAdd:
		if a.Kind() == KindStr && b.Kind() == KindStr {
			return Str(a.AsStr() + b.AsStr()), nil
		}
		if a.Kind() == KindBytes && b.Kind() == KindBytes {
			return Bytes(append(a.AsBytes(), b.AsBytes()...)), nil
		}
		if x, y, ok := bothInt(a, b); ok {
			sum := x + y
			if (sum > x) != (y > 0) {
				return Nothing, typeErrf("integer overflow in +")
			}
			return Int(sum), nil
		}
		if x, y, ok := bothFloat(a, b); ok {
			return Float(x + y), nil
		}
		return Nothing, typeErrf("unsupported operand types for +: %s and %s", a.Kind(), b.Kind())

	case OpSub:
		if a.Kind() == KindSet && b.Kind() == KindSet {
			return Value{kind: KindSet, set: a.AsSet().difference(b.AsSet())}, nil
		}
		if x, y, ok := bothInt(a, b); ok {
			diff := x - y
			if (diff < x) != (y > 0) {
				return Nothing, typeErrf("integer overflow in -")
			}
			return Int(diff), nil
		}
		if x, y, ok := bothFloat(a, b); ok {
			return Float(x - y), nil
		}
		return Nothing, typeErrf("unsupported operand types for -: %s and %s", a.Kind(), b.Kind())

	case OpMul:
		if a.Kind() == KindStr {
			if n, ok := intOperand(b); ok {
				return repeatString(a.AsStr(), n)
			}
		}
		if b.Kind() == KindStr {
			if n, ok := intOperand(a); ok {
				return repeatString(b.AsStr(), n)
			}
		}
		if x, y, ok := bothInt(a, b); ok {
			if x != 0 && y != 0 {
				prod := x * y
				if prod/y != x {
					return Nothing, typeErrf("integer overflow in *")
				}
				return Int(prod), nil
			}
			return Int(0), nil
		}
		if x, y, ok := bothFloat(a, b); ok {
			return Float(x * y), nil
		}
		return Nothing, typeErrf("unsupported operand types for *: %s and %s", a.Kind(), b.Kind())

	case OpDiv:
		// True division always yields a float.
		x, y, ok := bothFloat(a, b)
		if !ok {
			return Nothing, typeErrf("unsupported operand types for /: %s and %s", a.Kind(), b.Kind())
		}
		if y == 0 {
			return Nothing, ErrDivisionByZero
		}
		return Float(x / y), nil

	case OpFloorDiv:
		if x, y, ok := bothInt(a, b); ok {
			if y == 0 {
				return Nothing, ErrDivisionByZero
			}
			q := x / y
			if (x%y != 0) && ((x < 0) != (y < 0)) {
				q--
			}
			return Int(q), nil
		}
		if x, y, ok := bothFloat(a, b); ok {
			if y == 0 {
				return Nothing, ErrDivisionByZero
			}
			return Float(math.Floor(x / y)), nil
		}
		return Nothing, typeErrf("unsupported operand types for //: %s and %s", a.Kind(), b.Kind())

	case OpMod:
		if x, y, ok := bothInt(a, b); ok {
			if y == 0 {
				return Nothing, ErrDivisionByZero
			}
			// Result takes the sign of the divisor.
			r := x % y
			if r != 0 && ((r < 0) != (y < 0)) {
				r += y
			}
			return Int(r), nil
		}
		if x, y, ok := bothFloat(a, b); ok {
			if y == 0 {
				return Nothing, ErrDivisionByZero
			}
			r := math.Mod(x, y)
			if r != 0 && ((r < 0) != (y < 0)) {
				r += y
			}
			return Float(r), nil
		}
		return Nothing, typeErrf("unsupported operand types for %%: %s and %s", a.Kind(), b.Kind())

	case OpPow:
		if x, y, ok := bothInt(a, b); ok && y >= 0 {
			r, err := intPow(x, y)
			if err != nil {
				return Nothing, err
			}
			return Int(r), nil
		}
		if x, y, ok := bothFloat(a, b); ok {
			return Float(math.Pow(x, y)), nil
		}
		return Nothing, typeErrf("unsupported operand types for **: %s and %s", a.Kind(), b.Kind())

	case OpBitAnd:
		if a.Kind() == KindSet && b.Kind() == KindSet {
			return Value{kind: KindSet, set: a.AsSet().intersect(b.AsSet())}, nil
		}
		if x, y, ok := bothInt(a, b); ok {
			return Int(x & y), nil
		}
		return Nothing, typeErrf("unsupported operand types for &: %s and %s", a.Kind(), b.Kind())

	case OpBitOr:
		if a.Kind() == KindSet && b.Kind() == KindSet {
			return Value{kind: KindSet, set: a.AsSet().union(b.AsSet())}, nil
		}
		if x, y, ok := bothInt(a, b); ok {
			return Int(x | y), nil
		}
		return Nothing, typeErrf("unsupported operand types for |: %s and %s", a.Kind(), b.Kind())

	case OpBitXor:
		if a.Kind() == KindSet && b.Kind() == KindSet {
			return Value{kind: KindSet, set: a.AsSet().symmetricDifference(b.AsSet())}, nil
		}
		if x, y, ok := bothInt(a, b); ok {
			return Int(x ^ y), nil
		}
		return Nothing, typeErrf("unsupported operand types for ^: %s and %s", a.Kind(), b.Kind())

	case OpShl:
		if x, y, ok := bothInt(a, b); ok {
			if y < 0 || y >= 64 {
				return Nothing, typeErrf("shift count out of range")
			}
			return Int(x << uint(y)), nil
		}
		return Nothing, typeErrf("unsupported operand types for <<: %s and %s", a.Kind(), b.Kind())

	case OpShr:
		if x, y, ok := bothInt(a, b); ok {
			if y < 0 || y >= 64 {
				return Nothing, typeErrf("shift count out of range")
			}
			return Int(x >> uint(y)), nil
		}
		return Nothing, typeErrf("unsupported operand types for >>: %s and %s", a.Kind(), b.Kind())

	case OpIn, OpNotIn:
		in, err := contains(b, a)
		if err != nil {
			return Nothing, err
		}
		if op == OpNotIn {
			in = !in
		}
		return Bool(in), nil
	}
	return Nothing, typeErrf("bad binary opcode %s", op)
}

// maxRepeatLen bounds string repetition so a rule cannot allocate
// unbounded memory.
const maxRepeatLen = 1 << 20

func repeatString(s string, n int64) (Value, error) {
	if n <= 0 {
		return Str(""), nil
	}
	if int64(len(s))*n > maxRepeatLen {
		return Nothing, typeErrf("repeated string too large")
	}
	return Str(strings.Repeat(s, int(n))), nil
}

func intPow(base, exp int64) (int64, error) {
	var result int64 = 1
	for exp > 0 {
		if exp&1 == 1 {
			prod := result * base
			if base != 0 && prod/base != result {
				return 0, typeErrf("integer overflow in **")
			}
			result = prod
		}
		exp >>= 1
		if exp == 0 {
			break
		}
		sq := base * base
		if base != 0 && sq/base != base {
			return 0, typeErrf("integer overflow in **")
		}
		base = sq
	}
	return result, nil
}

// contains implements the "in" operator: elem in container.
func contains(container, elem Value) (bool, error) {
	switch container.Kind() {
	case KindSet:
		return container.AsSet().Contains(elem), nil
	case KindStr:
		if elem.Kind() != KindStr {
			return false, typeErrf("'in <str>' requires a str operand, not %s", elem.Kind())
		}
		return strings.Contains(container.AsStr(), elem.AsStr()), nil
	case KindBytes:
		if elem.Kind() != KindBytes {
			return false, typeErrf("'in <bytes>' requires a bytes operand, not %s", elem.Kind())
		}
		return strings.Contains(string(container.AsBytes()), string(elem.AsBytes())), nil
	case KindObject:
		if c, ok := container.AsObject().(Container); ok {
			return c.Contains(elem), nil
		}
		return false, typeErrf("object %T is not a container", container.AsObject())
	}
	return false, typeErrf("%s is not a container", container.Kind())
}

// applyCompare implements OpEq through OpGe.
func applyCompare(op Op, a, b Value) (Value, error) {
	switch op {
	case OpEq:
		return Bool(a.Equal(b)), nil
	case OpNe:
		return Bool(!a.Equal(b)), nil
	}
	r, ok := a.Compare(b)
	if !ok {
		return Nothing, typeErrf("%s and %s are not orderable", a.Kind(), b.Kind())
	}
	switch op {
	case OpLt:
		return Bool(r < 0), nil
	case OpLe:
		return Bool(r <= 0), nil
	case OpGt:
		return Bool(r > 0), nil
	case OpGe:
		return Bool(r >= 0), nil
	}
	return Nothing, typeErrf("bad comparison opcode %s", op)
}
