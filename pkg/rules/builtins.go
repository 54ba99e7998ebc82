package rules

import (
	"math"
	"strconv"
	"strings"
)

// defaultBuiltins returns the functions available to every rule unless
// shadowed by a caller-supplied variable or replaced via WithBuiltins.
// Each maps a familiar Python builtin onto this engine's value model;
// builtins whose results would need sequence types the model does not
// have (zip, enumerate, sorted, tuple, list, dict) are deliberately
// absent, so rules referencing them degrade to Nothing like any other
// unresolved name.
func defaultBuiltins() map[string]Value {
	m := map[string]Value{}
	add := func(name string, fn NormalFunc) {
		m[name] = FuncValue(NewFunc(name, fn))
	}

	add("abs", biAbs)
	add("bin", biBin)
	add("bool", biBool)
	add("bytes", biBytes)
	add("callable", biCallable)
	add("chr", biChr)
	add("float", biFloat)
	add("frozenset", biSet)
	add("getattr", biGetattr)
	add("hasattr", biHasattr)
	add("hash", biHash)
	add("hex", biHex)
	add("int", biInt)
	add("isinstance", biIsinstance)
	add("len", biLen)
	add("max", biMax)
	add("min", biMin)
	add("oct", biOct)
	add("ord", biOrd)
	add("range", biRange)
	add("repr", biRepr)
	add("round", biRound)
	add("set", biSet)
	add("str", biStr)
	add("sum", biSum)
	add("type", biType)
	return m
}

func arity(name string, args []Value, min, max int) error {
	if len(args) < min || len(args) > max {
		return typeErrf("%s() takes %d to %d arguments (%d given)", name, min, max, len(args))
	}
	return nil
}

func biAbs(args []Value) (Value, error) {
	if err := arity("abs", args, 1, 1); err != nil {
		return Nothing, err
	}
	switch args[0].Kind() {
	case KindInt:
		if i := args[0].AsInt(); i < 0 {
			return Int(-i), nil
		}
		return args[0], nil
	case KindFloat:
		return Float(math.Abs(args[0].AsFloat())), nil
	case KindBool:
		return Int(boolInt(args[0])), nil
	}
	return Nothing, typeErrf("abs() requires a number, not %s", args[0].Kind())
}

func biBin(args []Value) (Value, error) {
	return formatRadix("bin", args, 2, "0b")
}

func biHex(args []Value) (Value, error) {
	return formatRadix("hex", args, 16, "0x")
}

func biOct(args []Value) (Value, error) {
	return formatRadix("oct", args, 8, "0o")
}

func formatRadix(name string, args []Value, base int, prefix string) (Value, error) {
	if err := arity(name, args, 1, 1); err != nil {
		return Nothing, err
	}
	i, ok := intOperand(args[0])
	if !ok {
		return Nothing, typeErrf("%s() requires an int, not %s", name, args[0].Kind())
	}
	if i < 0 {
		return Str("-" + prefix + strconv.FormatInt(-i, base)), nil
	}
	return Str(prefix + strconv.FormatInt(i, base)), nil
}

func biBool(args []Value) (Value, error) {
	if len(args) == 0 {
		return False, nil
	}
	if err := arity("bool", args, 1, 1); err != nil {
		return Nothing, err
	}
	return Bool(args[0].Truthy()), nil
}

func biBytes(args []Value) (Value, error) {
	if len(args) == 0 {
		return Bytes(nil), nil
	}
	if err := arity("bytes", args, 1, 1); err != nil {
		return Nothing, err
	}
	switch args[0].Kind() {
	case KindBytes:
		return args[0], nil
	case KindStr:
		return Bytes([]byte(args[0].AsStr())), nil
	}
	return Nothing, typeErrf("bytes() cannot convert %s", args[0].Kind())
}

func biCallable(args []Value) (Value, error) {
	if err := arity("callable", args, 1, 1); err != nil {
		return Nothing, err
	}
	switch args[0].Kind() {
	case KindFunc:
		return True, nil
	case KindObject:
		_, ok := args[0].AsObject().(Caller)
		return Bool(ok), nil
	}
	return False, nil
}

func biChr(args []Value) (Value, error) {
	if err := arity("chr", args, 1, 1); err != nil {
		return Nothing, err
	}
	i, ok := intOperand(args[0])
	if !ok || i < 0 || i > 0x10FFFF {
		return Nothing, typeErrf("chr() requires a valid code point")
	}
	return Str(string(rune(i))), nil
}

func biOrd(args []Value) (Value, error) {
	if err := arity("ord", args, 1, 1); err != nil {
		return Nothing, err
	}
	if args[0].Kind() != KindStr {
		return Nothing, typeErrf("ord() requires a str, not %s", args[0].Kind())
	}
	runes := []rune(args[0].AsStr())
	if len(runes) != 1 {
		return Nothing, typeErrf("ord() requires a single character")
	}
	return Int(int64(runes[0])), nil
}

func biFloat(args []Value) (Value, error) {
	if len(args) == 0 {
		return Float(0), nil
	}
	if err := arity("float", args, 1, 1); err != nil {
		return Nothing, err
	}
	switch args[0].Kind() {
	case KindFloat:
		return args[0], nil
	case KindInt:
		return Float(float64(args[0].AsInt())), nil
	case KindBool:
		return Float(float64(boolInt(args[0]))), nil
	case KindStr:
		f, err := strconv.ParseFloat(strings.TrimSpace(args[0].AsStr()), 64)
		if err != nil {
			return Nothing, typeErrf("float() could not convert %q", args[0].AsStr())
		}
		return Float(f), nil
	}
	return Nothing, typeErrf("float() cannot convert %s", args[0].Kind())
}

func biInt(args []Value) (Value, error) {
	if len(args) == 0 {
		return Int(0), nil
	}
	if err := arity("int", args, 1, 2); err != nil {
		return Nothing, err
	}
	if len(args) == 2 {
		base, ok := intOperand(args[1])
		if !ok || args[0].Kind() != KindStr {
			return Nothing, typeErrf("int() with base requires a str and an int base")
		}
		i, err := strconv.ParseInt(strings.TrimSpace(args[0].AsStr()), int(base), 64)
		if err != nil {
			return Nothing, typeErrf("int() could not convert %q with base %d", args[0].AsStr(), base)
		}
		return Int(i), nil
	}
	switch args[0].Kind() {
	case KindInt:
		return args[0], nil
	case KindBool:
		return Int(boolInt(args[0])), nil
	case KindFloat:
		return Int(int64(math.Trunc(args[0].AsFloat()))), nil
	case KindStr:
		i, err := strconv.ParseInt(strings.TrimSpace(args[0].AsStr()), 10, 64)
		if err != nil {
			return Nothing, typeErrf("int() could not convert %q", args[0].AsStr())
		}
		return Int(i), nil
	}
	return Nothing, typeErrf("int() cannot convert %s", args[0].Kind())
}

func biGetattr(args []Value) (Value, error) {
	if err := arity("getattr", args, 2, 3); err != nil {
		return Nothing, err
	}
	if args[1].Kind() != KindStr {
		return Nothing, typeErrf("getattr() attribute name must be a str")
	}
	v := getAttr(args[0], args[1].AsStr())
	if v.IsNothing() && len(args) == 3 {
		return args[2], nil
	}
	return v, nil
}

func biHasattr(args []Value) (Value, error) {
	if err := arity("hasattr", args, 2, 2); err != nil {
		return Nothing, err
	}
	if args[1].Kind() != KindStr {
		return Nothing, typeErrf("hasattr() attribute name must be a str")
	}
	switch args[0].Kind() {
	case KindObject:
		if g, ok := args[0].AsObject().(AttrGetter); ok {
			_, ok := g.GetAttr(args[1].AsStr())
			return Bool(ok), nil
		}
		return False, nil
	case KindAuthz:
		return Bool(!args[0].AsAuthz().Attr(args[1].AsStr()).IsNothing()), nil
	}
	return False, nil
}

func biHash(args []Value) (Value, error) {
	if err := arity("hash", args, 1, 1); err != nil {
		return Nothing, err
	}
	return Int(int64(args[0].Hash())), nil
}

func biIsinstance(args []Value) (Value, error) {
	if err := arity("isinstance", args, 2, 2); err != nil {
		return Nothing, err
	}
	match := func(name string) bool {
		kind := args[0].Kind().String()
		if name == kind {
			return true
		}
		// bool is accepted where int is asked for, as in the source
		// language.
		return name == "int" && args[0].Kind() == KindBool
	}
	switch args[1].Kind() {
	case KindStr:
		return Bool(match(args[1].AsStr())), nil
	case KindSet:
		for _, e := range args[1].AsSet().Elems() {
			if e.Kind() == KindStr && match(e.AsStr()) {
				return True, nil
			}
		}
		return False, nil
	}
	return Nothing, typeErrf("isinstance() requires a type name or set of type names")
}

func biType(args []Value) (Value, error) {
	if err := arity("type", args, 1, 1); err != nil {
		return Nothing, err
	}
	return Str(args[0].Kind().String()), nil
}

func biLen(args []Value) (Value, error) {
	if err := arity("len", args, 1, 1); err != nil {
		return Nothing, err
	}
	switch args[0].Kind() {
	case KindStr:
		return Int(int64(len(args[0].AsStr()))), nil
	case KindBytes:
		return Int(int64(len(args[0].AsBytes()))), nil
	case KindSet:
		return Int(int64(args[0].AsSet().Len())), nil
	case KindObject:
		if m, ok := args[0].AsObject().(MapObject); ok {
			return Int(int64(len(m))), nil
		}
	}
	return Nothing, typeErrf("len() cannot size %s", args[0].Kind())
}

func biMax(args []Value) (Value, error) {
	return extreme("max", args, 1)
}

func biMin(args []Value) (Value, error) {
	return extreme("min", args, -1)
}

// extreme picks the largest (dir=1) or smallest (dir=-1) of the
// arguments, or of a single set argument's elements.
func extreme(name string, args []Value, dir int) (Value, error) {
	items := args
	if len(args) == 1 && args[0].Kind() == KindSet {
		items = args[0].AsSet().Elems()
	}
	if len(items) == 0 {
		return Nothing, typeErrf("%s() of an empty set", name)
	}
	best := items[0]
	for _, v := range items[1:] {
		r, ok := v.Compare(best)
		if !ok {
			return Nothing, typeErrf("%s() arguments are not orderable", name)
		}
		if r*dir > 0 {
			best = v
		}
	}
	return best, nil
}

func biRange(args []Value) (Value, error) {
	if err := arity("range", args, 1, 3); err != nil {
		return Nothing, err
	}
	var start, stop, step int64 = 0, 0, 1
	nums := make([]int64, len(args))
	for i, a := range args {
		n, ok := intOperand(a)
		if !ok {
			return Nothing, typeErrf("range() requires int arguments")
		}
		nums[i] = n
	}
	switch len(args) {
	case 1:
		stop = nums[0]
	case 2:
		start, stop = nums[0], nums[1]
	case 3:
		start, stop, step = nums[0], nums[1], nums[2]
	}
	if step == 0 {
		return Nothing, typeErrf("range() step must not be zero")
	}
	const maxRange = 1 << 20
	var elems []Value
	if step > 0 {
		for v := start; v < stop; v += step {
			if len(elems) >= maxRange {
				return Nothing, typeErrf("range() result too large")
			}
			elems = append(elems, Int(v))
		}
	} else {
		for v := start; v > stop; v += step {
			if len(elems) >= maxRange {
				return Nothing, typeErrf("range() result too large")
			}
			elems = append(elems, Int(v))
		}
	}
	return SetValue(elems...), nil
}

func biRepr(args []Value) (Value, error) {
	if err := arity("repr", args, 1, 1); err != nil {
		return Nothing, err
	}
	if args[0].Kind() == KindStr {
		return Str(strconv.Quote(args[0].AsStr())), nil
	}
	return Str(args[0].String()), nil
}

func biRound(args []Value) (Value, error) {
	if err := arity("round", args, 1, 2); err != nil {
		return Nothing, err
	}
	f, ok := floatOperand(args[0])
	if !ok {
		return Nothing, typeErrf("round() requires a number, not %s", args[0].Kind())
	}
	digits := int64(0)
	if len(args) == 2 {
		d, ok := intOperand(args[1])
		if !ok {
			return Nothing, typeErrf("round() digits must be an int")
		}
		digits = d
	}
	if len(args) == 1 {
		return Int(int64(math.RoundToEven(f))), nil
	}
	scale := math.Pow(10, float64(digits))
	return Float(math.RoundToEven(f*scale) / scale), nil
}

func biSet(args []Value) (Value, error) {
	if len(args) == 1 && args[0].Kind() == KindSet {
		return args[0], nil
	}
	if len(args) == 1 && args[0].Kind() == KindStr {
		var elems []Value
		for _, r := range args[0].AsStr() {
			elems = append(elems, Str(string(r)))
		}
		return SetValue(elems...), nil
	}
	return SetValue(args...), nil
}

func biStr(args []Value) (Value, error) {
	if len(args) == 0 {
		return Str(""), nil
	}
	if err := arity("str", args, 1, 1); err != nil {
		return Nothing, err
	}
	return Str(args[0].String()), nil
}

func biSum(args []Value) (Value, error) {
	if err := arity("sum", args, 1, 2); err != nil {
		return Nothing, err
	}
	if args[0].Kind() != KindSet {
		return Nothing, typeErrf("sum() requires a set, not %s", args[0].Kind())
	}
	total := Int(0)
	if len(args) == 2 {
		total = args[1]
	}
	for _, e := range args[0].AsSet().Elems() {
		v, err := applyBinary(OpAdd, total, e)
		if err != nil {
			return Nothing, err
		}
		total = v
	}
	return total, nil
}
